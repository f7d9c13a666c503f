package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Run is one recorded tree build.
type Run struct {
	ID        uuid.UUID     `json:"id"`
	Dataset   string        `json:"dataset"`
	Mode      string        `json:"mode"`
	Workers   int           `json:"workers"`
	Points    int           `json:"points"`
	Dims      int           `json:"dims"`
	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"createdAt"`
}

func NewRun(dataset, mode string, workers, points, dims int, elapsed time.Duration) Run {
	return Run{
		ID:        uuid.New(),
		Dataset:   dataset,
		Mode:      mode,
		Workers:   workers,
		Points:    points,
		Dims:      dims,
		Elapsed:   elapsed,
		CreatedAt: time.Now().UTC(),
	}
}
