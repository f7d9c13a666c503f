package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sod/pkd/internal/logging"
	bolt "go.etcd.io/bbolt"
)

type Config struct {
	FileName string        `envconfig:"KD_LEDGER_FILE" default:"pkd.db"`
	Timeout  time.Duration `envconfig:"KD_LEDGER_TIMEOUT" default:"5s"`
	MaxRuns  int           `envconfig:"KD_LEDGER_MAX_RUNS" default:"0"`
	MaxAge   time.Duration `envconfig:"KD_LEDGER_MAX_AGE" default:"0s"`
}

type DB struct {
	DB *bolt.DB
}

func NewFromEnv(ctx context.Context, config *Config) (*DB, error) {
	logger := logging.FromContext(ctx)
	logger.Infof("opening ledger %s", config.FileName)

	db, err := bolt.Open(config.FileName, 0600, &bolt.Options{Timeout: config.Timeout})
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", config.FileName, err)
	}

	return &DB{DB: db}, nil
}

func (db *DB) Close(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.Infof("closing ledger")

	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}

	return nil
}
