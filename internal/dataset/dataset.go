// Package dataset loads and generates point sets stored as CSV, one point per
// line.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-sod/pkd/internal/geom"
	"github.com/valyala/fastrand"
)

var ErrDimension = errors.New("dataset: inconsistent dimensions")

type Config struct {
	Path      string `envconfig:"KD_DATA" default:"data.csv"`
	Separator string `envconfig:"KD_SEPARATOR" default:","`
	Dims      int    `envconfig:"KD_DIMS" default:"0"`
}

// Rune returns the separator as a single character.
func (c *Config) Rune() (rune, error) {
	r, size := utf8.DecodeRuneInString(c.Separator)
	if r == utf8.RuneError || size != len(c.Separator) {
		return 0, fmt.Errorf("dataset: separator must be one character, got %q", c.Separator)
	}
	return r, nil
}

// Read parses points separated by sep. With dims zero the dimensionality is
// taken from the first line; every line must match it.
func Read(r io.Reader, sep rune, dims int) ([]geom.Point, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.FieldsPerRecord = dims
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var points []geom.Point
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return points, nil
		}
		if errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("line %d: %v: %w", line, err, ErrDimension)
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: line %d: %w", line, err)
		}
		p := make(geom.Point, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: line %d field %d: %w", line, i+1, err)
			}
			p[i] = v
		}
		points = append(points, p)
	}
}

func ReadFile(path string, sep rune, dims int) ([]geom.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f), sep, dims)
}

// Write stores points with full float precision.
func Write(w io.Writer, points []geom.Point, sep rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = sep
	record := make([]string, 0)
	for i, p := range points {
		if i > 0 && p.Dimensions() != points[0].Dimensions() {
			return fmt.Errorf("point %d: %w", i, ErrDimension)
		}
		record = record[:0]
		for _, v := range p {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("dataset: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteFile(path string, points []geom.Point, sep rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := Write(w, points, sep); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("dataset: %w", err)
	}
	return f.Close()
}

// Generate returns n points with coordinates uniform in [0, 100). A zero seed
// draws from the shared generator.
func Generate(n, dims int, seed uint32) []geom.Point {
	var rng fastrand.RNG
	next := fastrand.Uint32
	if seed != 0 {
		rng.Seed(seed)
		next = rng.Uint32
	}
	points := make([]geom.Point, n)
	for i := range points {
		p := make(geom.Point, dims)
		for d := range p {
			p[d] = float64(next()) / (1 << 32) * 100
		}
		points[i] = p
	}
	return points
}
