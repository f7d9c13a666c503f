package geom

import (
	"fmt"
	"strconv"
	"strings"
)

var ErrDimNotEqual = fmt.Errorf("points dimension is not equal")

// Point is a coordinate vector, one value per axis.
type Point []float64

func NewPoint(vec []float64) Point {
	return vec
}

func (v Point) Dimensions() int {
	return len(v)
}

func (v Point) Dim(idx int) float64 {
	return v[idx]
}

func (v Point) Points() []float64 {
	return v
}

func (v Point) Copy() Point {
	var v1 = make(Point, len(v))
	copy(v1, v)
	return v1
}

func (v Point) SizeEqual(vec Point) bool {
	return len(v) == len(vec)
}

func (v Point) Equal(vec Point) bool {
	if len(v) != len(vec) {
		return false
	}
	for i, value := range v {
		if vec[i] != value {
			return false
		}
	}
	return true
}

// Inside reports whether every coordinate lies in the closed box [min, max].
func (v Point) Inside(min, max Point) (bool, error) {
	if !v.SizeEqual(min) || !v.SizeEqual(max) {
		return false, ErrDimNotEqual
	}
	for i := range v {
		if v[i] < min[i] || v[i] > max[i] {
			return false, nil
		}
	}
	return true, nil
}

// Key renders the point with full precision; equal points give equal keys.
func (v Point) Key() string {
	var b strings.Builder
	for i := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v[i], 'g', -1, 64))
	}
	return b.String()
}
