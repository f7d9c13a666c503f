package kdtree

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-sod/pkd/internal/geom"
)

func randomNodes(r *rand.Rand, n, dims, spread int) []Node {
	points := make([]geom.Point, n)
	for i := range points {
		p := make(geom.Point, dims)
		for d := range p {
			if spread > 0 {
				p[d] = float64(r.Intn(spread))
			} else {
				p[d] = r.Float64() * 100
			}
		}
		points[i] = p
	}
	return FromPoints(points...)
}

func copyNodes(nodes []Node) []Node {
	c := make([]Node, len(nodes))
	for i := range nodes {
		c[i] = nodes[i]
		c[i].Split = nodes[i].Split.Copy()
	}
	return c
}

func coords(nodes []Node, axis int) []float64 {
	values := make([]float64, len(nodes))
	for i := range nodes {
		values[i] = nodes[i].Split[axis]
	}
	return values
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		pivot    int
		expected int
	}{
		{name: "empty", values: []float64{}, pivot: 0, expected: None},
		{name: "single", values: []float64{4}, pivot: 0, expected: 0},
		{name: "pivot_smallest", values: []float64{3, 1, 2}, pivot: 1, expected: 0},
		{name: "pivot_largest", values: []float64{3, 1, 2}, pivot: 0, expected: 2},
		{name: "pivot_middle", values: []float64{5, 1, 9, 3, 7, 2, 8}, pivot: 0, expected: 3},
		{name: "duplicates", values: []float64{2, 2, 1, 2, 3}, pivot: 0, expected: 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			points := make([]geom.Point, len(test.values))
			for i, v := range test.values {
				points[i] = geom.Point{v}
			}
			nodes := FromPoints(points...)
			var pivotValue float64
			if len(nodes) > 0 {
				pivotValue = nodes[test.pivot].Split[0]
			}

			got := Partition(nodes, 0, test.pivot)
			if got != test.expected {
				t.Fatalf("partition store index got: %d, expected: %d", got, test.expected)
			}
			if got == None {
				return
			}
			if nodes[got].Split[0] != pivotValue {
				t.Errorf("pivot value moved incorrectly, got: %v, expected: %v", nodes[got].Split[0], pivotValue)
			}
			for i := 0; i < got; i++ {
				if nodes[i].Split[0] >= pivotValue {
					t.Errorf("element %d before the pivot is not smaller: %s", i, spew.Sdump(coords(nodes, 0)))
				}
			}
			for i := got + 1; i < len(nodes); i++ {
				if nodes[i].Split[0] < pivotValue {
					t.Errorf("element %d after the pivot is smaller: %s", i, spew.Sdump(coords(nodes, 0)))
				}
			}
		})
	}
}

func TestSelectMedian(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tests := []struct {
		name   string
		n      int
		dims   int
		spread int
		axis   int
	}{
		{name: "two", n: 2, dims: 2, axis: 0},
		{name: "odd", n: 101, dims: 2, axis: 1},
		{name: "even", n: 100, dims: 3, axis: 2},
		{name: "duplicates", n: 257, dims: 2, spread: 5, axis: 0},
		{name: "all_equal", n: 64, dims: 1, spread: 1, axis: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			nodes := randomNodes(r, test.n, test.dims, test.spread)
			sorted := coords(nodes, test.axis)
			sort.Float64s(sorted)

			md := SelectMedian(nodes, test.axis)
			if md != test.n/2 {
				t.Fatalf("median index got: %d, expected: %d", md, test.n/2)
			}
			value := nodes[md].Split[test.axis]
			if value != sorted[test.n/2] {
				t.Errorf("median value got: %v, expected: %v", value, sorted[test.n/2])
			}
			for i := range nodes {
				v := nodes[i].Split[test.axis]
				if i < md && v > value || i > md && v < value {
					t.Fatalf("range is not partitioned around the median at %d: %s", i, spew.Sdump(coords(nodes, test.axis)))
				}
			}
		})
	}
}

func TestSelectMedian_Empty(t *testing.T) {
	if got := SelectMedian(nil, 0); got != None {
		t.Errorf("median of an empty range got: %d, expected: %d", got, None)
	}
}

func TestSelectMedian_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for _, spread := range []int{0, 3} {
		nodes := randomNodes(r, 99, 2, spread)
		md := SelectMedian(nodes, 0)
		before := copyNodes(nodes)

		again := SelectMedian(nodes, 0)
		if again != md {
			t.Errorf("repeated median index got: %d, expected: %d", again, md)
		}
		if !reflect.DeepEqual(before, nodes) {
			t.Errorf("repeated selection moved nodes:\n%s", spew.Sdump(coords(nodes, 0)))
		}
	}
}
