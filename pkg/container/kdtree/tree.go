/*
 * Copyright 2020 Dennis Kuhnert
 * Copyright 2020 Ivanov Nikita
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */
package kdtree

import (
	"fmt"

	"github.com/go-sod/pkd/internal/geom"
)

// Grow builds a balanced k-d tree in place over nodes. Node identifiers are
// offset plus the local index; the identifier of the subtree root is returned,
// or None for an empty slice.
func Grow(nodes []Node, dims, axis, offset int) int {
	if dims <= 0 {
		panic("kdtree: dimensions must be positive")
	}
	md := SelectMedian(nodes, axis)
	if md == None {
		return None
	}
	next := (axis + 1) % dims
	nodes[md].Axis = axis
	nodes[md].Left = Grow(nodes[:md], dims, next, offset)
	nodes[md].Right = Grow(nodes[md+1:], dims, next, offset+md+1)
	return offset + md
}

func New(dims int) *Tree {
	return &Tree{
		dims: dims,
		root: None,
	}
}

// Attach wraps an already grown node array.
func Attach(nodes []Node, root, dims int) *Tree {
	return &Tree{
		nodes: nodes,
		root:  root,
		dims:  dims,
	}
}

type Tree struct {
	nodes []Node
	root  int
	dims  int
}

func (t *Tree) Build(points ...geom.Point) error {
	if t.dims <= 0 {
		return fmt.Errorf("kdtree: invalid dimensions %d", t.dims)
	}
	for i := range points {
		if points[i].Dimensions() != t.dims {
			return fmt.Errorf("kdtree: point %d has %d dimensions, expected %d: %w",
				i, points[i].Dimensions(), t.dims, geom.ErrDimNotEqual)
		}
	}
	t.nodes = FromPoints(points...)
	t.root = Grow(t.nodes, t.dims, 0, 0)
	return nil
}

func (t *Tree) Root() int {
	return t.root
}

func (t *Tree) Nodes() []Node {
	return t.nodes
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Dims() int {
	return t.dims
}

// Points returns the split points in order of the tree walk (left, node, right).
func (t *Tree) Points() []geom.Point {
	points := make([]geom.Point, 0, len(t.nodes))
	return t.walk(t.root, points)
}

func (t *Tree) walk(id int, points []geom.Point) []geom.Point {
	if id == None {
		return points
	}
	n := t.nodes[id]
	points = t.walk(n.Left, points)
	points = append(points, n.Split)
	return t.walk(n.Right, points)
}

// RangeSearch returns every point inside the closed box [min, max].
func (t *Tree) RangeSearch(min, max geom.Point) ([]geom.Point, error) {
	if min.Dimensions() != t.dims || max.Dimensions() != t.dims {
		return nil, geom.ErrDimNotEqual
	}
	return t.rangeSearch(t.root, min, max, nil), nil
}

func (t *Tree) rangeSearch(id int, min, max geom.Point, points []geom.Point) []geom.Point {
	if id == None {
		return points
	}
	n := t.nodes[id]
	if ok, _ := n.Split.Inside(min, max); ok {
		points = append(points, n.Split)
	}
	if n.Left != None && n.Value() >= min[n.Axis] {
		points = t.rangeSearch(n.Left, min, max, points)
	}
	if n.Right != None && n.Value() <= max[n.Axis] {
		points = t.rangeSearch(n.Right, min, max, points)
	}
	return points
}
