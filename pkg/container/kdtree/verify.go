package kdtree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-sod/pkd/internal/geom"
)

var ErrInvalidTree = errors.New("invalid k-d tree")

// Validate walks the tree from root, which must split on axis 0, and checks that identifiers cover the whole
// array exactly once, that axes rotate, that every left descendant is <= and
// every right descendant is >= the split value, and that sibling subtrees
// differ in size by at most one.
func Validate(nodes []Node, root int) error {
	if len(nodes) == 0 {
		if root != None {
			return fmt.Errorf("%w: root %d of an empty tree", ErrInvalidTree, root)
		}
		return nil
	}
	v := validator{nodes: nodes, seen: make([]bool, len(nodes)), dims: nodes[0].Split.Dimensions()}
	size, _, _, err := v.visit(root, 0)
	if err != nil {
		return err
	}
	if size != len(nodes) {
		return fmt.Errorf("%w: reached %d of %d nodes", ErrInvalidTree, size, len(nodes))
	}
	return nil
}

type validator struct {
	nodes []Node
	seen  []bool
	dims  int
}

func (v *validator) visit(id, axis int) (int, geom.Point, geom.Point, error) {
	if id == None {
		return 0, nil, nil, nil
	}
	if id < 0 || id >= len(v.nodes) {
		return 0, nil, nil, fmt.Errorf("%w: identifier %d out of range", ErrInvalidTree, id)
	}
	if v.seen[id] {
		return 0, nil, nil, fmt.Errorf("%w: identifier %d reached twice", ErrInvalidTree, id)
	}
	v.seen[id] = true
	n := v.nodes[id]
	if n.Axis != axis {
		return 0, nil, nil, fmt.Errorf("%w: node %d splits on axis %d, expected %d", ErrInvalidTree, id, n.Axis, axis)
	}

	next := (axis + 1) % v.dims
	leftSize, leftMin, leftMax, err := v.visit(n.Left, next)
	if err != nil {
		return 0, nil, nil, err
	}
	rightSize, rightMin, rightMax, err := v.visit(n.Right, next)
	if err != nil {
		return 0, nil, nil, err
	}
	if leftMax != nil && leftMax[axis] > n.Value() {
		return 0, nil, nil, fmt.Errorf("%w: node %d has a left descendant above its split", ErrInvalidTree, id)
	}
	if rightMin != nil && rightMin[axis] < n.Value() {
		return 0, nil, nil, fmt.Errorf("%w: node %d has a right descendant below its split", ErrInvalidTree, id)
	}
	if d := leftSize - rightSize; d > 1 || d < -1 {
		return 0, nil, nil, fmt.Errorf("%w: node %d is unbalanced (%d/%d)", ErrInvalidTree, id, leftSize, rightSize)
	}

	min, max := n.Split.Copy(), n.Split.Copy()
	for _, box := range [][2]geom.Point{{leftMin, leftMax}, {rightMin, rightMax}} {
		if box[0] == nil {
			continue
		}
		for i := range min {
			if box[0][i] < min[i] {
				min[i] = box[0][i]
			}
			if box[1][i] > max[i] {
				max[i] = box[1][i]
			}
		}
	}
	return leftSize + rightSize + 1, min, max, nil
}

// LevelEntry is one node of a tree level, reduced to what identifies it
// spatially.
type LevelEntry struct {
	Axis  int
	Split string
}

// Levels groups the nodes by depth. Every level is sorted so trees encoding the
// same spatial structure compare equal regardless of their numbering.
func Levels(nodes []Node, root int) [][]LevelEntry {
	var levels [][]LevelEntry
	current := []int{}
	if root != None {
		current = append(current, root)
	}
	for len(current) > 0 {
		var (
			next  []int
			level = make([]LevelEntry, 0, len(current))
		)
		for _, id := range current {
			n := nodes[id]
			level = append(level, LevelEntry{Axis: n.Axis, Split: n.Split.Key()})
			if n.Left != None {
				next = append(next, n.Left)
			}
			if n.Right != None {
				next = append(next, n.Right)
			}
		}
		sort.Slice(level, func(i, j int) bool {
			if level[i].Axis != level[j].Axis {
				return level[i].Axis < level[j].Axis
			}
			return level[i].Split < level[j].Split
		})
		levels = append(levels, level)
		current = next
	}
	return levels
}
