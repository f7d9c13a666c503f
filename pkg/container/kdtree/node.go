package kdtree

import "github.com/go-sod/pkd/internal/geom"

// None marks an absent child and the root of an empty tree.
const None = -1

// Node is a point record. It becomes a tree node once Axis, Left and Right are
// assigned; Left and Right are identifiers into the same node array.
type Node struct {
	Split geom.Point
	Axis  int
	Left  int
	Right int
}

func (n Node) IsLeaf() bool {
	return n.Left == None && n.Right == None
}

// Value returns the split coordinate on the node's own axis.
func (n Node) Value() float64 {
	return n.Split[n.Axis]
}

// FromPoints wraps points into bare records with both children absent.
func FromPoints(points ...geom.Point) []Node {
	nodes := make([]Node, len(points))
	for i := range points {
		nodes[i] = Node{Split: points[i], Left: None, Right: None}
	}
	return nodes
}

func swap(nodes []Node, i, j int) {
	if i != j {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}
