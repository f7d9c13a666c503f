package kdtree

import (
	"bufio"
	"fmt"
	"io"
)

// Fprint writes one line per node: its index, coordinates, axis and children.
func Fprint(w io.Writer, nodes []Node) error {
	bw := bufio.NewWriter(w)
	for i := range nodes {
		n := nodes[i]
		if _, err := fmt.Fprintf(bw, "idx: %3d | vals: ", i); err != nil {
			return err
		}
		for _, v := range n.Split {
			if _, err := fmt.Fprintf(bw, "%6.3f ", v); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(bw, " | ax: %2d | children: %3d , %3d\n", n.Axis, n.Left, n.Right); err != nil {
			return err
		}
	}
	return bw.Flush()
}
