package kdtree

// Partition reorders nodes so that every node with Split[axis] below the value
// of nodes[pivot] comes first, followed by the pivot node, followed by the rest.
// The final location of the pivot node is returned.
func Partition(nodes []Node, axis, pivot int) int {
	last := len(nodes) - 1
	if last < 0 {
		return None
	}
	if last == 0 {
		return 0
	}
	value := nodes[pivot].Split[axis]
	swap(nodes, pivot, last)
	store := 0
	for i := 0; i < last; i++ {
		if nodes[i].Split[axis] < value {
			swap(nodes, i, store)
			store++
		}
	}
	swap(nodes, store, last)
	return store
}

// SelectMedian places the node of rank len(nodes)/2 along axis at index
// len(nodes)/2 and returns that index. On return every node before it has a
// coordinate <= the median and every node after it has a coordinate >= it.
// An empty slice yields None.
func SelectMedian(nodes []Node, axis int) int {
	if len(nodes) == 0 {
		return None
	}
	md := len(nodes) / 2
	if partitionedAround(nodes, axis, md) {
		return md
	}

	start, end := 0, len(nodes)
	for {
		sub := nodes[start:end]
		store := start + Partition(sub, axis, len(sub)/2)
		switch {
		case store == md:
			return md
		case store > md:
			end = store
		default:
			// a run of values equal to the pivot may already cover md
			equalEnd := gatherEqual(nodes[:end], axis, store)
			if md < equalEnd {
				return md
			}
			start = equalEnd
		}
	}
}

// gatherEqual moves the nodes after store whose coordinate equals the one at
// store right behind it and returns the end of that run.
func gatherEqual(nodes []Node, axis, store int) int {
	value := nodes[store].Split[axis]
	next := store + 1
	for i := next; i < len(nodes); i++ {
		if nodes[i].Split[axis] == value {
			swap(nodes, i, next)
			next++
		}
	}
	return next
}

func partitionedAround(nodes []Node, axis, md int) bool {
	value := nodes[md].Split[axis]
	for i := 0; i < md; i++ {
		if nodes[i].Split[axis] > value {
			return false
		}
	}
	for i := md + 1; i < len(nodes); i++ {
		if nodes[i].Split[axis] < value {
			return false
		}
	}
	return true
}
