package world

// DisjointSet tracks connected components over indices 0..n-1 with path
// compression and union by size.
type DisjointSet struct {
	parent []int
	size   []int
	count  int
}

// NewDisjointSet returns n singleton components.
func NewDisjointSet(n int) *DisjointSet {
	d := &DisjointSet{
		parent: make([]int, n),
		size:   make([]int, n),
		count:  n,
	}
	for i := range d.parent {
		d.parent[i] = i
		d.size[i] = 1
	}
	return d
}

// Find returns the representative of x's component.
func (d *DisjointSet) Find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

// Union merges the components of a and b. It reports whether they were
// separate.
func (d *DisjointSet) Union(a, b int) bool {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return false
	}
	if d.size[ra] < d.size[rb] {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	d.size[ra] += d.size[rb]
	d.count--
	return true
}

// Same reports whether a and b are in one component.
func (d *DisjointSet) Same(a, b int) bool {
	return d.Find(a) == d.Find(b)
}

// Count returns the number of components.
func (d *DisjointSet) Count() int {
	return d.count
}
