package dedup

// unionFind clusters item indices by transitive similarity: if A~B and
// B~C, then A, B, and C share one cluster even when A and C are below
// the threshold themselves.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

// find returns the cluster root, compressing the path iteratively so
// long merge chains cannot exhaust the stack.
func (u *unionFind) find(x int) int {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root
}

func (u *unionFind) union(x, y int) {
	px, py := u.find(x), u.find(y)
	if px == py {
		return
	}
	if u.rank[px] < u.rank[py] {
		px, py = py, px
	}
	u.parent[py] = px
	if u.rank[px] == u.rank[py] {
		u.rank[px]++
	}
}

// groups returns every cluster, ordered by smallest member index, with
// members ascending. The ordering is deterministic regardless of the
// order unions happened in.
func (u *unionFind) groups() [][]int {
	byRoot := make(map[int][]int, len(u.parent))
	var order []int
	for i := range u.parent {
		root := u.find(i)
		if _, seen := byRoot[root]; !seen {
			order = append(order, root)
		}
		byRoot[root] = append(byRoot[root], i)
	}

	out := make([][]int, 0, len(order))
	for _, root := range order {
		out = append(out, byRoot[root])
	}
	return out
}
