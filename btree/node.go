package btree

import "sort"

func NewNode(rank uint32, items []Item, children []*Node) *Node {
	n := &Node{rank: rank, children: children}
	for i := range items {
		it := items[i]
		it.Versions = cloneVersions(it.Versions)
		n.items = append(n.items, &it)
	}
	return n
}

func (n *Node) Rank() uint32 {
	n.RLock()
	defer n.RUnlock()
	return n.rank
}

// Items returns a copy of the node's items, version chains included.
func (n *Node) Items() []Item {
	n.RLock()
	defer n.RUnlock()
	xs := make([]Item, 0, len(n.items))
	for _, it := range n.items {
		xs = append(xs, Item{Key: it.Key, Rank: it.Rank, Versions: cloneVersions(it.Versions)})
	}
	return xs
}

func (n *Node) Children() []*Node {
	n.RLock()
	defer n.RUnlock()
	return append([]*Node(nil), n.children...)
}

// bounds returns the first and last key held by the node itself.
func (n *Node) bounds() (uint32, uint32, bool) {
	n.RLock()
	defer n.RUnlock()
	if len(n.items) == 0 {
		return 0, 0, false
	}
	return n.items[0].Key, n.items[len(n.items)-1].Key, true
}

// first is the sort key of a child; empty nodes sort last.
func (n *Node) first() uint32 {
	if len(n.items) == 0 {
		return ^uint32(0)
	}
	return n.items[0].Key
}

// search returns the position of k among items, and whether it is there.
// The position doubles as the index of the child whose range holds k.
func search(items []*Item, k uint32) (int, bool) {
	i := sort.Search(len(items), func(i int) bool { return items[i].Key >= k })
	return i, i < len(items) && items[i].Key == k
}

func sortItems(items []*Item) bool {
	less := func(i, j int) bool { return items[i].Key < items[j].Key }
	if sort.SliceIsSorted(items, less) {
		return false
	}
	sort.SliceStable(items, less)
	return true
}

// sortNodes orders sibling nodes by their first key. Callers hold the
// parent's lock; children are read without their own lock because the
// structure lock is held exclusively whenever siblings are reordered.
func sortNodes(ns []*Node) bool {
	less := func(i, j int) bool { return ns[i].first() < ns[j].first() }
	if sort.SliceIsSorted(ns, less) {
		return false
	}
	sort.SliceStable(ns, less)
	return true
}

func cloneVersions(vs []Version) []Version {
	if vs == nil {
		return nil
	}
	return append(make([]Version, 0, len(vs)), vs...)
}

func closeAt(t uint64) *uint64 {
	return &t
}
