package btree

// Insert adds k with a single open version created by txn and restores the
// tree's invariants. A key that is already present with a non-empty chain is
// left untouched and false is returned.
func (t *tree) Insert(k uint32, v string, txn uint64) (bool, error) {
	t.Lock()
	defer t.Unlock()
	if n, i := t.find(k); n != nil {
		n.Lock()
		defer n.Unlock()
		it := n.items[i]
		if len(it.Versions) > 0 {
			return false, nil
		}
		// chain emptied by garbage collection
		it.Versions = append(it.Versions, Version{Value: v, Xmin: txn})
		return true, nil
	}
	leaf := t.leafFor(k)
	leaf.Lock()
	i, _ := search(leaf.items, k)
	it := &Item{Key: k, Rank: leaf.rank, Versions: []Version{{Value: v, Xmin: txn}}}
	leaf.items = append(leaf.items, nil)
	copy(leaf.items[i+1:], leaf.items[i:])
	leaf.items[i] = it
	full := len(leaf.items) > t.cfg.NodeSize
	leaf.Unlock()
	// the tree was at the pipeline's fixed point; a leaf that did not
	// overflow leaves every stage with nothing to do
	if !full {
		return true, nil
	}
	return true, t.repair()
}

// leafFor descends to the childless node whose range holds k: child 0 below
// the smallest key, the last child above the largest, otherwise the child
// between the two bracketing items.
func (t *tree) leafFor(k uint32) *Node {
	n := t.root
	for {
		n.RLock()
		if len(n.children) == 0 {
			n.RUnlock()
			return n
		}
		i, _ := search(n.items, k)
		next := n.children[min(i, len(n.children)-1)]
		n.RUnlock()
		n = next
	}
}
