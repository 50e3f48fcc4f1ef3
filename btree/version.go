package btree

// UpdateVersion closes the newest version of k at txn and, when v is given,
// appends a new open version created by txn. A delete closes the newest
// version at its own xmin instead, leaving it dead on arrival. In both cases
// the version before the newest one is reopened.
func (t *tree) UpdateVersion(k uint32, v *string, txn uint64, del bool) bool {
	t.RLock()
	defer t.RUnlock()
	n, i := t.find(k)
	if n == nil {
		return false
	}
	n.Lock()
	defer n.Unlock()
	it := n.items[i]
	if m := len(it.Versions); m > 0 {
		last := &it.Versions[m-1]
		switch {
		case del:
			last.Xmax = closeAt(last.Xmin)
		default:
			last.Xmax = closeAt(txn)
		}
		if m > 1 {
			it.Versions[m-2].Xmax = nil
		}
	}
	if v != nil && !del {
		it.Versions = append(it.Versions, Version{Value: *v, Xmin: txn})
	}
	return true
}

// FetchVersions returns a copy of k's version chain. With remove set it
// instead pops the newest version, re-closes the one before it at the popped
// version's xmin, and reports not-found.
func (t *tree) FetchVersions(k uint32, remove bool) ([]Version, bool) {
	t.RLock()
	defer t.RUnlock()
	n, i := t.find(k)
	if n == nil {
		return nil, false
	}
	if !remove {
		n.RLock()
		defer n.RUnlock()
		vs := n.items[i].Versions
		if len(vs) == 0 {
			return nil, false
		}
		return cloneVersions(vs), true
	}
	n.Lock()
	defer n.Unlock()
	it := n.items[i]
	m := len(it.Versions)
	if m == 0 {
		return nil, false
	}
	popped := it.Versions[m-1]
	it.Versions = it.Versions[:m-1:m-1]
	if m > 1 {
		it.Versions[m-2].Xmax = closeAt(popped.Xmin)
	}
	return nil, false
}

// ReplaceVersions overwrites k's chain with a copy of vs.
func (t *tree) ReplaceVersions(k uint32, vs []Version) bool {
	t.RLock()
	defer t.RUnlock()
	n, i := t.find(k)
	if n == nil {
		return false
	}
	n.Lock()
	defer n.Unlock()
	n.items[i].Versions = cloneVersions(vs)
	return true
}
