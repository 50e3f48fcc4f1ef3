package mvcc

import (
	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/txn"
)

func New(t btree.Tree, tr Tracker, status StatusFunc) *mvcc {
	return &mvcc{t: t, tr: tr, status: status}
}

func (m *mvcc) Tree() btree.Tree {
	return m.t
}

func (m *mvcc) Get(k uint32, last, current uint64) (string, bool) {
	return Select(m.t, k, last, current, m.status)
}

func (m *mvcc) Dump(k uint32) ([]btree.Version, bool) {
	return m.t.FetchVersions(k, false)
}

func (m *mvcc) Conflict(active []uint64, k uint32, self uint64) bool {
	return ModifiedKeyCheck(active, k, self, m.tr)
}

func (m *mvcc) CollectGarbage(oldest uint64) int {
	return CollectGarbage(m.t, oldest)
}

func (m *mvcc) Snapshot(horizon uint64) btree.Tree {
	return ExtractSnapshot(m.t, horizon)
}

// Select returns the value of k as seen by transaction current whose
// snapshot horizon is last. The last visible version wins, except that an
// open version written by current itself is returned at once.
func Select(t btree.Tree, k uint32, last, current uint64, status StatusFunc) (string, bool) {
	vs, ok := t.FetchVersions(k, false)
	if !ok {
		return "", false
	}
	var val string
	var found bool
	for _, v := range vs {
		if v.Xmax != nil && *v.Xmax == v.Xmin {
			continue
		}
		if v.Xmax == nil && v.Xmin == current {
			return v.Value, true
		}
		if visibleXmax(v, last, status) && visibleXmin(v, current, status) {
			val, found = v.Value, true
		}
	}
	return val, found
}

func visibleXmax(v btree.Version, last uint64, status StatusFunc) bool {
	switch {
	case v.Xmax == nil:
		return true
	case *v.Xmax >= last:
		return true
	}
	s, ok := status(*v.Xmax)
	return ok && s == txn.Active
}

func visibleXmin(v btree.Version, current uint64, status StatusFunc) bool {
	switch {
	case v.Xmin == current:
		return true
	case v.Xmin > current:
		return false
	}
	s, ok := status(v.Xmin)
	return !ok || s == txn.Committed
}

// ModifiedKeyCheck reports whether a running transaction other than self
// has already written k.
func ModifiedKeyCheck(active []uint64, k uint32, self uint64, tr Tracker) bool {
	for _, id := range active {
		if id != self && tr.Modified(id, k) {
			return true
		}
	}
	return false
}

// CollectGarbage drops every version closed before oldest and returns how
// many were dropped. Chains may end up empty.
func CollectGarbage(t btree.Tree, oldest uint64) int {
	cnt := 0
	t.Chains(func(_ uint32, vs []btree.Version) []btree.Version {
		kept := vs[:0]
		for _, v := range vs {
			if v.Xmax != nil && *v.Xmax < oldest {
				cnt++
				continue
			}
			kept = append(kept, v)
		}
		return kept
	})
	return cnt
}

// ExtractSnapshot copies t as of horizon: versions created after it are
// dropped and closes after it are undone.
func ExtractSnapshot(t btree.Tree, horizon uint64) btree.Tree {
	c := t.Clone()
	c.Chains(func(_ uint32, vs []btree.Version) []btree.Version {
		kept := vs[:0]
		for _, v := range vs {
			if v.Xmin > horizon {
				continue
			}
			if v.Xmax != nil && *v.Xmax > horizon {
				v.Xmax = nil
			}
			kept = append(kept, v)
		}
		return kept
	})
	return c
}
