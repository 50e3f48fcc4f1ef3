package btree

import (
	"fmt"

	"github.com/infinivision/mvbtree/errmsg"
	"github.com/infinivision/mvbtree/stack"
)

func (t *tree) Check() error {
	t.RLock()
	defer t.RUnlock()
	return t.check()
}

// check verifies, for every node: items sorted with unique keys inside the
// range the parent assigns; len(children) == len(items)+1 when children
// exist; rank == depth on the node and on all of its items.
func (t *tree) check() error {
	s := stack.New[frame]()
	s.Push(frame{n: t.root, depth: 1})
	for !s.IsEmpty() {
		f, _ := s.Pop()
		f.n.RLock()
		items := append([]*Item(nil), f.n.items...)
		children := append([]*Node(nil), f.n.children...)
		rank := f.n.rank
		f.n.RUnlock()
		if rank != f.depth {
			return fmt.Errorf("%w: node rank %d at depth %d", errmsg.InvariantViolated, rank, f.depth)
		}
		if len(items) == 0 && f.n != t.root {
			return fmt.Errorf("%w: empty node at depth %d", errmsg.InvariantViolated, f.depth)
		}
		for i, it := range items {
			if it.Rank != rank {
				return fmt.Errorf("%w: item %d rank %d in node of rank %d", errmsg.InvariantViolated, it.Key, it.Rank, rank)
			}
			if i > 0 && items[i-1].Key >= it.Key {
				return fmt.Errorf("%w: items %d, %d out of order", errmsg.InvariantViolated, items[i-1].Key, it.Key)
			}
			if (f.hasLo && it.Key <= f.lo) || (f.hasHi && it.Key >= f.hi) {
				return fmt.Errorf("%w: key %d outside its parent's range", errmsg.InvariantViolated, it.Key)
			}
		}
		if len(children) == 0 {
			continue
		}
		if len(children) != len(items)+1 {
			return fmt.Errorf("%w: %d children for %d items", errmsg.InvariantViolated, len(children), len(items))
		}
		for i, c := range children {
			cf := frame{n: c, depth: f.depth + 1, lo: f.lo, hi: f.hi, hasLo: f.hasLo, hasHi: f.hasHi}
			if i > 0 {
				cf.lo, cf.hasLo = items[i-1].Key, true
			}
			if i < len(items) {
				cf.hi, cf.hasHi = items[i].Key, true
			}
			s.Push(cf)
		}
	}
	return nil
}
