package btree

import (
	"fmt"

	"github.com/infinivision/mvbtree/constant"
	"github.com/infinivision/mvbtree/errmsg"
	"github.com/infinivision/mvbtree/stack"
)

// repair runs split, child-count repair, propagation, rank correction and
// sorting until a pass changes nothing, then verifies every invariant.
// The caller holds the structure lock exclusively.
func (t *tree) repair() error {
	for pass := 0; pass < constant.MaxRepairPasses; pass++ {
		changed := t.split()
		fixed, err := t.fixChildren()
		if err != nil {
			return err
		}
		changed = fixed || changed
		changed = t.propagate() || changed
		changed = t.fixRanks() || changed
		changed = t.sortAll() || changed
		if !changed {
			return t.check()
		}
	}
	return fmt.Errorf("%w after %d passes", errmsg.RepairDiverged, constant.MaxRepairPasses)
}

func (t *tree) split() bool {
	changed := false
	for _, n := range t.nodes() {
		n.Lock()
		if len(n.items) > t.cfg.NodeSize {
			n.split()
			changed = true
		}
		n.Unlock()
	}
	return changed
}

// split keeps the item at the 1-based break point ceil((n+1)/2) and moves the
// items on either side into two fresh buckets appended to n's children.
func (n *Node) split() {
	sortItems(n.items)
	b := (len(n.items)+2)/2 - 1
	left := &Node{rank: n.rank + 1, bucket: true, items: append([]*Item(nil), n.items[:b]...)}
	right := &Node{rank: n.rank + 1, bucket: true, items: append([]*Item(nil), n.items[b+1:]...)}
	for _, it := range left.items {
		it.Rank = left.rank
	}
	for _, it := range right.items {
		it.Rank = right.rank
	}
	n.items = []*Item{n.items[b]}
	n.children = append(n.children, left, right)
}

func (t *tree) fixChildren() (bool, error) {
	changed := false
	for _, n := range t.nodes() {
		fixed, err := t.fixNode(n)
		if err != nil {
			return changed, err
		}
		changed = fixed || changed
	}
	return changed, nil
}

type span struct {
	n          *Node
	lo, hi     uint32
	bucket, ok bool
}

// fixNode regroups n's children under len(items)+1 bucket parents when the
// child count no longer matches.
func (t *tree) fixNode(n *Node) (bool, error) {
	n.Lock()
	defer n.Unlock()
	if len(n.children) == 0 || len(n.children) == len(n.items)+1 {
		for _, c := range n.children {
			c.Lock()
			c.bucket = false
			c.Unlock()
		}
		return false, nil
	}
	sortItems(n.items)
	spans := make([]span, 0, len(n.children))
	for _, c := range n.children {
		lo, hi, ok := c.bounds()
		c.RLock()
		spans = append(spans, span{n: c, lo: lo, hi: hi, ok: ok, bucket: c.bucket})
		c.RUnlock()
	}
	want := len(n.items) + 1
	buckets, rest := pickBuckets(spans, want)
	if buckets == nil {
		return false, fmt.Errorf("%w: node %d has %d children for %d items",
			errmsg.InvariantViolated, n.first(), len(n.children), len(n.items))
	}
	sortNodes(buckets)
	for _, s := range rest {
		i, ok := bucketFor(n.items, s)
		if !ok {
			return false, fmt.Errorf("%w: child [%d,%d] straddles a separator",
				errmsg.InvariantViolated, s.lo, s.hi)
		}
		b := buckets[i]
		b.Lock()
		b.children = append(b.children, s.n)
		b.Unlock()
	}
	for _, b := range buckets {
		b.Lock()
		sortNodes(b.children)
		b.bucket = false
		b.Unlock()
	}
	n.children = buckets
	return true, nil
}

// pickBuckets prefers the children marked by a split; otherwise it promotes
// the siblings whose key range strictly contains another sibling's range.
func pickBuckets(spans []span, want int) ([]*Node, []span) {
	var buckets []*Node
	var rest []span

	for _, s := range spans {
		if s.bucket {
			buckets = append(buckets, s.n)
		} else {
			rest = append(rest, s)
		}
	}
	if len(buckets) == want {
		return buckets, rest
	}
	buckets, rest = nil, nil
	for i, a := range spans {
		contains := false
		for j, b := range spans {
			if i != j && a.ok && b.ok && a.lo < b.lo && b.hi < a.hi {
				contains = true
				break
			}
		}
		if contains {
			buckets = append(buckets, a.n)
		} else {
			rest = append(rest, a)
		}
	}
	if len(buckets) == want {
		return buckets, rest
	}
	return nil, nil
}

// bucketFor returns the bucket whose boundary, taken from the parent's item
// keys with MinKey and MaxKey as open ends, contains s.
func bucketFor(items []*Item, s span) (int, bool) {
	if !s.ok {
		return 0, false
	}
	for i := 0; i <= len(items); i++ {
		lo, hi := constant.MinKey, constant.MaxKey
		if i > 0 {
			lo = items[i-1].Key
		}
		if i < len(items) {
			hi = items[i].Key
		}
		inLo := s.lo > lo || (i == 0 && s.lo >= lo)
		inHi := s.hi < hi || (i == len(items) && s.hi <= hi)
		if inLo && inHi {
			return i, true
		}
	}
	return 0, false
}

// propagate folds every underfull non-root child that has children of its
// own into its parent.
func (t *tree) propagate() bool {
	changed := false
	limit := t.cfg.NodeSize / 2
	for _, p := range t.nodes() {
		for t.absorb(p, limit) {
			changed = true
		}
	}
	return changed
}

func (t *tree) absorb(p *Node, limit int) bool {
	p.Lock()
	defer p.Unlock()
	for i, c := range p.children {
		c.Lock()
		if len(c.items) >= limit || len(c.children) == 0 {
			c.Unlock()
			continue
		}
		for _, it := range c.items {
			it.Rank = p.rank
		}
		p.items = append(p.items, c.items...)
		children := make([]*Node, 0, len(p.children)-1+len(c.children))
		children = append(children, p.children[:i]...)
		children = append(children, c.children...)
		children = append(children, p.children[i+1:]...)
		p.children = children
		c.items, c.children = nil, nil
		c.Unlock()
		sortItems(p.items)
		sortNodes(p.children)
		return true
	}
	return false
}

func (t *tree) fixRanks() bool {
	changed := false
	s := stack.New[*Node]()
	t.root.Lock()
	if t.root.rank != 1 {
		t.root.rank = 1
		changed = true
	}
	t.root.Unlock()
	s.Push(t.root)
	for !s.IsEmpty() {
		n, _ := s.Pop()
		n.Lock()
		for _, it := range n.items {
			if it.Rank != n.rank {
				it.Rank = n.rank
				changed = true
			}
		}
		children := append([]*Node(nil), n.children...)
		rank := n.rank + 1
		n.Unlock()
		for _, c := range children {
			c.Lock()
			if c.rank != rank {
				c.rank = rank
				changed = true
			}
			c.Unlock()
			s.Push(c)
		}
	}
	return changed
}

func (t *tree) sortAll() bool {
	changed := false
	for _, n := range t.nodes() {
		n.Lock()
		changed = sortItems(n.items) || changed
		changed = sortNodes(n.children) || changed
		n.Unlock()
	}
	return changed
}
