package btree

import (
	"fmt"
	"sort"

	"github.com/infinivision/mvbtree/constant"
	"github.com/infinivision/mvbtree/errmsg"
	"github.com/infinivision/mvbtree/stack"
)

func DefaultConfig() Config {
	return Config{NodeSize: constant.NodeSize}
}

func New(cfg Config) (*tree, error) {
	if cfg.NodeSize < constant.MinNodeSize {
		return nil, fmt.Errorf("%w: %d < %d", errmsg.InvalidNodeSize, cfg.NodeSize, constant.MinNodeSize)
	}
	return &tree{cfg: cfg, root: &Node{rank: 1}}, nil
}

// FromRoot adopts a decoded node graph and repairs it under cfg.
func FromRoot(cfg Config, root *Node) (*tree, error) {
	t, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if root != nil {
		t.root = root
	}
	t.Lock()
	defer t.Unlock()
	if err := t.repair(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tree) Root() *Node {
	t.RLock()
	defer t.RUnlock()
	return t.root
}

func (t *tree) Len() int {
	t.RLock()
	defer t.RUnlock()
	cnt := 0
	t.walk(func(n *Node, _ uint32) {
		cnt += len(n.items)
	})
	return cnt
}

func (t *tree) Height() int {
	t.RLock()
	defer t.RUnlock()
	h := uint32(0)
	t.walk(func(_ *Node, depth uint32) {
		if depth > h {
			h = depth
		}
	})
	return int(h)
}

func (t *tree) Keys() []uint32 {
	var ks []uint32

	t.RLock()
	defer t.RUnlock()
	t.walk(func(n *Node, _ uint32) {
		for _, it := range n.items {
			ks = append(ks, it.Key)
		}
	})
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

// Chains hands every version chain to fn and stores what fn returns.
// fn runs under the owning node's write lock and must not call back into t.
func (t *tree) Chains(fn func(uint32, []Version) []Version) {
	t.RLock()
	defer t.RUnlock()
	s := stack.New[*Node]()
	s.Push(t.root)
	for !s.IsEmpty() {
		n, _ := s.Pop()
		n.Lock()
		for _, it := range n.items {
			it.Versions = fn(it.Key, it.Versions)
		}
		children := append([]*Node(nil), n.children...)
		n.Unlock()
		for i := len(children) - 1; i >= 0; i-- {
			s.Push(children[i])
		}
	}
}

func (t *tree) Clone() Tree {
	type pair struct {
		src, dst *Node
	}

	t.RLock()
	defer t.RUnlock()
	c := &tree{cfg: t.cfg, root: &Node{}}
	s := stack.New[pair]()
	s.Push(pair{t.root, c.root})
	for !s.IsEmpty() {
		p, _ := s.Pop()
		p.src.RLock()
		p.dst.rank = p.src.rank
		for _, it := range p.src.items {
			p.dst.items = append(p.dst.items, &Item{Key: it.Key, Rank: it.Rank, Versions: cloneVersions(it.Versions)})
		}
		children := append([]*Node(nil), p.src.children...)
		p.src.RUnlock()
		for _, child := range children {
			dst := &Node{}
			p.dst.children = append(p.dst.children, dst)
			s.Push(pair{child, dst})
		}
	}
	return c
}

// walk visits nodes in pre-order, one read lock at a time.
func (t *tree) walk(fn func(*Node, uint32)) {
	type entry struct {
		n     *Node
		depth uint32
	}

	s := stack.New[entry]()
	s.Push(entry{t.root, 1})
	for !s.IsEmpty() {
		e, _ := s.Pop()
		e.n.RLock()
		fn(e.n, e.depth)
		children := append([]*Node(nil), e.n.children...)
		e.n.RUnlock()
		for i := len(children) - 1; i >= 0; i-- {
			s.Push(entry{children[i], e.depth + 1})
		}
	}
}

func (t *tree) nodes() []*Node {
	var ns []*Node

	t.walk(func(n *Node, _ uint32) {
		ns = append(ns, n)
	})
	return ns
}

// find descends to the node holding k. The returned position stays valid
// for as long as the caller holds the structure lock.
func (t *tree) find(k uint32) (*Node, int) {
	n := t.root
	for n != nil {
		n.RLock()
		i, ok := search(n.items, k)
		if ok {
			n.RUnlock()
			return n, i
		}
		var next *Node
		if len(n.children) > 0 {
			next = n.children[min(i, len(n.children)-1)]
		}
		n.RUnlock()
		n = next
	}
	return nil, -1
}
