package manager

import "sort"

func New() *manager {
	return &manager{
		xs: []*element{},
		mp: make(map[uint64]*element),
	}
}

func (m *manager) Len() int {
	return len(m.mp)
}

func (m *manager) Add(id uint64) {
	if _, ok := m.mp[id]; ok {
		return
	}
	e := &element{id: id}
	m.mp[id] = e
	m.xs = push(e, m.xs)
}

// Del removes id and reports whether the minimum moved.
func (m *manager) Del(id uint64) bool {
	e, ok := m.mp[id]
	if !ok {
		return false
	}
	delete(m.mp, id)
	e.dead = true
	if m.xs[0] != e {
		return false
	}
	for len(m.xs) > 0 && m.xs[0].dead {
		m.xs = m.xs[1:]
	}
	return true
}

func (m *manager) Min() (uint64, bool) {
	if len(m.xs) == 0 {
		return 0, false
	}
	return m.xs[0].id, true
}

func (m *manager) Ids() []uint64 {
	ids := make([]uint64, 0, len(m.mp))
	for _, e := range m.xs {
		if !e.dead {
			ids = append(ids, e.id)
		}
	}
	return ids
}

func push(x *element, xs []*element) []*element {
	i := sort.Search(len(xs), func(i int) bool { return xs[i].id >= x.id })
	xs = append(xs, nil)
	copy(xs[i+1:], xs[i:])
	xs[i] = x
	return xs
}
