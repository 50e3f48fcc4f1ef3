package manager

// Manager tracks the ids of running transactions in ascending order.
type Manager interface {
	Len() int
	Add(uint64)
	Del(uint64) bool
	Min() (uint64, bool)
	Ids() []uint64
}

type element struct {
	id   uint64
	dead bool // removed but not yet popped from the front
}

type manager struct {
	xs []*element
	mp map[uint64]*element
}
