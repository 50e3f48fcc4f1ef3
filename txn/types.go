package txn

import (
	"sync"

	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/txn/manager"
)

type Status int

const (
	Active Status = iota + 1
	Committed
	Aborted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Registry maps client addresses to their open transaction and remembers
// the outcome of finished ones until they are pruned.
type Registry interface {
	Begin(string) (uint64, error)
	Current(string) (uint64, bool)
	Status(uint64) (Status, bool)
	Commit(string) (uint64, error)
	Abort(string) (uint64, []Undo, error)
	Snapshot() uint64

	Oldest() (uint64, bool)
	Last() uint64
	Next() uint64
	Active() []uint64
	Addrs() []string
	Seed(uint64)
	Prune(uint64) int

	Record(uint64, uint32, []btree.Version)
	Modified(uint64, uint32) bool
	Before(uint64) []Undo

	Log(uint64, []string)
	Retained() [][]string
}

// Undo is the chain a key held before its transaction first touched it.
// A nil Before means the transaction created the key.
type Undo struct {
	Key    uint32
	Before []btree.Version
}

type transaction struct {
	id   uint64
	addr string
	keys map[uint32]struct{}
	undo []Undo
	recs [][]string
}

type registry struct {
	sync.Mutex
	next  uint64
	mgr   manager.Manager
	txns  map[uint64]*transaction
	addrs map[string]uint64
	done  map[uint64]Status
}
