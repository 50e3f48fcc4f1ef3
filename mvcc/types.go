package mvcc

import (
	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/txn"
)

// StatusFunc looks up a transaction's recorded outcome; false means the
// outcome is unknown, which readers treat as committed.
type StatusFunc func(uint64) (txn.Status, bool)

// Tracker answers whether a transaction has already written a key.
type Tracker interface {
	Modified(uint64, uint32) bool
}

type MVCC interface {
	Tree() btree.Tree
	Get(uint32, uint64, uint64) (string, bool)
	Dump(uint32) ([]btree.Version, bool)
	Conflict([]uint64, uint32, uint64) bool
	CollectGarbage(uint64) int
	Snapshot(uint64) btree.Tree
}

type mvcc struct {
	t      btree.Tree
	tr     Tracker
	status StatusFunc
}
