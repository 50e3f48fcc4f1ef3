package btree

import "sync"

type Version struct {
	Value string
	Xmin  uint64
	Xmax  *uint64 // nil while open
}

type Item struct {
	Key      uint32
	Rank     uint32
	Versions []Version
}

type Config struct {
	NodeSize int // items per node before a split
}

type Tree interface {
	Len() int
	Height() int
	Root() *Node
	Keys() []uint32
	Check() error
	Clone() Tree

	Insert(uint32, string, uint64) (bool, error)
	UpdateVersion(uint32, *string, uint64, bool) bool
	FetchVersions(uint32, bool) ([]Version, bool)
	ReplaceVersions(uint32, []Version) bool
	Chains(func(uint32, []Version) []Version)
}

// Node is a shared, independently lockable tree node.
type Node struct {
	sync.RWMutex
	rank     uint32
	bucket   bool // created by a split, not yet adopted by child-count repair
	items    []*Item
	children []*Node
}

// tree's own RWMutex is the structure lock: held exclusively by insert and the
// repair pipeline, shared by everything else.
type tree struct {
	sync.RWMutex
	cfg  Config
	root *Node
}

type frame struct {
	n            *Node
	depth        uint32
	lo, hi       uint32
	hasLo, hasHi bool
}
