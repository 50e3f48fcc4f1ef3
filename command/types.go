package command

import "github.com/infinivision/mvbtree/btree"

type Op int

const (
	Begin Op = iota
	Insert
	Update
	Delete
	Select
	Dump
	Commit
	Abort
	Checkpoint
)

var names = [...]string{
	Begin:      "begin",
	Insert:     "insert",
	Update:     "update",
	Delete:     "delete",
	Select:     "select",
	Dump:       "dump",
	Commit:     "commit",
	Abort:      "abort",
	Checkpoint: "checkpoint",
}

const (
	OK       = "OK"
	Value    = "VALUE"
	NotFound = "NOT_FOUND"
	Exists   = "EXISTS"
	Versions = "VERSIONS"
	Err      = "ERR"
)

type Command struct {
	Op    Op
	Key   uint32
	Value string
}

// Store is the set of operations commands are dispatched to.
type Store interface {
	Begin(string) (uint64, error)
	Commit(string) (uint64, error)
	Abort(string) (uint64, error)
	Insert(string, uint32, string) error
	Update(string, uint32, string) error
	Delete(string, uint32) error
	Select(string, uint32) (string, error)
	DumpVersions(uint32) ([]btree.Version, error)
	Checkpoint() error
}
