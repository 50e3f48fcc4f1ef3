package db

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/metrics"
	"github.com/infinivision/mvbtree/mvcc"
	"github.com/infinivision/mvbtree/scheduler"
	"github.com/infinivision/mvbtree/txn"
	"github.com/infinivision/mvbtree/wal"
	"github.com/nnsgmsone/damrey/logger"
	"github.com/prometheus/client_golang/prometheus"
)

/*
DB is a transactional key-value index over a multi-version B-tree. Every
operation names the client address it runs for; writes outside an open
transaction run in a transaction of their own. DB is thread-safe.
*/
type DB interface {
	Close() error

	Begin(string) (uint64, error)
	Commit(string) (uint64, error)
	Abort(string) (uint64, error)

	Insert(string, uint32, string) error
	Update(string, uint32, string) error
	Delete(string, uint32) error
	Select(string, uint32) (string, error)
	DumpVersions(uint32) ([]btree.Version, error)

	CollectGarbage(uint64) int
	ExtractSnapshot(uint64) btree.Tree
	Checkpoint() error

	Tree() btree.Tree
}

type Config struct {
	DirName             string
	LogWriter           io.Writer
	NodeSize            int
	CheckPointCycle     time.Duration
	CheckPointThreshold int // logged mutations that force a checkpoint
	Registerer          prometheus.Registerer
}

type db struct {
	sync.Mutex // serializes writes and checkpoints

	cfg     Config
	closing int32
	closed  bool
	replay  bool
	lock    *os.File
	t       btree.Tree
	m       mvcc.MVCC
	r       txn.Registry
	w       wal.Writer
	log     logger.Log
	mt      *metrics.Metrics
	schd    scheduler.Scheduler
}
