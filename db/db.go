package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/constant"
	"github.com/infinivision/mvbtree/errmsg"
	"github.com/infinivision/mvbtree/metrics"
	"github.com/infinivision/mvbtree/mvcc"
	"github.com/infinivision/mvbtree/scheduler"
	"github.com/infinivision/mvbtree/snapshot"
	"github.com/infinivision/mvbtree/txn"
	"github.com/infinivision/mvbtree/wal"
	"github.com/nnsgmsone/damrey/logger"
	"golang.org/x/sys/unix"
)

func DefaultConfig() Config {
	return Config{
		DirName:             "mvbtree.db",
		LogWriter:           os.Stderr,
		NodeSize:            constant.NodeSize,
		CheckPointCycle:     constant.CheckPointCycle,
		CheckPointThreshold: constant.CheckPointThreshold,
	}
}

// Open loads the last checkpoint under cfg.DirName, replays the committed
// part of the log on top of it and starts the checkpoint scheduler.
func Open(cfg Config) (*db, error) {
	cfg = withDefaults(cfg)
	if err := checkDir(cfg.DirName); err != nil {
		return nil, err
	}
	lock, err := lockDir(cfg.DirName)
	if err != nil {
		return nil, err
	}
	d, err := open(cfg, lock)
	if err != nil {
		lock.Close()
		return nil, err
	}
	return d, nil
}

// withDefaults fills the zero fields of cfg from DefaultConfig.
func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.DirName == "" {
		cfg.DirName = def.DirName
	}
	if cfg.LogWriter == nil {
		cfg.LogWriter = def.LogWriter
	}
	if cfg.NodeSize == 0 {
		cfg.NodeSize = def.NodeSize
	}
	if cfg.CheckPointCycle <= 0 {
		cfg.CheckPointCycle = def.CheckPointCycle
	}
	if cfg.CheckPointThreshold <= 0 {
		cfg.CheckPointThreshold = def.CheckPointThreshold
	}
	return cfg
}

func open(cfg Config, lock *os.File) (*db, error) {
	root, err := snapshot.ReadFile(cfg.DirName)
	if err != nil {
		return nil, err
	}
	t, err := btree.FromRoot(btree.Config{NodeSize: cfg.NodeSize}, root)
	if err != nil {
		return nil, err
	}
	r := txn.New()
	r.Seed(maxTxn(t) + 1)
	gs, dropped, err := wal.Recover(cfg.DirName)
	if err != nil {
		return nil, err
	}
	w, err := wal.NewWriter(cfg.DirName)
	if err != nil {
		return nil, err
	}
	d := &db{
		cfg:  cfg,
		lock: lock,
		t:    t,
		r:    r,
		w:    w,
		m:    mvcc.New(t, r, r.Status),
		log:  logger.New(cfg.LogWriter, "mvbtree"),
		mt:   metrics.New(cfg.Registerer),
	}
	if dropped > 0 {
		d.log.Errorf("recovery: discarded %d log records after the last commit\n", dropped)
	}
	if err := d.recover(gs); err != nil {
		w.Close()
		return nil, err
	}
	if err := d.Checkpoint(); err != nil {
		w.Close()
		return nil, err
	}
	d.schd = scheduler.New(cfg.CheckPointCycle, cfg.CheckPointThreshold, d, d.log)
	go d.schd.Run()
	return d, nil
}

// Close runs a last checkpoint and releases the data directory.
func (d *db) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closing, 0, 1) {
		return errmsg.Closed
	}
	d.schd.Stop()
	d.Lock()
	d.closed = true
	d.Unlock()
	err := d.w.Close()
	if cerr := d.lock.Close(); err == nil {
		err = cerr
	}
	return err
}

func (d *db) Tree() btree.Tree {
	return d.t
}

func (d *db) CollectGarbage(oldest uint64) int {
	n := d.m.CollectGarbage(oldest)
	d.mt.GarbageCollected.Add(float64(n))
	return n
}

func (d *db) ExtractSnapshot(horizon uint64) btree.Tree {
	return d.m.Snapshot(horizon)
}

// maxTxn is the largest transaction id stored in t.
func maxTxn(t btree.Tree) uint64 {
	var x uint64

	t.Chains(func(_ uint32, vs []btree.Version) []btree.Version {
		for _, v := range vs {
			if v.Xmin > x {
				x = v.Xmin
			}
			if v.Xmax != nil && *v.Xmax > x {
				x = *v.Xmax
			}
		}
		return vs
	})
	return x
}

func checkDir(dir string) error {
	st, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.Mkdir(dir, os.FileMode(0775))
	}
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("'%s' is not a directory", dir)
	}
	if st.Mode()&0700 != 0700 {
		return errors.New("permission denied")
	}
	return nil
}

func lockDir(dir string) (*os.File, error) {
	fp, err := os.OpenFile(filepath.Join(dir, constant.LockName), os.O_CREATE|os.O_RDWR, 0664)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(fp.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		fp.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%w: %s", errmsg.DirLocked, dir)
		}
		return nil, err
	}
	return fp, nil
}

// EnlargeLimit raises the open file limit to its hard maximum.
func EnlargeLimit() error {
	var rlimit unix.Rlimit

	runtime.GOMAXPROCS(runtime.NumCPU())
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return err
	}
	rlimit.Cur = rlimit.Max
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rlimit)
}
