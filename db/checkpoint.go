package db

import (
	"fmt"
	"time"

	"github.com/infinivision/mvbtree/errmsg"
	"github.com/infinivision/mvbtree/snapshot"
)

// Checkpoint collects garbage below the oldest active transaction, writes
// the committed state of the tree to TREE and truncates the log to the
// records of transactions that are still open.
func (d *db) Checkpoint() error {
	d.Lock()
	defer d.Unlock()
	if d.closed {
		return errmsg.Closed
	}
	start := time.Now()
	if err := d.checkpoint(); err != nil {
		d.mt.CheckpointFailures.Inc()
		return err
	}
	d.mt.Checkpoints.Inc()
	d.mt.CheckpointDuration.Observe(time.Since(start).Seconds())
	d.mt.TreeKeys.Set(float64(d.t.Len()))
	d.mt.TreeHeight.Set(float64(d.t.Height()))
	d.mt.ActiveTransactions.Set(float64(len(d.r.Active())))
	return nil
}

func (d *db) checkpoint() error {
	oldest, ok := d.r.Oldest()
	if !ok {
		oldest = d.r.Next()
	}
	d.mt.GarbageCollected.Add(float64(d.m.CollectGarbage(oldest)))
	snap := d.m.Snapshot(d.r.Last())
	for _, id := range d.r.Active() {
		for _, u := range d.r.Before(id) {
			snap.ReplaceVersions(u.Key, u.Before)
		}
	}
	if err := snap.Check(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := snapshot.WriteFile(d.cfg.DirName, snap.Root()); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := d.w.Truncate(d.r.Retained()); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	d.r.Prune(oldest)
	return nil
}
