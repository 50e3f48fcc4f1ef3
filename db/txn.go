package db

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/command"
	"github.com/infinivision/mvbtree/errmsg"
)

func (d *db) Begin(addr string) (uint64, error) {
	d.Lock()
	defer d.Unlock()
	if err := d.usable(addr); err != nil {
		return 0, err
	}
	id, err := d.r.Begin(addr)
	if err != nil {
		return 0, err
	}
	if err := d.append(addr, id, command.Command{Op: command.Begin}); err != nil {
		d.r.Abort(addr)
		return 0, err
	}
	d.observe(command.Begin, nil)
	return id, nil
}

func (d *db) Commit(addr string) (uint64, error) {
	d.Lock()
	defer d.Unlock()
	if err := d.usable(addr); err != nil {
		return 0, err
	}
	id, err := d.commit(addr)
	d.observe(command.Commit, err)
	return id, err
}

func (d *db) commit(addr string) (uint64, error) {
	id, ok := d.r.Current(addr)
	if !ok {
		return 0, fmt.Errorf("%w: %s", errmsg.NoTransaction, addr)
	}
	if err := d.append(addr, id, command.Command{Op: command.Commit}); err != nil {
		return 0, err
	}
	d.r.Commit(addr)
	d.notify()
	return id, nil
}

// Abort ends addr's transaction and puts back every chain it changed.
func (d *db) Abort(addr string) (uint64, error) {
	d.Lock()
	defer d.Unlock()
	if err := d.usable(addr); err != nil {
		return 0, err
	}
	id, err := d.abort(addr)
	d.observe(command.Abort, err)
	return id, err
}

func (d *db) abort(addr string) (uint64, error) {
	id, ok := d.r.Current(addr)
	if !ok {
		return 0, fmt.Errorf("%w: %s", errmsg.NoTransaction, addr)
	}
	// recovery aborts whatever the log leaves open, so a lost record is harmless
	if err := d.append(addr, id, command.Command{Op: command.Abort}); err != nil {
		d.log.Errorf("transaction %d: logging abort failed: %v\n", id, err)
	}
	// before-images go back whole: popping the newest version would re-close
	// the survivor at this aborted id and hide it from later readers
	_, us, err := d.r.Abort(addr)
	if err != nil {
		return 0, err
	}
	for _, u := range us {
		d.t.ReplaceVersions(u.Key, u.Before)
	}
	d.notify()
	return id, nil
}

func (d *db) Insert(addr string, k uint32, v string) error {
	c := command.Command{Op: command.Insert, Key: k, Value: v}
	return d.mutate(addr, c, func(id uint64) error {
		before, _ := d.t.FetchVersions(k, false)
		ok, err := d.t.Insert(k, v, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", errmsg.KeyExists, k)
		}
		d.r.Record(id, k, before)
		return nil
	})
}

func (d *db) Update(addr string, k uint32, v string) error {
	c := command.Command{Op: command.Update, Key: k, Value: v}
	return d.mutate(addr, c, func(id uint64) error {
		return d.version(id, k, &v, false)
	})
}

func (d *db) Delete(addr string, k uint32) error {
	c := command.Command{Op: command.Delete, Key: k}
	return d.mutate(addr, c, func(id uint64) error {
		return d.version(id, k, nil, true)
	})
}

func (d *db) version(id uint64, k uint32, v *string, del bool) error {
	before, ok := d.t.FetchVersions(k, false)
	if !ok {
		return fmt.Errorf("%w: %d", errmsg.NotExist, k)
	}
	d.t.UpdateVersion(k, v, id, del)
	d.r.Record(id, k, before)
	return nil
}

// mutate runs fn in addr's transaction, or in one of its own that is
// committed straight after. The command is logged before fn runs.
func (d *db) mutate(addr string, c command.Command, fn func(uint64) error) error {
	d.Lock()
	defer d.Unlock()
	err := d.mutateLocked(addr, c, fn)
	d.observe(c.Op, err)
	return err
}

func (d *db) mutateLocked(addr string, c command.Command, fn func(uint64) error) error {
	if err := d.usable(addr); err != nil {
		return err
	}
	// TREE counts value lengths in runes
	if !utf8.ValidString(c.Value) {
		return fmt.Errorf("%w: value is not valid UTF-8", errmsg.InvalidArgument)
	}
	id, ok := d.r.Current(addr)
	auto := !ok
	if auto {
		var err error
		if id, err = d.r.Begin(addr); err != nil {
			return err
		}
	}
	if d.m.Conflict(d.r.Active(), c.Key, id) {
		if auto {
			d.r.Abort(addr)
		}
		d.mt.Conflicts.Inc()
		return fmt.Errorf("%w: key %d is written by another transaction", errmsg.TransactionConflict, c.Key)
	}
	if auto {
		if err := d.append(addr, id, command.Command{Op: command.Begin}); err != nil {
			d.r.Abort(addr)
			return err
		}
	}
	if err := d.append(addr, id, c); err != nil {
		if auto {
			d.r.Abort(addr)
		}
		return err
	}
	err := fn(id)
	d.notify()
	if auto {
		if _, cerr := d.commit(addr); cerr != nil {
			d.log.Fatalf("transaction %d: commit failed: %v\n", id, cerr)
		}
	}
	return err
}

func (d *db) Select(addr string, k uint32) (string, error) {
	if err := d.readable(); err != nil {
		return "", err
	}
	id, ok := d.r.Current(addr)
	if !ok {
		id = d.r.Snapshot()
	}
	v, ok := d.m.Get(k, id, id)
	if !ok {
		d.observe(command.Select, errmsg.NotExist)
		return "", fmt.Errorf("%w: %d", errmsg.NotExist, k)
	}
	d.observe(command.Select, nil)
	return v, nil
}

func (d *db) DumpVersions(k uint32) ([]btree.Version, error) {
	if err := d.readable(); err != nil {
		return nil, err
	}
	vs, ok := d.m.Dump(k)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errmsg.NotExist, k)
	}
	return vs, nil
}

// append logs c for addr and keeps the record with its transaction until
// the transaction ends. Replayed commands are already in the log.
func (d *db) append(addr string, id uint64, c command.Command) error {
	if d.replay {
		return nil
	}
	rec := append([]string{addr}, c.Tokens()...)
	if err := d.w.Append(rec); err != nil {
		return err
	}
	d.r.Log(id, rec)
	return nil
}

func (d *db) notify() {
	if d.schd != nil && !d.replay {
		d.schd.Notify()
	}
}

func (d *db) usable(addr string) error {
	if d.closed {
		return errmsg.Closed
	}
	if addr == "" || strings.ContainsAny(addr, " \t\r\n") {
		return fmt.Errorf("%w: client address %q", errmsg.InvalidArgument, addr)
	}
	return nil
}

func (d *db) readable() error {
	d.Lock()
	defer d.Unlock()
	if d.closed {
		return errmsg.Closed
	}
	return nil
}

func (d *db) observe(op command.Op, err error) {
	d.mt.Ops.WithLabelValues(op.String(), outcome(err)).Inc()
	d.mt.ActiveTransactions.Set(float64(len(d.r.Active())))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errmsg.NotExist):
		return "not_found"
	case errors.Is(err, errmsg.KeyExists):
		return "exists"
	case errors.Is(err, errmsg.TransactionConflict):
		return "conflict"
	}
	return "error"
}
