package txn

import (
	"fmt"
	"sort"

	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/errmsg"
	"github.com/infinivision/mvbtree/txn/manager"
)

func New() *registry {
	return &registry{
		next:  1,
		mgr:   manager.New(),
		txns:  make(map[uint64]*transaction),
		addrs: make(map[string]uint64),
		done:  make(map[uint64]Status),
	}
}

func (r *registry) Begin(addr string) (uint64, error) {
	r.Lock()
	defer r.Unlock()
	if id, ok := r.addrs[addr]; ok {
		return 0, fmt.Errorf("%w: %s already runs transaction %d", errmsg.TransactionActive, addr, id)
	}
	id := r.next
	r.next++
	r.txns[id] = &transaction{id: id, addr: addr, keys: make(map[uint32]struct{})}
	r.addrs[addr] = id
	r.mgr.Add(id)
	return id, nil
}

func (r *registry) Current(addr string) (uint64, bool) {
	r.Lock()
	defer r.Unlock()
	id, ok := r.addrs[addr]
	return id, ok
}

// Status reports false for ids that were never issued or were pruned.
func (r *registry) Status(id uint64) (Status, bool) {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.txns[id]; ok {
		return Active, true
	}
	s, ok := r.done[id]
	return s, ok
}

func (r *registry) Commit(addr string) (uint64, error) {
	r.Lock()
	defer r.Unlock()
	tx, err := r.finish(addr, Committed)
	if err != nil {
		return 0, err
	}
	return tx.id, nil
}

// Abort ends addr's transaction and returns its undo images, newest first.
func (r *registry) Abort(addr string) (uint64, []Undo, error) {
	r.Lock()
	defer r.Unlock()
	tx, err := r.finish(addr, Aborted)
	if err != nil {
		return 0, nil, err
	}
	us := make([]Undo, 0, len(tx.undo))
	for i := len(tx.undo) - 1; i >= 0; i-- {
		us = append(us, tx.undo[i])
	}
	return tx.id, us, nil
}

// Snapshot hands out an id for a single read outside any transaction. The
// id is never active and is recorded as committed.
func (r *registry) Snapshot() uint64 {
	r.Lock()
	defer r.Unlock()
	id := r.next
	r.next++
	r.done[id] = Committed
	return id
}

func (r *registry) finish(addr string, s Status) (*transaction, error) {
	id, ok := r.addrs[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errmsg.NoTransaction, addr)
	}
	tx := r.txns[id]
	delete(r.addrs, addr)
	delete(r.txns, id)
	r.mgr.Del(id)
	r.done[id] = s
	return tx, nil
}

func (r *registry) Oldest() (uint64, bool) {
	r.Lock()
	defer r.Unlock()
	return r.mgr.Min()
}

// Last is the newest id handed out, 0 before the first Begin.
func (r *registry) Last() uint64 {
	r.Lock()
	defer r.Unlock()
	return r.next - 1
}

func (r *registry) Next() uint64 {
	r.Lock()
	defer r.Unlock()
	return r.next
}

func (r *registry) Active() []uint64 {
	r.Lock()
	defer r.Unlock()
	return r.mgr.Ids()
}

func (r *registry) Addrs() []string {
	r.Lock()
	defer r.Unlock()
	addrs := make([]string, 0, len(r.addrs))
	for addr := range r.addrs {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Seed moves the id counter forward so that ids already persisted are
// never reissued.
func (r *registry) Seed(next uint64) {
	r.Lock()
	defer r.Unlock()
	if next > r.next {
		r.next = next
	}
}

// Prune forgets the outcome of every finished transaction below id.
// Their versions read as committed afterwards, which only holds once
// aborted writes have been undone.
func (r *registry) Prune(below uint64) int {
	r.Lock()
	defer r.Unlock()
	cnt := 0
	for id := range r.done {
		if id < below {
			delete(r.done, id)
			cnt++
		}
	}
	return cnt
}

// Record keeps the first image of k seen by transaction id.
func (r *registry) Record(id uint64, k uint32, before []btree.Version) {
	r.Lock()
	defer r.Unlock()
	tx, ok := r.txns[id]
	if !ok {
		return
	}
	if _, ok := tx.keys[k]; ok {
		return
	}
	tx.keys[k] = struct{}{}
	tx.undo = append(tx.undo, Undo{Key: k, Before: before})
}

func (r *registry) Modified(id uint64, k uint32) bool {
	r.Lock()
	defer r.Unlock()
	tx, ok := r.txns[id]
	if !ok {
		return false
	}
	_, ok = tx.keys[k]
	return ok
}

func (r *registry) Before(id uint64) []Undo {
	r.Lock()
	defer r.Unlock()
	tx, ok := r.txns[id]
	if !ok {
		return nil
	}
	return append([]Undo(nil), tx.undo...)
}

func (r *registry) Log(id uint64, rec []string) {
	r.Lock()
	defer r.Unlock()
	if tx, ok := r.txns[id]; ok {
		tx.recs = append(tx.recs, rec)
	}
}

// Retained returns the log records of every running transaction, oldest
// transaction first.
func (r *registry) Retained() [][]string {
	r.Lock()
	defer r.Unlock()
	ids := make([]uint64, 0, len(r.txns))
	for id := range r.txns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var recs [][]string
	for _, id := range ids {
		recs = append(recs, r.txns[id].recs...)
	}
	return recs
}
