package db

import (
	"fmt"

	"github.com/infinivision/mvbtree/command"
)

// recover replays the committed groups of the log and aborts every
// transaction the log leaves open.
func (d *db) recover(gs [][][]string) error {
	d.replay = true
	for _, g := range gs {
		for _, rec := range g {
			if err := command.Replay(d, rec); err != nil {
				d.replay = false
				return fmt.Errorf("recovery: %w", err)
			}
		}
	}
	d.replay = false
	for _, addr := range d.r.Addrs() {
		id, err := d.Abort(addr)
		if err != nil {
			return fmt.Errorf("recovery: %w", err)
		}
		d.log.Errorf("recovery: aborted unfinished transaction %d of %s\n", id, addr)
	}
	return nil
}
