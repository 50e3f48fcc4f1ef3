package scheduler

import (
	"time"

	"github.com/nnsgmsone/damrey/logger"
)

type Checkpointer interface {
	Checkpoint() error
}

// Scheduler checkpoints periodically, after a number of notified
// mutations, and once more when stopped.
type Scheduler interface {
	Run()
	Stop()
	Notify()
}

type scheduler struct {
	n         int64 // mutations since the last checkpoint
	threshold int64
	cycle     time.Duration
	cp        Checkpointer
	log       logger.Log
	ch        chan struct{}
	tch       chan struct{} // threshold reached
}
