package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/nnsgmsone/damrey/logger"
)

func New(cycle time.Duration, threshold int, cp Checkpointer, log logger.Log) *scheduler {
	return &scheduler{
		cp:        cp,
		log:       log,
		cycle:     cycle,
		threshold: int64(threshold),
		ch:        make(chan struct{}),
		tch:       make(chan struct{}, 1),
	}
}

func (s *scheduler) Run() {
	ticker := time.NewTicker(s.cycle)
	defer ticker.Stop()
	for {
		select {
		case <-s.ch:
			s.checkpoint()
			s.ch <- struct{}{}
			return
		case <-s.tch:
			s.checkpoint()
		case <-ticker.C:
			if atomic.LoadInt64(&s.n) > 0 {
				s.checkpoint()
			}
		}
	}
}

func (s *scheduler) Stop() {
	s.ch <- struct{}{}
	<-s.ch
}

func (s *scheduler) Notify() {
	if atomic.AddInt64(&s.n, 1) < s.threshold {
		return
	}
	select {
	case s.tch <- struct{}{}:
	default:
	}
}

func (s *scheduler) checkpoint() {
	n := atomic.SwapInt64(&s.n, 0)
	if err := s.cp.Checkpoint(); err != nil {
		atomic.AddInt64(&s.n, n)
		s.log.Errorf("checkpoint failed: %v\n", err)
	}
}
