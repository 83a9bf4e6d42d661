// Package scheduler drives the engine: a ticker scans for due schedules,
// claims each one and hands it to the executor. Manual "run now" requests go
// through the same claim, so the state machine cannot tell them apart from a
// tick-initiated run.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ledgereye/internal/executor"
	"github.com/ledgereye/internal/models"
	"github.com/ledgereye/internal/store"
)

const maxConcurrentExecutions = 4

type Scheduler struct {
	store    *store.Store
	executor *executor.Executor
	interval time.Duration
	lease    time.Duration

	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewScheduler(st *store.Store, exec *executor.Executor, interval, lease time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    st,
		executor: exec,
		interval: interval,
		lease:    lease,
		sem:      semaphore.NewWeighted(maxConcurrentExecutions),
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop halts the tick loop, cancels in-flight executions and waits for them
// to drain. Cancelled executions commit nothing; their leases expire and a
// future tick retries them.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.cancel()
	})
	s.wg.Wait()
}

// tick claims every due schedule it can and dispatches each to the executor.
// A storage error aborts the scan; the next interval retries.
func (s *Scheduler) tick() {
	now := time.Now().In(s.store.Location())

	due, err := s.store.Due(now)
	if err != nil {
		log.Printf("Warning: due-schedule scan failed: %v", err)
		return
	}

	for i := range due {
		schedule := due[i]

		claimed, err := s.store.ClaimDue(schedule.ID, now, s.lease)
		if err != nil {
			log.Printf("Warning: failed to claim schedule %s: %v", schedule.ID, err)
			continue
		}
		if !claimed {
			// Another tick or a manual run got there first.
			continue
		}

		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.run(&schedule)
		}()
	}
}

func (s *Scheduler) run(schedule *models.ReportSchedule) {
	record, err := s.executor.Execute(s.ctx, schedule)
	if err != nil {
		log.Printf("Warning: execution of schedule %s (%s) aborted: %v", schedule.ID, schedule.Name, err)
		return
	}
	if !record.Success {
		log.Printf("Warning: schedule %s (%s) failed: %s", schedule.ID, schedule.Name, record.ErrorMessage)
	}
}

// RunNow executes a schedule immediately on the caller's goroutine. It takes
// the normal claim first, so a schedule that is currently executing is
// rejected with store.ErrAlreadyRunning rather than queued. A successful
// manual run advances next_run and appends history exactly like a scheduled
// firing.
func (s *Scheduler) RunNow(ctx context.Context, id string) (*models.ReportExecution, error) {
	now := time.Now().In(s.store.Location())

	if err := s.store.ClaimManual(id, now, s.lease); err != nil {
		return nil, err
	}

	schedule, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, schedule)
}
