// Package cpu runs work units on a fixed pool of goroutines.
//
// A worker waits for a start signal, then claims units from a shared atomic
// counter until none are left and raises an end signal. The coordinator sets up
// the task before start and must not touch it again until every worker ended;
// that barrier is the only synchronization, so units must never overlap.
package cpu

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var ErrClosed = xerrors.New("pool closed")

type Task struct {
	Units int
	// Do processes one unit. worker is the index of the calling goroutine.
	Do func(worker, unit int) error
	// Tick, if set, is called on the coordinator every Interval while it waits.
	Tick     func()
	Interval time.Duration
}

// Shared control block. The first failing unit stores its error and every
// worker stops claiming.
type control struct {
	mu   sync.Mutex
	err  error
	stop atomic.Bool
}

func (c *control) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.stop.Store(true)
}

type run struct {
	ctx   context.Context
	task  Task
	units int64
	next  atomic.Int64
	ctl   control
}

type Pool struct {
	mu      sync.Mutex
	workers int
	start   []chan *run
	end     chan struct{}
	group   errgroup.Group
	closed  bool
}

// DefaultWorkers is the number of logical cores.
func DefaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = DefaultWorkers()
	}
	p := &Pool{
		workers: workers,
		start:   make([]chan *run, workers),
		end:     make(chan struct{}, workers),
	}
	for w := range p.start {
		w := w
		p.start[w] = make(chan *run)
		p.group.Go(func() error {
			p.work(w)
			return nil
		})
	}
	return p
}

func (p *Pool) Workers() int { return p.workers }

func (p *Pool) work(w int) {
	for r := range p.start[w] {
		for !r.ctl.stop.Load() {
			if r.ctx.Err() != nil {
				r.ctl.stop.Store(true)
				break
			}
			unit := r.next.Add(1) - 1
			if unit >= r.units {
				break
			}
			if err := r.task.Do(w, int(unit)); err != nil {
				r.ctl.fail(err)
			}
		}
		p.end <- struct{}{}
	}
}

// Run hands t to every worker and blocks until all of them ended. Cancelling
// ctx stops workers from claiming new units; units already claimed complete.
func (p *Pool) Run(ctx context.Context, t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if t.Units <= 0 {
		return ctx.Err()
	}

	r := &run{ctx: ctx, task: t, units: int64(t.Units)}
	for _, c := range p.start {
		c <- r
	}

	var tick <-chan time.Time
	if t.Tick != nil && t.Interval > 0 {
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for ended := 0; ended < p.workers; {
		select {
		case <-p.end:
			ended++
		case <-tick:
			t.Tick()
		}
	}

	if r.ctl.err != nil {
		return r.ctl.err
	}
	return ctx.Err()
}

// Close stops the workers and waits for them to exit.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, c := range p.start {
		close(c)
	}
	return p.group.Wait()
}
