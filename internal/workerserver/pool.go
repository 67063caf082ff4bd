package workerserver

import (
	"context"
	"sync"
	"time"
)

// Pool bounds the number of live isolated training children to a
// configured ceiling and tracks them for async reaping. Its states mirror
// the original fork-based model — free -> reserved -> running -> reaping
// -> free — except "reserved" collapses into the semaphore acquire itself
// (Go's scheduler makes the blocked-signal critical section unnecessary:
// Reap only ever touches the table under its own mutex).
type Pool struct {
	sem chan struct{}
	mu  sync.Mutex
	tab map[int]*slot
}

type slot struct {
	pid       int
	startedAt time.Time
}

func NewPool(max int) *Pool {
	return &Pool{
		sem: make(chan struct{}, max),
		tab: make(map[int]*slot),
	}
}

// Reserve blocks until a slot is available or ctx is cancelled.
func (p *Pool) Reserve(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a reserved slot without a corresponding child having
// started (e.g. exec.Start failed).
func (p *Pool) Release() {
	<-p.sem
}

// MarkRunning records a freshly started child under the table mutex.
func (p *Pool) MarkRunning(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tab[pid] = &slot{pid: pid, startedAt: time.Now()}
}

// Reap removes pid from the table and frees its semaphore slot. Call this
// once the child has been Wait()'d so its process table entry is gone.
func (p *Pool) Reap(pid int) {
	p.mu.Lock()
	delete(p.tab, pid)
	p.mu.Unlock()
	<-p.sem
}

// Len reports the number of children currently believed running — the
// worker-pool-cap invariant (property 9) bounds this at the configured max.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tab)
}
