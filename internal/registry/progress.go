package registry

import (
	"sync"
	"time"
)

// Progress animates per-file upload percentages. Each started file advances
// by a fixed step on its own ticker until it reaches 100. The animation is
// cosmetic and never gates registration.
type Progress struct {
	step     int
	interval time.Duration
	onChange func(id string, pct int)

	mu    sync.Mutex
	pct   map[string]int
	stops map[string]chan struct{}
	wg    sync.WaitGroup
}

// NewProgress returns a Progress advancing by step every interval. onChange,
// if set, is called from the ticker goroutine after every advance.
func NewProgress(step int, interval time.Duration, onChange func(id string, pct int)) *Progress {
	if step < 1 {
		step = 10
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Progress{
		step:     step,
		interval: interval,
		onChange: onChange,
		pct:      make(map[string]int),
		stops:    make(map[string]chan struct{}),
	}
}

// Start begins animating id from 0. Starting an id that is already running
// is a no-op.
func (p *Progress) Start(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stops[id]; ok {
		return
	}
	stop := make(chan struct{})
	p.stops[id] = stop
	p.pct[id] = 0
	p.wg.Add(1)
	go p.run(id, stop)
}

func (p *Progress) run(id string, stop chan struct{}) {
	defer p.wg.Done()
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		pct, done := p.advance(id, stop)
		if pct < 0 {
			return
		}
		if p.onChange != nil {
			p.onChange(id, pct)
		}
		if done {
			return
		}
	}
}

// advance bumps id by one step. It returns -1 if id was forgotten.
func (p *Progress) advance(id string, stop chan struct{}) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stops[id] != stop {
		return -1, true
	}
	next := min(p.pct[id]+p.step, 100)
	p.pct[id] = next
	if next == 100 {
		delete(p.stops, id)
		return next, true
	}
	return next, false
}

// Get returns the current percentage of id and whether it is tracked.
func (p *Progress) Get(id string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.pct[id]
	return v, ok
}

// Running reports whether id is still animating.
func (p *Progress) Running(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.stops[id]
	return ok
}

// Forget stops the animation for id and drops its percentage.
func (p *Progress) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stop, ok := p.stops[id]; ok {
		close(stop)
		delete(p.stops, id)
	}
	delete(p.pct, id)
}

// Close stops every running animation and waits for the tickers to exit.
func (p *Progress) Close() {
	p.mu.Lock()
	for id, stop := range p.stops {
		close(stop)
		delete(p.stops, id)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Wait blocks until every started animation has finished or been stopped.
func (p *Progress) Wait() {
	p.wg.Wait()
}
