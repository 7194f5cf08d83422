// Package poller keeps a background copy of a remote resource fresh.
//
// A Poller issues one fetch on Start and schedules the next one Interval after
// the previous fetch settles. There is never more than one fetch in flight.
// A failed fetch keeps the last good value (stale-but-present) and raises the
// error flag; before the first success there is no value at all.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"risklock/internal/logging"
)

// DefaultInterval is the delay between the end of one fetch and the start of
// the next.
const DefaultInterval = 5 * time.Second

// FetchFunc loads the current value of the resource.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config holds poller configuration.
type Config struct {
	// Name identifies the poller in logs.
	Name string
	// Interval is measured from when a fetch settles, not from when it started.
	Interval time.Duration
	// Timeout bounds a single fetch; zero leaves it to the fetch function.
	Timeout time.Duration
	// StickyErrors keeps IsError raised after a failure until Reload, even if
	// a later background fetch succeeds.
	StickyErrors bool
	Logger       zerolog.Logger
}

// DefaultConfig returns the default poller configuration.
func DefaultConfig(name string) Config {
	return Config{
		Name:     name,
		Interval: DefaultInterval,
		Logger:   zerolog.Nop(),
	}
}

// State is what a poller exposes to its consumers.
type State[T any] struct {
	// Data is the last successfully fetched value, nil until the first success.
	// The pointed-to value is replaced on every success and never modified.
	Data *T
	// IsLoading is true while nothing has settled since start or reload.
	IsLoading bool
	// IsFetching is true while a fetch is in flight.
	IsFetching bool
	IsError    bool
	Err        error
	UpdatedAt  time.Time
	// Fetches counts settled fetches.
	Fetches int64
}

type result[T any] struct {
	value T
	err   error
}

// Poller refreshes a value of type T in the background.
type Poller[T any] struct {
	config Config
	fetch  FetchFunc[T]
	logger zerolog.Logger

	mu          sync.RWMutex
	state       State[T]
	subscribers []chan State[T]
	started     bool
	stopped     bool

	reloadCh chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a poller. It does nothing until Start.
func New[T any](config Config, fetch FetchFunc[T]) *Poller[T] {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Poller[T]{
		config:   config,
		fetch:    fetch,
		logger:   logging.WithPoller(config.Logger, config.Name),
		state:    State[T]{IsLoading: true},
		reloadCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start issues the first fetch and begins polling. Calling it again is a no-op.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	go p.loop()
}

// Stop clears the pending timer and waits for the loop to exit. A fetch still
// in flight has its context cancelled and its result dropped.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	close(p.stopCh)
	p.mu.Unlock()

	if !started {
		close(p.done)
		p.closeSubscribers()
		return
	}

	<-p.done
	p.cancel()
	p.closeSubscribers()
}

// Done is closed once the poller has stopped.
func (p *Poller[T]) Done() <-chan struct{} {
	return p.done
}

// Reload drops the cached value and error, then fetches immediately. A reload
// requested while a fetch is in flight runs right after that fetch settles.
func (p *Poller[T]) Reload() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.state.Data = nil
	p.state.IsError = false
	p.state.Err = nil
	p.state.IsLoading = true
	p.publishLocked()
	p.mu.Unlock()

	select {
	case p.reloadCh <- struct{}{}:
	default:
	}
}

// State returns the current state.
func (p *Poller[T]) State() State[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe returns a channel that receives every state change. Slow readers
// only see the latest state. The channel is closed by Stop.
func (p *Poller[T]) Subscribe() <-chan State[T] {
	ch := make(chan State[T], 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		close(ch)
		return ch
	}
	ch <- p.state
	p.subscribers = append(p.subscribers, ch)
	return ch
}

func (p *Poller[T]) loop() {
	defer close(p.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ctx.Done():
			return
		case <-timer.C:
		case <-p.reloadCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if !p.runOnce() {
			return
		}
		timer.Reset(p.config.Interval)
	}
}

// runOnce performs one fetch and applies its result. It returns false when
// the poller was stopped while the fetch was in flight.
func (p *Poller[T]) runOnce() bool {
	p.setFetching(true)
	start := time.Now()

	results := make(chan result[T], 1)
	go func() {
		ctx := p.ctx
		if p.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
			defer cancel()
		}
		v, err := p.fetch(ctx)
		results <- result[T]{value: v, err: err}
	}()

	select {
	case <-p.stopCh:
		return false
	case r := <-results:
		return p.apply(r, time.Since(start))
	}
}

func (p *Poller[T]) setFetching(fetching bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.IsFetching = fetching
	p.publishLocked()
}

func (p *Poller[T]) apply(r result[T], took time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}

	p.state.Fetches++
	p.state.IsFetching = false
	p.state.IsLoading = false
	logging.LogPoll(p.logger, p.state.Fetches, took, r.err)

	if r.err != nil {
		p.state.IsError = true
		p.state.Err = r.err
	} else {
		v := r.value
		p.state.Data = &v
		p.state.UpdatedAt = time.Now()
		if !p.config.StickyErrors {
			p.state.IsError = false
			p.state.Err = nil
		}
	}

	p.publishLocked()
	return true
}

// publishLocked sends the state to every subscriber, replacing an unread one.
// Callers hold p.mu.
func (p *Poller[T]) publishLocked() {
	for _, ch := range p.subscribers {
		select {
		case ch <- p.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p.state:
			default:
			}
		}
	}
}

func (p *Poller[T]) closeSubscribers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
}
