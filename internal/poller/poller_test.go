package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFetch = errors.New("fetch failed")

// scripted returns the outcomes in order and repeats the last one.
type scripted struct {
	mu       sync.Mutex
	outcomes []error
	calls    int
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

func (s *scripted) fetch(ctx context.Context) (int, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	idx := s.calls - 1
	if idx >= len(s.outcomes) {
		idx = len(s.outcomes) - 1
	}
	if idx >= 0 && s.outcomes[idx] != nil {
		return 0, s.outcomes[idx]
	}
	return s.calls, nil
}

func (s *scripted) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig(interval time.Duration) Config {
	cfg := DefaultConfig("test")
	cfg.Interval = interval
	return cfg
}

func waitFor[T any](t *testing.T, p *Poller[T], cond func(State[T]) bool) State[T] {
	t.Helper()
	var last State[T]
	require.Eventually(t, func() bool {
		last = p.State()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestInitialState(t *testing.T) {
	p := New(testConfig(time.Hour), (&scripted{}).fetch)
	s := p.State()
	assert.True(t, s.IsLoading)
	assert.Nil(t, s.Data)
	assert.False(t, s.IsError)
}

func TestFirstFetchSuccess(t *testing.T) {
	src := &scripted{outcomes: []error{nil}}
	p := New(testConfig(time.Hour), src.fetch)
	p.Start(context.Background())
	defer p.Stop()

	s := waitFor(t, p, func(s State[int]) bool { return s.Fetches == 1 })
	require.NotNil(t, s.Data)
	assert.Equal(t, 1, *s.Data)
	assert.False(t, s.IsLoading)
	assert.False(t, s.IsError)
	assert.False(t, s.UpdatedAt.IsZero())
}

func TestFirstFailureLeavesDataNil(t *testing.T) {
	src := &scripted{outcomes: []error{errFetch}}
	p := New(testConfig(time.Hour), src.fetch)
	p.Start(context.Background())
	defer p.Stop()

	s := waitFor(t, p, func(s State[int]) bool { return s.Fetches == 1 })
	assert.Nil(t, s.Data)
	assert.True(t, s.IsError)
	assert.False(t, s.IsLoading)
	assert.ErrorIs(t, s.Err, errFetch)
}

func TestFailureKeepsStaleData(t *testing.T) {
	src := &scripted{outcomes: []error{nil, errFetch}}
	p := New(testConfig(10*time.Millisecond), src.fetch)
	p.Start(context.Background())
	defer p.Stop()

	s := waitFor(t, p, func(s State[int]) bool { return s.Fetches >= 2 })
	require.NotNil(t, s.Data)
	assert.Equal(t, 1, *s.Data)
	assert.True(t, s.IsError)
}

func TestSilentRecovery(t *testing.T) {
	src := &scripted{outcomes: []error{errFetch, nil}}
	p := New(testConfig(10*time.Millisecond), src.fetch)
	p.Start(context.Background())
	defer p.Stop()

	s := waitFor(t, p, func(s State[int]) bool { return s.Fetches >= 2 })
	require.NotNil(t, s.Data)
	assert.False(t, s.IsError)
	assert.NoError(t, s.Err)
}

func TestStickyErrorsHoldUntilReload(t *testing.T) {
	src := &scripted{outcomes: []error{errFetch, nil}}
	cfg := testConfig(10 * time.Millisecond)
	cfg.StickyErrors = true
	p := New(cfg, src.fetch)
	p.Start(context.Background())
	defer p.Stop()

	s := waitFor(t, p, func(s State[int]) bool { return s.Fetches >= 3 })
	require.NotNil(t, s.Data)
	assert.True(t, s.IsError)

	p.Reload()
	s = waitFor(t, p, func(s State[int]) bool { return s.Data != nil && !s.IsLoading })
	assert.False(t, s.IsError)
}

func TestReloadInvalidatesAndFetchesImmediately(t *testing.T) {
	src := &scripted{outcomes: []error{nil}}
	p := New(testConfig(time.Hour), src.fetch)
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, p, func(s State[int]) bool { return s.Fetches == 1 })

	p.Reload()
	s := waitFor(t, p, func(s State[int]) bool { return s.Fetches == 2 })
	require.NotNil(t, s.Data)
	assert.Equal(t, 2, *s.Data)
	assert.Equal(t, 2, src.callCount())
}

func TestReloadBeforeStartIsNoop(t *testing.T) {
	src := &scripted{outcomes: []error{nil}}
	p := New(testConfig(time.Hour), src.fetch)
	p.Reload()
	assert.Equal(t, 0, src.callCount())
	p.Stop()
}

func TestIntervalCountsFromSettle(t *testing.T) {
	src := &scripted{outcomes: []error{nil}, delay: 30 * time.Millisecond}
	p := New(testConfig(30*time.Millisecond), src.fetch)
	start := time.Now()
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, p, func(s State[int]) bool { return s.Fetches >= 3 })
	// Three fetches of 30ms separated by two 30ms gaps.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	p := New(testConfig(time.Hour), func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-release
		return 42, nil
	})
	p.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an in-flight fetch")
	}

	close(release)
	time.Sleep(20 * time.Millisecond)
	s := p.State()
	assert.Nil(t, s.Data)
	assert.Equal(t, int64(0), s.Fetches)
}

func TestStopHaltsPolling(t *testing.T) {
	src := &scripted{outcomes: []error{nil}}
	p := New(testConfig(5*time.Millisecond), src.fetch)
	p.Start(context.Background())
	waitFor(t, p, func(s State[int]) bool { return s.Fetches >= 2 })

	p.Stop()
	<-p.Done()
	calls := src.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.callCount())

	p.Stop()
}

func TestTimeoutCountsAsFailure(t *testing.T) {
	cfg := testConfig(time.Hour)
	cfg.Timeout = 20 * time.Millisecond
	p := New(cfg, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	p.Start(context.Background())
	defer p.Stop()

	s := waitFor(t, p, func(s State[int]) bool { return s.Fetches == 1 })
	assert.True(t, s.IsError)
	assert.ErrorIs(t, s.Err, context.DeadlineExceeded)
}

func TestSubscribeSeesLatestState(t *testing.T) {
	src := &scripted{outcomes: []error{nil}}
	p := New(testConfig(time.Hour), src.fetch)
	updates := p.Subscribe()

	first := <-updates
	assert.True(t, first.IsLoading)

	p.Start(context.Background())
	var got State[int]
	require.Eventually(t, func() bool {
		select {
		case got = <-updates:
		default:
		}
		return got.Fetches == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, got.Data)

	p.Stop()
	_, open := <-updates
	for open {
		_, open = <-updates
	}
}

// Property: however reloads are interleaved with polling, no two fetches of
// one poller ever overlap.
func TestProperty_SingleFetchInFlight(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("at most one fetch in flight", prop.ForAll(
		func(reloads int, failEvery int) bool {
			outcomes := make([]error, 20)
			for i := range outcomes {
				if failEvery > 0 && i%failEvery == 0 {
					outcomes[i] = errFetch
				}
			}
			src := &scripted{outcomes: outcomes, delay: 2 * time.Millisecond}
			p := New(testConfig(time.Millisecond), src.fetch)
			p.Start(context.Background())

			var wg sync.WaitGroup
			for i := 0; i < reloads; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					p.Reload()
				}()
			}
			wg.Wait()
			time.Sleep(15 * time.Millisecond)
			p.Stop()

			return atomic.LoadInt32(&src.maxSeen) <= 1
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}

// Property: after any sequence of outcomes the data is the value of the last
// success, or nil when nothing succeeded.
func TestProperty_StaleButPresent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("data tracks last success", prop.ForAll(
		func(fails []bool) bool {
			outcomes := make([]error, len(fails))
			lastOK := 0
			for i, f := range fails {
				if f {
					outcomes[i] = errFetch
				} else {
					lastOK = i + 1
				}
			}
			// Hold the final outcome steady so repeats do not change the answer.
			outcomes = append(outcomes, outcomes[len(outcomes)-1])

			src := &scripted{outcomes: outcomes}
			p := New(testConfig(time.Millisecond), src.fetch)
			p.Start(context.Background())
			defer p.Stop()

			deadline := time.Now().Add(2 * time.Second)
			for p.State().Fetches < int64(len(fails)) && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			p.Stop()
			s := p.State()

			lastFailed := fails[len(fails)-1]
			if s.IsError != lastFailed {
				return false
			}
			if lastOK == 0 {
				return s.Data == nil
			}
			if lastFailed {
				return s.Data != nil && *s.Data == lastOK
			}
			return s.Data != nil
		},
		gen.SliceOfN(6, gen.Bool()),
	))

	properties.TestingRun(t)
}
