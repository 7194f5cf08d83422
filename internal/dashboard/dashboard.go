// Package dashboard runs the live dashboard: two independent pollers (the
// account/risk overview and the trade list), the local session state and
// the side effects of user actions.
package dashboard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"risklock/internal/api"
	"risklock/internal/cache"
	apperr "risklock/internal/errors"
	"risklock/internal/logging"
	"risklock/internal/models"
	"risklock/internal/notify"
	"risklock/internal/poller"
	"risklock/internal/resolver"
	"risklock/internal/store"
)

// RiskService is the part of the risk service API the dashboard uses.
type RiskService interface {
	GetOverview(ctx context.Context) (models.Snapshot, error)
	GetTrades(ctx context.Context) ([]models.Trade, error)
	ToggleDemoMode(ctx context.Context, enabled bool) (bool, error)
	DownloadReport(ctx context.Context, accountID string, format api.ReportFormat) ([]byte, error)
}

// Options configures a Dashboard.
type Options struct {
	Service RiskService
	Store   store.SessionStore
	// Cache and Notifier are optional.
	Cache    cache.Cache
	CacheTTL time.Duration
	Notifier notify.Notifier

	PollInterval       time.Duration
	TradesPollInterval time.Duration
	Timeout            time.Duration
	StickyErrors       bool
	Logger             zerolog.Logger
}

// Dashboard owns the pollers and the session state.
type Dashboard struct {
	service  RiskService
	store    store.SessionStore
	cache    cache.Cache
	cacheTTL time.Duration
	notifier notify.Notifier
	logger   zerolog.Logger

	overview *poller.Poller[models.Snapshot]
	trades   *poller.Poller[[]models.Trade]

	mu          sync.RWMutex
	session     resolver.Session
	tracker     *tracker
	lastMirror  int64
	transitions []Transition

	updates chan struct{}
	outbox  chan notify.Notification
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

const (
	// maxTransitions bounds the history kept for Transitions.
	maxTransitions = 100
	outboxSize     = 16
	// notifyTimeout bounds one delivery so a dead channel cannot hold the
	// queue for long.
	notifyTimeout = 5 * time.Second
)

// New creates a Dashboard. Call Start to begin polling.
func New(opts Options) *Dashboard {
	logger := logging.WithOperation(opts.Logger, "dashboard")
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewNoOpNotifier()
	}

	overviewCfg := pollerConfig("overview", opts.PollInterval, opts)
	tradesCfg := pollerConfig("trades", opts.TradesPollInterval, opts)

	return &Dashboard{
		service:  opts.Service,
		store:    opts.Store,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		notifier: notifier,
		logger:   logger,
		overview: poller.New(overviewCfg, opts.Service.GetOverview),
		trades:   poller.New(tradesCfg, opts.Service.GetTrades),
		tracker:  newTracker(),
		updates:  make(chan struct{}, 1),
		outbox:   make(chan notify.Notification, outboxSize),
		ctx:      context.Background(),
	}
}

func pollerConfig(name string, interval time.Duration, opts Options) poller.Config {
	cfg := poller.DefaultConfig(name)
	if interval > 0 {
		cfg.Interval = interval
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	cfg.StickyErrors = opts.StickyErrors
	cfg.Logger = opts.Logger
	return cfg
}

// Start loads the session state and starts both pollers.
func (d *Dashboard) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
	ctx = d.ctx
	if d.store != nil {
		state, err := d.store.Load(ctx)
		if err != nil {
			d.logger.Warn().Err(err).Msg("Failed to load session state")
		}
		d.mu.Lock()
		d.session.HasDownloadedReport = state.HasDownloadedReport
		d.mu.Unlock()
	}

	overviewUpdates := d.overview.Subscribe()
	tradesUpdates := d.trades.Subscribe()

	d.wg.Add(3)
	go func() {
		defer d.wg.Done()
		defer close(d.outbox)
		for state := range overviewUpdates {
			d.onOverview(state)
		}
	}()
	go func() {
		defer d.wg.Done()
		d.deliver()
	}()
	go func() {
		defer d.wg.Done()
		for range tradesUpdates {
			d.signal()
		}
	}()

	d.overview.Start(ctx)
	d.trades.Start(ctx)
}

// Stop stops both pollers and waits for pending updates to drain.
func (d *Dashboard) Stop() {
	d.overview.Stop()
	d.trades.Stop()
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Updates signals that Presentation or Trades may have changed. Signals
// coalesce, so a slow reader only sees that something changed.
func (d *Dashboard) Updates() <-chan struct{} {
	return d.updates
}

// Presentation resolves the current overview state.
func (d *Dashboard) Presentation() resolver.Presentation {
	return resolver.Resolve(d.input())
}

// Overview returns the raw overview poller state.
func (d *Dashboard) Overview() poller.State[models.Snapshot] {
	return d.overview.State()
}

// Trades returns the trade poller state.
func (d *Dashboard) Trades() poller.State[[]models.Trade] {
	return d.trades.State()
}

// Transitions returns the transitions observed so far, oldest first.
func (d *Dashboard) Transitions() []Transition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Transition(nil), d.transitions...)
}

// Reload invalidates both pollers and fetches again. It is the only way out
// of the fetch error page and the breach lock.
func (d *Dashboard) Reload() {
	d.logger.Info().Msg("Reload requested")
	d.overview.Reload()
	d.trades.Reload()
}

// CheckDemoAllowed refuses the demo toggle unless the snapshot belongs to
// the simulated account and trading is not locked.
func CheckDemoAllowed(s *models.Snapshot) error {
	if s == nil || !s.Account.IsMock() {
		return apperr.ErrNotMockAccount
	}
	if top, ok := resolver.TopOverlay(*s); ok && top == resolver.OverlayLocked {
		return apperr.ErrTradingLocked
	}
	return nil
}

// ToggleDemo switches simulated violations on the mock account, then
// reloads. The local state is not updated ahead of the reload.
func (d *Dashboard) ToggleDemo(ctx context.Context, enabled bool) (bool, error) {
	if err := CheckDemoAllowed(d.overview.State().Data); err != nil {
		return false, err
	}

	mode, err := d.service.ToggleDemoMode(ctx, enabled)
	if err != nil {
		return false, apperr.Wrap(err, "toggling demo mode")
	}
	d.logger.Info().Bool("demo_mode", mode).Msg("Demo mode toggled")
	d.Reload()
	return mode, nil
}

// ReportFileName builds the name a downloaded report is saved under.
func ReportFileName(accountID string, format api.ReportFormat, at time.Time) string {
	return fmt.Sprintf("RiskLock_Report_%s_%d.%s", accountID, at.UnixMilli(), format)
}

// SaveReport fetches a report, writes it into dir and persists the download
// flag. Failures are submission errors; nothing is recorded for them.
func SaveReport(ctx context.Context, svc RiskService, sessions store.SessionStore, accountID string, format api.ReportFormat, dir string) (string, error) {
	body, err := svc.DownloadReport(ctx, accountID, format)
	if err != nil {
		return "", apperr.NewSubmissionError("report", "", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperr.NewSubmissionError("report", "", fmt.Errorf("creating report directory: %w", err))
	}
	path := filepath.Join(dir, ReportFileName(accountID, format, time.Now()))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", apperr.NewSubmissionError("report", "", fmt.Errorf("writing report: %w", err))
	}

	if sessions != nil {
		if err := sessions.MarkReportDownloaded(ctx); err != nil {
			return path, apperr.Wrap(err, "recording report download")
		}
	}
	return path, nil
}

// DownloadReport saves a report into dir and records the download in the
// session so the onboarding checklist counts it.
func (d *Dashboard) DownloadReport(ctx context.Context, accountID string, format api.ReportFormat, dir string) (string, error) {
	path, err := SaveReport(ctx, d.service, d.store, accountID, format, dir)
	if path == "" {
		return "", err
	}
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to persist report flag")
	}

	d.mu.Lock()
	d.session.HasDownloadedReport = true
	d.mu.Unlock()
	d.signal()

	d.logger.Info().Str("path", path).Msg("Report downloaded")
	return path, nil
}

func (d *Dashboard) input() resolver.Input {
	state := d.overview.State()
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()
	return resolver.Input{
		Snapshot:  state.Data,
		IsLoading: state.IsLoading,
		IsError:   state.IsError,
		Session:   session,
	}
}

func (d *Dashboard) onOverview(state poller.State[models.Snapshot]) {
	d.mirror(state)

	d.mu.Lock()
	p := resolver.Resolve(resolver.Input{
		Snapshot:  state.Data,
		IsLoading: state.IsLoading,
		IsError:   state.IsError,
		Session:   d.session,
	})
	changes := d.tracker.observe(p)
	d.transitions = append(d.transitions, changes...)
	if n := len(d.transitions); n > maxTransitions {
		d.transitions = append([]Transition(nil), d.transitions[n-maxTransitions:]...)
	}
	d.mu.Unlock()

	for _, tr := range changes {
		logging.LogTransition(d.logger, string(tr.Kind)+":"+tr.Subject, tr.From, tr.To)
		select {
		case d.outbox <- tr.notification():
		default:
			d.logger.Warn().Str("transition", string(tr.Kind)).Msg("Notification queue full, dropping")
		}
	}
	d.signal()
}

// deliver sends queued notifications in order until the outbox closes.
func (d *Dashboard) deliver() {
	for n := range d.outbox {
		ctx, cancel := context.WithTimeout(d.ctx, notifyTimeout)
		if err := d.notifier.Send(ctx, n); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to send notification")
		}
		cancel()
	}
}

// mirror copies each newly fetched snapshot into the cache.
func (d *Dashboard) mirror(state poller.State[models.Snapshot]) {
	if d.cache == nil || state.Data == nil {
		return
	}
	d.mu.Lock()
	if state.Fetches == d.lastMirror {
		d.mu.Unlock()
		return
	}
	d.lastMirror = state.Fetches
	d.mu.Unlock()

	if err := cache.Put(d.ctx, d.cache, cache.SnapshotKey, state.Data.Clone(), d.cacheTTL); err != nil {
		d.logger.Warn().Err(err).Str("backend", d.cache.Backend()).Msg("Failed to mirror snapshot")
	}
}

func (d *Dashboard) signal() {
	select {
	case d.updates <- struct{}{}:
	default:
	}
}
