package dashboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risklock/internal/api"
	"risklock/internal/cache"
	apperr "risklock/internal/errors"
	"risklock/internal/models"
	"risklock/internal/notify"
	"risklock/internal/poller"
	"risklock/internal/resolver"
	"risklock/internal/store"
)

// fakeService serves whatever snapshot is currently set.
type fakeService struct {
	mu        sync.Mutex
	snapshot  models.Snapshot
	err       error
	trades    []models.Trade
	demoCalls []bool
	report    []byte
	reportErr error
}

func (f *fakeService) set(s models.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = s
	f.err = err
}

func (f *fakeService) GetOverview(ctx context.Context) (models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Snapshot{}, f.err
	}
	return f.snapshot.Clone(), nil
}

func (f *fakeService) GetTrades(ctx context.Context) ([]models.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Trade(nil), f.trades...), nil
}

func (f *fakeService) ToggleDemoMode(ctx context.Context, enabled bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.demoCalls = append(f.demoCalls, enabled)
	f.snapshot.SyncStatus.DemoMode = enabled
	return enabled, nil
}

func (f *fakeService) DownloadReport(ctx context.Context, accountID string, format api.ReportFormat) ([]byte, error) {
	return f.report, f.reportErr
}

// recorder collects every notification sent.
type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Send(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) SendError(ctx context.Context, err error, errContext string) error { return nil }
func (r *recorder) Close() error                                                     { return nil }

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Title
	}
	return out
}

func snapshot(status models.RiskStatus, conn models.ConnectionStatus) models.Snapshot {
	s := models.Snapshot{
		Account: models.Account{
			Balance:  decimal.NewFromInt(10000),
			Equity:   decimal.NewFromInt(10150),
			Platform: "MT5",
			Login:    900001,
		},
		Risk: models.Risk{
			Status: status,
			Metrics: models.RiskMetrics{
				Buffer:         decimal.NewFromInt(400),
				BufferPct:      decimal.NewFromInt(80),
				DailyLimit:     decimal.NewFromInt(500),
				OverallLimit:   decimal.NewFromInt(1000),
				TradesToBreach: 12,
			},
		},
		ConnectionStatus: conn,
	}
	if status == models.RiskBreach {
		s.Risk.Violations = []string{"Daily loss limit exceeded"}
	}
	return s
}

func newTestDashboard(t *testing.T, svc *fakeService, opts Options) *Dashboard {
	t.Helper()
	opts.Service = svc
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	if opts.TradesPollInterval == 0 {
		opts.TradesPollInterval = 10 * time.Millisecond
	}
	d := New(opts)
	d.Start(context.Background())
	t.Cleanup(d.Stop)
	return d
}

func waitPage(t *testing.T, d *Dashboard, cond func(resolver.Presentation) bool) resolver.Presentation {
	t.Helper()
	var p resolver.Presentation
	require.Eventually(t, func() bool {
		p = d.Presentation()
		return cond(p)
	}, 2*time.Second, 5*time.Millisecond)
	return p
}

func TestDashboardResolvesNormalPage(t *testing.T) {
	svc := &fakeService{snapshot: snapshot(models.RiskSafe, models.ConnectionOK)}
	d := newTestDashboard(t, svc, Options{})

	p := waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })
	assert.Equal(t, "PROTECTED", p.Banner.Label)
	assert.Empty(t, p.Overlays)
}

func TestDashboardFetchErrorThenRecovery(t *testing.T) {
	svc := &fakeService{}
	svc.set(models.Snapshot{}, errors.New("boom"))
	rec := &recorder{}
	d := newTestDashboard(t, svc, Options{Notifier: rec})

	p := waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageFetchError })
	assert.True(t, p.HasAction(resolver.ActionReload))

	svc.set(snapshot(models.RiskSafe, models.ConnectionOK), nil)
	d.Reload()
	waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })

	require.Eventually(t, func() bool {
		return len(rec.titles()) > 0
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, rec.titles(), "Dashboard refreshed")
}

func TestDashboardLockEngagesAndReleases(t *testing.T) {
	svc := &fakeService{snapshot: snapshot(models.RiskSafe, models.ConnectionOK)}
	rec := &recorder{}
	d := newTestDashboard(t, svc, Options{Notifier: rec})

	waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })

	svc.set(snapshot(models.RiskBreach, models.ConnectionOK), nil)
	p := waitPage(t, d, func(p resolver.Presentation) bool { return p.HasOverlay(resolver.OverlayLocked) })
	top, ok := p.Top()
	require.True(t, ok)
	assert.Equal(t, resolver.OverlayLocked, top.Kind)

	svc.set(snapshot(models.RiskSafe, models.ConnectionOK), nil)
	waitPage(t, d, func(p resolver.Presentation) bool {
		return p.Page == resolver.PageNormal && !p.HasOverlay(resolver.OverlayLocked)
	})

	require.Eventually(t, func() bool {
		titles := rec.titles()
		return contains(titles, "Trading locked") && contains(titles, "Trading unlocked")
	}, time.Second, 5*time.Millisecond)

	var kinds []TransitionKind
	for _, tr := range d.Transitions() {
		kinds = append(kinds, tr.Kind)
	}
	assert.Contains(t, kinds, TransitionRiskStatus)
	assert.Contains(t, kinds, TransitionOverlay)
}

func TestDashboardKeepsStaleDataOnError(t *testing.T) {
	svc := &fakeService{snapshot: snapshot(models.RiskWarning, models.ConnectionOK)}
	d := newTestDashboard(t, svc, Options{})

	waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })

	svc.set(models.Snapshot{}, errors.New("flaky"))
	require.Eventually(t, func() bool {
		return d.Overview().IsError
	}, time.Second, 5*time.Millisecond)

	p := d.Presentation()
	assert.Equal(t, resolver.PageFetchError, p.Page)
	assert.NotNil(t, d.Overview().Data)
}

func TestToggleDemoRequiresMockAccount(t *testing.T) {
	svc := &fakeService{snapshot: snapshot(models.RiskSafe, models.ConnectionOK)}
	d := newTestDashboard(t, svc, Options{})
	waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })

	_, err := d.ToggleDemo(context.Background(), true)
	assert.ErrorIs(t, err, apperr.ErrNotMockAccount)
	assert.Empty(t, svc.demoCalls)
}

func TestToggleDemoOnMockAccount(t *testing.T) {
	s := snapshot(models.RiskSafe, models.ConnectionOK)
	s.Account.Login = models.MockLogin
	svc := &fakeService{snapshot: s}
	d := newTestDashboard(t, svc, Options{})
	waitPage(t, d, func(p resolver.Presentation) bool { return p.IsMock })

	mode, err := d.ToggleDemo(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, mode)

	p := waitPage(t, d, func(p resolver.Presentation) bool { return p.DemoMode })
	assert.True(t, p.HasAction(resolver.ActionToggleDemo))
}

func TestToggleDemoRefusedWhileLocked(t *testing.T) {
	s := snapshot(models.RiskBreach, models.ConnectionOK)
	s.Account.Login = models.MockLogin
	svc := &fakeService{snapshot: s}
	d := newTestDashboard(t, svc, Options{})
	p := waitPage(t, d, func(p resolver.Presentation) bool { return p.HasOverlay(resolver.OverlayLocked) })
	assert.False(t, p.HasAction(resolver.ActionToggleDemo))

	_, err := d.ToggleDemo(context.Background(), false)
	assert.ErrorIs(t, err, apperr.ErrTradingLocked)
	assert.Empty(t, svc.demoCalls)
}

func TestDownloadReportWritesFileAndCompletesChecklist(t *testing.T) {
	dir := t.TempDir()
	sessions := store.NewMemoryStore()
	s := snapshot(models.RiskSafe, models.ConnectionOK)
	s.Onboarding = models.Onboarding{HasAccount: true, HasPreset: true, HasAlerts: true}
	svc := &fakeService{snapshot: s, report: []byte("%PDF-1.4")}
	d := newTestDashboard(t, svc, Options{Store: sessions})

	p := waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })
	assert.False(t, p.Checklist.HasReport)

	path, err := d.DownloadReport(context.Background(), "900001", api.ReportPDF, dir)
	require.NoError(t, err)

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "RiskLock_Report_900001_"))
	assert.True(t, strings.HasSuffix(name, ".pdf"))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))

	p = d.Presentation()
	assert.True(t, p.Checklist.HasReport)

	state, err := sessions.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, state.HasDownloadedReport)
}

func TestDownloadReportFailureLeavesSessionUntouched(t *testing.T) {
	sessions := store.NewMemoryStore()
	svc := &fakeService{snapshot: snapshot(models.RiskSafe, models.ConnectionOK), reportErr: errors.New("503")}
	d := newTestDashboard(t, svc, Options{Store: sessions})

	_, err := d.DownloadReport(context.Background(), "1", api.ReportCSV, t.TempDir())
	var subErr *apperr.SubmissionError
	require.ErrorAs(t, err, &subErr)

	state, err := sessions.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, state.HasDownloadedReport)
}

func TestSessionFlagLoadedOnStart(t *testing.T) {
	sessions := store.NewMemoryStore()
	require.NoError(t, sessions.MarkReportDownloaded(context.Background()))

	svc := &fakeService{snapshot: snapshot(models.RiskSafe, models.ConnectionOK)}
	d := newTestDashboard(t, svc, Options{Store: sessions})

	p := waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })
	assert.True(t, p.Checklist.HasReport)
}

func TestSnapshotMirroredToCache(t *testing.T) {
	c := cache.NewMemoryCache()
	svc := &fakeService{snapshot: snapshot(models.RiskCritical, models.ConnectionOK)}
	d := newTestDashboard(t, svc, Options{Cache: c, CacheTTL: time.Minute})

	waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })

	var entry cache.Entry[models.Snapshot]
	require.Eventually(t, func() bool {
		var err error
		entry, err = cache.Fetch[models.Snapshot](context.Background(), c, cache.SnapshotKey)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.RiskCritical, entry.Value.Risk.Status)
}

func TestUpdatesSignalled(t *testing.T) {
	svc := &fakeService{snapshot: snapshot(models.RiskSafe, models.ConnectionOK)}
	d := newTestDashboard(t, svc, Options{})

	select {
	case <-d.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("no update signalled")
	}
}

func TestReportFileName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "RiskLock_Report_42_1700000000123.csv", ReportFileName("42", api.ReportCSV, at))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// stalledNotifier blocks every send until released or cancelled.
type stalledNotifier struct {
	release chan struct{}
}

func (s *stalledNotifier) Send(ctx context.Context, n notify.Notification) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return ctx.Err()
}

func (s *stalledNotifier) SendError(ctx context.Context, err error, errContext string) error {
	return nil
}

func (s *stalledNotifier) Close() error { return nil }

func TestDashboardKeepsResolvingWhileNotifierStalls(t *testing.T) {
	svc := &fakeService{snapshot: snapshot(models.RiskSafe, models.ConnectionOK)}
	stalled := &stalledNotifier{release: make(chan struct{})}
	d := newTestDashboard(t, svc, Options{Notifier: stalled})
	t.Cleanup(func() { close(stalled.release) })

	waitPage(t, d, func(p resolver.Presentation) bool { return p.Page == resolver.PageNormal })

	svc.set(snapshot(models.RiskBreach, models.ConnectionOK), nil)
	waitPage(t, d, func(p resolver.Presentation) bool { return p.HasOverlay(resolver.OverlayLocked) })

	// The lock notification is still stuck, yet the release is observed.
	svc.set(snapshot(models.RiskSafe, models.ConnectionOK), nil)
	require.Eventually(t, func() bool {
		entered, left := false, false
		for _, tr := range d.Transitions() {
			if tr.Kind != TransitionOverlay || tr.Subject != string(resolver.OverlayLocked) {
				continue
			}
			entered = entered || tr.To == "on"
			left = left || tr.To == "off"
		}
		return entered && left
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDashboardTransitionHistoryIsBounded(t *testing.T) {
	svc := &fakeService{}
	d := New(Options{Service: svc})

	safe := snapshot(models.RiskSafe, models.ConnectionOK)
	breach := snapshot(models.RiskBreach, models.ConnectionOK)
	for i := 0; i < maxTransitions; i++ {
		d.onOverview(poller.State[models.Snapshot]{Data: &breach, Fetches: int64(2 * i)})
		d.onOverview(poller.State[models.Snapshot]{Data: &safe, Fetches: int64(2*i + 1)})
	}

	history := d.Transitions()
	assert.Len(t, history, maxTransitions)
	last := history[len(history)-1]
	assert.Equal(t, TransitionOverlay, last.Kind)
	assert.Equal(t, "off", last.To)
}
