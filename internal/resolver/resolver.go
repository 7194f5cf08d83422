// Package resolver turns the latest poll result into a presentation decision.
//
// Resolve is a pure function: the same input always yields the same
// Presentation and the snapshot is never modified.
package resolver

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"risklock/internal/models"
	"risklock/pkg/utils"
)

// Page is the full-page state. Exactly one is active at a time.
type Page int

const (
	PageLoading Page = iota
	PageFetchError
	PageNormal
)

func (p Page) String() string {
	switch p {
	case PageLoading:
		return "loading"
	case PageFetchError:
		return "fetch_error"
	case PageNormal:
		return "normal"
	}
	return "unknown"
}

// ActionKind identifies a user action offered by the presentation.
type ActionKind string

const (
	// ActionReload invalidates every cached result and fetches again.
	ActionReload ActionKind = "reload"
	// ActionRetry is a reload offered for a frozen broker connection.
	ActionRetry ActionKind = "retry"
	// ActionToggleDemo flips simulated violations on the mock account.
	ActionToggleDemo ActionKind = "toggle_demo"
)

// Action is an action the user may take.
type Action struct {
	Kind  ActionKind
	Label string
}

// Session is the local state the resolver reads.
type Session struct {
	HasDownloadedReport bool
}

// Input is everything Resolve needs.
type Input struct {
	// Snapshot is the last good snapshot; nil if none has ever arrived.
	Snapshot  *models.Snapshot
	IsLoading bool
	IsError   bool
	Session   Session
}

// Checklist holds the four onboarding milestones.
type Checklist struct {
	Connected bool
	HasPreset bool
	HasAlerts bool
	HasReport bool
}

// FullyOnboarded is true only when every milestone is met.
func (c Checklist) FullyOnboarded() bool {
	return c.Connected && c.HasPreset && c.HasAlerts && c.HasReport
}

// ChecklistItem is one milestone as shown to the user.
type ChecklistItem struct {
	ID        string
	Title     string
	Completed bool
}

// Items lists the milestones in display order.
func (c Checklist) Items() []ChecklistItem {
	return []ChecklistItem{
		{ID: "connect", Title: "Connect a broker account", Completed: c.Connected},
		{ID: "preset", Title: "Apply a risk preset", Completed: c.HasPreset},
		{ID: "alerts", Title: "Configure alerts", Completed: c.HasAlerts},
		{ID: "report", Title: "Download your first report", Completed: c.HasReport},
	}
}

// Completed counts the milestones met.
func (c Checklist) Completed() int {
	n := 0
	for _, item := range c.Items() {
		if item.Completed {
			n++
		}
	}
	return n
}

// StatCard is one headline figure.
type StatCard struct {
	Title    string
	Value    string
	Subtitle string
	Tone     Tone
}

// AccountCard summarises the broker account.
type AccountCard struct {
	Balance  string
	Equity   string
	Profit   string
	Platform string
	Login    string
	Currency string
}

// ProgressBar is a limit usage bar. Percent is clamped to [0, 100].
type ProgressBar struct {
	Label   string
	Current string
	Max     string
	Percent float64
	Tone    Tone
}

// SyncBadge shows how fresh the broker data is.
type SyncBadge struct {
	Status   models.SyncState
	LastSync string
	Latency  string
	DemoMode bool
	Tone     Tone
}

// SessionRow is the performance of one market session.
type SessionRow struct {
	Name   string
	Trades int
	Profit string
	Tone   Tone
}

// Insights is the behavioural analytics section, shown verbatim.
type Insights struct {
	Flags     []models.InsightFlag
	Sessions  []SessionRow
	Score     string
	ScoreTone Tone
}

// Presentation is the full presentation decision for one tick.
type Presentation struct {
	Page Page
	// ErrorMessage explains the FetchError page.
	ErrorMessage string
	// Overlays are ordered topmost first.
	Overlays       []OverlayView
	Checklist      Checklist
	ShowChecklist  bool
	ShowEmptyState bool
	IsMock         bool
	DemoMode       bool
	Banner         RiskBanner
	Stats          []StatCard
	Account        AccountCard
	Progress       []ProgressBar
	Sync           SyncBadge
	Insights       Insights
	Actions        []Action
}

// Top returns the topmost overlay, if any.
func (p Presentation) Top() (OverlayView, bool) {
	if len(p.Overlays) == 0 {
		return OverlayView{}, false
	}
	return p.Overlays[0], true
}

// HasOverlay reports whether the given overlay is active.
func (p Presentation) HasOverlay(kind Overlay) bool {
	for _, o := range p.Overlays {
		if o.Kind == kind {
			return true
		}
	}
	return false
}

// HasAction reports whether an action of the given kind is offered.
func (p Presentation) HasAction(kind ActionKind) bool {
	for _, a := range p.Actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

const fetchErrorMessage = "Unable to reach the risk service. Check your connection, then reload."

var reloadAction = Action{Kind: ActionReload, Label: "Force Refresh"}

// Resolve computes the presentation for one tick.
func Resolve(in Input) Presentation {
	if in.IsLoading && in.Snapshot == nil {
		return Presentation{Page: PageLoading}
	}
	if in.IsError {
		return fetchError(fetchErrorMessage)
	}
	if in.Snapshot == nil {
		return Presentation{Page: PageLoading}
	}

	s := *in.Snapshot
	banner, ok := riskBanner(s.Risk)
	if !ok {
		return fetchError(fmt.Sprintf("The risk service reported an unrecognised status %q. Reload once it is back to normal.", string(s.Risk.Status)))
	}

	isMock := s.Account.IsMock()
	checklist := Checklist{
		Connected: !isMock,
		HasPreset: s.Onboarding.HasPreset,
		HasAlerts: s.Onboarding.HasAlerts,
		HasReport: s.Onboarding.HasReport || in.Session.HasDownloadedReport,
	}

	p := Presentation{
		Page:           PageNormal,
		Checklist:      checklist,
		ShowChecklist:  !checklist.FullyOnboarded(),
		ShowEmptyState: isMock,
		IsMock:         isMock,
		DemoMode:       s.SyncStatus.DemoMode,
		Banner:         banner,
		Stats:          statCards(s),
		Account:        accountCard(s.Account),
		Progress:       progressBars(s.Risk.Metrics),
		Sync:           syncBadge(s.SyncStatus),
		Insights:       insights(s.Intelligence),
	}

	for _, kind := range ActiveOverlays(s) {
		view := overlayView(kind, s)
		p.Overlays = append(p.Overlays, view)
		p.Actions = appendAction(p.Actions, view.Action)
	}

	// A locked dashboard can only be reloaded.
	if isMock && !p.HasOverlay(OverlayLocked) {
		label := "Enable demo violations"
		if s.SyncStatus.DemoMode {
			label = "Disable demo violations"
		}
		p.Actions = appendAction(p.Actions, Action{Kind: ActionToggleDemo, Label: label})
	}

	return p
}

func fetchError(msg string) Presentation {
	return Presentation{
		Page:         PageFetchError,
		ErrorMessage: msg,
		Actions:      []Action{reloadAction},
	}
}

func appendAction(actions []Action, a Action) []Action {
	for _, existing := range actions {
		if existing.Kind == a.Kind {
			return actions
		}
	}
	return append(actions, a)
}

// BreachEstimate formats the trades-to-breach figure.
func BreachEstimate(tradesToBreach int) string {
	if tradesToBreach > 10 {
		return ">10 trades"
	}
	return strconv.Itoa(tradesToBreach) + " trades"
}

// DrawdownPercent is overall drawdown as a whole percentage of the limit,
// "0%" when the limit is zero.
func DrawdownPercent(m models.RiskMetrics) string {
	return fmt.Sprintf("%d%%", utils.RoundPercent(utils.Ratio(m.OverallDrawdown, m.OverallLimit)))
}

// BufferPercent is the service-provided buffer percentage, rounded.
func BufferPercent(m models.RiskMetrics) string {
	return fmt.Sprintf("%d%%", utils.RoundPercent(m.BufferPct))
}

func statCards(s models.Snapshot) []StatCard {
	m := s.Risk.Metrics

	pnlTone := ToneSafe
	if s.DailyStats.DailyProfit.IsNegative() {
		pnlTone = ToneDanger
	}

	breachTone := ToneSafe
	switch {
	case m.TradesToBreach <= 2:
		breachTone = ToneDanger
	case m.TradesToBreach <= 5:
		breachTone = ToneWarning
	}

	return []StatCard{
		{Title: "Daily P/L", Value: utils.FormatDollarsRaw(s.DailyStats.DailyProfit), Subtitle: "Today", Tone: pnlTone},
		{Title: "Breach Estimate", Value: BreachEstimate(m.TradesToBreach), Subtitle: "At current average loss", Tone: breachTone},
		{Title: "Equity Drawdown", Value: utils.FormatDollars(m.OverallDrawdown), Subtitle: DrawdownPercent(m), Tone: usageTone(utils.Ratio(m.OverallDrawdown, m.OverallLimit))},
		{Title: "Daily Buffer", Value: utils.FormatDollars(m.Buffer), Subtitle: BufferPercent(m), Tone: usageTone(decimal.NewFromInt(100).Sub(m.BufferPct))},
	}
}

func accountCard(a models.Account) AccountCard {
	login := ""
	if a.Login != 0 {
		login = strconv.FormatInt(a.Login, 10)
	}
	return AccountCard{
		Balance:  utils.FormatDollars(a.Balance),
		Equity:   utils.FormatDollars(a.Equity),
		Profit:   utils.FormatSignedDollars(a.Profit),
		Platform: a.Platform,
		Login:    login,
		Currency: a.Currency,
	}
}

func progressBars(m models.RiskMetrics) []ProgressBar {
	dailyUsed := m.DailyLimit.Sub(m.Buffer)
	return []ProgressBar{
		newProgressBar("Daily Loss Used", dailyUsed, m.DailyLimit),
		newProgressBar("Overall Drawdown Used", m.OverallDrawdown, m.OverallLimit),
	}
}

func newProgressBar(label string, current, max decimal.Decimal) ProgressBar {
	pct := clampPercent(utils.Ratio(current, max))
	return ProgressBar{
		Label:   label,
		Current: utils.FormatDollars(current),
		Max:     utils.FormatDollars(max),
		Percent: pct.InexactFloat64(),
		Tone:    usageTone(pct),
	}
}

func clampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return pct
}

// usageTone colours a used-share percentage: above 70 danger, above 50 warning.
func usageTone(pct decimal.Decimal) Tone {
	switch {
	case pct.GreaterThan(decimal.NewFromInt(70)):
		return ToneDanger
	case pct.GreaterThan(decimal.NewFromInt(50)):
		return ToneWarning
	}
	return ToneSafe
}

func syncBadge(s models.SyncStatus) SyncBadge {
	b := SyncBadge{
		Status:   s.Status,
		DemoMode: s.DemoMode,
		Latency:  fmt.Sprintf("%dms", s.LatencyMS),
	}
	if s.LastSync != nil && !s.LastSync.IsZero() {
		b.LastSync = s.LastSync.UTC().Format("2006-01-02 15:04:05 UTC")
	}
	switch s.Status {
	case models.SyncLive:
		b.Tone = ToneSafe
	case models.SyncDegraded, models.SyncPaused:
		b.Tone = ToneWarning
	case models.SyncStale:
		b.Tone = ToneDanger
	default:
		b.Tone = ToneNeutral
	}
	return b
}

func insights(i models.Intelligence) Insights {
	out := Insights{
		Flags: append([]models.InsightFlag(nil), i.Flags...),
		Score: i.ScoreText(),
	}

	names := make([]string, 0, len(i.SessionPerformance))
	for name := range i.SessionPerformance {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		perf := i.SessionPerformance[name]
		tone := ToneSafe
		if perf.Profit.IsNegative() {
			tone = ToneDanger
		}
		out.Sessions = append(out.Sessions, SessionRow{
			Name:   name,
			Trades: perf.Count,
			Profit: utils.FormatSignedDollars(perf.Profit),
			Tone:   tone,
		})
	}

	out.ScoreTone = ToneNeutral
	if score, err := decimal.NewFromString(out.Score); err == nil {
		switch {
		case score.GreaterThan(decimal.NewFromInt(80)):
			out.ScoreTone = ToneSafe
		case score.GreaterThan(decimal.NewFromInt(50)):
			out.ScoreTone = ToneWarning
		default:
			out.ScoreTone = ToneDanger
		}
	}
	return out
}
