package display

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"risklock/internal/models"
	"risklock/internal/notify"
	"risklock/internal/resolver"
)

const barWidth = 30

// View is everything drawn on one frame of the watch screen.
type View struct {
	Presentation resolver.Presentation
	Trades       []models.Trade
	// TradesError is shown in place of the trade table when set.
	TradesError string
	Toasts      []notify.Notification
	Width       int
}

// Renderer draws views with a theme.
type Renderer struct {
	theme Theme
}

// NewRenderer creates a Renderer.
func NewRenderer(color bool) *Renderer {
	return &Renderer{theme: NewTheme(color)}
}

// RenderPresentation draws one frame without toasts.
func (r *Renderer) RenderPresentation(p resolver.Presentation, trades []models.Trade, width int) string {
	return r.Render(View{Presentation: p, Trades: trades, Width: width})
}

// Render draws a frame. The lock covers everything else; the connection
// overlay sits above the banner, which sits above the base content.
func (r *Renderer) Render(v View) string {
	width := clampWidth(v.Width)
	p := v.Presentation

	var body string
	switch p.Page {
	case resolver.PageLoading:
		body = r.loading(width)
	case resolver.PageFetchError:
		body = r.fetchError(p, width)
	default:
		if top, ok := p.Top(); ok && top.Kind == resolver.OverlayLocked {
			body = r.locked(top, width)
		} else {
			body = r.normal(p, v, width)
		}
	}

	if toasts := r.toasts(v.Toasts, width); toasts != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, toasts, body)
	}
	return body
}

func (r *Renderer) header(width int) string {
	return lipgloss.NewStyle().Width(width).Render(r.theme.Title.Render("RiskLock"))
}

func (r *Renderer) loading(width int) string {
	msg := r.theme.Dim.Render("Loading risk data...")
	return lipgloss.JoinVertical(lipgloss.Left,
		r.header(width),
		lipgloss.PlaceHorizontal(width, lipgloss.Center, msg),
	)
}

func (r *Renderer) fetchError(p resolver.Presentation, width int) string {
	lines := []string{
		r.theme.Tone(resolver.ToneDanger).Bold(true).Render("Connection Error"),
		"",
		p.ErrorMessage,
	}
	if actions := r.actions(p.Actions); actions != "" {
		lines = append(lines, "", actions)
	}
	panel := r.theme.TonePanel(resolver.ToneDanger).Width(width - 2).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, r.header(width), panel)
}

func (r *Renderer) locked(o resolver.OverlayView, width int) string {
	danger := r.theme.Tone(resolver.ToneDanger)
	lines := []string{
		danger.Bold(true).Render(strings.ToUpper(o.Title)),
		"",
		o.Message,
	}
	if len(o.Violations) > 0 {
		lines = append(lines, "", r.theme.Bold.Render("Violations:"))
		for _, v := range o.Violations {
			lines = append(lines, danger.Render("  • "+v))
		}
	}
	lines = append(lines, "", r.action(o.Action))

	content := strings.Join(lines, "\n")
	panel := r.theme.TonePanel(resolver.ToneDanger).
		BorderStyle(lipgloss.DoubleBorder()).
		Width(width - 2).
		Align(lipgloss.Center).
		Render(content)
	return panel
}

func (r *Renderer) normal(p resolver.Presentation, v View, width int) string {
	sections := []string{r.header(width)}

	for _, o := range p.Overlays {
		if o.Kind == resolver.OverlayConnectionFrozen {
			sections = append(sections, r.frozen(o, width))
		}
	}

	sections = append(sections, r.banner(p.Banner, width))

	if p.ShowEmptyState {
		sections = append(sections, r.emptyState(p, width))
	}
	if p.ShowChecklist {
		sections = append(sections, r.checklist(p.Checklist, width))
	}

	sections = append(sections,
		r.stats(p.Stats, width),
		r.account(p.Account, p.Sync, width),
		r.progress(p.Progress),
		r.trades(v.Trades, v.TradesError, width),
	)
	if ins := r.insights(p.Insights); ins != "" {
		sections = append(sections, ins)
	}
	if actions := r.actions(p.Actions); actions != "" {
		sections = append(sections, "", actions)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (r *Renderer) frozen(o resolver.OverlayView, width int) string {
	text := r.theme.Tone(resolver.ToneWarning).Bold(true).Render(o.Title) + "\n" + o.Message + "\n" + r.action(o.Action)
	return r.theme.TonePanel(resolver.ToneWarning).Width(width - 2).Render(text)
}

func (r *Renderer) banner(b resolver.RiskBanner, width int) string {
	tone := r.theme.Tone(b.Tone).Bold(true)
	if b.Pulse {
		tone = tone.Blink(true)
	}
	lines := []string{tone.Render(b.Label) + "  " + b.Title}
	if b.Explanation != "" {
		lines = append(lines, "", b.Explanation)
	}
	for _, v := range b.Violations {
		lines = append(lines, r.theme.Tone(resolver.ToneDanger).Render("  • "+v))
	}
	if len(b.Advice) > 0 {
		lines = append(lines, "", r.theme.Bold.Render("Suggested actions:"))
		for _, a := range b.Advice {
			lines = append(lines, "  - "+a)
		}
	}
	return r.theme.TonePanel(b.Tone).Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (r *Renderer) emptyState(p resolver.Presentation, width int) string {
	text := r.theme.Bold.Render("No broker connected") + "\n" +
		"The figures below come from a simulated account. Link a broker in the web app to see live risk."
	if p.DemoMode {
		text += "\n" + r.theme.Tone(resolver.ToneWarning).Render("Demo violations are enabled.")
	}
	return r.theme.Panel.Width(width - 2).Render(text)
}

func (r *Renderer) checklist(c resolver.Checklist, width int) string {
	items := c.Items()
	lines := []string{r.theme.Bold.Render(fmt.Sprintf("Getting started %d/%d", c.Completed(), len(items)))}
	for _, item := range items {
		mark := r.theme.Dim.Render("[ ]")
		if item.Completed {
			mark = r.theme.Tone(resolver.ToneSafe).Render("[x]")
		}
		lines = append(lines, mark+" "+item.Title)
	}
	return r.theme.Panel.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (r *Renderer) stats(cards []resolver.StatCard, width int) string {
	if len(cards) == 0 {
		return ""
	}
	cardWidth := (width / len(cards)) - 2
	horizontal := cardWidth >= 16

	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		text := r.theme.Dim.Render(c.Title) + "\n" +
			r.theme.Tone(c.Tone).Bold(true).Render(c.Value) + "\n" +
			r.theme.Dim.Render(c.Subtitle)
		style := r.theme.Card
		if horizontal {
			style = style.Width(cardWidth)
		} else {
			style = style.Width(width - 2)
		}
		rendered = append(rendered, style.Render(text))
	}
	if horizontal {
		return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

func (r *Renderer) account(a resolver.AccountCard, s resolver.SyncBadge, width int) string {
	login := a.Login
	if login == "" {
		login = "-"
	}
	left := strings.Join([]string{
		r.theme.Bold.Render("Account") + " " + r.theme.Dim.Render(a.Platform+" #"+login),
		"Balance " + a.Balance,
		"Equity  " + a.Equity,
		"Profit  " + a.Profit,
	}, "\n")

	syncLine := r.theme.Tone(s.Tone).Bold(true).Render(string(s.Status))
	if s.Status == "" {
		syncLine = r.theme.Dim.Render("UNKNOWN")
	}
	rightLines := []string{r.theme.Bold.Render("Sync") + " " + syncLine, "Latency " + s.Latency}
	if s.LastSync != "" {
		rightLines = append(rightLines, "Last    "+s.LastSync)
	}
	if s.DemoMode {
		rightLines = append(rightLines, r.theme.Tone(resolver.ToneWarning).Render("DEMO MODE"))
	}
	right := strings.Join(rightLines, "\n")

	half := width/2 - 2
	return lipgloss.JoinHorizontal(lipgloss.Top,
		r.theme.Card.Width(half).Render(left),
		r.theme.Card.Width(half).Render(right),
	)
}

func (r *Renderer) progress(bars []resolver.ProgressBar) string {
	lines := []string{r.theme.Heading.Render("Limits")}
	for _, b := range bars {
		lines = append(lines, fmt.Sprintf("%-22s %s %3.0f%%  %s / %s",
			b.Label, r.bar(b.Percent, b.Tone), b.Percent, b.Current, b.Max))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) bar(percent float64, tone resolver.Tone) string {
	filled := int(math.Round(percent / 100 * barWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return r.theme.Tone(tone).Render(strings.Repeat("█", filled)) +
		r.theme.Dim.Render(strings.Repeat("░", barWidth-filled))
}

func (r *Renderer) insights(in resolver.Insights) string {
	if len(in.Flags) == 0 && len(in.Sessions) == 0 && in.Score == "" {
		return ""
	}
	lines := []string{r.theme.Heading.Render("Insights")}
	if in.Score != "" {
		lines = append(lines, "Discipline score "+r.theme.Tone(in.ScoreTone).Bold(true).Render(in.Score))
	}
	for _, f := range in.Flags {
		tone := resolver.ToneWarning
		if strings.EqualFold(f.Severity, "high") {
			tone = resolver.ToneDanger
		}
		lines = append(lines, r.theme.Tone(tone).Render("! ")+f.Message)
	}
	for _, s := range in.Sessions {
		lines = append(lines, fmt.Sprintf("%-8s %3d trades  %s", s.Name, s.Trades, r.theme.Tone(s.Tone).Render(s.Profit)))
	}
	return strings.Join(lines, "\n")
}

var actionKeys = map[resolver.ActionKind]string{
	resolver.ActionReload:     "r",
	resolver.ActionRetry:      "r",
	resolver.ActionToggleDemo: "d",
}

// ActionKey returns the key bound to an action in the watch view.
func ActionKey(kind resolver.ActionKind) string {
	return actionKeys[kind]
}

func (r *Renderer) action(a resolver.Action) string {
	return "[" + r.theme.Key.Render(ActionKey(a.Kind)) + "] " + a.Label
}

func (r *Renderer) actions(actions []resolver.Action) string {
	parts := make([]string, 0, len(actions)+1)
	for _, a := range actions {
		parts = append(parts, r.action(a))
	}
	parts = append(parts, "["+r.theme.Key.Render("q")+"] Quit")
	return r.theme.Dim.Render(strings.Join(parts, "   "))
}

func (r *Renderer) toasts(ns []notify.Notification, width int) string {
	if len(ns) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(ns))
	for _, n := range ns {
		tone := resolver.ToneNeutral
		switch n.Type {
		case notify.NotificationRisk, notify.NotificationError:
			tone = resolver.ToneDanger
		case notify.NotificationConnection:
			tone = resolver.ToneWarning
		case notify.NotificationInfo:
			tone = resolver.ToneSafe
		}
		text := r.theme.Tone(tone).Bold(true).Render(n.Title)
		if n.Message != "" {
			text += "  " + n.Message
		}
		rendered = append(rendered, r.theme.TonePanel(tone).Width(width-2).Render(text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}
