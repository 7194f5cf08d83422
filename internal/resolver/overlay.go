package resolver

import "risklock/internal/models"

// Overlay is a layer drawn above the normal dashboard.
type Overlay string

const (
	// OverlayLocked covers the whole viewport while the account is in breach.
	OverlayLocked Overlay = "locked"
	// OverlayConnectionFrozen marks the data as paused because the broker
	// link is down. It says nothing about risk.
	OverlayConnectionFrozen Overlay = "connection_frozen"
)

type overlayCandidate struct {
	overlay Overlay
	active  func(models.Snapshot) bool
}

// overlayCandidates is ordered from top to bottom of the z-order.
var overlayCandidates = []overlayCandidate{
	{OverlayLocked, func(s models.Snapshot) bool { return s.Risk.Status == models.RiskBreach }},
	{OverlayConnectionFrozen, func(s models.Snapshot) bool { return s.ConnectionStatus.IsError() }},
}

// ActiveOverlays returns every overlay that applies to the snapshot, topmost first.
func ActiveOverlays(s models.Snapshot) []Overlay {
	var out []Overlay
	for _, c := range overlayCandidates {
		if c.active(s) {
			out = append(out, c.overlay)
		}
	}
	return out
}

// TopOverlay returns the first overlay that applies, scanning top-down.
func TopOverlay(s models.Snapshot) (Overlay, bool) {
	for _, c := range overlayCandidates {
		if c.active(s) {
			return c.overlay, true
		}
	}
	return "", false
}

// OverlayView is the content of one overlay.
type OverlayView struct {
	Kind       Overlay
	Title      string
	Message    string
	Violations []string
	Action     Action
}

func overlayView(kind Overlay, s models.Snapshot) OverlayView {
	switch kind {
	case OverlayLocked:
		return OverlayView{
			Kind:       kind,
			Title:      "Trading Locked",
			Message:    "A risk rule has been breached. The dashboard stays locked until the risk service reports the account back within limits.",
			Violations: append([]string(nil), s.Risk.Violations...),
			Action:     Action{Kind: ActionReload, Label: "Reload"},
		}
	default:
		return OverlayView{
			Kind:    kind,
			Title:   "Data Paused",
			Message: "The broker connection is down, so your current risk is unknown. Figures below are from the last successful sync.",
			Action:  Action{Kind: ActionRetry, Label: "Retry connection"},
		}
	}
}
