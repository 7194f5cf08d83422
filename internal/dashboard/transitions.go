package dashboard

import (
	"fmt"
	"strings"

	"risklock/internal/models"
	"risklock/internal/notify"
	"risklock/internal/resolver"
)

// TransitionKind classifies a presentation change worth reporting.
type TransitionKind string

const (
	TransitionPage       TransitionKind = "page"
	TransitionOverlay    TransitionKind = "overlay"
	TransitionRiskStatus TransitionKind = "risk_status"
)

// Transition is one observed change between two presentations.
type Transition struct {
	Kind    TransitionKind
	Subject string
	From    string
	To      string
	// Violations carries the breach reasons when the lock engages.
	Violations []string
}

// tracker remembers the last settled page, risk status and overlays. Loading
// pages are transient and never recorded, so a reload does not report the
// dashboard leaving and re-entering the same state.
type tracker struct {
	seeded   bool
	page     resolver.Page
	status   models.RiskStatus
	overlays map[resolver.Overlay]bool
}

func newTracker() *tracker {
	return &tracker{overlays: make(map[resolver.Overlay]bool)}
}

func (t *tracker) observe(p resolver.Presentation) []Transition {
	if p.Page == resolver.PageLoading {
		return nil
	}

	var out []Transition
	if t.seeded && p.Page != t.page {
		out = append(out, Transition{Kind: TransitionPage, Subject: "page", From: t.page.String(), To: p.Page.String()})
	}
	t.page = p.Page

	if p.Page != resolver.PageNormal {
		t.seeded = true
		return out
	}

	if t.status != "" && p.Banner.Status != t.status {
		out = append(out, Transition{
			Kind:    TransitionRiskStatus,
			Subject: "risk",
			From:    string(t.status),
			To:      string(p.Banner.Status),
		})
	}
	t.status = p.Banner.Status

	active := make(map[resolver.Overlay]resolver.OverlayView, len(p.Overlays))
	for _, o := range p.Overlays {
		active[o.Kind] = o
	}
	for _, kind := range []resolver.Overlay{resolver.OverlayLocked, resolver.OverlayConnectionFrozen} {
		view, on := active[kind]
		was := t.overlays[kind]
		switch {
		case on && !was:
			out = append(out, Transition{Kind: TransitionOverlay, Subject: string(kind), From: "off", To: "on", Violations: view.Violations})
		case !on && was:
			out = append(out, Transition{Kind: TransitionOverlay, Subject: string(kind), From: "on", To: "off"})
		}
		t.overlays[kind] = on
	}

	t.seeded = true
	return out
}

// notification turns a transition into a notification.
func (tr Transition) notification() notify.Notification {
	n := notify.Notification{
		Data: map[string]interface{}{
			"kind":    string(tr.Kind),
			"subject": tr.Subject,
			"from":    tr.From,
			"to":      tr.To,
		},
	}

	switch tr.Kind {
	case TransitionPage:
		if tr.To == resolver.PageFetchError.String() {
			n.Type = notify.NotificationError
			n.Title = "Risk service unreachable"
			n.Message = "The dashboard could not refresh. Check your connection, then reload."
		} else {
			n.Type = notify.NotificationInfo
			n.Title = "Dashboard refreshed"
			n.Message = fmt.Sprintf("Dashboard is back to %s.", tr.To)
		}
	case TransitionOverlay:
		if tr.Subject == string(resolver.OverlayLocked) {
			n.Type = notify.NotificationRisk
			if tr.To == "on" {
				n.Title = "Trading locked"
				n.Message = "A risk rule was breached: " + strings.Join(tr.Violations, "; ")
				n.Data["violations"] = tr.Violations
			} else {
				n.Title = "Trading unlocked"
				n.Message = "The risk service no longer reports a breach."
			}
		} else {
			n.Type = notify.NotificationConnection
			if tr.To == "on" {
				n.Title = "Data paused"
				n.Message = "The broker connection is down. Current risk is unknown."
			} else {
				n.Title = "Data resumed"
				n.Message = "The broker connection is back."
			}
		}
	case TransitionRiskStatus:
		n.Type = notify.NotificationRisk
		n.Title = "Risk status changed"
		n.Message = fmt.Sprintf("Risk status moved from %s to %s.", tr.From, tr.To)
	}
	return n
}
