// Package store persists the local session state of the terminal client:
// flags the risk service may not reflect yet, the bearer token and unsent
// form drafts.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// State is the session state that survives across polls and restarts.
type State struct {
	// HasDownloadedReport is set once a report download completes. It
	// satisfies the report milestone of the onboarding checklist before the
	// service records it.
	HasDownloadedReport bool
	Token               string
}

// Draft is an unsent form kept so a failed submission can be retried
// without re-entering data.
type Draft struct {
	ID        string
	Kind      string
	Payload   json.RawMessage
	UpdatedAt time.Time
}

// SessionStore defines the interface for session persistence.
type SessionStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
	MarkReportDownloaded(ctx context.Context) error
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error

	// Drafts are keyed by kind; saving replaces the previous draft of that
	// kind but keeps its ID.
	SaveDraft(ctx context.Context, draft Draft) (Draft, error)
	LoadDraft(ctx context.Context, kind string) (Draft, error)
	ClearDraft(ctx context.Context, kind string) error

	Close() error
}

const (
	keyReportDownloaded = "has_downloaded_report"
	keyToken            = "token"
)
