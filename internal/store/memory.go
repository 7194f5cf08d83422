package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "risklock/internal/errors"
)

// MemoryStore implements SessionStore in memory. It backs --ephemeral runs
// and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	state  State
	drafts map[string]Draft
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]Draft)}
}

func (m *MemoryStore) Load(ctx context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

func (m *MemoryStore) Save(ctx context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

func (m *MemoryStore) MarkReportDownloaded(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.HasDownloadedReport = true
	return nil
}

func (m *MemoryStore) SaveToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Token = token
	return nil
}

func (m *MemoryStore) ClearToken(ctx context.Context) error {
	return m.SaveToken(ctx, "")
}

func (m *MemoryStore) SaveDraft(ctx context.Context, draft Draft) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if draft.ID == "" {
		if existing, ok := m.drafts[draft.Kind]; ok {
			draft.ID = existing.ID
		} else {
			draft.ID = uuid.NewString()
		}
	}
	draft.Payload = append([]byte(nil), draft.Payload...)
	draft.UpdatedAt = time.Now().UTC()
	m.drafts[draft.Kind] = draft
	return draft, nil
}

func (m *MemoryStore) LoadDraft(ctx context.Context, kind string) (Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[kind]
	if !ok {
		return Draft{}, apperr.ErrNoDraft
	}
	d.Payload = append([]byte(nil), d.Payload...)
	return d, nil
}

func (m *MemoryStore) ClearDraft(ctx context.Context, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, kind)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var (
	_ SessionStore = (*MemoryStore)(nil)
	_ SessionStore = (*SQLiteStore)(nil)
)
