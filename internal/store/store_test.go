package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "risklock/internal/errors"
)

func stores(t *testing.T) map[string]SessionStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]SessionStore{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestSessionState(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			state, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, State{}, state)

			require.NoError(t, s.SaveToken(ctx, "abc"))
			require.NoError(t, s.MarkReportDownloaded(ctx))

			state, err = s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, state.HasDownloadedReport)
			assert.Equal(t, "abc", state.Token)

			require.NoError(t, s.ClearToken(ctx))
			state, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "", state.Token)
			assert.True(t, state.HasDownloadedReport, "clearing the token keeps the report flag")

			require.NoError(t, s.Save(ctx, State{Token: "xyz"}))
			state, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, State{Token: "xyz"}, state)
		})
	}
}

func TestDrafts(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LoadDraft(ctx, "feedback")
			assert.ErrorIs(t, err, apperr.ErrNoDraft)

			first, err := s.SaveDraft(ctx, Draft{Kind: "feedback", Payload: json.RawMessage(`{"title":"a"}`)})
			require.NoError(t, err)
			require.NotEmpty(t, first.ID)

			second, err := s.SaveDraft(ctx, Draft{Kind: "feedback", Payload: json.RawMessage(`{"title":"b"}`)})
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID, "resaving a kind keeps its draft ID")

			loaded, err := s.LoadDraft(ctx, "feedback")
			require.NoError(t, err)
			assert.JSONEq(t, `{"title":"b"}`, string(loaded.Payload))
			assert.WithinDuration(t, time.Now(), loaded.UpdatedAt, time.Minute)

			_, err = s.LoadDraft(ctx, "report")
			assert.ErrorIs(t, err, apperr.ErrNoDraft)

			require.NoError(t, s.ClearDraft(ctx, "feedback"))
			_, err = s.LoadDraft(ctx, "feedback")
			assert.ErrorIs(t, err, apperr.ErrNoDraft)
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.MarkReportDownloaded(ctx))
	_, err = s.SaveDraft(ctx, Draft{Kind: "feedback", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	state, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, state.HasDownloadedReport)

	_, err = s.LoadDraft(ctx, "feedback")
	assert.NoError(t, err)
}

// Property: for any token, SaveToken followed by Load returns it, in both
// implementations.
func TestProperty_TokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	all := stores(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("saved token is loaded back", prop.ForAll(
		func(token string) bool {
			for _, s := range all {
				if err := s.SaveToken(ctx, token); err != nil {
					return false
				}
				state, err := s.Load(ctx)
				if err != nil || state.Token != token {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
