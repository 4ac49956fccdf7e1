package persistence

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/pkg/artifact"
	"refinery/pkg/debate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testArtifact() artifact.Artifact {
	return artifact.Artifact{
		Title:       "Checkout flow",
		Description: "As a shopper I can pay for my cart",
		Acceptance:  []string{"payment is captured"},
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := testArtifact()
	require.NoError(t, store.StartSession(ctx, "sess-1", original))

	rec := store.mustGetSession(t, "sess-1")
	assert.Equal(t, original.Fingerprint(), rec.Original.Fingerprint())
	assert.Nil(t, rec.Final)
	assert.Nil(t, rec.FinishedAt)

	final := original
	final.Description = "revised"
	outcome := debate.Completed(final, []debate.IterationRecord{{Index: 0, Confidence: 0.9}})
	require.NoError(t, store.FinishSession(ctx, "sess-1", outcome))

	rec = store.mustGetSession(t, "sess-1")
	require.NotNil(t, rec.Final)
	assert.Equal(t, "revised", rec.Final.Description)
	assert.Equal(t, string(debate.OutcomeCompleted), rec.Outcome)
	assert.NotNil(t, rec.FinishedAt)
}

func (s *Store) mustGetSession(t *testing.T, sessionID string) SessionRecord {
	t.Helper()
	rec, err := s.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	return rec
}

func TestIterationHistoryOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.StartSession(ctx, "sess-1", testArtifact()))

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordIteration(ctx, "sess-1", debate.IterationRecord{
			Index:          i,
			Confidence:     0.5 + float64(i)*0.1,
			ViolationCount: 3 - i,
			Violations:     []debate.Violation{{Category: "gap", Severity: debate.SeverityLow, Description: "missing error path"}},
			RolesRan:       debate.AllRoles(),
			StartedAt:      now,
			CompletedAt:    now.Add(time.Minute),
		}))
	}

	history, err := store.ListIterations(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, rec := range history {
		assert.Equal(t, i, rec.Index)
		assert.InDelta(t, 0.5+float64(i)*0.1, rec.Confidence, 1e-9)
		assert.Equal(t, debate.AllRoles(), rec.RolesRan)
		require.Len(t, rec.Violations, 1)
		assert.Equal(t, "gap", rec.Violations[0].Category)
	}
}

func TestProposedSplitsPersist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.StartSession(ctx, "sess-1", testArtifact()))

	parts := []artifact.Artifact{
		{Title: "Pay by card", Description: "card path"},
		{Title: "Pay by wallet", Description: "wallet path"},
	}
	outcome := debate.SplitProposed(parts, "story spans three services", nil)
	require.NoError(t, store.FinishSession(ctx, "sess-1", outcome))

	got, err := store.ListProposedSplits(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Pay by card", got[0].Title)
	assert.Equal(t, "Pay by wallet", got[1].Title)

	rec := store.mustGetSession(t, "sess-1")
	assert.Equal(t, string(debate.OutcomeSplitProposed), rec.Outcome)
	assert.Equal(t, "story spans three services", rec.Rationale)
}

func TestGetSessionMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetSession(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestDuplicateSessionRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.StartSession(ctx, "sess-1", testArtifact()))
	assert.Error(t, store.StartSession(ctx, "sess-1", testArtifact()))
}

func TestSchemaIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	first, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, first.StartSession(context.Background(), "sess-1", testArtifact()))
	require.NoError(t, first.Close())

	// Reopening an existing database must not touch the data.
	second, err := NewStore(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	rec, err := second.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", rec.SessionID)
}
