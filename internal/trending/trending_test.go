package trending

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioworks/discovery/internal/storage"
)

func TestWindowHours(t *testing.T) {
	assert.Equal(t, 24, WindowDay.Hours())
	assert.Equal(t, 168, WindowWeek.Hours())
	assert.Equal(t, 720, WindowMonth.Hours())
	assert.Equal(t, 24, Window("bogus").Hours())
}

func TestWindowValid(t *testing.T) {
	assert.True(t, WindowDay.Valid())
	assert.True(t, WindowWeek.Valid())
	assert.True(t, WindowMonth.Valid())
	assert.False(t, Window("fortnight").Valid())
}

func newTestRanker(t *testing.T, now time.Time) (*Ranker, *storage.Store) {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := New(store)
	r.now = func() time.Time { return now }
	return r, store
}

func createProject(t *testing.T, store *storage.Store, title string, published bool, created time.Time) *storage.Project {
	t.Helper()
	p := &storage.Project{
		ID:        uuid.New(),
		CreatorID: uuid.New(),
		Title:     title,
		Published: published,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, store.CreateProject(p))
	return p
}

func recordEvents(t *testing.T, store *storage.Store, projectID uuid.UUID, action storage.Action, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.InsertEngagement(&storage.EngagementEvent{
			ID:        uuid.New(),
			ProjectID: uuid.NullUUID{UUID: projectID, Valid: true},
			Action:    action,
			CreatedAt: at,
		}))
	}
}

func TestRankVelocityFormula(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r, store := newTestRanker(t, now)

	// 10 views in the last hour on a project created 2 hours ago:
	// velocity = (10 * 1) / 2 = 5.0
	p := createProject(t, store, "fresh", true, now.Add(-2*time.Hour))
	recordEvents(t, store, p.ID, storage.ActionView, 10, now.Add(-30*time.Minute))

	scored, err := r.Rank(WindowDay, 10)
	require.NoError(t, err)

	require.Len(t, scored, 1)
	assert.Equal(t, p.ID, scored[0].Project.ID)
	assert.InDelta(t, 5.0, scored[0].Velocity, 1e-9)
}

func TestRankActionWeights(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r, store := newTestRanker(t, now)

	// 2 views + 1 like + 1 follow = 2 + 3 + 5 = 10, age 1 hour.
	p := createProject(t, store, "weighted", true, now.Add(-time.Hour))
	recordEvents(t, store, p.ID, storage.ActionView, 2, now.Add(-10*time.Minute))
	recordEvents(t, store, p.ID, storage.ActionLike, 1, now.Add(-10*time.Minute))
	recordEvents(t, store, p.ID, storage.ActionFollow, 1, now.Add(-10*time.Minute))
	recordEvents(t, store, p.ID, storage.ActionShare, 4, now.Add(-10*time.Minute)) // shares carry no weight

	scored, err := r.Rank(WindowDay, 10)
	require.NoError(t, err)

	require.Len(t, scored, 1)
	assert.InDelta(t, 10.0, scored[0].Velocity, 1e-9)
}

func TestRankAgeFloor(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r, store := newTestRanker(t, now)

	// Created 5 minutes ago; age floors at 1 hour instead of 1/12.
	p := createProject(t, store, "brand new", true, now.Add(-5*time.Minute))
	recordEvents(t, store, p.ID, storage.ActionView, 6, now.Add(-time.Minute))

	scored, err := r.Rank(WindowDay, 10)
	require.NoError(t, err)

	require.Len(t, scored, 1)
	assert.InDelta(t, 6.0, scored[0].Velocity, 1e-9)
}

func TestRankOlderProjectScoresLower(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r, store := newTestRanker(t, now)

	young := createProject(t, store, "young", true, now.Add(-2*time.Hour))
	old := createProject(t, store, "old", true, now.Add(-20*time.Hour))
	recordEvents(t, store, young.ID, storage.ActionView, 10, now.Add(-time.Hour))
	recordEvents(t, store, old.ID, storage.ActionView, 10, now.Add(-time.Hour))

	scored, err := r.Rank(WindowDay, 10)
	require.NoError(t, err)

	require.Len(t, scored, 2)
	assert.Equal(t, young.ID, scored[0].Project.ID)
	assert.Greater(t, scored[0].Velocity, scored[1].Velocity)
}

func TestRankWindowCutoff(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r, store := newTestRanker(t, now)

	p := createProject(t, store, "stale", true, now.Add(-100*time.Hour))
	recordEvents(t, store, p.ID, storage.ActionView, 50, now.Add(-48*time.Hour))

	scored, err := r.Rank(WindowDay, 10)
	require.NoError(t, err)

	require.Len(t, scored, 1)
	assert.Zero(t, scored[0].Velocity)
}

func TestRankSkipsUnpublished(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r, store := newTestRanker(t, now)

	draft := createProject(t, store, "draft", false, now.Add(-time.Hour))
	recordEvents(t, store, draft.ID, storage.ActionView, 10, now.Add(-time.Minute))

	scored, err := r.Rank(WindowDay, 10)
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestRankLimit(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r, store := newTestRanker(t, now)

	for i := 0; i < 5; i++ {
		createProject(t, store, "one of many", true, now.Add(-time.Hour))
	}

	scored, err := r.Rank(WindowWeek, 3)
	require.NoError(t, err)
	assert.Len(t, scored, 3)
}
