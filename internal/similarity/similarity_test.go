package similarity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioworks/discovery/internal/storage"
	"github.com/folioworks/discovery/internal/vector"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addProject(t *testing.T, store *storage.Store, idx *Index, creator uuid.UUID, title string, tags []string, published bool, created time.Time) *storage.Project {
	t.Helper()
	p := &storage.Project{
		ID:        uuid.New(),
		CreatorID: creator,
		Title:     title,
		Tags:      tags,
		Published: published,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, store.CreateProject(p))
	require.NoError(t, idx.Upsert(p.ID, vector.Encode(p.Title, "", p.Tags, nil)))
	return p
}

func TestFindSimilarSharedTags(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)
	now := time.Now().UTC()

	p := addProject(t, store, idx, uuid.New(), "dashboard", []string{"react", "node"}, true, now)
	q := addProject(t, store, idx, uuid.New(), "storefront", []string{"react", "stripe"}, true, now)

	matches, err := idx.FindSimilar(q.ID, 10, 0, nil)
	require.NoError(t, err)

	require.NotEmpty(t, matches)
	assert.Equal(t, p.ID, matches[0].Project.ID)
	assert.Greater(t, matches[0].Score, 0.0)

	// The target never appears in its own results.
	for _, m := range matches {
		assert.NotEqual(t, q.ID, m.Project.ID)
	}
}

func TestFindSimilarExcludesUnpublished(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)
	now := time.Now().UTC()

	target := addProject(t, store, idx, uuid.New(), "target", []string{"go"}, true, now)
	addProject(t, store, idx, uuid.New(), "hidden", []string{"go"}, false, now)

	matches, err := idx.FindSimilar(target.ID, 10, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarExcludesCreator(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)
	now := time.Now().UTC()

	self := uuid.New()
	other := uuid.New()

	target := addProject(t, store, idx, other, "target", []string{"go", "cli"}, true, now)
	addProject(t, store, idx, self, "mine", []string{"go", "cli"}, true, now)
	theirs := addProject(t, store, idx, other, "theirs", []string{"go", "cli"}, true, now)

	matches, err := idx.FindSimilar(target.ID, 10, 0, &self)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, theirs.ID, matches[0].Project.ID)
}

func TestFindSimilarMinScoreFloor(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)
	now := time.Now().UTC()

	target := addProject(t, store, idx, uuid.New(), "compiler", []string{"rust", "llvm"}, true, now)
	addProject(t, store, idx, uuid.New(), "recipes", []string{"cooking", "food"}, true, now)

	matches, err := idx.FindSimilar(target.ID, 10, 0.5, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarNoStoredVector(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)

	p := &storage.Project{
		ID:        uuid.New(),
		CreatorID: uuid.New(),
		Title:     "vectorless",
		Published: true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateProject(p))

	matches, err := idx.FindSimilar(p.ID, 10, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarMissingTarget(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)

	matches, err := idx.FindSimilar(uuid.New(), 10, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarTieBreakByRecency(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	target := addProject(t, store, idx, uuid.New(), "same", []string{"go"}, true, base)
	older := addProject(t, store, idx, uuid.New(), "same", []string{"go"}, true, base.Add(-72*time.Hour))
	newer := addProject(t, store, idx, uuid.New(), "same", []string{"go"}, true, base.Add(72*time.Hour))

	matches, err := idx.FindSimilar(target.ID, 10, 0, nil)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.InDelta(t, matches[0].Score, matches[1].Score, 1e-9)
	assert.Equal(t, newer.ID, matches[0].Project.ID)
	assert.Equal(t, older.ID, matches[1].Project.ID)
}

func TestFindSimilarLimit(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)
	now := time.Now().UTC()

	target := addProject(t, store, idx, uuid.New(), "hub", []string{"go"}, true, now)
	for i := 0; i < 5; i++ {
		addProject(t, store, idx, uuid.New(), "spoke", []string{"go"}, true, now.Add(time.Duration(i)*time.Minute))
	}

	matches, err := idx.FindSimilar(target.ID, 3, 0, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	store := newTestStore(t)
	idx := New(store)

	err := idx.Upsert(uuid.New(), make([]float32, 7))
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}
