// Package trending ranks published projects by engagement velocity:
// weighted recent engagement divided by project age. The formula favors
// new projects that accumulate engagement quickly over old projects with
// large absolute totals; the recency bias is deliberate.
package trending

import (
	"fmt"
	"sort"
	"time"

	"github.com/folioworks/discovery/internal/storage"
)

// Window is the engagement lookback period.
type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// Hours returns the window's fixed hour count. Unknown windows fall back
// to a day.
func (w Window) Hours() int {
	switch w {
	case WindowWeek:
		return 168
	case WindowMonth:
		return 720
	default:
		return 24
	}
}

// Valid reports whether the window is one of the known periods.
func (w Window) Valid() bool {
	switch w {
	case WindowDay, WindowWeek, WindowMonth:
		return true
	}
	return false
}

// Engagement weights for the velocity score.
const (
	viewWeight   = 1
	likeWeight   = 3
	followWeight = 5
)

// Scored is a project with its computed velocity.
type Scored struct {
	Project  *storage.Project
	Velocity float64
}

// Ranker computes trending scores from the engagement event log.
type Ranker struct {
	store *storage.Store
	now   func() time.Time
}

// New creates a ranker over the given store.
func New(store *storage.Store) *Ranker {
	return &Ranker{store: store, now: time.Now}
}

// Rank returns up to limit published projects ordered by descending
// velocity over the window.
func (r *Ranker) Rank(window Window, limit int) ([]Scored, error) {
	now := r.now()
	since := now.Add(-time.Duration(window.Hours()) * time.Hour)

	counts, err := r.store.EngagementCountsSince(since)
	if err != nil {
		return nil, fmt.Errorf("count engagement: %w", err)
	}

	projects, err := r.store.ListPublished(0, 0)
	if err != nil {
		return nil, fmt.Errorf("list published projects: %w", err)
	}

	scored := make([]Scored, 0, len(projects))
	for _, p := range projects {
		c := counts[p.ID]
		weighted := float64(c.Views*viewWeight + c.Likes*likeWeight + c.Follows*followWeight)

		// Floor age at one hour so brand-new projects don't divide by
		// a near-zero age.
		ageHours := now.Sub(p.CreatedAt).Hours()
		if ageHours < 1 {
			ageHours = 1
		}

		scored = append(scored, Scored{Project: p, Velocity: weighted / ageHours})
	}

	sort.Slice(scored, func(a, b int) bool {
		return scored[a].Velocity > scored[b].Velocity
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}
