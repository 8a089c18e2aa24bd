package engine

import (
	"fmt"
	"time"

	"github.com/folioworks/discovery/internal/search"
	"github.com/folioworks/discovery/internal/vector"
)

// DefaultReindexBatchSize is the page size for bulk reconciliation.
const DefaultReindexBatchSize = 100

// ReindexStats summarizes one bulk reconciliation pass.
type ReindexStats struct {
	Processed int
	Indexed   int
	Embedded  int
	Failed    int
	Duration  time.Duration
}

// ReindexAll rebuilds the search document and embedding for every
// published project, in fixed-size batches. It is idempotent: both derived
// views are pure functions of the project record, so repeated runs
// converge to the same state. Per-item failures are logged and counted
// without aborting the pass.
func (e *Engine) ReindexAll(batchSize int) (*ReindexStats, error) {
	if batchSize <= 0 {
		batchSize = DefaultReindexBatchSize
	}

	start := e.now()
	stats := &ReindexStats{}

	for offset := 0; ; offset += batchSize {
		batch, err := e.store.ListPublished(batchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list published projects: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, p := range batch {
			stats.Processed++
			itemFailed := false

			if err := e.search.IndexDocument(search.DocumentFromProject(p)); err != nil {
				e.log.Error().
					Err(err).
					Str("operation", "reindex").
					Str("project_id", p.ID.String()).
					Str("step", "search_index").
					Msg("reindex item failed")
				itemFailed = true
			} else {
				stats.Indexed++
			}

			vec := vector.Encode(p.Title, p.Description, p.Tags, p.TechTags)
			if err := e.similar.Upsert(p.ID, vec); err != nil {
				e.log.Error().
					Err(err).
					Str("operation", "reindex").
					Str("project_id", p.ID.String()).
					Str("step", "embedding").
					Msg("reindex item failed")
				itemFailed = true
			} else {
				stats.Embedded++
			}

			if itemFailed {
				stats.Failed++
			}
		}

		if len(batch) < batchSize {
			break
		}
	}

	stats.Duration = e.now().Sub(start)
	e.log.Info().
		Int("processed", stats.Processed).
		Int("indexed", stats.Indexed).
		Int("embedded", stats.Embedded).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("reindex complete")

	return stats, nil
}

// Stats reports document counts in the store and the search index. A gap
// between the two indicates pending reconciliation.
type Stats struct {
	StoredProjects   int
	IndexedDocuments uint64
}

// CollectStats reads current store and index counts.
func (e *Engine) CollectStats() (*Stats, error) {
	stored, err := e.store.CountProjects()
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	indexed, err := e.search.Count()
	if err != nil {
		return nil, fmt.Errorf("count indexed documents: %w", err)
	}
	return &Stats{StoredProjects: stored, IndexedDocuments: indexed}, nil
}

// Engagement-score weights, shared with the trending velocity formula.
const (
	scoreViewWeight   = 1
	scoreLikeWeight   = 3
	scoreFollowWeight = 5
)

// RecalculateEngagementScores is the periodic batch that recomputes each
// published project's aggregate engagement score from all-time event
// counts, normalized to a per-day rate. Scores are never updated inline on
// engagement events; popularity-sorted results lag until this runs. The
// refreshed score is pushed to the search projection best-effort.
func (e *Engine) RecalculateEngagementScores() error {
	counts, err := e.store.EngagementCountsSince(time.Time{})
	if err != nil {
		return fmt.Errorf("count engagement: %w", err)
	}

	projects, err := e.store.ListPublished(0, 0)
	if err != nil {
		return fmt.Errorf("list published projects: %w", err)
	}

	now := e.now()
	for _, p := range projects {
		c := counts[p.ID]
		weighted := float64(c.Views*scoreViewWeight + c.Likes*scoreLikeWeight + c.Follows*scoreFollowWeight)

		ageDays := now.Sub(p.CreatedAt).Hours() / 24
		if ageDays < 1 {
			ageDays = 1
		}
		score := weighted / ageDays

		if err := e.store.SetEngagementScore(p.ID, score); err != nil {
			return fmt.Errorf("set engagement score for %s: %w", p.ID, err)
		}

		p.EngagementScore = score
		e.propagate("recalculate_scores", p.ID, e.indexStep(p))
	}

	return nil
}
