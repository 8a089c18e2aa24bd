// Package engine sequences project lifecycle operations across the
// authoritative store and its derived views. The primary write always
// completes and returns to the caller before any side effect is attempted;
// search and embedding propagation are best-effort, logged on failure, and
// never rolled back into the primary write. Convergence after a failed side
// effect is restored by the next update to the project or by a bulk
// reindex.
package engine

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/folioworks/discovery/internal/recommend"
	"github.com/folioworks/discovery/internal/search"
	"github.com/folioworks/discovery/internal/similarity"
	"github.com/folioworks/discovery/internal/storage"
	"github.com/folioworks/discovery/internal/trending"
	"github.com/folioworks/discovery/internal/vector"
)

// defaultMinSimilarity is the score floor for direct similar-project
// queries. The recommendation fuser seeds with a lower floor of its own.
const defaultMinSimilarity = 0.3

// SearchProjector is the slice of the search index the engine drives.
// Implemented by *search.Index; tests substitute failing fakes.
type SearchProjector interface {
	IndexDocument(doc *search.Document) error
	Remove(id string) error
	Query(req search.QueryRequest) (*search.QueryResult, error)
	Count() (uint64, error)
}

// Engine is the single entry point for project lifecycle operations and
// the read paths built on top of them.
type Engine struct {
	store    *storage.Store
	search   SearchProjector
	similar  *similarity.Index
	trending *trending.Ranker
	fuser    *recommend.Fuser
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// New wires an engine over the given store and search projection.
func New(store *storage.Store, searchIdx SearchProjector, log zerolog.Logger) *Engine {
	similar := similarity.New(store)
	ranker := trending.New(store)

	return &Engine{
		store:    store,
		search:   searchIdx,
		similar:  similar,
		trending: ranker,
		fuser:    recommend.New(store, similar, ranker, log),
		validate: validator.New(),
		log:      log.With().Str("component", "engine").Logger(),
		now:      time.Now,
	}
}

// sideEffect is one best-effort propagation step.
type sideEffect struct {
	name string
	fn   func() error
}

// propagate runs side effects after a committed primary write. Each step
// is independent: one failing never prevents the others from being
// attempted, and no failure reaches the caller.
func (e *Engine) propagate(op string, projectID uuid.UUID, steps ...sideEffect) {
	for _, step := range steps {
		if err := step.fn(); err != nil {
			e.log.Error().
				Err(err).
				Str("operation", op).
				Str("project_id", projectID.String()).
				Str("step", step.name).
				Msg("side-effect propagation failed")
		}
	}
}

func (e *Engine) indexStep(p *storage.Project) sideEffect {
	return sideEffect{"search_index", func() error {
		return e.search.IndexDocument(search.DocumentFromProject(p))
	}}
}

func (e *Engine) removeStep(id uuid.UUID) sideEffect {
	return sideEffect{"search_remove", func() error {
		return e.search.Remove(id.String())
	}}
}

func (e *Engine) embedStep(p *storage.Project) sideEffect {
	return sideEffect{"embedding", func() error {
		return e.similar.Upsert(p.ID, vector.Encode(p.Title, p.Description, p.Tags, p.TechTags))
	}}
}

// CreateProjectInput carries the attributes for a new project.
type CreateProjectInput struct {
	CreatorID   uuid.UUID `validate:"required"`
	CreatorName string
	Title       string `validate:"required,max=200"`
	Description string
	Content     string
	Tags        []string
	TechTags    []string
	Published   bool
}

// CreateProject persists a new project and, when it is published, derives
// its search document and content vector as best-effort side effects.
func (e *Engine) CreateProject(in CreateProjectInput) (*storage.Project, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := e.now().UTC()
	p := &storage.Project{
		ID:          uuid.New(),
		CreatorID:   in.CreatorID,
		CreatorName: in.CreatorName,
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		Tags:        in.Tags,
		TechTags:    in.TechTags,
		Published:   in.Published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.store.CreateProject(p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	if p.Published {
		e.propagate("create", p.ID, e.indexStep(p), e.embedStep(p))
	}

	return p, nil
}

// UpdateProjectInput carries the replacement attributes for a project.
type UpdateProjectInput struct {
	CreatorName string
	Title       string `validate:"required,max=200"`
	Description string
	Content     string
	Tags        []string
	TechTags    []string
	Published   bool
}

// UpdateProject rewrites a project and re-derives its views according to
// the publication transition: publishing or staying published re-indexes
// and recomputes the embedding; unpublishing removes the search document
// but leaves the now-inert embedding in place.
func (e *Engine) UpdateProject(id uuid.UUID, in UpdateProjectInput) (*storage.Project, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	existing, err := e.store.GetProject(id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}

	wasPublished := existing.Published

	existing.CreatorName = in.CreatorName
	existing.Title = in.Title
	existing.Description = in.Description
	existing.Content = in.Content
	existing.Tags = in.Tags
	existing.TechTags = in.TechTags
	existing.Published = in.Published
	existing.UpdatedAt = e.now().UTC()

	if err := e.store.UpdateProject(existing); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("update project: %w", err)
	}

	switch {
	case existing.Published:
		e.propagate("update", id, e.indexStep(existing), e.embedStep(existing))
	case wasPublished:
		e.propagate("update", id, e.removeStep(id))
	}

	return existing, nil
}

// DeleteProject removes a project and all derived state. Engagement events,
// clicks, and the embedding cascade with the primary row; the search
// document removal is a best-effort side effect.
func (e *Engine) DeleteProject(id uuid.UUID) error {
	if err := e.store.DeleteProject(id); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("delete project: %w", err)
	}

	e.propagate("delete", id, e.removeStep(id))
	return nil
}

// RecordEngagementInput describes one engagement event. UserID is unset
// for anonymous views; ProjectID is unset for follow events targeting a
// creator rather than a project.
type RecordEngagementInput struct {
	UserID    uuid.NullUUID
	ProjectID uuid.NullUUID
	Action    storage.Action
	SessionID string
	Referrer  string
}

// RecordEngagement appends an engagement event. For a view of a published
// project by someone other than its owner, the view counter and the daily
// analytics aggregate are updated best-effort after the append commits.
// Aggregate engagement-score recomputation is a separate batch job, never
// inline.
func (e *Engine) RecordEngagement(in RecordEngagementInput) error {
	if !in.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrValidation, in.Action)
	}

	var project *storage.Project
	if in.ProjectID.Valid {
		var err error
		project, err = e.store.GetProject(in.ProjectID.UUID)
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		if project == nil {
			return fmt.Errorf("project %s: %w", in.ProjectID.UUID, ErrNotFound)
		}
	}

	event := &storage.EngagementEvent{
		ID:        uuid.New(),
		UserID:    in.UserID,
		ProjectID: in.ProjectID,
		Action:    in.Action,
		SessionID: in.SessionID,
		Referrer:  in.Referrer,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.InsertEngagement(event); err != nil {
		return fmt.Errorf("record engagement: %w", err)
	}

	if in.Action == storage.ActionView && project != nil && project.Published && !isOwner(in.UserID, project) {
		e.propagate("engagement", project.ID,
			sideEffect{"view_counter", func() error {
				return e.store.IncrementViews(project.ID)
			}},
			sideEffect{"daily_stats", func() error {
				return e.store.UpsertDailyViews(project.ID, event.CreatedAt)
			}},
		)
	}

	return nil
}

func isOwner(userID uuid.NullUUID, p *storage.Project) bool {
	return userID.Valid && userID.UUID == p.CreatorID
}

// Follow records a follow edge plus its engagement event.
func (e *Engine) Follow(followerID, creatorID uuid.UUID) error {
	if followerID == creatorID {
		return fmt.Errorf("%w: cannot follow yourself", ErrValidation)
	}
	if err := e.store.Follow(followerID, creatorID); err != nil {
		return fmt.Errorf("follow: %w", err)
	}

	event := &storage.EngagementEvent{
		ID:        uuid.New(),
		UserID:    uuid.NullUUID{UUID: followerID, Valid: true},
		Action:    storage.ActionFollow,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.InsertEngagement(event); err != nil {
		return fmt.Errorf("record follow event: %w", err)
	}
	return nil
}

// Unfollow removes a follow edge.
func (e *Engine) Unfollow(followerID, creatorID uuid.UUID) error {
	if err := e.store.Unfollow(followerID, creatorID); err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

// SimilarProjects returns the published projects nearest to the given one.
// excludeCreator filters out candidates owned by that creator.
func (e *Engine) SimilarProjects(projectID uuid.UUID, limit int, excludeCreator *uuid.UUID) ([]similarity.Match, error) {
	matches, err := e.similar.FindSimilar(projectID, limit, defaultMinSimilarity, excludeCreator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return matches, nil
}

// TrendingProjects returns the highest-velocity published projects over
// the window.
func (e *Engine) TrendingProjects(window trending.Window, limit int) ([]trending.Scored, error) {
	if !window.Valid() {
		return nil, fmt.Errorf("%w: unknown time window %q", ErrValidation, window)
	}
	scored, err := e.trending.Rank(window, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return scored, nil
}

// PersonalizedRecommendations returns the fused, deduplicated feed for a
// user.
func (e *Engine) PersonalizedRecommendations(userID uuid.UUID, limit int) ([]recommend.Recommendation, error) {
	recs, err := e.fuser.Personalize(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return recs, nil
}

// TrackRecommendationClick appends a click-through record. Never fails.
func (e *Engine) TrackRecommendationClick(userID, projectID uuid.UUID, reason recommend.Reason, position int) {
	e.fuser.TrackClick(userID, projectID, reason, position)
}

// SearchProjects queries the full-text projection directly.
func (e *Engine) SearchProjects(req search.QueryRequest) (*search.QueryResult, error) {
	result, err := e.search.Query(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return result, nil
}
