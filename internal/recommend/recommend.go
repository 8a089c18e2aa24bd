// Package recommend fuses several recommendation sources into one
// deduplicated, score-ordered personalized feed.
package recommend

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/folioworks/discovery/internal/similarity"
	"github.com/folioworks/discovery/internal/storage"
	"github.com/folioworks/discovery/internal/trending"
)

// Reason identifies the source that surfaced a recommendation. It is a
// closed set so downstream consumers can handle every source exhaustively.
type Reason int

const (
	// ReasonFollowedCreator marks projects from creators the user follows.
	ReasonFollowedCreator Reason = iota
	// ReasonSimilarContent marks projects similar to ones the user
	// recently liked or followed.
	ReasonSimilarContent
	// ReasonTrending marks projects surfaced from the trending ranking.
	ReasonTrending
)

// String returns a stable name for the reason.
func (r Reason) String() string {
	switch r {
	case ReasonFollowedCreator:
		return "followed_creator"
	case ReasonSimilarContent:
		return "similar_content"
	case ReasonTrending:
		return "trending"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the reason's string name.
func (r Reason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// Recommendation is one scored, attributed feed entry.
type Recommendation struct {
	Project *storage.Project
	Score   float64
	Reason  Reason
}

// Fusion tuning. Social signal dominates: followed-creator entries carry a
// fixed high base score and similarity scores are discounted against it.
// The similarity floor sits below the default query floor to favor
// diversity over precision when seeding from the user's own activity.
const (
	followedLimit      = 5
	followedScore      = 0.8
	seedLimit          = 5
	perSeedLimit       = 3
	seedMinScore       = 0.1
	similarDiscount    = 0.7
	trendingCandidates = 5
)

// Fuser produces personalized feeds by merging followed-creator,
// similar-content, and trending candidates.
type Fuser struct {
	store    *storage.Store
	similar  *similarity.Index
	trending *trending.Ranker
	log      zerolog.Logger
}

// New creates a fuser over the given sources.
func New(store *storage.Store, similar *similarity.Index, ranker *trending.Ranker, log zerolog.Logger) *Fuser {
	return &Fuser{
		store:    store,
		similar:  similar,
		trending: ranker,
		log:      log.With().Str("component", "recommend").Logger(),
	}
}

// Personalize returns a deduplicated, score-ordered feed for a user. When
// the same project is surfaced by multiple sources, the highest-scoring
// occurrence wins and keeps its reason.
func (f *Fuser) Personalize(userID uuid.UUID, limit int) ([]Recommendation, error) {
	var candidates []Recommendation

	followed, err := f.followedCreatorCandidates(userID)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, followed...)

	similar, err := f.similarContentCandidates(userID)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, similar...)

	trendingCands, err := f.trendingCandidates(userID)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, trendingCands...)

	// Dedup by project id, max score wins.
	best := make(map[uuid.UUID]Recommendation, len(candidates))
	for _, c := range candidates {
		if existing, ok := best[c.Project.ID]; !ok || c.Score > existing.Score {
			best[c.Project.ID] = c
		}
	}

	merged := make([]Recommendation, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(a, b int) bool {
		return merged[a].Score > merged[b].Score
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (f *Fuser) followedCreatorCandidates(userID uuid.UUID) ([]Recommendation, error) {
	creators, err := f.store.FollowedCreators(userID)
	if err != nil {
		return nil, fmt.Errorf("followed creators: %w", err)
	}

	projects, err := f.store.ListPublishedByCreators(creators, followedLimit)
	if err != nil {
		return nil, fmt.Errorf("followed creator projects: %w", err)
	}

	recs := make([]Recommendation, 0, len(projects))
	for _, p := range projects {
		recs = append(recs, Recommendation{
			Project: p,
			Score:   followedScore,
			Reason:  ReasonFollowedCreator,
		})
	}
	return recs, nil
}

func (f *Fuser) similarContentCandidates(userID uuid.UUID) ([]Recommendation, error) {
	seeds, err := f.store.RecentEngagedProjects(userID, seedLimit)
	if err != nil {
		return nil, fmt.Errorf("recent engaged projects: %w", err)
	}

	var recs []Recommendation
	for _, seed := range seeds {
		matches, err := f.similar.FindSimilar(seed, perSeedLimit, seedMinScore, &userID)
		if err != nil {
			return nil, fmt.Errorf("similar to %s: %w", seed, err)
		}
		for _, m := range matches {
			recs = append(recs, Recommendation{
				Project: m.Project,
				Score:   m.Score * similarDiscount,
				Reason:  ReasonSimilarContent,
			})
		}
	}
	return recs, nil
}

func (f *Fuser) trendingCandidates(userID uuid.UUID) ([]Recommendation, error) {
	scored, err := f.trending.Rank(trending.WindowWeek, trendingCandidates)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}

	var recs []Recommendation
	for _, s := range scored {
		if s.Project.CreatorID == userID {
			continue
		}
		recs = append(recs, Recommendation{
			Project: s.Project,
			Score:   s.Velocity,
			Reason:  ReasonTrending,
		})
	}
	return recs, nil
}

// TrackClick appends a click-through record for a surfaced recommendation.
// It never fails the surrounding request flow: persistence errors are
// logged and swallowed.
func (f *Fuser) TrackClick(userID, projectID uuid.UUID, reason Reason, position int) {
	click := &storage.RecommendationClick{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: projectID,
		Reason:    reason.String(),
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.InsertClick(click); err != nil {
		f.log.Error().
			Err(err).
			Str("project_id", projectID.String()).
			Str("user_id", userID.String()).
			Str("reason", reason.String()).
			Msg("failed to record recommendation click")
	}
}
