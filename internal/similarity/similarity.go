// Package similarity answers nearest-neighbor queries over the content
// vectors stored alongside projects. Candidates are scored by cosine
// similarity with a linear scan; at portfolio scale the scan is cheaper
// than maintaining a dedicated vector index.
package similarity

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/folioworks/discovery/internal/storage"
	"github.com/folioworks/discovery/internal/vector"
)

// Index persists one content vector per project and answers k-nearest
// queries against the published set.
type Index struct {
	store *storage.Store
}

// New creates a similarity index over the given store.
func New(store *storage.Store) *Index {
	return &Index{store: store}
}

// Match is one similarity result.
type Match struct {
	Project *storage.Project
	Score   float64
}

// Upsert stores the vector for a project, replacing any previous one.
func (i *Index) Upsert(projectID uuid.UUID, vec []float32) error {
	if len(vec) != vector.Dimensions {
		return vector.ErrDimensionMismatch
	}
	if err := i.store.SetEmbedding(projectID, vector.Serialize(vec)); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// FindSimilar returns up to k published projects nearest to the target,
// descending by score with ties broken by descending creation time. The
// target itself is excluded, results below minScore are dropped, and when
// excludeCreator is set, that creator's projects are filtered out. A target
// with no stored vector yields an empty result, not an error.
func (i *Index) FindSimilar(projectID uuid.UUID, k int, minScore float64, excludeCreator *uuid.UUID) ([]Match, error) {
	target, err := i.store.GetProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("get target project: %w", err)
	}
	if target == nil || len(target.Embedding) == 0 {
		return nil, nil
	}

	targetVec := vector.Deserialize(target.Embedding)
	if targetVec == nil {
		return nil, nil
	}

	candidates, err := i.store.ListPublished(0, 0)
	if err != nil {
		return nil, fmt.Errorf("list published projects: %w", err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == projectID {
			continue
		}
		if excludeCreator != nil && candidate.CreatorID == *excludeCreator {
			continue
		}
		if len(candidate.Embedding) == 0 {
			continue
		}

		candidateVec := vector.Deserialize(candidate.Embedding)
		if candidateVec == nil {
			continue
		}

		score, err := vector.Cosine(targetVec, candidateVec)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", candidate.ID, err)
		}
		if score < minScore {
			continue
		}

		matches = append(matches, Match{Project: candidate, Score: score})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Project.CreatedAt.After(matches[b].Project.CreatedAt)
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}
