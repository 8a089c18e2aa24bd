package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of an engagement event.
type Action string

const (
	ActionView   Action = "view"
	ActionLike   Action = "like"
	ActionShare  Action = "share"
	ActionFollow Action = "follow"
)

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionLike, ActionShare, ActionFollow:
		return true
	}
	return false
}

// EngagementEvent is one append-only engagement record. UserID is unset for
// anonymous views; ProjectID is unset for follow events that target a
// creator rather than a project.
type EngagementEvent struct {
	ID        uuid.UUID
	UserID    uuid.NullUUID
	ProjectID uuid.NullUUID
	Action    Action
	SessionID string
	Referrer  string
	CreatedAt time.Time
}

// InsertEngagement appends an engagement event. Events are immutable once
// written.
func (s *Store) InsertEngagement(e *EngagementEvent) error {
	query := `
	INSERT INTO engagement_events (id, user_id, project_id, action, session_id, referrer, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		e.ID.String(), nullUUIDString(e.UserID), nullUUIDString(e.ProjectID),
		string(e.Action), e.SessionID, e.Referrer, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert engagement event: %w", err)
	}
	return nil
}

// ActionCounts holds per-action event totals for one project.
type ActionCounts struct {
	Views   int64
	Likes   int64
	Shares  int64
	Follows int64
}

// EngagementCountsSince returns per-project action counts for events at or
// after the cutoff. A zero cutoff counts all events.
func (s *Store) EngagementCountsSince(since time.Time) (map[uuid.UUID]ActionCounts, error) {
	query := `
	SELECT project_id, action, COUNT(*)
	FROM engagement_events
	WHERE project_id IS NOT NULL
	`
	args := []any{}
	if !since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, since)
	}
	query += " GROUP BY project_id, action"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]ActionCounts)
	for rows.Next() {
		var projectID, action string
		var n int64
		if err := rows.Scan(&projectID, &action, &n); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(projectID)
		if err != nil {
			return nil, fmt.Errorf("parse project id: %w", err)
		}
		c := counts[id]
		switch Action(action) {
		case ActionView:
			c.Views = n
		case ActionLike:
			c.Likes = n
		case ActionShare:
			c.Shares = n
		case ActionFollow:
			c.Follows = n
		}
		counts[id] = c
	}
	return counts, rows.Err()
}

// RecentEngagedProjects returns the distinct projects a user most recently
// liked or followed, newest first. These seed the similar-content
// recommendation source.
func (s *Store) RecentEngagedProjects(userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := `
	SELECT project_id, MAX(created_at) AS last
	FROM engagement_events
	WHERE user_id = ? AND project_id IS NOT NULL AND action IN (?, ?)
	GROUP BY project_id
	ORDER BY last DESC
	LIMIT ?
	`
	rows, err := s.db.Query(query, userID.String(), string(ActionLike), string(ActionFollow), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw, last string
		if err := rows.Scan(&raw, &last); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertDailyViews bumps the daily view aggregate for a project.
func (s *Store) UpsertDailyViews(projectID uuid.UUID, day time.Time) error {
	query := `
	INSERT INTO project_stats_daily (project_id, day, views)
	VALUES (?, ?, 1)
	ON CONFLICT(project_id, day) DO UPDATE SET views = views + 1
	`
	_, err := s.db.Exec(query, projectID.String(), day.UTC().Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("upsert daily views: %w", err)
	}
	return nil
}

// DailyViews reads the aggregated view count for a project on a given day.
func (s *Store) DailyViews(projectID uuid.UUID, day time.Time) (int64, error) {
	var views int64
	err := s.db.QueryRow(
		"SELECT views FROM project_stats_daily WHERE project_id = ? AND day = ?",
		projectID.String(), day.UTC().Format("2006-01-02"),
	).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return views, err
}

// Follow records a follower → creator edge. Re-following is a no-op.
func (s *Store) Follow(followerID, creatorID uuid.UUID) error {
	query := `
	INSERT INTO follows (follower_id, creator_id, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(follower_id, creator_id) DO NOTHING
	`
	_, err := s.db.Exec(query, followerID.String(), creatorID.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

// Unfollow removes a follow edge if present.
func (s *Store) Unfollow(followerID, creatorID uuid.UUID) error {
	_, err := s.db.Exec(
		"DELETE FROM follows WHERE follower_id = ? AND creator_id = ?",
		followerID.String(), creatorID.String(),
	)
	return err
}

// FollowedCreators lists the creators a user follows, newest first.
func (s *Store) FollowedCreators(followerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(
		"SELECT creator_id FROM follows WHERE follower_id = ? ORDER BY created_at DESC",
		followerID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse creator id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecommendationClick records which project was surfaced to which user, for
// which reason, at which list position. Append-only; consumed by future
// ranking tuning.
type RecommendationClick struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Reason    string
	Position  int
	CreatedAt time.Time
}

// InsertClick appends a recommendation click-through record.
func (s *Store) InsertClick(c *RecommendationClick) error {
	query := `
	INSERT INTO recommendation_clicks (id, user_id, project_id, reason, position, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		c.ID.String(), c.UserID.String(), c.ProjectID.String(),
		c.Reason, c.Position, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recommendation click: %w", err)
	}
	return nil
}

func nullUUIDString(id uuid.NullUUID) any {
	if !id.Valid {
		return nil
	}
	return id.UUID.String()
}
