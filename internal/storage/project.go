package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project is the authoritative project record. Embedding holds the
// little-endian float32 content vector and is written only by the vector
// encoder; an unpublished project may retain a stale embedding, which is
// harmless because similarity queries filter on published.
type Project struct {
	ID              uuid.UUID
	CreatorID       uuid.UUID
	CreatorName     string
	Title           string
	Description     string
	Content         string // rich content document, JSON
	Tags            []string
	TechTags        []string
	Published       bool
	ViewCount       int64
	EngagementScore float64
	Embedding       []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const projectColumns = `id, creator_id, creator_name, title, description, content,
	tags, tech_tags, published, view_count, engagement_score, embedding,
	created_at, updated_at`

// CreateProject inserts a new project row.
func (s *Store) CreateProject(p *Project) error {
	tags, techTags, err := marshalTags(p)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO projects (` + projectColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		p.ID.String(), p.CreatorID.String(), p.CreatorName, p.Title, p.Description, p.Content,
		tags, techTags, p.Published, p.ViewCount, p.EngagementScore, p.Embedding,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// UpdateProject rewrites the mutable columns of an existing project. The
// embedding column is left untouched; it has its own writer.
func (s *Store) UpdateProject(p *Project) error {
	tags, techTags, err := marshalTags(p)
	if err != nil {
		return err
	}

	query := `
	UPDATE projects SET
		creator_name = ?,
		title = ?,
		description = ?,
		content = ?,
		tags = ?,
		tech_tags = ?,
		published = ?,
		updated_at = ?
	WHERE id = ?
	`

	res, err := s.db.Exec(query,
		p.CreatorName, p.Title, p.Description, p.Content,
		tags, techTags, p.Published, p.UpdatedAt, p.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetProject retrieves a project by ID. Returns nil if not found.
func (s *Store) GetProject(id uuid.UUID) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	p, err := scanProject(s.db.QueryRow(query, id.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject removes a project; engagement events, clicks, and daily
// stats cascade at the schema level, and the embedding goes with the row.
func (s *Store) DeleteProject(id uuid.UUID) error {
	res, err := s.db.Exec("DELETE FROM projects WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPublished retrieves published projects ordered by creation time
// descending, in fixed-size pages for batch reindexing. limit <= 0 means
// no limit.
func (s *Store) ListPublished(limit, offset int) ([]*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE published = 1 ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectProjects(rows)
}

// ListPublishedByCreators retrieves recent published projects owned by any
// of the given creators.
func (s *Store) ListPublishedByCreators(creatorIDs []uuid.UUID, limit int) ([]*Project, error) {
	if len(creatorIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + projectColumns + ` FROM projects WHERE published = 1 AND creator_id IN (`
	args := make([]any, 0, len(creatorIDs)+1)
	for i, id := range creatorIDs {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, id.String())
	}
	query += ") ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectProjects(rows)
}

// IncrementViews atomically bumps a project's view counter.
func (s *Store) IncrementViews(id uuid.UUID) error {
	_, err := s.db.Exec("UPDATE projects SET view_count = view_count + 1 WHERE id = ?", id.String())
	return err
}

// SetEmbedding stores the serialized content vector for a project.
func (s *Store) SetEmbedding(id uuid.UUID, embedding []byte) error {
	_, err := s.db.Exec("UPDATE projects SET embedding = ? WHERE id = ?", embedding, id.String())
	return err
}

// SetEngagementScore writes the batch-recomputed aggregate score.
func (s *Store) SetEngagementScore(id uuid.UUID, score float64) error {
	_, err := s.db.Exec("UPDATE projects SET engagement_score = ? WHERE id = ?", score, id.String())
	return err
}

// CountProjects returns the number of published projects.
func (s *Store) CountProjects() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM projects WHERE published = 1").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	p := &Project{}
	var id, creatorID, tags, techTags string

	err := row.Scan(
		&id, &creatorID, &p.CreatorName, &p.Title, &p.Description, &p.Content,
		&tags, &techTags, &p.Published, &p.ViewCount, &p.EngagementScore, &p.Embedding,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse project id: %w", err)
	}
	if p.CreatorID, err = uuid.Parse(creatorID); err != nil {
		return nil, fmt.Errorf("parse creator id: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(techTags), &p.TechTags); err != nil {
		return nil, fmt.Errorf("unmarshal tech tags: %w", err)
	}

	return p, nil
}

func collectProjects(rows *sql.Rows) ([]*Project, error) {
	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func marshalTags(p *Project) (string, string, error) {
	tags, err := json.Marshal(emptyIfNil(p.Tags))
	if err != nil {
		return "", "", fmt.Errorf("marshal tags: %w", err)
	}
	techTags, err := json.Marshal(emptyIfNil(p.TechTags))
	if err != nil {
		return "", "", fmt.Errorf("marshal tech tags: %w", err)
	}
	return string(tags), string(techTags), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
