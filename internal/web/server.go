// Package web exposes the engine's operations over HTTP: one endpoint per
// operation, one JSON response envelope with a typed error code.
package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/folioworks/discovery/internal/engine"
	"github.com/folioworks/discovery/internal/recommend"
	"github.com/folioworks/discovery/internal/search"
	"github.com/folioworks/discovery/internal/storage"
	"github.com/folioworks/discovery/internal/trending"
)

// Server handles HTTP requests against the engine.
type Server struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// NewServer creates the HTTP layer over an engine.
func NewServer(eng *engine.Engine, log zerolog.Logger) *Server {
	return &Server{
		engine: eng,
		log:    log.With().Str("component", "web").Logger(),
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/projects", s.handleCreateProject)
		r.Put("/projects/{id}", s.handleUpdateProject)
		r.Delete("/projects/{id}", s.handleDeleteProject)
		r.Get("/projects/{id}/similar", s.handleSimilar)

		r.Post("/engagement", s.handleRecordEngagement)
		r.Post("/follows", s.handleFollow)
		r.Delete("/follows", s.handleUnfollow)

		r.Get("/search", s.handleSearch)
		r.Get("/trending", s.handleTrending)
		r.Get("/recommendations", s.handleRecommendations)
		r.Post("/recommendations/clicks", s.handleTrackClick)

		r.Post("/reindex", s.handleReindex)
		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)
	})

	return r
}

// envelope is the single response shape for every endpoint.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	code := "internal"
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, engine.ErrNotFound):
		code, status = "not_found", http.StatusNotFound
	case errors.Is(err, engine.ErrValidation):
		code, status = "validation_failure", http.StatusBadRequest
	case errors.Is(err, engine.ErrDependencyUnavailable):
		code, status = "dependency_unavailable", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := envelope{Error: &apiError{Code: code, Message: err.Error()}}
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		s.log.Error().Err(encErr).Msg("failed to encode error response")
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	resp := envelope{Error: &apiError{Code: "validation_failure", Message: msg}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("failed to encode error response")
	}
}

// projectJSON is the wire shape of a project; the embedding BLOB stays
// internal.
type projectJSON struct {
	ID              string   `json:"id"`
	CreatorID       string   `json:"creator_id"`
	CreatorName     string   `json:"creator_name"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Content         string   `json:"content,omitempty"`
	Tags            []string `json:"tags"`
	TechTags        []string `json:"tech_tags"`
	Published       bool     `json:"published"`
	ViewCount       int64    `json:"view_count"`
	EngagementScore float64  `json:"engagement_score"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func toProjectJSON(p *storage.Project) projectJSON {
	return projectJSON{
		ID:              p.ID.String(),
		CreatorID:       p.CreatorID.String(),
		CreatorName:     p.CreatorName,
		Title:           p.Title,
		Description:     p.Description,
		Content:         p.Content,
		Tags:            p.Tags,
		TechTags:        p.TechTags,
		Published:       p.Published,
		ViewCount:       p.ViewCount,
		EngagementScore: p.EngagementScore,
		CreatedAt:       p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type projectRequest struct {
	CreatorID   string   `json:"creator_id"`
	CreatorName string   `json:"creator_name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	TechTags    []string `json:"tech_tags"`
	Published   bool     `json:"published"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	creatorID, err := uuid.Parse(req.CreatorID)
	if err != nil {
		s.badRequest(w, "invalid creator_id")
		return
	}

	p, err := s.engine.CreateProject(engine.CreateProjectInput{
		CreatorID:   creatorID,
		CreatorName: req.CreatorName,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Tags:        req.Tags,
		TechTags:    req.TechTags,
		Published:   req.Published,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, toProjectJSON(p))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid project id")
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	p, err := s.engine.UpdateProject(id, engine.UpdateProjectInput{
		CreatorName: req.CreatorName,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Tags:        req.Tags,
		TechTags:    req.TechTags,
		Published:   req.Published,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, toProjectJSON(p))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid project id")
		return
	}

	if err := s.engine.DeleteProject(id); err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]string{"deleted": id.String()})
}

type engagementRequest struct {
	UserID    string `json:"user_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
	Referrer  string `json:"referrer,omitempty"`
}

func (s *Server) handleRecordEngagement(w http.ResponseWriter, r *http.Request) {
	var req engagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	in := engine.RecordEngagementInput{
		Action:    storage.Action(req.Action),
		SessionID: req.SessionID,
		Referrer:  req.Referrer,
	}
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			s.badRequest(w, "invalid user_id")
			return
		}
		in.UserID = uuid.NullUUID{UUID: id, Valid: true}
	}
	if req.ProjectID != "" {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			s.badRequest(w, "invalid project_id")
			return
		}
		in.ProjectID = uuid.NullUUID{UUID: id, Valid: true}
	}

	if err := s.engine.RecordEngagement(in); err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusAccepted, map[string]string{"recorded": req.Action})
}

type followRequest struct {
	FollowerID string `json:"follower_id"`
	CreatorID  string `json:"creator_id"`
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	follower, creator, ok := s.parseFollow(w, r)
	if !ok {
		return
	}
	if err := s.engine.Follow(follower, creator); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, map[string]bool{"following": true})
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	follower, creator, ok := s.parseFollow(w, r)
	if !ok {
		return
	}
	if err := s.engine.Unfollow(follower, creator); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"following": false})
}

func (s *Server) parseFollow(w http.ResponseWriter, r *http.Request) (follower, creator uuid.UUID, ok bool) {
	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	follower, err := uuid.Parse(req.FollowerID)
	if err != nil {
		s.badRequest(w, "invalid follower_id")
		return
	}
	creator, err = uuid.Parse(req.CreatorID)
	if err != nil {
		s.badRequest(w, "invalid creator_id")
		return
	}
	return follower, creator, true
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid project id")
		return
	}

	limit := queryInt(r, "limit", 10)

	var excludeCreator *uuid.UUID
	if raw := r.URL.Query().Get("exclude_creator"); raw != "" {
		creator, err := uuid.Parse(raw)
		if err != nil {
			s.badRequest(w, "invalid exclude_creator")
			return
		}
		excludeCreator = &creator
	}

	matches, err := s.engine.SimilarProjects(id, limit, excludeCreator)
	if err != nil {
		s.respondError(w, err)
		return
	}

	type matchJSON struct {
		Project projectJSON `json:"project"`
		Score   float64     `json:"score"`
	}
	out := make([]matchJSON, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchJSON{Project: toProjectJSON(m.Project), Score: m.Score})
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	window := trending.Window(r.URL.Query().Get("window"))
	if window == "" {
		window = trending.WindowDay
	}
	limit := queryInt(r, "limit", 10)

	scored, err := s.engine.TrendingProjects(window, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	type trendJSON struct {
		Project  projectJSON `json:"project"`
		Velocity float64     `json:"velocity"`
	}
	out := make([]trendJSON, 0, len(scored))
	for _, t := range scored {
		out = append(out, trendJSON{Project: toProjectJSON(t.Project), Velocity: t.Velocity})
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		s.badRequest(w, "invalid user_id")
		return
	}
	limit := queryInt(r, "limit", 10)

	recs, err := s.engine.PersonalizedRecommendations(userID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	type recJSON struct {
		Project projectJSON      `json:"project"`
		Score   float64          `json:"score"`
		Reason  recommend.Reason `json:"reason"`
	}
	out := make([]recJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recJSON{Project: toProjectJSON(rec.Project), Score: rec.Score, Reason: rec.Reason})
	}
	s.respond(w, http.StatusOK, out)
}

type clickRequest struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Reason    string `json:"reason"`
	Position  int    `json:"position"`
}

func (s *Server) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		s.badRequest(w, "invalid user_id")
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		s.badRequest(w, "invalid project_id")
		return
	}

	var reason recommend.Reason
	switch req.Reason {
	case recommend.ReasonFollowedCreator.String():
		reason = recommend.ReasonFollowedCreator
	case recommend.ReasonSimilarContent.String():
		reason = recommend.ReasonSimilarContent
	case recommend.ReasonTrending.String():
		reason = recommend.ReasonTrending
	default:
		s.badRequest(w, "unknown reason")
		return
	}

	s.engine.TrackRecommendationClick(userID, projectID, reason, req.Position)
	s.respond(w, http.StatusAccepted, map[string]bool{"tracked": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := search.QueryRequest{
		Text:     q.Get("q"),
		Tags:     q["tag"],
		TechTags: q["tech"],
		Sort:     search.SortOrder(q.Get("sort")),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	}

	result, err := s.engine.SearchProjects(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.ReindexAll(queryInt(r, "batch_size", 0))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, stats)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.engine.CollectStats()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.engine.HealthCheck()

	// Advisory only: the endpoint reports degradation but stays 200 so
	// health never gates request handling.
	s.respond(w, http.StatusOK, health)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
