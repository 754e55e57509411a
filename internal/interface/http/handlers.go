package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pp-arena/pp-arena/internal/application/command"
	"github.com/pp-arena/pp-arena/internal/application/query"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Time   time.Time         `json:"time"`
}

// handleHealth reports liveness: the process is up and serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC(),
	})
}

// handleReady reports readiness: every backing store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.deps.HealthCheckers))
	healthy := true

	for name, checker := range s.deps.HealthCheckers {
		if err := checker.Ping(r.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	statusText := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}

	writeJSON(w, status, healthResponse{
		Status: statusText,
		Checks: checks,
		Time:   time.Now().UTC(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLIC HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard returns the live standings of the open tournament.
// GET /api/v1/leaderboard?limit=50&offset=0
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := query.GetLeaderboardQuery{
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}

	result, err := s.deps.GetLeaderboard.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetHistory returns past tournaments, newest first.
// GET /api/v1/history?track=weekly&limit=10&offset=0
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	q := query.GetHistoryQuery{
		Track:  r.URL.Query().Get("track"),
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}

	result, err := s.deps.GetHistory.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListPlayers returns the all-time rating table for one track.
// GET /api/v1/players?track=weekly&limit=50
func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	q := query.ListPlayersQuery{
		Track: r.URL.Query().Get("track"),
		Limit: queryInt(r, "limit", 0),
	}

	result, err := s.deps.ListPlayers.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetPlayer returns one player's all-time profile. The path segment is
// an osu! user ID when numeric, a nickname otherwise.
// GET /api/v1/players/{id}
func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	q := query.GetPlayerStatsQuery{}
	if userID, err := strconv.ParseInt(id, 10, 64); err == nil && userID > 0 {
		q.UserID = userID
	} else {
		q.Nickname = id
	}

	result, err := s.deps.GetPlayerStats.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetPool returns the map pool and cumulative pool standings.
// GET /api/v1/pool
func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetPool.Handle(r.Context())
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type participateRequest struct {
	UserID int64 `json:"user_id"`
}

// handleParticipate registers a player into the open tournament.
// POST /api/v1/participate {"user_id": 124493}
func (s *Server) handleParticipate(w http.ResponseWriter, r *http.Request) {
	var req participateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed request body")
		return
	}

	result, err := s.deps.RegisterParticipant.Handle(r.Context(), command.RegisterParticipantCommand{
		UserID: shared.OsuUserID(req.UserID),
	})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":       result.UserID.Int64(),
		"nickname":      result.Nickname.String(),
		"rating_start":  result.RatingStart.Float64(),
		"position":      result.Position.Int(),
		"registered_at": result.RegisteredAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleAdminRefresh forces a live standings refresh out of schedule.
// POST /api/v1/admin/refresh
func (s *Server) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.RefreshLeaderboard.Handle(r.Context(), command.RefreshLeaderboardCommand{})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"participants": result.TotalParticipants,
		"updated":      result.UpdatedCount,
		"repositioned": result.RepositionedCount,
		"failed":       result.FailedCount,
		"duration_ms":  result.Duration.Milliseconds(),
	})
}

// handleAdminClose closes the open tournament out of schedule.
// POST /api/v1/admin/close
func (s *Server) handleAdminClose(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.CloseTournament.Handle(r.Context(), command.CloseTournamentCommand{
		ClosedAt: time.Now().UTC(),
	})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id":  result.SnapshotID,
		"participants": result.ParticipantCount,
		"pool_entries": result.PoolEntryCount,
		"closed_at":    result.ClosedAt,
	})
}

type reconcileRequest struct {
	// Rebuild clears every annotation first and replays all of history.
	Rebuild bool `json:"rebuild"`
}

// handleAdminReconcile triggers a reconciliation sweep, optionally a full
// rebuild from scratch.
// POST /api/v1/admin/reconcile {"rebuild": false}
func (s *Server) handleAdminReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed request body")
			return
		}
	}

	var (
		stats interface{}
		err   error
	)
	if req.Rebuild {
		stats, err = s.deps.Reconciler.Rebuild(r.Context())
	} else {
		stats, err = s.deps.Reconciler.Run(r.Context(), nil)
	}
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type addPoolMapRequest struct {
	MapID int64  `json:"map_id"`
	Title string `json:"title"`
}

// handleAdminAddPoolMap adds a beatmap to the fixed pool.
// POST /api/v1/admin/pool/maps {"map_id": 129891, "title": "..."}
func (s *Server) handleAdminAddPoolMap(w http.ResponseWriter, r *http.Request) {
	var req addPoolMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed request body")
		return
	}

	err := s.deps.AddPoolMap.Handle(r.Context(), command.AddPoolMapCommand{
		MapID: req.MapID,
		Title: req.Title,
	})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"map_id": req.MapID,
		"title":  req.Title,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// writeHandlerError maps domain errors onto HTTP statuses.
func (s *Server) writeHandlerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())
	case shared.IsExternalService(err):
		writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", "The osu! API is unavailable, try again later")
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}

// queryInt extracts an integer query parameter with a default value.
func queryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}
