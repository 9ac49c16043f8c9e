// Package api exposes the HTTP surface of the ranking core:
// leaderboard reads, the review-event hook that triggers invalidation
// and broadcast, token revocation, and operational endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/skillforge/skillforge/internal/auth"
	"github.com/skillforge/skillforge/internal/cache"
	"github.com/skillforge/skillforge/internal/logging"
	"github.com/skillforge/skillforge/internal/metrics"
	"github.com/skillforge/skillforge/internal/ranking"
	"github.com/skillforge/skillforge/internal/store"
)

// Handler handles the ranking core's HTTP requests.
type Handler struct {
	Engine     *ranking.Engine
	Store      *store.PostgresStore
	Cache      *cache.Store
	Validator  *auth.JWTValidator
	Revocation *auth.RevocationStore
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/leaderboard", h.GetLeaderboard)
	mux.HandleFunc("GET /v1/leaderboard/stats", h.GetStats)
	mux.HandleFunc("GET /v1/users/{id}/rank", h.GetUserRank)

	mux.Handle("POST /v1/reviews/{id}/transition", auth.RequireAuth(http.HandlerFunc(h.TransitionReview)))
	mux.Handle("POST /v1/auth/logout", auth.RequireAuth(http.HandlerFunc(h.Logout)))

	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /v1/cache/stats", h.CacheStats)
}

// GetLeaderboard handles GET /v1/leaderboard?scope=&range=&page=&pageSize=
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	scope, err := ranking.ParseScope(q.Get("scope"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rng, err := ranking.ParseTimeRange(q.Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("pageSize"), 20)

	entries, total, err := h.Engine.LeaderboardPage(r.Context(), scope, rng, page, pageSize)
	if err != nil {
		logging.Op().Error("leaderboard read failed", "scope", scope.String(), "error", err)
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scope":     scope.String(),
		"timeRange": string(rng),
		"entries":   entries,
		"total":     total,
		"page":      page,
		"pageSize":  pageSize,
	})
}

// GetStats handles GET /v1/leaderboard/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.BoardStats(r.Context())
	if err != nil {
		logging.Op().Error("stats read failed", "error", err)
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetUserRank handles GET /v1/users/{id}/rank
func (h *Handler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return
	}
	rank, err := h.Engine.UserRank(r.Context(), userID)
	if err != nil {
		logging.Op().Error("user rank read failed", "user", userID, "error", err)
		http.Error(w, "rank unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

// TransitionReview handles POST /v1/reviews/{id}/transition. A review
// moving a submission out of pending invalidates every cached board
// and pushes refreshed entries to the real-time layer.
func (h *Handler) TransitionReview(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if !id.HasRole("reviewer") && !id.HasRole("admin") {
		http.Error(w, "reviewer role required", http.StatusForbidden)
		return
	}

	submissionID := r.PathValue("id")

	var req struct {
		Status string `json:"status"`
		Score  int    `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	status := ranking.ReviewStatus(req.Status)
	if status != ranking.ReviewApproved && status != ranking.ReviewRejected {
		http.Error(w, "status must be approved or rejected", http.StatusBadRequest)
		return
	}

	event, err := h.Store.ReviewSubmission(r.Context(), submissionID, status, req.Score)
	if err != nil {
		http.Error(w, "submission not found or not pending", http.StatusConflict)
		return
	}

	if err := h.Engine.HandleReviewTransition(r.Context(), *event); err != nil {
		// The review itself landed; a failed refresh only delays the
		// next read slightly.
		logging.Op().Warn("post-review refresh failed", "submission", submissionID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submissionId": event.SubmissionID,
		"status":       string(event.Status),
	})
}

// Logout handles POST /v1/auth/logout. The current token is
// blacklisted for its remaining lifetime; with allDevices, every other
// blacklist entry for the user is cleared first so the fresh entries
// are authoritative.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var req struct {
		AllDevices bool `json:"allDevices"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.AllDevices {
		if _, err := h.Revocation.BlacklistAll(r.Context(), id.UserID); err != nil {
			logging.Op().Warn("blacklist-all failed", "user", id.UserID, "error", err)
		}
	}

	ttl := h.Validator.RemainingLifetime(id.Token)
	if err := h.Revocation.Blacklist(r.Context(), id.Token, id.UserID, ttl); err != nil {
		if errors.Is(err, cache.ErrClosed) {
			http.Error(w, "service shutting down", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"revoked": true})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "postgres": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// CacheStats handles GET /v1/cache/stats, a diagnostic for operators.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Op().Warn("encode response failed", "error", err)
	}
}

func intParam(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
