package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/pager"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
)

// Route patterns, also used as metric path labels.
const (
	RouteSearch          = "/api/v1/search"
	RouteIndexStats      = "/api/v1/index/stats"
	RouteIndexRebuild    = "/api/v1/index/rebuild"
	RouteCacheStats      = "/api/v1/cache/stats"
	RouteCacheInvalidate = "/api/v1/cache/invalidate"
)

type Searcher interface {
	Search(ctx context.Context, query string) (*executor.SearchResult, string, error)
}

type IndexAdmin interface {
	Status() indexer.Status
	TryRebuild(ctx context.Context) error
}

type Handler struct {
	searcher Searcher
	admin    IndexAdmin
	cache    *cache.QueryCache
	pageSize int
	logger   *slog.Logger
}

type SearchResponse struct {
	Query      string                 `json:"query"`
	Tokens     []string               `json:"tokens"`
	Generation string                 `json:"generation"`
	TotalHits  int                    `json:"total_hits"`
	Page       int                    `json:"page"`
	Pages      int                    `json:"pages"`
	PageSize   int                    `json:"page_size"`
	Cache      string                 `json:"cache"`
	LatencyMs  int64                  `json:"latency_ms"`
	Results    []executor.MatchedLine `json:"results"`
}

// New builds the HTTP handler. queryCache may be nil.
func New(s Searcher, admin IndexAdmin, queryCache *cache.QueryCache, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = pager.DefaultPageSize
	}
	return &Handler{
		searcher: s,
		admin:    admin,
		cache:    queryCache,
		pageSize: pageSize,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+RouteSearch, h.Search)
	mux.HandleFunc("GET "+RouteIndexStats, h.IndexStats)
	mux.HandleFunc("POST "+RouteIndexRebuild, h.Rebuild)
	mux.HandleFunc("GET "+RouteCacheStats, h.CacheStats)
	mux.HandleFunc("POST "+RouteCacheInvalidate, h.CacheInvalidate)
}

func Routes() []string {
	return []string{RouteSearch, RouteIndexStats, RouteIndexRebuild, RouteCacheStats, RouteCacheInvalidate}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = parsed
	}

	result, cacheStatus, err := h.searcher.Search(ctx, query)
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeAppError(w, err, "search failed")
		return
	}

	p := pager.New(result.Results, h.pageSize)
	lines, err := p.Page(page)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	latency := time.Since(start)
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"page", page,
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      query,
		Tokens:     result.Tokens,
		Generation: result.Generation,
		TotalHits:  result.TotalHits,
		Page:       page,
		Pages:      p.Pages(),
		PageSize:   p.Size(),
		Cache:      cacheStatus,
		LatencyMs:  latency.Milliseconds(),
		Results:    lines,
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	status := h.admin.Status()
	if !status.Ready {
		h.writeAppError(w, apperrors.ErrIndexNotReady, "index not ready")
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// Rebuild runs a whole-corpus rebuild in the request and answers 409 when
// one is already running.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	err := h.admin.TryRebuild(r.Context())
	if errors.Is(err, apperrors.ErrRebuildInProgress) {
		h.writeError(w, http.StatusConflict, "rebuild already in progress")
		return
	}
	if err != nil {
		log.Error("rebuild failed", "error", err)
		h.writeAppError(w, err, "rebuild failed")
		return
	}
	h.writeJSON(w, http.StatusOK, h.admin.Status())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError picks the status from err and keeps internal detail out of
// 5xx bodies.
func (h *Handler) writeAppError(w http.ResponseWriter, err error, fallback string) {
	status := apperrors.HTTPStatusCode(err)
	message := fallback
	if status < http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		message = err.Error()
	}
	h.writeError(w, status, message)
}
