package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/agent-cache/pkg/agentcache"
	"github.com/Sternrassler/agent-cache/pkg/logging"
)

// maxResponseBody caps PUT payloads at 1 MiB.
const maxResponseBody = 1 << 20

// server holds the sidecar's HTTP dependencies.
type server struct {
	manager *agentcache.Manager
	redis   *redis.Client
	logger  zerolog.Logger
}

func newServer(manager *agentcache.Manager, redisClient *redis.Client) *server {
	return &server{
		manager: manager,
		redis:   redisClient,
		logger:  logging.NewLogger("cache-sidecar"),
	}
}

// routes wires every endpoint behind the request logging middleware.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/agents/{agentID}/response", s.handleGetResponse)
	mux.HandleFunc("PUT /v1/agents/{agentID}/response", s.handlePutResponse)
	mux.HandleFunc("POST /v1/invalidate", s.handleInvalidate)
	mux.HandleFunc("POST /v1/cleanup", s.handleCleanup)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	return s.requestLogger(mux)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "redis unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// responseQuery decodes the shared query parameters of the response
// endpoints: input, model, temperature, max_tokens.
func responseQuery(r *http.Request) (input string, params agentcache.ResponseParams, err error) {
	q := r.URL.Query()

	input = q.Get("input")
	if input == "" {
		return "", params, fmt.Errorf("query parameter input is required")
	}
	model := q.Get("model")
	if model == "" {
		return "", params, fmt.Errorf("query parameter model is required")
	}

	params = agentcache.DefaultResponseParams(model)
	if v := q.Get("temperature"); v != "" {
		params.Temperature, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return "", params, fmt.Errorf("invalid temperature %q", v)
		}
	}
	if v := q.Get("max_tokens"); v != "" {
		params.MaxTokens, err = strconv.Atoi(v)
		if err != nil {
			return "", params, fmt.Errorf("invalid max_tokens %q", v)
		}
	}
	return input, params, nil
}

func (s *server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	input, params, err := responseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, ok := s.manager.CachedResponse(r.Context(), agentID, input, params)
	if !ok {
		writeError(w, http.StatusNotFound, "not cached")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (s *server) handlePutResponse(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	input, params, err := responseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ttl := time.Duration(0)
	if v := r.URL.Query().Get("ttl_seconds"); v != "" {
		seconds, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ttl_seconds %q", v))
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxResponseBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	if !s.manager.CacheResponse(r.Context(), agentID, input, string(body), params, ttl) {
		writeError(w, http.StatusServiceUnavailable, "store failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agent_id"`
		Model   string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var invalidated int
	switch {
	case req.AgentID != "" && req.Model != "":
		writeError(w, http.StatusBadRequest, "provide either agent_id or model, not both")
		return
	case req.AgentID != "":
		invalidated = s.manager.InvalidateAgentCache(r.Context(), req.AgentID)
	case req.Model != "":
		invalidated = s.manager.InvalidateModelCache(r.Context(), req.Model)
	default:
		writeError(w, http.StatusBadRequest, "agent_id or model is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": invalidated})
}

func (s *server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	result := s.manager.PeriodicCleanup(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{
		"expired_removed": result.ExpiredRemoved,
		"evicted":         result.Evicted,
	})
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Stats())
}

// requestLogger tags every request with a uuid and logs method, path,
// status, and duration.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.NewLogger("cache-sidecar").Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
