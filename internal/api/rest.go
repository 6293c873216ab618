// Package api serves the registry state to render consumers over HTTP
// and WebSocket.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"modwatch/internal/logging"
	"modwatch/internal/metrics"
	"modwatch/internal/resolver"
)

const maxRequestBody = 1 << 16

type RestHandler struct {
	Resolver *resolver.Resolver
	Logger   *logging.Logger
	Metrics  *metrics.Registry
}

type statusResponse struct {
	AllMatched  bool      `json:"all_matched"`
	TotalMods   int       `json:"total_mods"`
	MatchedMods int       `json:"matched_mods"`
	WatchedDirs []string  `json:"watched_dirs"`
	ServerTime  time.Time `json:"server_time"`
}

type pathRequest struct {
	Path string `json:"path"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *RestHandler) handleMods(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, http.MethodGet)
	}
	writeJSON(w, http.StatusOK, h.Resolver.Snapshot())
	return nil
}

func (h *RestHandler) handleStatus(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, http.MethodGet)
	}

	snapshot := h.Resolver.Snapshot()
	matched := 0
	for _, mod := range snapshot.Mods {
		if mod.Matched {
			matched++
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		AllMatched:  snapshot.AllMatched,
		TotalMods:   len(snapshot.Mods),
		MatchedMods: matched,
		WatchedDirs: h.Resolver.WatchedDirs(),
		ServerTime:  time.Now().UTC(),
	})
	return nil
}

func (h *RestHandler) handleAddFolder(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, http.MethodPost)
	}
	request, apiErr := decodePathRequest(r)
	if apiErr != nil {
		return apiErr
	}
	if err := h.Resolver.AddFolder(request.Path); err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "watching"})
	return nil
}

func (h *RestHandler) handleSubmitFile(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, http.MethodPost)
	}
	request, apiErr := decodePathRequest(r)
	if apiErr != nil {
		return apiErr
	}
	if err := h.Resolver.SubmitFile(request.Path); err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "hashing"})
	return nil
}

func (h *RestHandler) handleLogs(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, http.MethodGet)
	}
	entries := h.Logger.Recent()
	if entries == nil {
		entries = []logging.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
	return nil
}

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, http.MethodGet)
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	registry := h.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	_ = registry.WritePrometheus(w)
	return nil
}

func decodePathRequest(r *http.Request) (pathRequest, *apiError) {
	var request pathRequest
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return request, &apiError{Status: http.StatusBadRequest, Message: "read request body failed"}
	}
	if err := json.Unmarshal(payload, &request); err != nil {
		return request, &apiError{Status: http.StatusBadRequest, Message: "invalid JSON body"}
	}
	if request.Path == "" {
		return request, &apiError{Status: http.StatusBadRequest, Message: "path is required"}
	}
	return request, nil
}

// RegisterRoutes wires the REST and WebSocket endpoints onto mux.
func RegisterRoutes(mux *http.ServeMux, engine *resolver.Resolver, logger *logging.Logger, registry *metrics.Registry, authToken string) {
	rest := &RestHandler{Resolver: engine, Logger: logger, Metrics: registry}
	stream := &SnapshotStreamHandler{Resolver: engine, Logger: logger, AuthToken: authToken}

	route := func(pattern string, handler apiHandler) {
		mux.Handle(pattern, loggingMiddleware(logger, jsonErrorMiddleware(authMiddleware(authToken, handler))))
	}

	route("/api/mods", rest.handleMods)
	route("/api/status", rest.handleStatus)
	route("/api/folders", rest.handleAddFolder)
	route("/api/files", rest.handleSubmitFile)
	route("/api/logs", rest.handleLogs)
	route("/metrics", rest.handleMetrics)
	mux.Handle("/ws/mods", stream)
}
