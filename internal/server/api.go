package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// APIHandler handles the station's local status API
type APIHandler struct {
	snapshots SnapshotSource
	daily     DailySource
	info      *models.StationInfo
	logger    zerolog.Logger

	mu    sync.RWMutex
	stats map[string]StatsFunc
}

// NewAPIHandler creates a new API handler. daily may be nil.
func NewAPIHandler(snapshots SnapshotSource, daily DailySource, info *models.StationInfo, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		snapshots: snapshots,
		daily:     daily,
		info:      info,
		logger:    logger,
		stats:     make(map[string]StatsFunc),
	}
}

// AddStats registers a component reported by /api/stats under name
func (api *APIHandler) AddStats(name string, fn StatsFunc) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.stats[name] = fn
}

// HandleCurrent returns the latest snapshot
func (api *APIHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	msg, ok := api.snapshots.Current()
	if !ok {
		http.Error(w, "No snapshots available", http.StatusNotFound)
		return
	}
	api.writeJSON(w, http.StatusOK, msg)
}

// HandleHistory returns recent snapshots for charting
func (api *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, maxHistoryLimit)
		}
	}
	api.writeJSON(w, http.StatusOK, api.snapshots.Latest(limit))
}

// HandleDaily returns today's persisted record
func (api *APIHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	if api.daily == nil {
		http.Error(w, "Daily statistics unavailable", http.StatusServiceUnavailable)
		return
	}
	record, err := api.daily.Daily()
	if err != nil {
		api.logger.Error().Err(err).Msg("Failed to load daily record")
		http.Error(w, "Failed to load daily record", http.StatusInternalServerError)
		return
	}
	api.writeJSON(w, http.StatusOK, record)
}

// HandleStats returns store statistics plus every registered component
func (api *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"snapshots": api.snapshots.Stats(),
	}

	api.mu.RLock()
	names := make([]string, 0, len(api.stats))
	for name := range api.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := api.stats[name]()
		if err != nil {
			api.logger.Warn().Err(err).Str("component", name).Msg("Failed to collect stats")
			out[name] = map[string]string{"error": err.Error()}
			continue
		}
		out[name] = v
	}
	api.mu.RUnlock()

	api.writeJSON(w, http.StatusOK, out)
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status    string    `json:"status"`
	StationID string    `json:"station_id,omitempty"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
}

// HandleHealth reports liveness and the time of the last wake cycle
func (api *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if api.info != nil {
		resp.StationID = api.info.ID
		resp.Version = api.info.Version
		resp.Uptime = api.info.Uptime().Truncate(time.Second).String()
	}
	if msg, ok := api.snapshots.Current(); ok {
		resp.LastCycle = msg.Timestamp
	}
	api.writeJSON(w, http.StatusOK, resp)
}

func (api *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
