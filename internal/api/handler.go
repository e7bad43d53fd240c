package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/felixbrucker/chia-canary/internal/store"
)

// snapshotEvents is how many recent events a snapshot carries.
const snapshotEvents = 20

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads state from the store and returns JSON responses.
type Handler struct {
	store   *store.Store
	machine string
	mux     *http.ServeMux
}

// New creates a Handler wired to the given store and registers all routes.
func New(st *store.Store, machine string) http.Handler {
	h := &Handler{store: st, machine: machine, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/logs", h.listLogs)
	h.mux.HandleFunc("/api/v1/logs/", h.getLog) // subtree, extracts {name}
	h.mux.HandleFunc("/api/v1/events", h.events)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /api/v1/health: overall state and counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	list := h.store.List()
	resp := HealthResponse{
		Machine:    h.machine,
		LogCount:   len(list),
		EventCount: len(h.store.Events(0)),
	}
	if len(list) == 0 {
		resp.State = "unknown"
		jsonResp(w, http.StatusOK, resp)
		return
	}

	for _, st := range list {
		if st.Degraded() {
			resp.DegradedCount++
		} else {
			resp.HealthyCount++
		}
	}
	resp.State = "healthy"
	if resp.DegradedCount > 0 {
		resp.State = "degraded"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listLogs returns GET /api/v1/logs: every watched log.
func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.logs())
}

// getLog returns GET /api/v1/logs/{name}. Names match case-insensitively.
func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/logs/")
	if name == "" {
		h.listLogs(w, r)
		return
	}

	for _, st := range h.store.List() {
		if strings.EqualFold(st.Log, name) {
			jsonResp(w, http.StatusOK, toLogResponse(st))
			return
		}
	}
	jsonErr(w, http.StatusNotFound, "log not found")
}

// events returns GET /api/v1/events?limit=N: recent events, newest first.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	jsonResp(w, http.StatusOK, h.store.Events(limit))
}

// snapshot returns GET /api/v1/snapshot: every log plus recent events.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.machine))
}

// BuildSnapshot assembles the snapshot payload. The WebSocket hub pushes the
// same document.
func BuildSnapshot(st *store.Store, machine string) SnapshotResponse {
	list := st.List()
	logs := make([]LogResponse, 0, len(list))
	for _, s := range list {
		logs = append(logs, toLogResponse(s))
	}
	return SnapshotResponse{
		Machine:     machine,
		Logs:        logs,
		Events:      st.Events(snapshotEvents),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *Handler) logs() []LogResponse {
	list := h.store.List()
	out := make([]LogResponse, 0, len(list))
	for _, st := range list {
		out = append(out, toLogResponse(st))
	}
	return out
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// toLogResponse maps a store.Status to its JSON representation.
func toLogResponse(st store.Status) LogResponse {
	state := "healthy"
	if st.Degraded() {
		state = "degraded"
	}
	resp := LogResponse{
		Log:           st.Log,
		Path:          st.Path,
		State:         state,
		States:        st.States,
		Plots:         st.Plots,
		ScanDuration:  st.ScanDuration,
		LastHeartbeat: st.LastHeartbeat,
		Errors:        st.Errors,
		DriveErrors:   st.DriveErrors,
		Skipped:       st.Skipped,
		Events:        st.Events,
		Diagnostics:   computeDiagnostics(st),
	}
	if !st.UpdatedAt.IsZero() {
		resp.UpdatedAt = st.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
