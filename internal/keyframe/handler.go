package keyframe

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"formation-keyframes/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// MatchHeader carries the lookup result kind on GET /formations/at/{timestamp}.
const MatchHeader = "X-Keyframe-Match"

// UpdatedMessage is the status string returned by a successful update.
const UpdatedMessage = "Formation updated"

// Handler exposes the keyframe bridge endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// GetFormation handles GET /formations/at/{timestamp}.
// The body is the formation JSON, or null when the timestamp is outside the timeline.
func (h *Handler) GetFormation(w http.ResponseWriter, r *http.Request) {
	ts, ok := parseInt32(chi.URLParam(r, "timestamp"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f, match, err := h.svc.GetFormation(ts)
	if err != nil {
		h.writeError(w, "get formation", err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveLookup(match.String())
	}

	w.Header().Set(MatchHeader, match.String())
	if match == MatchNone {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// UpdateFormation handles PUT /formations/at/{timestamp}.
// Body: a formation, e.g. { "id": 1, "audio_track": "", "start_time": 0, "end_time": 500, "entities": [] }.
func (h *Handler) UpdateFormation(w http.ResponseWriter, r *http.Request) {
	ts, ok := parseInt32(chi.URLParam(r, "timestamp"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var payload Formation
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Debug("invalid formation body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	stored, inserted, err := h.svc.UpdateFormation(ts, payload)
	if err != nil {
		h.writeError(w, "update formation", err)
		return
	}

	op := "replace"
	if inserted {
		op = "insert"
	}
	h.log.Info("formation stored",
		slog.Int("timestamp", int(ts)),
		slog.Int("formation_id", int(stored.ID)),
		slog.String("op", op))
	if h.metrics != nil {
		h.metrics.IncMutations(op)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(UpdatedMessage))
}

// AddFormation handles POST /formations.
func (h *Handler) AddFormation(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.AddFormation()
	if err != nil {
		h.writeError(w, "add formation", err)
		return
	}

	h.log.Info("formation appended", slog.Int("formation_id", int(f.ID)))
	if h.metrics != nil {
		h.metrics.IncMutations("append")
	}
	writeJSON(w, http.StatusCreated, f)
}

// AddEntity handles POST /formations/{formation_id}/entities.
// Body: { "id": 3, "name": "3", "position": { "x": 1.5, "y": 2 } }.
func (h *Handler) AddEntity(w http.ResponseWriter, r *http.Request) {
	formationID, ok := parseInt32(chi.URLParam(r, "formation_id"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var e Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		h.log.Debug("invalid entity body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.AddEntity(formationID, e); err != nil {
		h.writeError(w, "add entity", err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncMutations("add_entity")
	}
	writeJSON(w, http.StatusCreated, e)
}

// AddNewEntity handles POST /formations/{formation_id}/entities/new.
func (h *Handler) AddNewEntity(w http.ResponseWriter, r *http.Request) {
	formationID, ok := parseInt32(chi.URLParam(r, "formation_id"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	e, err := h.svc.AddNewEntity(formationID)
	if err != nil {
		h.writeError(w, "add new entity", err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncMutations("new_entity")
	}
	writeJSON(w, http.StatusCreated, e)
}

// GetTimeline handles GET /timeline.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.svc.Timeline()
	if err != nil {
		h.writeError(w, "get timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// writeError maps service errors to status codes. The body is the error
// string, which is what the bridge hands back to the host on failure.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
		h.log.Info(op+" rejected", slog.String("error", err.Error()))
	case errors.Is(err, ErrRange):
		status = http.StatusBadRequest
		h.log.Info(op+" rejected", slog.String("error", err.Error()))
	case errors.Is(err, ErrPoisoned):
		status = http.StatusServiceUnavailable
		h.log.Error(op+" refused", slog.String("error", err.Error()))
	default:
		h.log.Error(op+" failed", slog.String("error", err.Error()))
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseInt32(s string) (int32, bool) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}
