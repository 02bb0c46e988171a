package keyframe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"formation-keyframes/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestHandler(t *testing.T, store Store) (*Handler, *metrics.Metrics) {
	t.Helper()
	repo, err := NewLockedRepository(store)
	if err != nil {
		t.Fatalf("NewLockedRepository: %v", err)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	met := metrics.New()
	return NewHandler(NewService(repo, log), log, met), met
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/timeline", h.GetTimeline)
	r.Post("/formations", h.AddFormation)
	r.Get("/formations/at/{timestamp}", h.GetFormation)
	r.Put("/formations/at/{timestamp}", h.UpdateFormation)
	r.Post("/formations/{formation_id}/entities", h.AddEntity)
	r.Post("/formations/{formation_id}/entities/new", h.AddNewEntity)
	return r
}

func serve(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_GetFormation_exact(t *testing.T) {
	h, met := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	rec := serve(r, http.MethodGet, "/formations/at/250", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(MatchHeader); got != "exact" {
		t.Errorf("expected match header exact, got %q", got)
	}

	var f Formation
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.ID != 0 || f.StartTime != 0 || f.EndTime != 500 {
		t.Errorf("unexpected formation %+v", f)
	}
	if n := testutil.ToFloat64(met.LookupCounter("exact")); n != 1 {
		t.Errorf("expected 1 exact lookup recorded, got %v", n)
	}
}

func TestHandler_GetFormation_interpolated(t *testing.T) {
	h, _ := newTestHandler(t, NewInMemoryStoreWithTimeline(gapTimeline()))
	r := newTestRouter(h)

	rec := serve(r, http.MethodGet, "/formations/at/150", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(MatchHeader); got != "interpolated" {
		t.Errorf("expected match header interpolated, got %q", got)
	}

	var f Formation
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Entities[0].Position != (Position{X: 5, Y: 5}) {
		t.Errorf("expected (5,5), got %+v", f.Entities[0].Position)
	}
}

func TestHandler_GetFormation_no_data(t *testing.T) {
	h, _ := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	rec := serve(r, http.MethodGet, "/formations/at/900", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "null" {
		t.Errorf("expected null body, got %q", body)
	}
	if got := rec.Header().Get(MatchHeader); got != "none" {
		t.Errorf("expected match header none, got %q", got)
	}
}

func TestHandler_GetFormation_bad_timestamp(t *testing.T) {
	h, _ := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	for _, ts := range []string{"abc", "1.5", "99999999999"} {
		rec := serve(r, http.MethodGet, "/formations/at/"+ts, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", ts, rec.Code)
		}
	}
}

func TestHandler_UpdateFormation_insert(t *testing.T) {
	h, met := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	b, _ := json.Marshal(map[string]interface{}{
		"id": 7, "audio_track": "song.mp3", "start_time": 0, "end_time": 1,
		"entities": []map[string]interface{}{{"id": 0, "name": "0", "position": map[string]float64{"x": 1, "y": 2}}},
	})
	rec := serve(r, http.MethodPut, "/formations/at/1000", b)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != UpdatedMessage {
		t.Errorf("expected %q, got %q", UpdatedMessage, rec.Body.String())
	}
	if n := testutil.ToFloat64(met.MutationCounter("insert")); n != 1 {
		t.Errorf("expected 1 insert recorded, got %v", n)
	}

	rec = serve(r, http.MethodGet, "/timeline", nil)
	var tl Timeline
	if err := json.Unmarshal(rec.Body.Bytes(), &tl); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	if len(tl.Formations) != 2 {
		t.Fatalf("expected 2 formations, got %d", len(tl.Formations))
	}
	inserted := tl.Formations[1]
	if inserted.StartTime != 1000 || inserted.EndTime != 1500 || inserted.AudioTrack != "song.mp3" || len(inserted.Entities) != 1 {
		t.Errorf("unexpected inserted keyframe %+v", inserted)
	}
}

func TestHandler_UpdateFormation_bad_request(t *testing.T) {
	h, _ := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	rec := serve(r, http.MethodPut, "/formations/at/10", []byte("not json"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_AddFormation(t *testing.T) {
	h, _ := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	rec := serve(r, http.MethodPost, "/formations", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var f Formation
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.ID != 1 || f.StartTime != 500 || f.EndTime != 1000 {
		t.Errorf("unexpected formation %+v", f)
	}
}

func TestHandler_AddNewEntity(t *testing.T) {
	h, _ := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	rec := serve(r, http.MethodPost, "/formations/0/entities/new", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var e Entity
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.ID != 0 || e.Name != "0" || e.Position != (Position{}) {
		t.Errorf("unexpected entity %+v", e)
	}
}

func TestHandler_AddNewEntity_not_found(t *testing.T) {
	h, _ := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	rec := serve(r, http.MethodPost, "/formations/42/entities/new", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ErrNotFound.Error()) {
		t.Errorf("expected error string in body, got %q", rec.Body.String())
	}
}

func TestHandler_AddEntity(t *testing.T) {
	store := NewInMemoryStore()
	h, _ := newTestHandler(t, store)
	r := newTestRouter(h)

	b, _ := json.Marshal(Entity{ID: 3, Name: "solo", Position: Position{X: 1.5, Y: 2}})
	rec := serve(r, http.MethodPost, "/formations/0/entities", b)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	saved, _ := store.Load()
	roster := saved.Formations[0].Entities
	if len(roster) != 1 || roster[0].Name != "solo" {
		t.Errorf("entity not persisted: %+v", roster)
	}

	rec = serve(r, http.MethodPost, "/formations/0/entities", []byte("{"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", rec.Code)
	}
	rec = serve(r, http.MethodPost, "/formations/9/entities", b)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown formation, got %d", rec.Code)
	}
}

func TestHandler_poisoned_repository(t *testing.T) {
	h, _ := newTestHandler(t, &failingStore{tl: DefaultTimeline(), err: fmt.Errorf("%w: disk full", ErrIO)})
	r := newTestRouter(h)

	rec := serve(r, http.MethodPost, "/formations", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on persist failure, got %d", rec.Code)
	}

	rec = serve(r, http.MethodGet, "/formations/at/10", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 once poisoned, got %d", rec.Code)
	}
}

func TestHandler_UpdateFormation_out_of_range(t *testing.T) {
	h, _ := newTestHandler(t, NewInMemoryStore())
	r := newTestRouter(h)

	rec := serve(r, http.MethodPut, "/formations/at/2147483600", []byte("{}"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ErrRange.Error()) {
		t.Errorf("expected error string in body, got %q", rec.Body.String())
	}
}
