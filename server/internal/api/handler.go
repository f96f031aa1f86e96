package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hivewatch/hivewatch/pkg/store"
	"github.com/hivewatch/hivewatch/pkg/types"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads hive documents from the shared store on every request.
type Handler struct {
	store      store.Store
	collection string
	router     *mux.Router
	now        func() time.Time
}

// New creates a Handler over collection in st and registers all routes.
func New(st store.Store, collection string) *Handler {
	h := &Handler{
		store:      st,
		collection: collection,
		router:     mux.NewRouter(),
		now:        time.Now,
	}

	r := h.router.PathPrefix("/api/v1").Subrouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/hives", h.listHives).Methods(http.MethodGet)
	r.HandleFunc("/hives/{id}", h.getHive).Methods(http.MethodGet)
	r.HandleFunc("/activity", h.activity).Methods(http.MethodGet)
	r.HandleFunc("/alerts", h.alerts).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", h.snapshot).Methods(http.MethodGet)

	h.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Snapshot reads every hive and builds the payload shared by
// GET /api/v1/snapshot and the WebSocket stream.
func (h *Handler) Snapshot(ctx context.Context) (SnapshotResponse, error) {
	recs, err := h.records(ctx)
	if err != nil {
		return SnapshotResponse{}, err
	}
	resp := SnapshotResponse{
		Hives:       make([]HiveResponse, 0, len(recs)),
		HiveCount:   len(recs),
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}
	for _, rec := range recs {
		if rec.Alert {
			resp.AlertCount++
		}
		resp.Hives = append(resp.Hives, toHiveResponse(rec))
	}
	return resp, nil
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	recs, err := h.records(r.Context())
	if err != nil {
		storeErr(w, err)
		return
	}

	resp := HealthResponse{HiveCount: len(recs)}
	for _, rec := range recs {
		if rec.Alert {
			resp.AlertCount++
		} else {
			resp.HealthyCount++
		}
	}

	switch {
	case len(recs) == 0:
		resp.State = "unknown"
	case resp.AlertCount > 0:
		resp.State = "alerting"
	default:
		resp.State = "ok"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listHives returns GET /api/v1/hives, ordered by ID.
func (h *Handler) listHives(w http.ResponseWriter, r *http.Request) {
	recs, err := h.records(r.Context())
	if err != nil {
		storeErr(w, err)
		return
	}
	out := make([]HiveResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toHiveResponse(rec))
	}
	jsonResp(w, http.StatusOK, out)
}

// getHive returns GET /api/v1/hives/{id}.
func (h *Handler) getHive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, err := h.store.Get(r.Context(), h.collection, id)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "hive not found")
		return
	}
	if err != nil {
		storeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, toHiveResponse(types.FromFields(doc.ID, doc.Fields)))
}

// activity returns GET /api/v1/activity, traffic and readings aggregated
// across all hives.
func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	recs, err := h.records(r.Context())
	if err != nil {
		storeErr(w, err)
		return
	}

	resp := ActivityResponse{HiveCount: len(recs)}
	if len(recs) == 0 {
		jsonResp(w, http.StatusOK, resp)
		return
	}

	var tempSum float64
	resp.Temperature.Min = math.Inf(1)
	resp.Temperature.Max = math.Inf(-1)
	for _, rec := range recs {
		resp.In += rec.In
		resp.Out += rec.Out
		resp.Total += rec.Total
		tempSum += rec.Temperature
		resp.Temperature.Min = math.Min(resp.Temperature.Min, rec.Temperature)
		resp.Temperature.Max = math.Max(resp.Temperature.Max, rec.Temperature)
		resp.SpectrumPeak = math.Max(resp.SpectrumPeak, spectrumPeak(rec.Spectrum))
	}
	resp.Temperature.Mean = tempSum / float64(len(recs))
	jsonResp(w, http.StatusOK, resp)
}

// alerts returns GET /api/v1/alerts, the hives currently flagged.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	recs, err := h.records(r.Context())
	if err != nil {
		storeErr(w, err)
		return
	}
	out := make([]HiveResponse, 0)
	for _, rec := range recs {
		if rec.Alert {
			out = append(out, toHiveResponse(rec))
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// snapshot returns GET /api/v1/snapshot, a full dump of every hive.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Snapshot(r.Context())
	if err != nil {
		storeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) records(ctx context.Context) ([]types.HiveRecord, error) {
	docs, err := h.store.List(ctx, h.collection)
	if err != nil {
		return nil, err
	}
	recs := make([]types.HiveRecord, 0, len(docs))
	for _, d := range docs {
		recs = append(recs, types.FromFields(d.ID, d.Fields))
	}
	return recs, nil
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func storeErr(w http.ResponseWriter, err error) {
	slog.Error("api: store read failed", "err", err)
	jsonErr(w, http.StatusServiceUnavailable, "store unavailable")
}

// toHiveResponse maps a decoded record to its JSON representation. Nil slices
// are normalised so clients always see arrays.
func toHiveResponse(rec types.HiveRecord) HiveResponse {
	spectrum := rec.Spectrum
	if spectrum == nil {
		spectrum = []float64{}
	}
	reasons := rec.AlertReasons
	if reasons == nil {
		reasons = []string{}
	}
	return HiveResponse{
		ID:           rec.ID,
		In:           rec.In,
		Out:          rec.Out,
		Total:        rec.Total,
		Temperature:  rec.Temperature,
		Spectrum:     spectrum,
		Alert:        rec.Alert,
		AlertReasons: reasons,
		Diagnostics:  computeDiagnostics(rec),
	}
}
