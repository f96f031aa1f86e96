package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hivewatch/hivewatch/pkg/store"
	"github.com/hivewatch/hivewatch/pkg/types"
	"github.com/hivewatch/hivewatch/server/internal/api"
)

const collection = "ruches"

// --- test helpers -----------------------------------------------------------

func newStore(t *testing.T, recs ...types.HiveRecord) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	for _, rec := range recs {
		if err := st.Put(context.Background(), collection, rec.ID, rec.Fields()); err != nil {
			t.Fatalf("put %s: %v", rec.ID, err)
		}
	}
	return st
}

func healthy(id string) types.HiveRecord {
	return types.HiveRecord{
		ID: id, In: 6, Out: 4, Total: 10, Temperature: 25,
		Spectrum: []float64{0.5, 0.7}, AlertReasons: []string{},
	}
}

func alerting(id string, reasons ...string) types.HiveRecord {
	return types.HiveRecord{
		ID: id, In: 0, Out: 0, Total: 0, Temperature: 5,
		Spectrum: []float64{}, Alert: true, AlertReasons: reasons,
	}
}

// brokenStore fails every read.
type brokenStore struct{ store.Store }

var errDown = errors.New("connection refused")

func (brokenStore) List(context.Context, string) ([]store.Document, error) { return nil, errDown }
func (brokenStore) Get(context.Context, string, string) (store.Document, error) {
	return store.Document{}, errDown
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	h := api.New(newStore(t), collection)
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.State != "unknown" {
		t.Errorf("state: got %v, want unknown", resp.State)
	}
	if resp.HiveCount != 0 {
		t.Errorf("hive_count: got %d, want 0", resp.HiveCount)
	}
}

func TestHealth_AllHealthy(t *testing.T) {
	h := api.New(newStore(t, healthy("hive-1"), healthy("hive-2")), collection)
	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)

	if resp.State != "ok" {
		t.Errorf("state: got %q, want ok", resp.State)
	}
	if resp.HiveCount != 2 || resp.HealthyCount != 2 || resp.AlertCount != 0 {
		t.Errorf("counts: got %+v", resp)
	}
}

func TestHealth_Alerting(t *testing.T) {
	st := newStore(t, healthy("hive-1"), alerting("hive-2", types.ReasonTemperatureLow))
	var resp api.HealthResponse
	decode(t, get(t, api.New(st, collection), "/api/v1/health"), &resp)

	if resp.State != "alerting" {
		t.Errorf("state: got %q, want alerting", resp.State)
	}
	if resp.AlertCount != 1 || resp.HealthyCount != 1 {
		t.Errorf("counts: got %+v", resp)
	}
}

func TestHealth_OtherCollectionIgnored(t *testing.T) {
	st := newStore(t)
	_ = st.Put(context.Background(), "elsewhere", "x", healthy("x").Fields())

	var resp api.HealthResponse
	decode(t, get(t, api.New(st, collection), "/api/v1/health"), &resp)
	if resp.HiveCount != 0 {
		t.Errorf("hive_count: got %d, want 0", resp.HiveCount)
	}
}

// --- /api/v1/hives ----------------------------------------------------------

func TestListHives_OrderedAndComplete(t *testing.T) {
	st := newStore(t, healthy("hive-b"), alerting("hive-a", types.ReasonNoActivity))
	rr := get(t, api.New(st, collection), "/api/v1/hives")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var hives []api.HiveResponse
	decode(t, rr, &hives)

	if len(hives) != 2 {
		t.Fatalf("len: got %d, want 2", len(hives))
	}
	if hives[0].ID != "hive-a" || hives[1].ID != "hive-b" {
		t.Errorf("order: got %s, %s", hives[0].ID, hives[1].ID)
	}
	if !hives[0].Alert || hives[0].AlertReasons[0] != types.ReasonNoActivity {
		t.Errorf("hive-a alert fields: %+v", hives[0])
	}
	if hives[1].Total != 10 || hives[1].Temperature != 25 {
		t.Errorf("hive-b readings: %+v", hives[1])
	}
}

func TestListHives_EmptyIsArray(t *testing.T) {
	rr := get(t, api.New(newStore(t), collection), "/api/v1/hives")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body: got %q, want []", body)
	}
}

func TestListHives_NeverUpdatedHive(t *testing.T) {
	st := store.NewMemory()
	_ = st.Put(context.Background(), collection, "hive-1", map[string]any{})

	var hives []map[string]interface{}
	decode(t, get(t, api.New(st, collection), "/api/v1/hives"), &hives)

	if len(hives) != 1 {
		t.Fatalf("len: got %d", len(hives))
	}
	// Missing fields still serialise as arrays, not null.
	if _, ok := hives[0]["spectrum"].([]interface{}); !ok {
		t.Errorf("spectrum: got %v, want []", hives[0]["spectrum"])
	}
	if _, ok := hives[0]["alertReasons"].([]interface{}); !ok {
		t.Errorf("alertReasons: got %v, want []", hives[0]["alertReasons"])
	}
}

// --- /api/v1/hives/{id} -----------------------------------------------------

func TestGetHive_Found(t *testing.T) {
	h := api.New(newStore(t, healthy("hive-1")), collection)
	rr := get(t, h, "/api/v1/hives/hive-1")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var hive api.HiveResponse
	decode(t, rr, &hive)
	if hive.ID != "hive-1" || hive.In != 6 || hive.Out != 4 {
		t.Errorf("hive: got %+v", hive)
	}
}

func TestGetHive_NotFound(t *testing.T) {
	rr := get(t, api.New(newStore(t), collection), "/api/v1/hives/nope")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != "hive not found" {
		t.Errorf("error: got %q", resp["error"])
	}
}

// --- /api/v1/activity -------------------------------------------------------

func TestActivity_Aggregates(t *testing.T) {
	a := healthy("hive-1")
	b := types.HiveRecord{ID: "hive-2", In: 3, Out: 1, Total: 4, Temperature: 35, Spectrum: []float64{1.2}}
	var resp api.ActivityResponse
	decode(t, get(t, api.New(newStore(t, a, b), collection), "/api/v1/activity"), &resp)

	if resp.HiveCount != 2 {
		t.Errorf("hive_count: got %d", resp.HiveCount)
	}
	if resp.In != 9 || resp.Out != 5 || resp.Total != 14 {
		t.Errorf("traffic: got %d/%d/%d, want 9/5/14", resp.In, resp.Out, resp.Total)
	}
	if resp.Temperature.Min != 25 || resp.Temperature.Max != 35 || resp.Temperature.Mean != 30 {
		t.Errorf("temperature: got %+v", resp.Temperature)
	}
	if resp.SpectrumPeak != 1.2 {
		t.Errorf("spectrum_peak: got %v, want 1.2", resp.SpectrumPeak)
	}
}

func TestActivity_Empty(t *testing.T) {
	var resp api.ActivityResponse
	decode(t, get(t, api.New(newStore(t), collection), "/api/v1/activity"), &resp)
	if resp != (api.ActivityResponse{}) {
		t.Errorf("got %+v, want zero value", resp)
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_OnlyFlaggedHives(t *testing.T) {
	st := newStore(t,
		healthy("hive-1"),
		alerting("hive-2", types.ReasonTemperatureLow, types.ReasonNoActivity),
		healthy("hive-3"),
	)
	var hives []api.HiveResponse
	decode(t, get(t, api.New(st, collection), "/api/v1/alerts"), &hives)

	if len(hives) != 1 || hives[0].ID != "hive-2" {
		t.Fatalf("alerts: got %+v", hives)
	}
	if len(hives[0].AlertReasons) != 2 {
		t.Errorf("reasons: got %v", hives[0].AlertReasons)
	}
}

func TestAlerts_NoneIsEmptyArray(t *testing.T) {
	rr := get(t, api.New(newStore(t, healthy("hive-1")), collection), "/api/v1/alerts")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body: got %q, want []", body)
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot(t *testing.T) {
	st := newStore(t, healthy("hive-1"), alerting("hive-2", types.ReasonNoActivity))
	var resp api.SnapshotResponse
	decode(t, get(t, api.New(st, collection), "/api/v1/snapshot"), &resp)

	if resp.HiveCount != 2 || len(resp.Hives) != 2 {
		t.Errorf("hives: got count %d len %d", resp.HiveCount, len(resp.Hives))
	}
	if resp.AlertCount != 1 {
		t.Errorf("alert_count: got %d, want 1", resp.AlertCount)
	}
	if _, err := time.Parse(time.RFC3339, resp.GeneratedAt); err != nil {
		t.Errorf("generated_at %q: %v", resp.GeneratedAt, err)
	}
}

func TestSnapshot_Method(t *testing.T) {
	h := api.New(newStore(t, healthy("hive-1")), collection)
	resp, err := h.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(resp.Hives) != 1 || resp.Hives[0].ID != "hive-1" {
		t.Errorf("hives: %+v", resp.Hives)
	}
}

// --- diagnostics ------------------------------------------------------------

func TestDiagnostics_HealthyHive(t *testing.T) {
	var hive api.HiveResponse
	decode(t, get(t, api.New(newStore(t, healthy("hive-1")), collection), "/api/v1/hives/hive-1"), &hive)

	if len(hive.Diagnostics) != 1 || hive.Diagnostics[0].Key != "healthy" || hive.Diagnostics[0].Level != "ok" {
		t.Errorf("diagnostics: got %+v", hive.Diagnostics)
	}
}

func TestDiagnostics_CriticalFirst(t *testing.T) {
	rec := alerting("hive-1", types.ReasonNoActivity, types.ReasonMissingSpectrum, types.ReasonTemperatureLow)
	var hive api.HiveResponse
	decode(t, get(t, api.New(newStore(t, rec), collection), "/api/v1/hives/hive-1"), &hive)

	want := []string{"temperature_low", "no_activity", "spectrum_missing"}
	if len(hive.Diagnostics) != len(want) {
		t.Fatalf("diagnostics: got %+v", hive.Diagnostics)
	}
	for i, key := range want {
		if hive.Diagnostics[i].Key != key {
			t.Errorf("diagnostics[%d]: got %q, want %q", i, hive.Diagnostics[i].Key, key)
		}
	}
	if v := hive.Diagnostics[0].Value; v == nil || *v != 5 {
		t.Errorf("temperature_low value: got %v, want 5", v)
	}
}

func TestDiagnostics_UnknownReasonPassedThrough(t *testing.T) {
	rec := alerting("hive-1", "custom reason")
	var hive api.HiveResponse
	decode(t, get(t, api.New(newStore(t, rec), collection), "/api/v1/hives/hive-1"), &hive)

	if len(hive.Diagnostics) != 1 || hive.Diagnostics[0].Title != "custom reason" {
		t.Errorf("diagnostics: got %+v", hive.Diagnostics)
	}
}

// --- cross-cutting ----------------------------------------------------------

func TestContentTypeJSON(t *testing.T) {
	h := api.New(newStore(t, healthy("hive-1")), collection)
	for _, path := range []string{
		"/api/v1/health",
		"/api/v1/hives",
		"/api/v1/hives/hive-1",
		"/api/v1/activity",
		"/api/v1/alerts",
		"/api/v1/snapshot",
	} {
		rr := get(t, h, path)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: Content-Type = %q", path, ct)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := api.New(newStore(t), collection)
	for _, path := range []string{"/api/v1/health", "/api/v1/hives", "/api/v1/snapshot"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("POST %s: Content-Type = %q", path, ct)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	rr := get(t, api.New(newStore(t), collection), "/api/v1/unknown")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestStoreUnavailable(t *testing.T) {
	h := api.New(brokenStore{}, collection)
	for _, path := range []string{
		"/api/v1/health",
		"/api/v1/hives",
		"/api/v1/hives/hive-1",
		"/api/v1/activity",
		"/api/v1/alerts",
		"/api/v1/snapshot",
	} {
		rr := get(t, h, path)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: got %d, want 503", path, rr.Code)
		}
	}
}
