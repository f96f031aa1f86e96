package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// passHandler always answers 200 "ok".
var passHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok")) //nolint:errcheck
})

func call(t *testing.T, mw func(http.Handler) http.Handler, target, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	mw(passHandler).ServeHTTP(rec, req)
	return rec
}

func TestAPIKey_ModeNone_PassesThrough(t *testing.T) {
	mw := APIKey("none", "X-API-Key", "secret")
	// No key on the request; should still pass because mode != "apikey".
	if rec := call(t, mw, "/api/v1/hives", "", ""); rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKey_EmptyKey_PassesThrough(t *testing.T) {
	// key="" means auth is not configured, so allow all.
	mw := APIKey("apikey", "X-API-Key", "")
	if rec := call(t, mw, "/api/v1/hives", "", ""); rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKey_CorrectKey_Passes(t *testing.T) {
	mw := APIKey("apikey", "X-API-Key", "supersecret")
	rec := call(t, mw, "/api/v1/hives", "X-API-Key", "supersecret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body: got %q, want ok", rec.Body.String())
	}
}

func TestAPIKey_HeaderIsCaseInsensitive(t *testing.T) {
	mw := APIKey("apikey", "X-API-Key", "supersecret")
	if rec := call(t, mw, "/", "x-api-key", "supersecret"); rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKey_Rejections(t *testing.T) {
	mw := APIKey("apikey", "X-API-Key", "supersecret")
	tests := []struct {
		name   string
		header string
		key    string
	}{
		{"missing", "", ""},
		{"wrong", "X-API-Key", "wrongkey"},
		{"prefix", "X-API-Key", "supersecre"},
		{"other header", "Authorization", "supersecret"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, mw, "/api/v1/hives", tc.header, tc.key)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status: got %d, want 401", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type: got %q", ct)
			}
		})
	}
}

func TestAPIKey_QueryParam(t *testing.T) {
	mw := APIKey("apikey", "X-API-Key", "supersecret")
	if rec := call(t, mw, "/ws/stream?api_key=supersecret", "", ""); rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
	if rec := call(t, mw, "/ws/stream?api_key=nope", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}
