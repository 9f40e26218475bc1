package portal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/haasonsaas/hotspot/internal/i18n"
	"github.com/haasonsaas/hotspot/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, store.Store) {
	t.Helper()
	tr, err := i18n.New("en")
	if err != nil {
		t.Fatalf("i18n.New() error = %v", err)
	}
	s := store.NewMemoryStore()
	h, err := NewHandler(Config{
		Store:       s,
		Translator:  tr,
		GoOnlineURL: "https://example.com",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h, s
}

func TestFormPage(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/guest/s/default/?id=AA:BB:CC:DD:EE:FF", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET form status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Guest Wi-Fi access") {
		t.Error("form page missing title")
	}
	if !strings.Contains(body, "Terms of use") {
		t.Error("form page missing terms of use")
	}
}

func TestFormPageGermanLocale(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/guest/s/default/?lang=de", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "Gast-WLAN-Zugang") {
		t.Error("form page missing German title")
	}
}

func TestSubmitCreatesRequest(t *testing.T) {
	h, s := newTestHandler(t)

	form := url.Values{"name": {"Alice"}}
	req := httptest.NewRequest(http.MethodPost, "/guest/s/default/?id=AA:BB:CC:DD:EE:FF",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST form status = %d", rec.Code)
	}

	open, err := s.ListUndispatched(context.Background())
	if err != nil {
		t.Fatalf("ListUndispatched() error = %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("ListUndispatched() len = %d, want 1", len(open))
	}
	if open[0].Name != "Alice" || open[0].MAC != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("request = %+v", open[0])
	}
	if !strings.Contains(rec.Body.String(), open[0].ID) {
		t.Error("wait page does not embed the request id")
	}
}

func TestSubmitRedirectURL(t *testing.T) {
	h, _ := newTestHandler(t)

	form := url.Values{"name": {"Bob"}}
	req := httptest.NewRequest(http.MethodPost,
		"/guest/s/default/?id=00:11:22:33:44:55&url=https://captive.example/landing",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "https://captive.example/landing") {
		t.Error("wait page does not use the supplied redirect URL")
	}

	// Without url parameter the configured default applies.
	req = httptest.NewRequest(http.MethodPost, "/guest/s/default/",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "https://example.com") {
		t.Error("wait page does not fall back to the default redirect URL")
	}
}

func checkUpdate(t *testing.T, h *Handler, id, query string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/guest/s/default/check_update/"+id+query, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("check_update status = %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("check_update body not JSON: %v", err)
	}
	return payload
}

func TestCheckUpdatePending(t *testing.T) {
	h, _ := newTestHandler(t)

	// Unknown ids report pending, never an error.
	payload := checkUpdate(t, h, "nonexistent", "")
	if len(payload) != 0 {
		t.Fatalf("check_update pending = %v, want empty object", payload)
	}
}

func TestCheckUpdateGranted(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()

	if err := s.RecordConfirmation(ctx, "req-1", 1440, "Jane Admin"); err != nil {
		t.Fatalf("RecordConfirmation() error = %v", err)
	}

	payload := checkUpdate(t, h, "req-1", "")
	if payload["duration"] != float64(1440) {
		t.Errorf("duration = %v, want 1440", payload["duration"])
	}
	if payload["duration_human_readable"] != "1 day" {
		t.Errorf("duration_human_readable = %v, want %q", payload["duration_human_readable"], "1 day")
	}

	payload = checkUpdate(t, h, "req-1", "?lang=de")
	if payload["duration_human_readable"] != "1 Tag" {
		t.Errorf("localized duration = %v, want %q", payload["duration_human_readable"], "1 Tag")
	}
}

func TestCheckUpdateDenied(t *testing.T) {
	h, s := newTestHandler(t)

	if err := s.RecordConfirmation(context.Background(), "req-2", -1, "Jane Admin"); err != nil {
		t.Fatalf("RecordConfirmation() error = %v", err)
	}

	payload := checkUpdate(t, h, "req-2", "")
	if payload["duration"] != float64(-1) {
		t.Errorf("duration = %v, want -1", payload["duration"])
	}
	if _, ok := payload["duration_human_readable"]; ok {
		t.Error("denied response must not carry a human-readable duration")
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	h, s := newTestHandler(t)

	const n = 10000
	for i := 0; i < n; i++ {
		form := url.Values{"name": {"guest"}}
		req := httptest.NewRequest(http.MethodPost, "/guest/s/default/",
			strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %d status = %d", i, rec.Code)
		}
	}

	open, err := s.ListUndispatched(context.Background())
	if err != nil {
		t.Fatalf("ListUndispatched() error = %v", err)
	}
	seen := make(map[string]bool, n)
	for _, r := range open {
		if seen[r.ID] {
			t.Fatalf("duplicate request id %s", r.ID)
		}
		seen[r.ID] = true
	}
	if len(seen) != n {
		t.Fatalf("unique ids = %d, want %d", len(seen), n)
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}
