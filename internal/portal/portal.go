// Package portal serves the guest-facing captive portal: the request form,
// the wait page and the status polling endpoint.
package portal

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"

	"github.com/haasonsaas/hotspot/internal/humanize"
	"github.com/haasonsaas/hotspot/internal/i18n"
	"github.com/haasonsaas/hotspot/internal/observability"
	"github.com/haasonsaas/hotspot/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed terms/*.md
var termsFS embed.FS

// Config holds portal configuration.
type Config struct {
	// Store is the shared persistence layer (required).
	Store store.Store

	// Translator resolves locales and messages (required).
	Translator *i18n.Translator

	// GoOnlineURL is the post-approval redirect used when the captive portal
	// did not supply one.
	GoOnlineURL string

	// Metrics for request counting and latency (optional).
	Metrics *observability.Metrics

	// Registry is served at /metrics when set.
	Registry *prometheus.Registry

	// Logger for request logging.
	Logger *slog.Logger
}

// Handler is the portal HTTP handler.
type Handler struct {
	config    Config
	templates *template.Template
	mux       *http.ServeMux
	logger    *slog.Logger

	// locales offered in the language switcher: catalog and terms both exist.
	locales []string
	terms   map[string]template.HTML
}

// NewHandler creates the portal handler, rendering all embedded terms-of-use
// documents up front.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	h := &Handler{
		config:    cfg,
		templates: tmpl,
		mux:       http.NewServeMux(),
		logger:    cfg.Logger.With("component", "portal"),
		terms:     make(map[string]template.HTML),
	}
	if err := h.loadTerms(); err != nil {
		return nil, err
	}
	h.setupRoutes()
	return h, nil
}

// loadTerms renders terms_of_use.<locale>.md for every supported locale. A
// locale is offered to guests only when both its catalog and its terms exist.
func (h *Handler) loadTerms() error {
	for _, locale := range h.config.Translator.Supported() {
		data, err := termsFS.ReadFile(fmt.Sprintf("terms/terms_of_use.%s.md", locale))
		if err != nil {
			h.logger.Warn("no terms of use for locale", "locale", locale)
			continue
		}
		var buf bytes.Buffer
		if err := goldmark.Convert(data, &buf); err != nil {
			return fmt.Errorf("render terms for %s: %w", locale, err)
		}
		h.terms[locale] = template.HTML(buf.String())
		h.locales = append(h.locales, locale)
	}
	sort.Strings(h.locales)
	return nil
}

func (h *Handler) setupRoutes() {
	h.mux.HandleFunc("GET /guest/s/{site}/{$}", h.instrument("form", h.handleForm))
	h.mux.HandleFunc("POST /guest/s/{site}/{$}", h.instrument("submit", h.handleSubmit))
	h.mux.HandleFunc("GET /guest/s/{site}/check_update/{id}", h.instrument("check_update", h.handleCheckUpdate))
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.config.Registry != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.config.Registry, promhttp.HandlerOpts{}))
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// instrument wraps a handler with request logging and a latency metric.
func (h *Handler) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		elapsed := time.Since(start)
		h.logger.Debug("request",
			"handler", name,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds())
		if h.config.Metrics != nil {
			h.config.Metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, name, strconv.Itoa(rec.status)).
				Observe(elapsed.Seconds())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// locale picks the page locale from the lang query parameter, falling back to
// the configured default.
func (h *Handler) locale(r *http.Request) string {
	return h.config.Translator.Resolve(r.URL.Query().Get("lang"))
}

// redirectURL prefers the captive portal's url parameter over the default.
func (h *Handler) redirectURL(r *http.Request) string {
	if u := r.URL.Query().Get("url"); u != "" {
		return u
	}
	return h.config.GoOnlineURL
}

type formData struct {
	Site    string
	MAC     string
	URL     string
	Locale  string
	Locales []string
	Terms   template.HTML
	T       func(key string) string
}

func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	locale := h.locale(r)
	data := formData{
		Site:    r.PathValue("site"),
		MAC:     r.URL.Query().Get("id"),
		URL:     r.URL.Query().Get("url"),
		Locale:  locale,
		Locales: h.locales,
		Terms:   h.terms[locale],
		T: func(key string) string {
			return h.config.Translator.Translate(locale, key, nil)
		},
	}
	h.render(w, "form.html", data)
}

type waitData struct {
	Site      string
	RequestID string
	URL       string
	Locale    string
	T         func(key string) string
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	locale := h.locale(r)
	name := r.PostFormValue("name")
	mac := r.URL.Query().Get("id")

	requestID := uuid.NewString()
	if err := h.config.Store.AddRequest(r.Context(), requestID, name, mac); err != nil {
		h.logger.Error("persist request", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if h.config.Metrics != nil {
		h.config.Metrics.RequestsSubmitted.Inc()
	}
	h.logger.Info("access request submitted", "request_id", requestID, "mac", mac)

	data := waitData{
		Site:      r.PathValue("site"),
		RequestID: requestID,
		URL:       h.redirectURL(r),
		Locale:    locale,
		T: func(key string) string {
			return h.config.Translator.Translate(locale, key, nil)
		},
	}
	h.render(w, "wait.html", data)
}

func (h *Handler) handleCheckUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	confirmation, err := h.config.Store.GetConfirmation(r.Context(), requestID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeJSON(w, map[string]any{})
		return
	}
	if err != nil {
		h.logger.Error("get confirmation", "error", err, "request_id", requestID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if confirmation.DurationMinutes <= 0 {
		h.writeJSON(w, map[string]any{"duration": confirmation.DurationMinutes})
		return
	}

	locale := h.locale(r)
	readable, err := humanize.Minutes(h.config.Translator, locale, confirmation.DurationMinutes)
	if err != nil {
		h.logger.Error("format duration", "error", err, "request_id", requestID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{
		"duration":                confirmation.DurationMinutes,
		"duration_human_readable": readable,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("write response", "error", err)
	}
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// Server wraps the handler in an http.Server with sane timeouts.
func Server(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
