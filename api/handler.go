// Package api provides the HTTP surfaces for Herald: the Instagram webhook
// ingress and an admin API for rules, trigger logs and failure records.
//
// All routes are mounted under a configurable prefix (default: none).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/herald"
	"github.com/xraph/herald/signature"
)

// maxBodyBytes bounds a webhook delivery.
const maxBodyBytes = 1 << 20

// Config configures the HTTP handler.
type Config struct {
	// AppSecret verifies X-Hub-Signature-256 on webhook deliveries.
	AppSecret string

	// VerifyToken answers the subscription handshake.
	VerifyToken string

	// BasePath prefixes every route, e.g. "/herald".
	BasePath string

	// Logger receives request logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Handler is the root HTTP handler for Herald.
type Handler struct {
	herald *herald.Herald
	signer *signature.Signer
	config Config
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates the webhook ingress and admin API handler.
func NewHandler(h *herald.Herald, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BasePath = strings.TrimSuffix(cfg.BasePath, "/")

	hd := &Handler{
		herald: h,
		signer: signature.NewSigner(cfg.AppSecret),
		config: cfg,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	hd.registerRoutes()
	return hd
}

func (h *Handler) registerRoutes() {
	p := h.config.BasePath

	// Webhook ingress
	h.mux.HandleFunc("GET "+p+"/webhooks/instagram", h.verifySubscription)
	h.mux.HandleFunc("POST "+p+"/webhooks/instagram", h.receiveWebhook)

	// Rules
	h.mux.HandleFunc("POST "+p+"/rules", h.createRule)
	h.mux.HandleFunc("GET "+p+"/rules", h.listRules)
	h.mux.HandleFunc("GET "+p+"/rules/{id}", h.getRule)
	h.mux.HandleFunc("PUT "+p+"/rules/{id}", h.updateRule)
	h.mux.HandleFunc("DELETE "+p+"/rules/{id}", h.deleteRule)
	h.mux.HandleFunc("PATCH "+p+"/rules/{id}/active", h.setRuleActive)

	// Accounts
	h.mux.HandleFunc("PUT "+p+"/accounts", h.upsertAccount)

	// Trigger logs
	h.mux.HandleFunc("GET "+p+"/trigger-logs", h.listTriggerLogs)

	// Failures
	h.mux.HandleFunc("GET "+p+"/failures", h.listFailures)
	h.mux.HandleFunc("GET "+p+"/failures/{id}", h.getFailure)
	h.mux.HandleFunc("DELETE "+p+"/failures", h.purgeFailures)

	// Stats
	h.mux.HandleFunc("GET "+p+"/stats", h.getStats)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// queryTime parses an RFC3339 query parameter; a missing value yields nil.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
