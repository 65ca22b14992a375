package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "listenquest/adapters/websocket"
	"listenquest/core"
	"listenquest/engine"
	"listenquest/leaderboard"
	"listenquest/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
}

// NewMux builds an http.Handler exposing the progression REST API and WebSocket stream.
// Routes:
//   - GET  {prefix}/players/{id}
//   - POST {prefix}/players/{id}/session/start
//   - POST {prefix}/players/{id}/session/stop
//   - POST {prefix}/players/{id}/resume?playing=true
//   - POST {prefix}/players/{id}/check
//   - POST {prefix}/players/{id}/activity/{activity}
//   - POST {prefix}/players/{id}/upgrades/{upgrade}
//   - GET  {prefix}/catalog/{activities|upgrades|achievements}
//   - GET  {prefix}/leaderboard?n=10
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(reg *engine.Registry, board leaderboard.Board, hub *realtime.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, reg)
	})

	// WebSocket events
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/catalog/"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		parts := split(strings.TrimPrefix(r.URL.Path, opts.PathPrefix), '/')
		if len(parts) != 2 {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		switch parts[1] {
		case "activities":
			writeJSON(w, core.Activities())
		case "upgrades":
			writeJSON(w, core.Upgrades())
		case "achievements":
			writeJSON(w, core.Achievements())
		default:
			writeError(w, http.StatusNotFound, "not_found", "unknown catalog", nil)
		}
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || board == nil {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		n := 10
		if raw := r.URL.Query().Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 {
				writeError(w, http.StatusBadRequest, "invalid_n", "n must be a positive integer", nil)
				return
			}
			n = v
		}
		writeJSON(w, board.TopN(n))
	})

	// Players API
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/players/"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, opts.PathPrefix)
		if path == "" || path[0] != '/' {
			path = "/" + path
		}
		parts := split(path, '/')
		if len(parts) < 2 {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		eng, err := reg.Engine(core.PlayerID(parts[1]))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_player", err.Error(), nil)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if len(parts) != 2 {
				writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
				return
			}
			snap, err := eng.Snapshot(r.Context())
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, snap)
			return
		case http.MethodPost:
			handlePlayerCommand(w, r, eng, parts[2:])
			return
		}
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

func handlePlayerCommand(w http.ResponseWriter, r *http.Request, eng *engine.Engine, parts []string) {
	ctx := r.Context()
	switch {
	case len(parts) == 2 && parts[0] == "session" && parts[1] == "start":
		if err := eng.StartListening(ctx); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	case len(parts) == 2 && parts[0] == "session" && parts[1] == "stop":
		if err := eng.StopListening(ctx); err != nil {
			writeEngineError(w, err)
			return
		}
		snap, err := eng.Snapshot(ctx)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, snap)
	case len(parts) == 1 && parts[0] == "resume":
		playing := r.URL.Query().Get("playing") == "true"
		if err := eng.Resume(ctx, playing); err != nil {
			writeEngineError(w, err)
			return
		}
		snap, err := eng.Snapshot(ctx)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, snap)
	case len(parts) == 1 && parts[0] == "check":
		if err := eng.PassiveCheck(ctx); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	case len(parts) == 2 && parts[0] == "activity":
		ok, err := eng.ChangeActivity(ctx, core.ActivityID(parts[1]))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusConflict, "activity_unavailable", "activity unknown or locked", nil)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	case len(parts) == 2 && parts[0] == "upgrades":
		result, err := eng.PurchaseUpgrade(ctx, core.UpgradeID(parts[1]))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if !result.OK {
			status := http.StatusConflict
			if result.Code == engine.FailNotFound {
				status = http.StatusNotFound
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(result)
			return
		}
		writeJSON(w, result)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	}
}

// writeEngineError maps engine errors onto HTTP statuses. A failed persist is
// surfaced as 503 so clients know the command took effect in memory but must
// be retried to durably land.
func writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrPersistenceFailed) {
		writeError(w, http.StatusServiceUnavailable, "persistence_failed", err.Error(), nil)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
}

// healthCheck verifies the service is working properly
func healthCheck(w http.ResponseWriter, r *http.Request, reg *engine.Registry) {
	ctx := r.Context()

	// Verify storage works by snapshotting a probe player. This is a safe,
	// lightweight check that doesn't affect real data.
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	eng, err := reg.Engine("healthcheck_probe")
	if err == nil {
		_, err = eng.Snapshot(ctx)
	}
	// Headers must be set before the status line is written.
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	// trim leading '/'
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
