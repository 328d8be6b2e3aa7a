// Package api serves a running session over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (the player's control plane).
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/engine"
	"github.com/talgya/damage-control/internal/persistence"
	"github.com/talgya/damage-control/internal/world"
)

const maxStreamConns = 8

// Server serves the session state over HTTP.
type Server struct {
	Session  *engine.Session
	Eng      *engine.Engine // optional; enables speed control
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Active stream connection count.
	streamConns atomic.Int32

	upgrader websocket.Upgrader
}

// Handler builds the routes.
func (s *Server) Handler() http.Handler {
	// Actions are cheap but change the world; keep scripted clients honest.
	actionLimiter := NewRateLimiter(60, time.Minute)

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return allowedOrigin(r.Header.Get("Origin")) },
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/v1/news", s.handleNews)
	mux.HandleFunc("/api/v1/actions", s.handleActions)
	mux.HandleFunc("/api/v1/pick", s.handlePick)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Control endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/action", s.adminOnly(RateLimitMiddleware(actionLimiter, s.handleAction)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. Shut the returned
// server down to stop it.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

func corsOrigins() map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowed[origin] = true
			}
		}
	}
	return allowed
}

// allowedOrigin accepts same-host requests (no Origin header) and the CORS
// origins.
func allowedOrigin(origin string) bool {
	return origin == "" || corsOrigins()[origin]
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowed := corsOrigins()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "control endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) dayTicks() int {
	var n int
	s.Session.With(func(w *engine.World) { n = w.Config().DayTicks })
	return n
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Session.Status()
	status := map[string]any{
		"name":           "damage control",
		"tick":           st.Tick,
		"sim_time":       engine.SimTime(st.Tick, s.dayTicks()),
		"seed":           st.Seed,
		"fact":           st.Fact,
		"informed":       st.Informed,
		"population":     st.Population,
		"influence":      st.Influence,
		"active_actions": st.Actions,
		"selecting":      st.Selecting,
		"done":           st.Done,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Snapshot())
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	events := s.Session.Recent(limit)

	if cat := r.URL.Query().Get("category"); cat != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

type actionInfo struct {
	ID         string            `json:"id"`
	Desc       string            `json:"desc"`
	Target     config.TargetKind `json:"target"`
	Radius     float64           `json:"radius,omitempty"`
	Cost       float64           `json:"cost"`
	Affects    []string          `json:"affects"`
	Days       config.DayRange   `json:"days"`
	Affordable bool              `json:"affordable"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	influence := s.Session.Status().Influence
	var out []actionInfo
	s.Session.With(func(wd *engine.World) {
		for _, a := range wd.Config().Actions {
			out = append(out, actionInfo{
				ID:         a.ID,
				Desc:       a.Desc,
				Target:     a.Target,
				Radius:     a.Radius,
				Cost:       a.Cost,
				Affects:    a.Affects,
				Days:       a.Time,
				Affordable: a.Cost <= influence,
			})
		}
	})
	writeJSON(w, out)
}

func parsePoint(r *http.Request) (world.Point, error) {
	x, err := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	if err != nil {
		return world.Point{}, fmt.Errorf("bad x: %w", err)
	}
	y, err := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if err != nil {
		return world.Point{}, fmt.Errorf("bad y: %w", err)
	}
	return world.Point{X: x, Y: y}, nil
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePoint(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kinds, err := engine.ParseKinds(r.URL.Query().Get("kinds"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, ok := s.Session.Pick(pos, kinds)
	if !ok {
		http.Error(w, "nothing there", http.StatusNotFound)
		return
	}
	writeJSON(w, e)
}

type actionRequest struct {
	Action     string   `json:"action"`
	Person     *int     `json:"person,omitempty"`
	Connection *int     `json:"connection,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
}

var errNoPosition = errors.New("x and y are required")

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	target, err := s.resolveTarget(req)
	if err != nil {
		writeActionError(w, err)
		return
	}
	view, err := s.Session.StartAction(req.Action, target)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "action": view})
}

// resolveTarget uses an explicit id when given, otherwise whatever of the
// right kind is under (x, y).
func (s *Server) resolveTarget(req actionRequest) (engine.Target, error) {
	var (
		def config.ActionDef
		ok  bool
	)
	s.Session.With(func(w *engine.World) { def, ok = w.Config().Action(req.Action) })
	if !ok {
		return engine.Target{}, fmt.Errorf("%w: %q", engine.ErrUnknownAction, req.Action)
	}

	switch {
	case def.Target == config.TargetPerson && req.Person != nil:
		return engine.PersonTarget(*req.Person), nil
	case def.Target == config.TargetConnection && req.Connection != nil:
		return engine.ConnectionTarget(*req.Connection), nil
	case req.X == nil || req.Y == nil:
		return engine.Target{}, fmt.Errorf("%w for %q", errNoPosition, req.Action)
	}

	pos := world.Point{X: *req.X, Y: *req.Y}
	if def.Target == config.TargetArea {
		return engine.AreaTarget(pos), nil
	}
	e, found := s.Session.Pick(pos, engine.KindsFor(def.Target))
	if !found {
		return engine.Target{}, fmt.Errorf("%w: no %s at %s", engine.ErrUnknownTarget, def.Target, pos)
	}
	return e.Target(pos), nil
}

func writeActionError(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, engine.ErrUnknownAction):
		code = http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientInfluence):
		code = http.StatusConflict
	}
	http.Error(w, err.Error(), code)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "no engine running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.Runs(20)
	if err != nil {
		slog.Error("listing runs failed", "error", err)
		http.Error(w, "listing runs failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

type runDetail struct {
	Run     persistence.Run      `json:"run"`
	Samples []persistence.Sample `json:"samples"`
	Events  []engine.Event       `json:"events"` // newest first
}

// handleRun returns one recorded run with its samples and latest news.
// The id "latest" is the run most recently started against this database.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	id := r.PathValue("id")
	if id == "latest" {
		last, err := s.DB.GetMeta("last_run")
		if err != nil {
			writeRunError(w, err)
			return
		}
		id = last
	}

	var (
		out runDetail
		err error
	)
	if out.Run, err = s.DB.Run(id); err != nil {
		writeRunError(w, err)
		return
	}
	if out.Samples, err = s.DB.Samples(id); err != nil {
		writeRunError(w, err)
		return
	}
	if out.Events, err = s.DB.RecentEvents(id, limit); err != nil {
		writeRunError(w, err)
		return
	}
	if out.Samples == nil {
		out.Samples = []persistence.Sample{}
	}
	if out.Events == nil {
		out.Events = []engine.Event{}
	}
	writeJSON(w, out)
}

func writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	slog.Error("reading run failed", "error", err)
	http.Error(w, "reading run failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}
