package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/engine"
	"github.com/talgya/damage-control/internal/persistence"
	"github.com/talgya/damage-control/internal/world"
)

const testKey = "secret"

func testSession(t *testing.T, points float64) *engine.Session {
	t.Helper()
	cfg := config.Default()
	cfg.DayTicks = 1
	cfg.Methods = []config.MethodDef{{ID: "phone", Time: 2, Freq: 1}}
	cfg.Actions = []config.ActionDef{
		{ID: "cut", Desc: "cut phone line", Target: config.TargetConnection, Cost: 25,
			Affects: []string{"phone"}, Time: config.DayRange{Min: 3, Mode: 3, Max: 3}},
		{ID: "hit", Desc: "order a hit", Target: config.TargetPerson, Cost: 250,
			Affects: []string{"phone"}, Time: config.DayRange{Min: 3, Mode: 3, Max: 3}},
		{ID: "flood", Desc: "flood the streets", Target: config.TargetArea, Radius: 60,
			Affects: []string{"phone"}, Time: config.DayRange{Min: 1, Mode: 1, Max: 1}},
	}
	layout := &world.Layout{
		Seed: 1,
		People: []world.PersonSeed{
			{Pos: world.Point{X: 50, Y: 50}, Name: "Alice"},
			{Pos: world.Point{X: 150, Y: 50}, Name: "Bob"},
			{Pos: world.Point{X: 250, Y: 50}, Name: "Carol"},
		},
		Edges: []world.Edge{
			{A: 0, B: 1, Distance: 100, Methods: []string{"phone"}},
			{A: 1, B: 2, Distance: 100, Methods: []string{"phone"}},
		},
		Areas: []world.Area{{Name: "Midtown", Center: world.Point{X: 150, Y: 50}}},
	}
	in := &engine.Influence{Points: points}
	w, err := engine.FromLayout(cfg, layout, in)
	if err != nil {
		t.Fatal(err)
	}
	return engine.NewSession(w, in)
}

func newTestServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postAction(t *testing.T, url, key string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url+"/api/v1/action", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp
}

func TestStatusAndSnapshot(t *testing.T) {
	sess := testSession(t, 100)
	ts := newTestServer(t, &Server{Session: sess})
	sess.Step()

	var status map[string]any
	if code := getJSON(t, ts.URL+"/api/v1/status", &status); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if status["informed"].(float64) != 1 || status["tick"].(float64) != 1 {
		t.Errorf("status = %v", status)
	}
	if _, ok := status["speed"]; ok {
		t.Error("speed reported without an engine")
	}

	var snap engine.Snapshot
	getJSON(t, ts.URL+"/api/v1/snapshot", &snap)
	if len(snap.People) != 3 || len(snap.Connections) != 2 {
		t.Errorf("snapshot has %d people, %d connections", len(snap.People), len(snap.Connections))
	}
}

func TestPick(t *testing.T) {
	ts := newTestServer(t, &Server{Session: testSession(t, 100)})

	var e engine.Entity
	if code := getJSON(t, ts.URL+"/api/v1/pick?x=151&y=52", &e); code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	if e.Kind != config.TargetPerson || e.Name != "Bob" {
		t.Errorf("picked %+v", e)
	}
	getJSON(t, ts.URL+"/api/v1/pick?x=100&y=60&kinds=c", &e)
	if e.Kind != config.TargetConnection || e.ID != 0 {
		t.Errorf("picked %+v", e)
	}
	if code := getJSON(t, ts.URL+"/api/v1/pick?x=100&y=500&kinds=p", nil); code != http.StatusNotFound {
		t.Errorf("empty pick code %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/v1/pick?x=abc&y=1", nil); code != http.StatusBadRequest {
		t.Errorf("bad x code %d", code)
	}
}

func TestActionAuth(t *testing.T) {
	ts := newTestServer(t, &Server{Session: testSession(t, 100)})
	if resp := postAction(t, ts.URL, testKey, map[string]any{"action": "cut"}); resp.StatusCode != http.StatusForbidden {
		t.Errorf("no admin key configured: code %d", resp.StatusCode)
	}

	ts = newTestServer(t, &Server{Session: testSession(t, 100), AdminKey: testKey})
	if resp := postAction(t, ts.URL, "", map[string]any{"action": "cut"}); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing token: code %d", resp.StatusCode)
	}
	if resp := postAction(t, ts.URL, "wrong", map[string]any{"action": "cut"}); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: code %d", resp.StatusCode)
	}
}

func TestStartActionOverHTTP(t *testing.T) {
	sess := testSession(t, 100)
	ts := newTestServer(t, &Server{Session: sess, AdminKey: testKey})

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"by position", map[string]any{"action": "cut", "x": 100, "y": 55}, http.StatusOK},
		{"by id", map[string]any{"action": "cut", "connection": 1}, http.StatusOK},
		{"too expensive", map[string]any{"action": "hit", "person": 1}, http.StatusConflict},
		{"unknown action", map[string]any{"action": "nuke"}, http.StatusNotFound},
		{"nothing there", map[string]any{"action": "cut", "x": 100, "y": 500}, http.StatusBadRequest},
		{"bad id", map[string]any{"action": "cut", "connection": 9}, http.StatusBadRequest},
		{"no target at all", map[string]any{"action": "cut"}, http.StatusBadRequest},
		{"area without position", map[string]any{"action": "flood"}, http.StatusBadRequest},
		{"area missing y", map[string]any{"action": "flood", "x": 150}, http.StatusBadRequest},
		{"area at origin", map[string]any{"action": "flood", "x": 0, "y": 0}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := postAction(t, ts.URL, testKey, tt.body); resp.StatusCode != tt.code {
				t.Errorf("code %d, want %d", resp.StatusCode, tt.code)
			}
		})
	}

	if got := sess.Status().Influence; got != 50 {
		t.Errorf("influence %v after two cuts and a free flood, want 50", got)
	}
	if got := sess.Status().Actions; got != 3 {
		t.Errorf("%d actions running, want 3", got)
	}

	var actions []actionInfo
	getJSON(t, ts.URL+"/api/v1/actions", &actions)
	if len(actions) != 3 || !actions[0].Affordable || actions[1].Affordable || !actions[2].Affordable {
		t.Errorf("actions = %+v", actions)
	}
}

func TestNewsEndpoint(t *testing.T) {
	sess := testSession(t, 100)
	sess.With(func(w *engine.World) {
		def, _ := w.Config().Action("cut")
		def.NewsStart = []config.NewsText{{Text: "Lines between %c are down.", Weight: 1}}
		if _, err := w.StartAction(def, engine.ConnectionTarget(0)); err != nil {
			t.Fatal(err)
		}
	})
	sess.Step()
	ts := newTestServer(t, &Server{Session: sess})

	var events []engine.Event
	getJSON(t, ts.URL+"/api/v1/news?category=action_start", &events)
	if len(events) != 1 || events[0].Description != "Lines between Alice and Bob are down." {
		t.Errorf("news = %+v", events)
	}
	getJSON(t, ts.URL+"/api/v1/news?category=rumor", &events)
	if len(events) != 0 {
		t.Errorf("rumor news = %+v", events)
	}
}

func TestRunsWithoutDB(t *testing.T) {
	ts := newTestServer(t, &Server{Session: testSession(t, 0)})
	if code := getJSON(t, ts.URL+"/api/v1/runs", nil); code != http.StatusServiceUnavailable {
		t.Errorf("code %d", code)
	}
}

func TestRunDetail(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	sess := testSession(t, 100)
	var rec *persistence.Recorder
	sess.With(func(w *engine.World) { rec, err = persistence.NewRecorder(db, w, 1) })
	if err != nil {
		t.Fatal(err)
	}
	sess.OnTick = rec.Record
	for i := 0; i < 3; i++ {
		sess.Step()
	}
	news := []engine.Event{{Tick: 3, Description: "Lines are down.", Category: engine.CategoryActionStart}}
	if err := db.SaveEvents(rec.RunID, news); err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, &Server{Session: sess, DB: db})

	var detail runDetail
	if code := getJSON(t, ts.URL+"/api/v1/runs/"+rec.RunID, &detail); code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	if detail.Run.ID != rec.RunID || detail.Run.People != 3 || detail.Run.Connections != 2 {
		t.Errorf("run = %+v", detail.Run)
	}
	if len(detail.Samples) != 3 || detail.Samples[2].Tick != 3 {
		t.Errorf("samples = %+v", detail.Samples)
	}
	if len(detail.Events) == 0 || detail.Events[0].Description != "Lines are down." {
		t.Errorf("events = %+v", detail.Events)
	}

	var latest runDetail
	if code := getJSON(t, ts.URL+"/api/v1/runs/latest", &latest); code != http.StatusOK {
		t.Fatalf("latest code %d", code)
	}
	if latest.Run.ID != rec.RunID {
		t.Errorf("latest resolved to %q, want %q", latest.Run.ID, rec.RunID)
	}

	if code := getJSON(t, ts.URL+"/api/v1/runs/no-such-run", nil); code != http.StatusNotFound {
		t.Errorf("unknown run code %d", code)
	}
}

func TestRunDetailEmptyDB(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ts := newTestServer(t, &Server{Session: testSession(t, 0), DB: db})
	if code := getJSON(t, ts.URL+"/api/v1/runs/latest", nil); code != http.StatusNotFound {
		t.Errorf("latest with no runs: code %d", code)
	}
	ts = newTestServer(t, &Server{Session: testSession(t, 0)})
	if code := getJSON(t, ts.URL+"/api/v1/runs/latest", nil); code != http.StatusServiceUnavailable {
		t.Errorf("no database: code %d", code)
	}
}

func TestSpeedControl(t *testing.T) {
	eng := engine.NewEngine(1)
	ts := newTestServer(t, &Server{Session: testSession(t, 0), Eng: eng, AdminKey: testKey})

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/speed", strings.NewReader(`{"speed": 4}`))
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || eng.Speed() != 4 {
		t.Fatalf("code %d speed %v", resp.StatusCode, eng.Speed())
	}
}

func TestStream(t *testing.T) {
	sess := testSession(t, 100)
	ts := newTestServer(t, &Server{Session: sess})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello struct {
		Type    string       `json:"type"`
		Payload helloPayload `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if hello.Type != "hello" || hello.Payload.Status.Population != 3 {
		t.Fatalf("hello = %+v", hello)
	}

	// The subscription is registered before hello is written.
	sess.Step()

	var frame struct {
		Type    string            `json:"type"`
		Payload engine.TickReport `json:"payload"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != "tick" || frame.Payload.Tick != 1 {
		t.Errorf("frame = %+v", frame)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients are independent")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Errorf("RetryAfter = %d", got)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("window should reset")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Errorf("clientIP = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := clientIP(r); got != "1.2.3.4" {
		t.Errorf("clientIP with XFF = %q", got)
	}
}
