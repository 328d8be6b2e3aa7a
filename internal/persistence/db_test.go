package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.BeginRun(42, 12, 20, "you hate fruit")
	if err != nil {
		t.Fatal(err)
	}
	events := []engine.Event{
		{Tick: 3, Description: "first", Category: engine.CategoryRumor},
		{Tick: 5, Description: "second", Category: engine.CategoryActionStart},
	}
	if err := db.SaveEvents(id, events); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveEvents(id, nil); err != nil {
		t.Fatal(err)
	}

	got, err := db.RecentEvents(id, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Description != "second" || got[1].Tick != 3 {
		t.Fatalf("RecentEvents = %+v", got)
	}

	for _, s := range []Sample{{Tick: 1, Informed: 1}, {Tick: 9, Informed: 4, Influence: 12.5}} {
		if err := db.SaveSample(id, s); err != nil {
			t.Fatal(err)
		}
	}
	samples, err := db.Samples(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 || samples[1].Influence != 12.5 {
		t.Fatalf("Samples = %+v", samples)
	}

	if err := db.FinishRun(id, 9, 4); err != nil {
		t.Fatal(err)
	}
	run, err := db.Run(id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Seed != 42 || run.FinalTick != 9 || run.Informed != 4 || run.FinishedAt == nil {
		t.Errorf("run = %+v", run)
	}

	if err := db.FinishRun("missing", 1, 1); err == nil {
		t.Error("finishing an unknown run should fail")
	}
}

func TestRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	first, _ := db.BeginRun(1, 1, 0, "a")
	second, _ := db.BeginRun(2, 1, 0, "b")

	runs, err := db.Runs(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs", len(runs))
	}
	ids := map[string]bool{runs[0].ID: true, runs[1].ID: true}
	if !ids[first] || !ids[second] {
		t.Errorf("runs = %+v", runs)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta("k"); err != nil || v != "v2" {
		t.Errorf("GetMeta = %q, %v", v, err)
	}
	if _, err := db.GetMeta("absent"); err == nil {
		t.Error("expected error for absent key")
	}
}

func TestRecorderFollowsSession(t *testing.T) {
	db := openTestDB(t)

	cfg := config.Default()
	cfg.Gen = config.SmallTestConfig()
	in := engine.NewInfluence(cfg.Influence)
	w, err := engine.New(cfg, in)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := NewRecorder(db, w, 100)
	if err != nil {
		t.Fatal(err)
	}
	s := engine.NewSession(w, in)
	s.OnTick = rec.Record

	var last engine.TickReport
	for i := 0; i < 300; i++ {
		last = s.Step()
	}
	if err := rec.Finish(last.Tick, last.Informed); err != nil {
		t.Fatal(err)
	}

	samples, err := db.Samples(rec.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) < 3 {
		t.Fatalf("only %d samples", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Informed < samples[i-1].Informed {
			t.Fatalf("informed decreased between samples %d and %d", i-1, i)
		}
	}
	if v, _ := db.GetMeta("last_run"); v != rec.RunID {
		t.Errorf("last_run = %q, want %q", v, rec.RunID)
	}
}
