package main

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/damage-control/internal/persistence"
	"github.com/talgya/damage-control/internal/world"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("rumorsim %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestParseScript(t *testing.T) {
	tests := []struct {
		in      string
		want    scripted
		wantErr bool
	}{
		{in: "mugger@10:p=3", want: scripted{Action: "mugger", Tick: 10, Person: 3, Connection: -1}},
		{in: "cut@0:c=12", want: scripted{Action: "cut", Tick: 0, Person: -1, Connection: 12}},
		{in: "storm@200:300,250.5", want: scripted{Action: "storm", Tick: 200, Person: -1, Connection: -1,
			Pos: &world.Point{X: 300, Y: 250.5}}},
		{in: "mugger@10", wantErr: true},
		{in: "@10:p=3", wantErr: true},
		{in: "mugger@soon:p=3", wantErr: true},
		{in: "mugger@10:p=x", wantErr: true},
		{in: "storm@1:300", wantErr: true},
		{in: "storm@1:3,y", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseScript(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseScript(%q) = %+v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Action != tt.want.Action || got.Tick != tt.want.Tick ||
				got.Person != tt.want.Person || got.Connection != tt.want.Connection {
				t.Errorf("parseScript(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if (got.Pos == nil) != (tt.want.Pos == nil) || (got.Pos != nil && *got.Pos != *tt.want.Pos) {
				t.Errorf("pos = %v, want %v", got.Pos, tt.want.Pos)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	} {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGenerateCommand(t *testing.T) {
	out := execute(t, "generate", "--seed", "5")
	for _, want := range []string{"seed         5", "people       50", "source       "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if again := execute(t, "generate", "--seed", "5"); again != out {
		t.Error("same seed produced a different world")
	}
	if js := execute(t, "generate", "--seed", "5", "--json"); !strings.HasPrefix(js, "{") {
		t.Errorf("--json output = %.40q", js)
	}
}

func TestRunCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs", "test.db")
	out := execute(t, "run", "--seed", "3", "--max-ticks", "50",
		"--action", "nonsense@5:p=0", "--db", dbPath)
	if !strings.Contains(out, "after 50 ticks") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "0 actions started, 1 skipped") {
		t.Errorf("unknown action not reported as skipped:\n%s", out)
	}

	db, err := persistence.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	runs, err := db.Runs(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Seed != 3 || runs[0].FinalTick != 50 || runs[0].FinishedAt == nil {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunCommandRejectsBadScript(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"run", "--action", "mugger"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for a malformed --action")
	}
}
