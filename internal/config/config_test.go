package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"empty catalog", func(c *Config) { c.Methods = nil }, ErrEmptyCatalog},
		{"zero frequencies", func(c *Config) {
			for i := range c.Methods {
				c.Methods[i].Freq = 0
			}
		}, ErrEmptyCatalog},
		{"unknown affected method", func(c *Config) {
			c.Actions[0].Affects = []string{"smoke signals"}
		}, ErrUnknownMethod},
		{"area without radius", func(c *Config) {
			c.Actions = []ActionDef{{ID: "x", Target: TargetArea, Affects: []string{"phone"}, Time: DayRange{1, 1, 1}}}
		}, ErrInvalidAction},
		{"bad time range", func(c *Config) { c.Actions[0].Time = DayRange{3, 2, 1} }, ErrInvalidDistribution},
		{"bad gamma", func(c *Config) { c.Gen.ConsPerPerson.Shape = 0 }, ErrInvalidDistribution},
		{"too dense", func(c *Config) {
			c.Gen.People = 2000
		}, ErrInfeasiblePlacement},
		{"no people", func(c *Config) { c.Gen.People = 0 }, ErrInvalidGen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSpeedPerTick(t *testing.T) {
	byDist := MethodDef{ID: "walk", ByDistance: true, Speed: 10}
	if got := byDist.SpeedPerTick(50, 10); got != 0.02 {
		t.Errorf("distance method speed = %v, want 0.02", got)
	}
	fixed := MethodDef{ID: "phone", Time: 2}
	if got := fixed.SpeedPerTick(50, 10); got != 0.05 {
		t.Errorf("fixed-time method speed = %v, want 0.05", got)
	}
	if got := fixed.SpeedPerTick(500, 10); got != 0.05 {
		t.Errorf("fixed-time method should ignore distance, got %v", got)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	data := `
gen:
  people: 20
  seed: 7
day_ticks: 30
methods:
  - id: shout
    by_distance: true
    speed: 40
    freq: 1
actions:
  - id: gag
    desc: gag someone
    target: person
    cost: 5
    affects: [shout]
    time: {min: 1, mode: 1, max: 2}
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Gen.People != 20 || cfg.Gen.Seed != 7 {
		t.Errorf("gen overlay not applied: %+v", cfg.Gen)
	}
	if cfg.Gen.Width != DefaultGenConfig().Width {
		t.Errorf("unset width should keep default, got %v", cfg.Gen.Width)
	}
	if len(cfg.Methods) != 1 || cfg.Methods[0].ID != "shout" {
		t.Errorf("methods = %+v, want single shout", cfg.Methods)
	}
	if a, ok := cfg.Action("gag"); !ok || a.Target != TargetPerson {
		t.Errorf("action gag not loaded: %+v", a)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
