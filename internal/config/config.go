// Package config provides the typed configuration for world generation,
// the method and action catalogs, and the ambient settings of the CLI.
// Values start from Default() and can be overlaid from a YAML file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configuration errors. Validate wraps these so callers can match with errors.Is.
var (
	ErrEmptyCatalog        = errors.New("method catalog is empty")
	ErrUnknownMethod       = errors.New("unknown method")
	ErrInvalidAction       = errors.New("invalid action definition")
	ErrInvalidDistribution = errors.New("invalid distribution")
	ErrInfeasiblePlacement = errors.New("people cannot fit in the map region")
	ErrInvalidGen          = errors.New("invalid generation parameters")
)

// Random sequential placement stops finding room well before perfect packing.
// Coverage above this fraction of the region is rejected up front.
const jammingCoverage = 0.54

// Gamma parameterises a gamma distribution by shape and scale
// (mean = Shape*Scale).
type Gamma struct {
	Shape float64 `yaml:"shape"`
	Scale float64 `yaml:"scale"`
}

// Mean returns the expected value of the distribution.
func (g Gamma) Mean() float64 {
	return g.Shape * g.Scale
}

// GenConfig holds world generation parameters.
type GenConfig struct {
	People int `yaml:"people"`

	// Map region in pixels. No person is placed within Border of the edge.
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Border float64 `yaml:"border"`

	// People are at least 2*PersonRadius + PersonNearest apart.
	PersonRadius  float64 `yaml:"person_radius"`
	PersonNearest float64 `yaml:"person_nearest"`

	ConsPerPerson       Gamma   `yaml:"cons_per_person"`
	MaxConsPerPerson    int     `yaml:"max_cons_per_person"`
	ShortConnectionBias float64 `yaml:"short_connection_bias"`
	MethodsPerCon       Gamma   `yaml:"methods_per_con"`

	Areas int `yaml:"areas"`

	// Clustering in [0, 1] biases placement toward high-density noise regions.
	// 0 places people uniformly.
	Clustering float64 `yaml:"clustering"`

	// Number of people given one of the full names ("your mother", ...).
	NotableNames int `yaml:"notable_names"`

	// Rejected draws allowed per person before placement gives up.
	MaxPlacementAttempts int `yaml:"max_placement_attempts"`

	// Click radius around a connection line.
	ConRadius float64 `yaml:"con_radius"`

	Seed int64 `yaml:"seed"` // 0 = random
}

// MinSpacing returns the minimum distance between two people.
func (g GenConfig) MinSpacing() float64 {
	return 2*g.PersonRadius + g.PersonNearest
}

// InfluenceConfig sets the player's starting influence and its growth.
type InfluenceConfig struct {
	Initial       float64 `yaml:"initial"`
	GrowthPerTick float64 `yaml:"growth_per_tick"`
}

// LoggingConfig configures the slog handler built by the CLI.
type LoggingConfig struct {
	// Level is "debug", "info" (default) or "warn".
	Level string `yaml:"level"`
}

// Config is the complete simulation configuration.
type Config struct {
	Gen       GenConfig       `yaml:"gen"`
	DayTicks  int             `yaml:"day_ticks"`
	Methods   []MethodDef     `yaml:"methods"`
	Actions   []ActionDef     `yaml:"actions"`
	Facts     []string        `yaml:"facts"`
	Influence InfluenceConfig `yaml:"influence"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DefaultGenConfig returns the generation parameters of the stock 602x600 map.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		People:               50,
		Width:                602,
		Height:               600,
		Border:               15,
		PersonRadius:         12,
		PersonNearest:        5,
		ConsPerPerson:        Gamma{Shape: 5, Scale: 0.5},
		MaxConsPerPerson:     6,
		ShortConnectionBias:  4,
		MethodsPerCon:        Gamma{Shape: 3, Scale: 0.5},
		Areas:                6,
		Clustering:           0,
		NotableNames:         10,
		MaxPlacementAttempts: 10000,
		ConRadius:            30,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	g := DefaultGenConfig()
	g.People = 12
	g.Width = 300
	g.Height = 300
	g.Areas = 2
	g.NotableNames = 3
	g.Seed = 42
	return g
}

// Default returns a Config with the stock catalogs.
func Default() *Config {
	return &Config{
		Gen:      DefaultGenConfig(),
		DayTicks: 120,
		Methods:  DefaultMethods(),
		Actions:  DefaultActions(),
		Facts:    DefaultFacts(),
		Influence: InfluenceConfig{
			Initial:       100,
			GrowthPerTick: 0.15,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadFile reads a YAML file and overlays it on the defaults.
// Lists present in the file replace the default lists entirely.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Method returns the catalog entry with the given id.
func (c *Config) Method(id string) (MethodDef, bool) {
	for _, m := range c.Methods {
		if m.ID == id {
			return m, true
		}
	}
	return MethodDef{}, false
}

// Action returns the catalog entry with the given id.
func (c *Config) Action(id string) (ActionDef, bool) {
	for _, a := range c.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return ActionDef{}, false
}

// Validate checks the configuration before any world is built.
func (c *Config) Validate() error {
	if len(c.Methods) == 0 {
		return ErrEmptyCatalog
	}
	if c.DayTicks <= 0 {
		return fmt.Errorf("%w: day_ticks must be positive", ErrInvalidGen)
	}

	seen := make(map[string]bool, len(c.Methods))
	totalFreq := 0.0
	for _, m := range c.Methods {
		if err := m.validate(); err != nil {
			return err
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate method %q", ErrInvalidGen, m.ID)
		}
		seen[m.ID] = true
		totalFreq += m.Freq
	}
	if totalFreq <= 0 {
		return fmt.Errorf("%w: all method frequencies are zero", ErrEmptyCatalog)
	}

	actionIDs := make(map[string]bool, len(c.Actions))
	for _, a := range c.Actions {
		if actionIDs[a.ID] {
			return fmt.Errorf("%w: duplicate action %q", ErrInvalidAction, a.ID)
		}
		actionIDs[a.ID] = true
		if err := a.validate(seen); err != nil {
			return err
		}
	}

	return c.Gen.Validate()
}

// Validate checks generation parameters, including whether the requested
// population can be placed at the requested spacing.
func (g GenConfig) Validate() error {
	if g.People < 1 {
		return fmt.Errorf("%w: people must be at least 1", ErrInvalidGen)
	}
	if g.MaxConsPerPerson < 1 {
		return fmt.Errorf("%w: max_cons_per_person must be at least 1", ErrInvalidGen)
	}
	if g.PersonRadius < 0 || g.PersonNearest <= 0 {
		return fmt.Errorf("%w: person_nearest must be positive", ErrInvalidGen)
	}
	if g.Clustering < 0 || g.Clustering > 1 {
		return fmt.Errorf("%w: clustering must be within [0, 1]", ErrInvalidGen)
	}
	if g.ShortConnectionBias < 0 {
		return fmt.Errorf("%w: short_connection_bias must not be negative", ErrInvalidGen)
	}
	for name, d := range map[string]Gamma{"cons_per_person": g.ConsPerPerson, "methods_per_con": g.MethodsPerCon} {
		if d.Shape <= 0 || d.Scale <= 0 {
			return fmt.Errorf("%w: %s needs positive shape and scale", ErrInvalidDistribution, name)
		}
	}

	w := g.Width - 2*g.Border
	h := g.Height - 2*g.Border
	if w < 0 || h < 0 {
		return fmt.Errorf("%w: border leaves no room", ErrInfeasiblePlacement)
	}
	s := g.MinSpacing()
	needed := float64(g.People) * math.Pi * (s / 2) * (s / 2)
	room := (w + s) * (h + s)
	if needed > jammingCoverage*room {
		return fmt.Errorf("%w: %d people at spacing %.1f need %.0f px², region offers %.0f px²",
			ErrInfeasiblePlacement, g.People, s, needed, jammingCoverage*room)
	}
	return nil
}

func (m MethodDef) validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: method without id", ErrInvalidGen)
	}
	if m.Freq < 0 {
		return fmt.Errorf("%w: method %q has negative freq", ErrInvalidGen, m.ID)
	}
	if m.ByDistance && m.Speed <= 0 {
		return fmt.Errorf("%w: method %q needs a positive speed", ErrInvalidGen, m.ID)
	}
	if !m.ByDistance && m.Time <= 0 {
		return fmt.Errorf("%w: method %q needs a positive time", ErrInvalidGen, m.ID)
	}
	return nil
}

func (a ActionDef) validate(methods map[string]bool) error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: action without id", ErrInvalidAction)
	}
	switch a.Target {
	case TargetPerson, TargetConnection:
	case TargetArea:
		if a.Radius <= 0 {
			return fmt.Errorf("%w: area action %q needs a radius", ErrInvalidAction, a.ID)
		}
	default:
		return fmt.Errorf("%w: action %q has target %q", ErrInvalidAction, a.ID, a.Target)
	}
	if a.Cost < 0 {
		return fmt.Errorf("%w: action %q has negative cost", ErrInvalidAction, a.ID)
	}
	t := a.Time
	if t.Min <= 0 || t.Min > t.Mode || t.Mode > t.Max {
		return fmt.Errorf("%w: action %q time must satisfy 0 < min <= mode <= max", ErrInvalidDistribution, a.ID)
	}
	if len(a.Affects) == 0 {
		return fmt.Errorf("%w: action %q affects no methods", ErrInvalidAction, a.ID)
	}
	for _, m := range a.Affects {
		if !methods[m] {
			return fmt.Errorf("%w: action %q affects %q", ErrUnknownMethod, a.ID, m)
		}
	}
	return nil
}
