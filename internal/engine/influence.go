package engine

import "github.com/talgya/damage-control/internal/config"

// Influence is the player's spendable resource. It grows a little every tick.
type Influence struct {
	Points float64
	Growth float64 // per tick
}

// NewInfluence returns a ledger with the configured starting points.
func NewInfluence(cfg config.InfluenceConfig) *Influence {
	return &Influence{Points: cfg.Initial, Growth: cfg.GrowthPerTick}
}

// CanAfford reports whether cost can be paid now.
func (in *Influence) CanAfford(cost float64) bool {
	return cost <= in.Points
}

// Spend pays cost. Callers check CanAfford first.
func (in *Influence) Spend(cost float64) {
	in.Points -= cost
}

// Grow adds one tick's worth of influence.
func (in *Influence) Grow() {
	in.Points += in.Growth
}
