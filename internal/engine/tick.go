package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Engine drives a simulation forward in real time.
type Engine struct {
	Interval time.Duration // base tick interval at speed 1
	DayTicks uint64        // ticks per simulated day

	// Callbacks for each tick layer, populated during setup.
	OnTick func(tick uint64) // every tick
	OnDay  func(tick uint64) // every DayTicks ticks

	// Stop the loop once this returns true. Optional.
	Done func() bool

	tick    atomic.Uint64
	speed   atomic.Uint64 // float64 bits; 0 = paused
	running atomic.Bool
	stop    chan struct{}
	once    sync.Once
}

// NewEngine creates an engine running at speed 1, where a simulated day of
// dayTicks ticks lasts four seconds.
func NewEngine(dayTicks int) *Engine {
	if dayTicks <= 0 {
		dayTicks = 1
	}
	e := &Engine{
		Interval: 4 * time.Second / time.Duration(dayTicks),
		DayTicks: uint64(dayTicks),
		stop:     make(chan struct{}),
	}
	e.SetSpeed(1)
	return e
}

// Tick returns the number of ticks stepped so far.
func (e *Engine) Tick() uint64 { return e.tick.Load() }

// Speed returns the multiplier: 1.0 = real time, 0 = paused.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed changes the multiplier. Negative speeds pause.
func (e *Engine) SetSpeed(v float64) {
	e.speed.Store(math.Float64bits(math.Max(0, v)))
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool { return e.running.Load() }

// Run steps the simulation until Stop is called, ctx is cancelled or Done
// reports true.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick(), "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return
		default:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused: check again shortly.
			e.sleep(ctx, 100*time.Millisecond)
			continue
		}

		start := time.Now()
		e.step()
		if e.Done != nil && e.Done() {
			slog.Info("simulation finished", "tick", e.Tick())
			return
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			e.sleep(ctx, target-elapsed)
		}
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-e.stop:
	}
}

// Stop halts the loop. It may be called more than once.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stop) })
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	tick := e.tick.Add(1)
	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if e.DayTicks > 0 && tick%e.DayTicks == 0 && e.OnDay != nil {
		e.OnDay(tick)
	}
}

// SimTime returns a human-readable time for a tick.
func SimTime(tick uint64, dayTicks int) string {
	if dayTicks <= 0 {
		return fmt.Sprintf("tick %d", tick)
	}
	day := tick/uint64(dayTicks) + 1
	frac := float64(tick%uint64(dayTicks)) / float64(dayTicks)
	mins := int(frac * 24 * 60)
	return fmt.Sprintf("Day %d, %d:%02d", day, mins/60, mins%60)
}
