package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/engine"
	"github.com/talgya/damage-control/internal/persistence"
	"github.com/talgya/damage-control/internal/world"
)

// scripted is an action to start before a given tick.
type scripted struct {
	Action string
	Tick   uint64

	// Exactly one of these is used, depending on the target.
	Person     int
	Connection int
	Pos        *world.Point
}

// parseScript reads "id@tick:target" where target is p=ID, c=ID or X,Y.
// A position picks whatever of the action's target kind is there.
func parseScript(s string) (scripted, error) {
	sc := scripted{Person: -1, Connection: -1}
	head, target, ok := strings.Cut(s, ":")
	if !ok {
		return sc, fmt.Errorf("action %q: want id@tick:target", s)
	}
	id, tick, ok := strings.Cut(head, "@")
	if !ok || id == "" {
		return sc, fmt.Errorf("action %q: want id@tick:target", s)
	}
	t, err := strconv.ParseUint(tick, 10, 64)
	if err != nil {
		return sc, fmt.Errorf("action %q: bad tick: %w", s, err)
	}
	sc.Action, sc.Tick = id, t

	switch {
	case strings.HasPrefix(target, "p="):
		sc.Person, err = strconv.Atoi(target[2:])
	case strings.HasPrefix(target, "c="):
		sc.Connection, err = strconv.Atoi(target[2:])
	default:
		xs, ys, found := strings.Cut(target, ",")
		if !found {
			return sc, fmt.Errorf("action %q: target must be p=ID, c=ID or X,Y", s)
		}
		var p world.Point
		if p.X, err = strconv.ParseFloat(xs, 64); err == nil {
			p.Y, err = strconv.ParseFloat(ys, 64)
		}
		sc.Pos = &p
	}
	if err != nil {
		return sc, fmt.Errorf("action %q: bad target: %w", s, err)
	}
	return sc, nil
}

// target resolves sc against w for an action aimed at kind.
func (sc scripted) target(w *engine.World, kind config.TargetKind) (engine.Target, error) {
	switch {
	case sc.Person >= 0:
		return engine.PersonTarget(sc.Person), nil
	case sc.Connection >= 0:
		return engine.ConnectionTarget(sc.Connection), nil
	case sc.Pos != nil && kind == config.TargetArea:
		return engine.AreaTarget(*sc.Pos), nil
	case sc.Pos != nil:
		e, ok := w.EntityNear(*sc.Pos, engine.KindsFor(kind))
		if !ok {
			return engine.Target{}, fmt.Errorf("%w: no %s at %s", engine.ErrUnknownTarget, kind, *sc.Pos)
		}
		return e.Target(*sc.Pos), nil
	}
	return engine.Target{}, errors.New("empty target")
}

type runResult struct {
	Ticks    uint64
	Informed int
	People   int
	Spent    float64
	Started  int
	Failed   int
	Events   []engine.Event
}

// simulate steps s until the rumour stops spreading or maxTicks, starting
// the scripted actions on time. Actions that cannot start are logged and
// skipped.
func simulate(s *engine.Session, script []scripted, maxTicks uint64) runResult {
	sort.SliceStable(script, func(i, j int) bool { return script[i].Tick < script[j].Tick })
	var res runResult
	startPoints := s.Status().Influence

	next := 0
	for {
		st := s.Status()
		for next < len(script) && script[next].Tick <= st.Tick {
			sc := script[next]
			next++
			var err error
			s.With(func(w *engine.World) {
				def, ok := w.Config().Action(sc.Action)
				if !ok {
					err = fmt.Errorf("%w: %q", engine.ErrUnknownAction, sc.Action)
					return
				}
				var t engine.Target
				if t, err = sc.target(w, def.Target); err == nil {
					_, err = w.StartAction(def, t)
				}
			})
			if err != nil {
				slog.Warn("scripted action skipped", "action", sc.Action, "tick", st.Tick, "error", err)
				res.Failed++
				continue
			}
			res.Started++
		}

		if st.Done || st.Tick >= maxTicks {
			break
		}
		rep := s.Step()
		res.Events = append(res.Events, rep.Events...)
	}

	st := s.Status()
	res.Ticks = st.Tick
	res.Informed = st.Informed
	res.People = st.Population
	// Growth is credited every tick, so spending is what growth does not explain.
	res.Spent = startPoints + float64(st.Tick)*growthOf(s) - st.Influence
	return res
}

func growthOf(s *engine.Session) float64 {
	var g float64
	s.With(func(w *engine.World) { g = w.Config().Influence.GrowthPerTick })
	return g
}

func printSummary(out io.Writer, res runResult, dayTicks int, verbose bool) {
	if verbose {
		for _, e := range res.Events {
			fmt.Fprintf(out, "[%s] %s\n", engine.SimTime(e.Tick, dayTicks), e.Description)
		}
	}
	days := float64(res.Ticks) / float64(dayTicks)
	if res.Informed == res.People {
		fmt.Fprintf(out, "Everyone knew after %s ticks (%s days).\n",
			humanize.Comma(int64(res.Ticks)), humanize.FtoaWithDigits(days, 1))
	} else {
		fmt.Fprintf(out, "%d of %d people knew after %s ticks (%s days).\n",
			res.Informed, res.People, humanize.Comma(int64(res.Ticks)), humanize.FtoaWithDigits(days, 1))
	}
	if res.Started+res.Failed > 0 {
		fmt.Fprintf(out, "%d actions started, %d skipped, %s influence spent.\n",
			res.Started, res.Failed, humanize.FtoaWithDigits(res.Spent, 1))
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation headless until the rumour stops spreading",
		Example: `  rumorsim run --seed 7
  rumorsim run --action mugger@10:p=3 --action storm@200:300,250 --db runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			maxTicks, _ := cmd.Flags().GetUint64("max-ticks")
			dbPath, _ := cmd.Flags().GetString("db")
			verbose, _ := cmd.Flags().GetBool("news")
			specs, _ := cmd.Flags().GetStringArray("action")

			script := make([]scripted, 0, len(specs))
			for _, spec := range specs {
				sc, err := parseScript(spec)
				if err != nil {
					return err
				}
				script = append(script, sc)
			}

			influence := engine.NewInfluence(cfg.Influence)
			w, err := engine.New(cfg, influence)
			if err != nil {
				return err
			}
			sess := engine.NewSession(w, influence)

			var rec *persistence.Recorder
			if dbPath != "" {
				if dir := filepath.Dir(dbPath); dir != "." {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return fmt.Errorf("creating db directory: %w", err)
					}
				}
				db, err := persistence.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if rec, err = persistence.NewRecorder(db, w, uint64(cfg.DayTicks)); err != nil {
					return err
				}
				sess.OnTick = rec.Record
				slog.Info("recording run", "db", dbPath, "run", rec.RunID)
			}

			res := simulate(sess, script, maxTicks)
			if rec != nil {
				if err := rec.Finish(res.Ticks, res.Informed); err != nil {
					return err
				}
			}
			printSummary(cmd.OutOrStdout(), res, cfg.DayTicks, verbose)
			return nil
		},
	}
	cmd.Flags().Uint64("max-ticks", 1_000_000, "Stop after this many ticks")
	cmd.Flags().String("db", "", "Record the run to this SQLite file")
	cmd.Flags().Bool("news", false, "Print every news item")
	cmd.Flags().StringArray("action", nil, "Scripted action id@tick:target (target p=ID, c=ID or X,Y); repeatable")
	return cmd
}
