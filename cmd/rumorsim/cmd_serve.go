package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/damage-control/internal/api"
	"github.com/talgya/damage-control/internal/engine"
	"github.com/talgya/damage-control/internal/persistence"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation in real time behind the HTTP API",
		Long: `serve ticks the simulation in real time and exposes it over HTTP.
Actions and speed changes need RUMORSIM_ADMIN_KEY as a bearer token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			port, _ := cmd.Flags().GetInt("port")
			dbPath, _ := cmd.Flags().GetString("db")
			stopWhenDone, _ := cmd.Flags().GetBool("exit-when-done")
			speed, _ := cmd.Flags().GetFloat64("speed")

			// ── World ─────────────────────────────────────────────────
			influence := engine.NewInfluence(cfg.Influence)
			w, err := engine.New(cfg, influence)
			if err != nil {
				return err
			}
			sess := engine.NewSession(w, influence)

			// ── Database ──────────────────────────────────────────────
			var db *persistence.DB
			var rec *persistence.Recorder
			if dbPath != "" {
				if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
					return fmt.Errorf("creating db directory: %w", err)
				}
				if db, err = persistence.Open(dbPath); err != nil {
					return err
				}
				defer db.Close()
				if rec, err = persistence.NewRecorder(db, w, uint64(cfg.DayTicks)); err != nil {
					return err
				}
				sess.OnTick = rec.Record
				slog.Info("database opened", "path", dbPath, "run", rec.RunID)
			}

			// ── Engine ────────────────────────────────────────────────
			eng := engine.NewEngine(cfg.DayTicks)
			eng.SetSpeed(speed)
			eng.OnTick = func(uint64) { sess.Step() }
			eng.OnDay = func(tick uint64) {
				st := sess.Status()
				slog.Info("day", "time", engine.SimTime(tick, cfg.DayTicks),
					"informed", fmt.Sprintf("%d/%d", st.Informed, st.Population),
					"influence", humanize.FtoaWithDigits(st.Influence, 1),
					"actions", st.Actions)
			}
			if stopWhenDone {
				eng.Done = func() bool { return sess.Status().Done }
			}

			// ── HTTP API ──────────────────────────────────────────────
			adminKey := os.Getenv("RUMORSIM_ADMIN_KEY")
			if adminKey == "" {
				slog.Warn("RUMORSIM_ADMIN_KEY not set, action and speed endpoints are disabled")
			}
			apiServer := &api.Server{
				Session:  sess,
				Eng:      eng,
				DB:       db,
				Port:     port,
				AdminKey: adminKey,
			}
			srv := apiServer.Start()

			// ── Start ─────────────────────────────────────────────────
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st := sess.Status()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "A town of %s people is about to hear that %s.\n",
				humanize.Comma(int64(st.Population)), st.Fact)
			fmt.Fprintf(out, "API: http://localhost:%d/api/v1/status\n", port)
			fmt.Fprintln(out, "Starting simulation... (Ctrl+C to stop)")

			eng.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP shutdown failed", "error", err)
			}

			st = sess.Status()
			if rec != nil {
				if err := rec.Finish(st.Tick, st.Informed); err != nil {
					slog.Error("final save failed", "error", err)
				}
			}
			fmt.Fprintf(out, "Simulation stopped at %s with %d of %d informed.\n",
				engine.SimTime(st.Tick, cfg.DayTicks), st.Informed, st.Population)
			return nil
		},
	}
	cmd.Flags().Int("port", 8080, "HTTP port")
	cmd.Flags().String("db", "", "Record the run to this SQLite file")
	cmd.Flags().Float64("speed", 1, "Initial speed multiplier (0 starts paused)")
	cmd.Flags().Bool("exit-when-done", false, "Exit once nobody else can be told")
	return cmd
}
