package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/damage-control/internal/world"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a world and describe it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			layout, err := world.Generate(cfg.Gen, cfg.Methods)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(layout)
			}

			deg := layout.Degree()
			maxDeg, total := 0, 0
			for _, d := range deg {
				total += d
				maxDeg = max(maxDeg, d)
			}
			usage := map[string]int{}
			for _, e := range layout.Edges {
				for _, m := range e.Methods {
					usage[m]++
				}
			}
			methods := make([]string, 0, len(usage))
			for m := range usage {
				methods = append(methods, m)
			}
			sort.Slice(methods, func(i, j int) bool {
				if usage[methods[i]] != usage[methods[j]] {
					return usage[methods[i]] > usage[methods[j]]
				}
				return methods[i] < methods[j]
			})

			fmt.Fprintf(out, "seed         %d\n", layout.Seed)
			fmt.Fprintf(out, "people       %s\n", humanize.Comma(int64(len(layout.People))))
			fmt.Fprintf(out, "connections  %s (%d added to join the town up)\n", humanize.Comma(int64(len(layout.Edges))), layout.Bridges)
			fmt.Fprintf(out, "degree       avg %.2f, max %d\n", float64(total)/float64(len(deg)), maxDeg)
			fmt.Fprintf(out, "source       %s\n", layout.People[layout.Source].Name)
			for _, a := range layout.Areas {
				fmt.Fprintf(out, "area         %s at %s\n", a.Name, a.Center)
			}
			for _, m := range methods {
				fmt.Fprintf(out, "method       %-20s on %d connections\n", m, usage[m])
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the whole layout as JSON")
	return cmd
}
