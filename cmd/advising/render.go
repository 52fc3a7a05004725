package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/advising-hub/internal/domain/content"
	"github.com/alem-hub/advising-hub/internal/domain/daterange"
	"github.com/alem-hub/advising-hub/internal/infrastructure/datasource"
	"github.com/alem-hub/advising-hub/pkg/timeutil"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render dashboard widgets without a server",
	}
	cmd.AddCommand(newRenderContentCmd(), newRenderDateRangeCmd())
	return cmd
}

func newRenderContentCmd() *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:   "content [file.json]",
		Short: "Render a recommendation tree as an outline",
		Long:  "Render a JSON recommendation tree as an indented outline. Without a file the built-in recommendations are used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				node content.Node
				err  error
			)
			if len(args) == 1 {
				data, rerr := os.ReadFile(args[0])
				if rerr != nil {
					return rerr
				}
				node, err = content.Parse(data)
			} else {
				node, err = datasource.LoadRecommendations()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return json.NewEncoder(out).Encode(map[string]any{
					"outline": content.Render(node),
					"stats":   content.Measure(node),
				})
			}
			fmt.Fprint(out, content.Render(node))
			if stats {
				s := content.Measure(node)
				fmt.Fprintf(out, "\n%d scalars, %d sequences, %d mappings, depth %d\n",
					s.Scalars, s.Sequences, s.Mappings, s.MaxDepth)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "Print node counts after the outline")
	return cmd
}

func newRenderDateRangeCmd() *cobra.Command {
	var (
		picks []string
		zone  string
		now   string
	)

	cmd := &cobra.Command{
		Use:   "daterange",
		Short: "Replay date picks and show the range the picker closes with",
		Example: `  advising render daterange --pick 2026-03-01
  advising render daterange --pick 2026-03-05 --pick 2026-03-02`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := time.LoadLocation(zone)
			if err != nil {
				return err
			}
			var clock timeutil.Clock = timeutil.NewSystemClock(zone)
			if now != "" {
				t, err := time.ParseInLocation(time.DateOnly, now, loc)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				clock = timeutil.NewFixedClock(t, loc)
			}

			p := daterange.NewPicker(clock)
			for _, raw := range picks {
				t, err := time.ParseInLocation(time.DateOnly, raw, loc)
				if err != nil {
					return fmt.Errorf("--pick %q: %w", raw, err)
				}
				p.Pick(t)
			}

			out := cmd.OutOrStdout()
			r, ok := p.Close()
			if jsonOutput {
				resp := map[string]any{"phase": p.Phase()}
				if ok {
					resp["range"] = r
				}
				return json.NewEncoder(out).Encode(resp)
			}
			if !ok {
				fmt.Fprintln(out, "no range selected")
				return nil
			}
			fmt.Fprintf(out, "%s to %s\n", timeutil.FormatDate(r.Start, loc), timeutil.FormatDate(r.End, loc))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&picks, "pick", nil, "Day clicked in the picker, YYYY-MM-DD (repeatable)")
	cmd.Flags().StringVar(&zone, "tz", timeutil.DefaultZoneName, "Time zone used for days and for now")
	cmd.Flags().StringVar(&now, "now", "", "Pretend today is this day, YYYY-MM-DD")
	return cmd
}
