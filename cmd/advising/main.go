// Command advising serves the advising dashboard's table sessions and
// renders its content from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"

	jsonOutput bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "advising",
		Short: "Paginated, selectable advising tables over HTTP",
		Long: `advising runs table sessions for the advising dashboard: each session pages
through a view's rows, tracks a selection, and runs bulk actions on it.

Configuration comes from environment variables (APP_*, HTTP_*, DATABASE_URL,
REDIS_*, REMOTE_*, SESSION_*, LOG_*) and the view catalog in VIEWS_FILE.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	root.AddCommand(newServeCmd(), newViewsCmd(), newRenderCmd())
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
