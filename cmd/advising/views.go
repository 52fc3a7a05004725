package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/advising-hub/config"
)

func newViewsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "views",
		Short: "List the views in the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = os.Getenv("VIEWS_FILE")
			}
			cat, err := config.LoadViews(file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cat.Views)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTITLE\tSOURCE\tPAGE SIZE\tSELECT ALL")
			for _, v := range cat.Views {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", v.Name, v.Title, v.Source.Kind, v.PageSize, v.SelectAll)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "View catalog to read (default: VIEWS_FILE or the built-in catalog)")
	return cmd
}
