package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the configured layer definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDATASET\tGROUP BY\tSCHEDULE")
			for _, l := range a.Exports.Layers() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					l.Name, l.Dataset, strings.Join(l.GroupBy, ","), l.ScheduleCron)
			}
			return w.Flush()
		},
	}
}
