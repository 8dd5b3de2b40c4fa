package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"geoexport/internal/domain"
	"geoexport/internal/service"
)

func newExportCmd() *cobra.Command {
	var (
		layerNames []string
		x, y       float64
		radius     float64
		outFile    string
		keepDir    string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run a site export for the selected layers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := a.Exports.RunSite(cmd.Context(), service.SiteParams{
				Layers:        layerNames,
				X:             x,
				Y:             y,
				Radius:        radius,
				OutFile:       outFile,
				KeepLayerDir:  keepDir,
				ExcludeHeader: noHeader,
				TriggerType:   domain.TriggerTypeManual,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows written to %s\n", run.ID, run.RowCount, run.Destination)
			return nil
		},
	}

	siteFlags(cmd.Flags(), &x, &y, &radius)
	cmd.Flags().StringSliceVar(&layerNames, "layer", nil, "layer to export (repeatable; default: all defined layers)")
	cmd.Flags().StringVar(&outFile, "out", "", "output file (relative names resolve under EXPORT_DIR)")
	cmd.Flags().StringVar(&keepDir, "keep-dir", "", "directory for permanent copies of keep_layer layers")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "exclude the header line")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
