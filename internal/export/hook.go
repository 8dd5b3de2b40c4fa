package export

import (
	"context"
	"log/slog"
	"os/exec"
)

// runPostExportHook invokes the configured external script with the output
// folder, the primary output filename, and the companion spreadsheet
// filename as positional arguments, and waits for it to exit. A non-zero
// exit code (or a failure to start) is logged but never fails the pipeline.
func runPostExportHook(ctx context.Context, logger *slog.Logger, script, outDir, outputName, spreadsheetName string) {
	if script == "" {
		return
	}
	cmd := exec.CommandContext(ctx, script, outDir, outputName, spreadsheetName) //nolint:gosec // operator-configured hook
	if err := cmd.Run(); err != nil {
		logger.Warn("post-export hook failed", "script", script, "error", err)
		return
	}
	logger.Info("post-export hook completed", "script", script)
}
