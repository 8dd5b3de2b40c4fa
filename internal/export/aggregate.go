package export

import (
	"context"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
)

// aggregate validates the group and statistic specs against the input
// dataset, injects the placeholder statistic when needed, and runs the
// dissolve into the output dataset, reconciling generated field names back
// to their source names when rename is requested.
//
// Unknown group and statistic fields are dropped silently: grouping degrades
// gracefully rather than failing. If no group column survives validation,
// aggregation is skipped entirely and false is returned so the caller falls
// back to the direct copy path.
func (e *Exporter) aggregate(ctx context.Context, input, output string, groupBy []string, stats []domain.Statistic, rename bool) (bool, error) {
	fields, err := e.store.Fields(ctx, input)
	if err != nil {
		return false, err
	}

	validGroup, _ := filterExisting(fields, groupBy)
	if len(validGroup) == 0 {
		return false, nil
	}

	var validStats []domain.Statistic
	for _, st := range stats {
		if FieldExists(fields, st.Field) {
			validStats = append(validStats, st)
		}
	}

	// The grouping primitive requires a non-empty aggregate list; when the
	// caller asked for grouping without statistics, inject a placeholder on
	// the first group column. Structural requirement only; the result is
	// not surfaced unless the caller projects it.
	if len(validStats) == 0 {
		validStats = []domain.Statistic{{Field: validGroup[0], Func: domain.StatFirst}}
	}

	op := geostore.Dissolve{
		Input:      input,
		Output:     output,
		GroupBy:    validGroup,
		Statistics: validStats,
	}
	if err := e.store.Run(ctx, op); err != nil {
		return false, err
	}
	e.logger.Info("aggregation complete", "dataset", input, "groups", validGroup, "statistics", len(validStats))

	if rename {
		if err := e.reconcile(ctx, fields, validGroup, validStats, output); err != nil {
			return false, err
		}
	}
	return true, nil
}
