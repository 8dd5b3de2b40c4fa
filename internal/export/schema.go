// Package export implements the selection export & aggregation pipeline:
// derived-field calculation, group-by aggregation with name reconciliation,
// ordered CSV serialization, and temporary-resource lifecycle management.
package export

import (
	"strings"

	"geoexport/internal/domain"
)

// FieldExists reports whether a field with the given name exists in the
// list, matching by exact name first and then by alias. Both comparisons are
// case-insensitive at this resolution layer.
func FieldExists(fields []domain.Field, name string) bool {
	return resolveField(fields, name) != nil
}

// resolveField returns the field matching name (name first, then alias,
// case-insensitive), or nil.
func resolveField(fields []domain.Field, name string) *domain.Field {
	for i := range fields {
		if strings.EqualFold(fields[i].Name, name) {
			return &fields[i]
		}
	}
	for i := range fields {
		if strings.EqualFold(fields[i].Alias, name) {
			return &fields[i]
		}
	}
	return nil
}

// filterExisting splits the requested names into those present in the field
// list and those missing, preserving the original relative order of the kept
// names.
func filterExisting(fields []domain.Field, names []string) (kept, missing []string) {
	for _, n := range names {
		if FieldExists(fields, n) {
			kept = append(kept, n)
		} else {
			missing = append(missing, n)
		}
	}
	return kept, missing
}
