package export

import (
	"context"
	"fmt"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
)

// leadingSystemFieldCount is the number of system fields the grouping
// operation emits before user fields begin: the identity field plus the
// geometry (feature datasets) or frequency (plain tables) field. The
// reconciler's positional arithmetic depends on it; its value is pinned
// against the backing engine by TestDissolveOutputLayout. Changing it is a
// breaking compatibility event.
const leadingSystemFieldCount = 2

// reconcile restores caller-intended field names after a grouping operation
// whose own naming scheme is implementation-defined.
//
// For the statistic at zero-based position i, the generated field is located
// at ordinal leadingSystemFieldCount + len(groupBy) + i in the dissolve
// output. All generated names are resolved against that original layout
// before any field is added or deleted, so the arithmetic is unaffected by
// the renames themselves. For each statistic, a field named after the source
// is added using the source field's type and length from the input dataset,
// its values are copied from the generated field, and the generated field is
// deleted.
//
// Before committing each rename, the generated field's type is checked for
// compatibility with what the statistic should produce; a mismatch indicates
// the engine's output layout has drifted and aborts the run rather than
// renaming the wrong field.
func (e *Exporter) reconcile(ctx context.Context, inputFields []domain.Field, groupBy []string, stats []domain.Statistic, output string) error {
	outFields, err := e.store.Fields(ctx, output)
	if err != nil {
		return err
	}

	// Resolve every generated field in the pristine layout first.
	generated := make([]domain.Field, len(stats))
	for i, st := range stats {
		idx := leadingSystemFieldCount + len(groupBy) + i
		if idx >= len(outFields) {
			return domain.ErrEngine("Reconcile",
				"expected generated field for %s(%s) at ordinal %d, but output has only %d fields",
				st.Func, st.Field, idx, len(outFields))
		}
		gen := outFields[idx]
		orig := resolveField(inputFields, st.Field)
		if orig == nil {
			return domain.ErrEngine("Reconcile", "statistic field %q missing from input schema", st.Field)
		}
		if !statOutputCompatible(st.Func, gen.Type, orig.Type) {
			return domain.ErrEngine("Reconcile",
				"field %q at ordinal %d has type %s, incompatible with %s(%s): engine output layout drift",
				gen.Name, idx, gen.Type, st.Func, st.Field)
		}
		generated[i] = gen
	}

	for i, st := range stats {
		gen := generated[i]
		if gen.Name == st.Field {
			continue
		}
		// A statistic over a group column (the injected placeholder, for
		// one) already has its source name present in the output; there is
		// nothing to restore.
		if FieldExists(outFields, st.Field) {
			continue
		}
		orig := resolveField(inputFields, st.Field)
		newField := domain.Field{Name: orig.Name, Type: orig.Type, Length: orig.Length}
		if err := e.store.AddField(ctx, output, newField); err != nil {
			return fmt.Errorf("reconcile %s: %w", st.Field, err)
		}
		op := geostore.CalculateField{
			Dataset:    output,
			Field:      orig.Name,
			Expression: geostore.QuoteIdent(gen.Name),
		}
		if err := e.store.Run(ctx, op); err != nil {
			return fmt.Errorf("reconcile %s: %w", st.Field, err)
		}
		if err := e.store.DeleteField(ctx, output, gen.Name); err != nil {
			return fmt.Errorf("reconcile %s: %w", st.Field, err)
		}
	}
	return nil
}

// statOutputCompatible reports whether a generated field's type is plausible
// output for the aggregate applied to a source field of the given type.
func statOutputCompatible(fn domain.StatFunc, generated, source domain.FieldType) bool {
	switch fn {
	case domain.StatCount:
		return generated.IsNumeric()
	case domain.StatFirst, domain.StatMin, domain.StatMax:
		// These preserve the source value domain.
		return generated == source || (generated.IsNumeric() && source.IsNumeric())
	default: // SUM, MEAN operate on and produce numeric fields
		return generated.IsNumeric()
	}
}
