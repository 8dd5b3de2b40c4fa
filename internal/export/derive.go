package export

import (
	"context"
	"fmt"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
)

// Derived field names and shapes. The Distance field is produced only by the
// nearest-join and is special-cased by the CSV serializer.
const (
	areaFieldName     = "Area"
	areaFieldLength   = 20
	radiusFieldName   = "Radius"
	radiusFieldLength = 25
	distanceFieldName = "Distance"
)

// addAreaField adds and populates the Area field on the working dataset.
// Applied only to polygon datasets (determined by sampling one feature's
// geometry); anything else is a no-op. Failures are hard: the caller aborts
// the run without partial output.
func (e *Exporter) addAreaField(ctx context.Context, dataset string, unit domain.AreaUnit) error {
	gt, err := e.store.GeometryType(ctx, dataset)
	if err != nil {
		return fmt.Errorf("sample geometry type: %w", err)
	}
	if gt != domain.GeometryPolygon {
		return nil
	}

	fields, err := e.store.Fields(ctx, dataset)
	if err != nil {
		return err
	}
	if !FieldExists(fields, areaFieldName) {
		f := domain.Field{Name: areaFieldName, Type: domain.FieldDouble, Length: areaFieldLength}
		if err := e.store.AddField(ctx, dataset, f); err != nil {
			return fmt.Errorf("add area field: %w", err)
		}
	}

	expr := fmt.Sprintf("ST_Area(geom) / %g", unit.Divisor())
	if err := e.store.Run(ctx, geostore.CalculateField{Dataset: dataset, Field: areaFieldName, Expression: expr}); err != nil {
		return fmt.Errorf("calculate area: %w", err)
	}
	e.logger.Debug("area field calculated", "dataset", dataset, "unit", string(unit))
	return nil
}

// addDistanceField performs the nearest-neighbor join against the target
// dataset, writing a new working dataset carrying the Distance field to out.
// The join is one-to-one with all left rows kept; unmatched rows hold a null
// distance. The caller tracks out as a temporary before the join runs.
func (e *Exporter) addDistanceField(ctx context.Context, dataset, target, out string) error {
	op := geostore.NearJoin{Input: dataset, Target: target, Output: out}
	if err := e.store.Run(ctx, op); err != nil {
		return fmt.Errorf("nearest join: %w", err)
	}
	e.logger.Debug("distance field joined", "dataset", dataset, "target", target)
	return nil
}

// addRadiusField adds a string Radius field holding the literal radius value
// on every row. The sentinel "none" disables the tag. This is a constant
// broadcast, not a computed value.
func (e *Exporter) addRadiusField(ctx context.Context, dataset, radius string) error {
	if radius == "" || radius == domain.RadiusNone {
		return nil
	}

	fields, err := e.store.Fields(ctx, dataset)
	if err != nil {
		return err
	}
	if !FieldExists(fields, radiusFieldName) {
		f := domain.Field{Name: radiusFieldName, Type: domain.FieldString, Length: radiusFieldLength}
		if err := e.store.AddField(ctx, dataset, f); err != nil {
			return fmt.Errorf("add radius field: %w", err)
		}
	}

	op := geostore.CalculateField{
		Dataset:    dataset,
		Field:      radiusFieldName,
		Expression: geostore.StringLiteral(radius),
	}
	if err := e.store.Run(ctx, op); err != nil {
		return fmt.Errorf("calculate radius tag: %w", err)
	}
	return nil
}
