// Package domain holds the quoting vocabulary shared by every engine
// package: the material and finish catalogs and the per-part configuration
// a buyer edits before pricing.
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMaterial  = errors.New("unknown material")
	ErrUnknownGrade     = errors.New("unknown grade")
	ErrUnknownFinish    = errors.New("unknown finish")
	ErrThicknessRange   = errors.New("thickness outside grade range")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrPartTooLarge     = errors.New("part exceeds grade stock size")
	ErrFeatureTooSmall  = errors.New("feature below grade minimum cut size")
)

// SurfaceMetric selects which surface measurement a finish is billed on.
type SurfaceMetric string

const (
	// MetricMaterialUse bills on the flat sheet rectangle (length x width).
	// Used for finishes applied in bulk, like deburring.
	MetricMaterialUse SurfaceMetric = "material_use"
	// MetricTrueSurface bills on the solid's actual surface area. Used for
	// coatings that cover every face.
	MetricTrueSurface SurfaceMetric = "true_surface"
)

// Grade is one stock alloy or temper of a material type. MaxLength and
// MaxWidth are the largest flat part the stock sheet yields; MinFeature is
// the smallest cut (hole diameter, slot width) the laser holds in this stock.
type Grade struct {
	Name         string  `json:"name"`
	MinThickness float64 `json:"min_thickness_in"`
	MaxThickness float64 `json:"max_thickness_in"`
	MaxLength    float64 `json:"max_length_in"`
	MaxWidth     float64 `json:"max_width_in"`
	MinFeature   float64 `json:"min_feature_in"`
}

// Material is a sheet stock family with its purchasable grades.
type Material struct {
	Type   string  `json:"type"`
	Grades []Grade `json:"grades"`
}

// Finish is a surface treatment option. BaselineFinish means the part ships
// as cut; its finish cost is zero by definition and it anchors the finish
// delta fits.
type Finish struct {
	Name   string        `json:"name"`
	Metric SurfaceMetric `json:"metric"`
}

// BaselineFinish is the as-cut option present on every quote.
const BaselineFinish = "No Deburring"

// Materials is the stock catalog. Thickness ranges are the gauges the shop
// actually keeps on the floor.
var Materials = []Material{
	{Type: "Aluminum", Grades: []Grade{
		{Name: "5052-H32", MinThickness: 0.025, MaxThickness: 0.25, MaxLength: 96, MaxWidth: 48, MinFeature: 0.04},
		{Name: "6061-T6", MinThickness: 0.032, MaxThickness: 0.5, MaxLength: 96, MaxWidth: 48, MinFeature: 0.05},
		{Name: "7075-T6", MinThickness: 0.032, MaxThickness: 0.25, MaxLength: 48, MaxWidth: 48, MinFeature: 0.05},
	}},
	{Type: "Steel", Grades: []Grade{
		{Name: "1008", MinThickness: 0.024, MaxThickness: 0.25, MaxLength: 96, MaxWidth: 48, MinFeature: 0.06},
		{Name: "A36", MinThickness: 0.06, MaxThickness: 0.5, MaxLength: 120, MaxWidth: 60, MinFeature: 0.08},
	}},
	{Type: "Stainless Steel", Grades: []Grade{
		{Name: "304-2B", MinThickness: 0.024, MaxThickness: 0.25, MaxLength: 96, MaxWidth: 48, MinFeature: 0.06},
	}},
	{Type: "Galvanized Steel", Grades: []Grade{
		{Name: "G90", MinThickness: 0.024, MaxThickness: 0.135, MaxLength: 96, MaxWidth: 48, MinFeature: 0.06},
	}},
}

// Finishes is the surface treatment catalog. The billed metric is catalog
// data, not code: deburring scales with sheet size, coatings with covered
// area.
var Finishes = []Finish{
	{Name: BaselineFinish, Metric: MetricMaterialUse},
	{Name: "Deburred", Metric: MetricMaterialUse},
	{Name: "Matte Black Powder Coat", Metric: MetricTrueSurface},
	{Name: "Gloss White Powder Coat", Metric: MetricTrueSurface},
	{Name: "Clear Anodize", Metric: MetricTrueSurface},
}

// FindGrade resolves a material type and grade name against the catalog.
func FindGrade(matType, grade string) (Grade, error) {
	for _, m := range Materials {
		if m.Type != matType {
			continue
		}
		for _, g := range m.Grades {
			if g.Name == grade {
				return g, nil
			}
		}
		return Grade{}, fmt.Errorf("%w: %s %s", ErrUnknownGrade, matType, grade)
	}
	return Grade{}, fmt.Errorf("%w: %s", ErrUnknownMaterial, matType)
}

// ValidatePartSize checks extracted part dimensions against the grade's
// stock limits. Length and width are the two largest bounding box extents;
// orientation on the sheet is free, so the pair is compared sorted.
// minFeatureIn is the smallest cut dimension found on the part (smallest
// hole diameter or slot width); zero means the part has no interior cuts.
func ValidatePartSize(matType, grade string, lengthIn, widthIn, minFeatureIn float64) error {
	g, err := FindGrade(matType, grade)
	if err != nil {
		return err
	}
	l, w := lengthIn, widthIn
	if w > l {
		l, w = w, l
	}
	if l > g.MaxLength || w > g.MaxWidth {
		return fmt.Errorf("%w: %.4gx%.4gin exceeds %gx%gin for %s %s",
			ErrPartTooLarge, l, w, g.MaxLength, g.MaxWidth, matType, grade)
	}
	if minFeatureIn > 0 && minFeatureIn < g.MinFeature {
		return fmt.Errorf("%w: %.4gin below %.4gin for %s %s",
			ErrFeatureTooSmall, minFeatureIn, g.MinFeature, matType, grade)
	}
	return nil
}

// FindFinish resolves a finish name against the catalog.
func FindFinish(name string) (Finish, error) {
	for _, f := range Finishes {
		if f.Name == name {
			return f, nil
		}
	}
	return Finish{}, fmt.Errorf("%w: %s", ErrUnknownFinish, name)
}
