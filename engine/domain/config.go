package domain

import "fmt"

// PartConfig is the buyer-editable selection for one part on a quote.
type PartConfig struct {
	MaterialType string  `json:"material_type"`
	Grade        string  `json:"grade"`
	Finish       string  `json:"finish"`
	ThicknessIn  float64 `json:"thickness_in"`
	Quantity     int     `json:"quantity"`
}

// DefaultPartConfig is what a freshly extracted part starts with before the
// buyer touches it. Thickness comes from the part's measured bounding box.
func DefaultPartConfig(thicknessIn float64) PartConfig {
	return PartConfig{
		MaterialType: "Aluminum",
		Grade:        "5052-H32",
		Finish:       BaselineFinish,
		ThicknessIn:  thicknessIn,
		Quantity:     1,
	}
}

// Validate checks the config against the catalogs. Thickness must fall in
// the selected grade's stocked range.
func (c PartConfig) Validate() error {
	g, err := FindGrade(c.MaterialType, c.Grade)
	if err != nil {
		return err
	}
	if _, err := FindFinish(c.Finish); err != nil {
		return err
	}
	if c.ThicknessIn < g.MinThickness || c.ThicknessIn > g.MaxThickness {
		return fmt.Errorf("%w: %.4g not in [%.4g, %.4g] for %s %s",
			ErrThicknessRange, c.ThicknessIn, g.MinThickness, g.MaxThickness, c.MaterialType, c.Grade)
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, c.Quantity)
	}
	return nil
}
