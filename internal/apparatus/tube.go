package apparatus

import (
	"fmt"
	"math"

	"github.com/flowforge/flowforge/internal/quantity"
)

// Tube is an immutable length of tubing connecting two components.
type Tube struct {
	Length   quantity.Quantity
	ID       quantity.Quantity
	OD       quantity.Quantity
	Material string
	// Volume is derived at construction: pi * (ID/2)^2 * length.
	Volume quantity.Quantity

	warnings []Warning
	valid    bool
}

// NewTube parses and checks a tube descriptor. Length, inner diameter and
// outer diameter must all be lengths, and OD must exceed ID. A length
// shorter than either diameter is suspicious but legal; it is reported as
// a warning on the tube, surfaced when the tube is added to an apparatus.
func NewTube(length, id, od, material string) (Tube, error) {
	var t Tube
	var err error

	if t.Length, err = quantity.Parse(length); err != nil {
		return Tube{}, fmt.Errorf("tube length: %w", err)
	}
	if t.ID, err = quantity.Parse(id); err != nil {
		return Tube{}, fmt.Errorf("tube inner diameter: %w", err)
	}
	if t.OD, err = quantity.Parse(od); err != nil {
		return Tube{}, fmt.Errorf("tube outer diameter: %w", err)
	}

	for _, m := range []struct {
		label string
		q     quantity.Quantity
	}{{"length", t.Length}, {"inner diameter", t.ID}, {"outer diameter", t.OD}} {
		if m.q.Dimension() != quantity.Len {
			return Tube{}, fmt.Errorf("tube %s %q: not a length", m.label, m.q)
		}
	}

	if t.OD.Cmp(t.ID) <= 0 {
		return Tube{}, fmt.Errorf("tube outer diameter %s must be greater than inner diameter %s", od, id)
	}

	if t.Length.Cmp(t.OD) < 0 || t.Length.Cmp(t.ID) < 0 {
		t.warnings = append(t.warnings, Warning{
			Code:    WarnShortTube,
			Message: fmt.Sprintf("tube length (%s) is less than its diameter; make sure this is not in error", length),
		})
	}

	r := t.ID.Magnitude() / 2
	volume := math.Pi * r * r * t.Length.Magnitude() // m^3
	t.Volume = quantity.MustParse(fmt.Sprintf("%g mL", volume*1e6))

	t.Material = material
	t.valid = true
	return t, nil
}

// MustTube is NewTube that panics on error. For statically known tubing.
func MustTube(length, id, od, material string) Tube {
	t, err := NewTube(length, id, od, material)
	if err != nil {
		panic(err)
	}
	return t
}
