// Package quantity provides the small physical-quantity service the
// apparatus and protocol packages depend on: parsing expressions like
// "1 mL/min" or "3 minutes", dimensional analysis, comparison, addition,
// and conversion of times to seconds.
//
// Magnitudes are held in SI base units; the original expression text is
// preserved so a parsed quantity renders back exactly as it was written.
package quantity

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TimeEpsilon is the tolerance, in seconds, used when deciding whether two
// protocol times coincide (e.g. a procedure ending exactly when the next
// begins). Fixed at 1e-9 s.
const TimeEpsilon = 1e-9

// Dimension is an integer exponent vector over the base dimensions the
// compiler cares about. Two quantities are commensurable iff their
// dimensions are equal.
type Dimension struct {
	Length      int8
	Mass        int8
	Time        int8
	Temperature int8
}

// Common dimensions.
var (
	Dimensionless = Dimension{}
	Len           = Dimension{Length: 1}
	Volume        = Dimension{Length: 3}
	Mass          = Dimension{Mass: 1}
	Time          = Dimension{Time: 1}
	Temperature   = Dimension{Temperature: 1}
	FlowRate      = Dimension{Length: 3, Time: -1}
)

// String renders a dimension for error messages, e.g. [length]3 [time]-1.
func (d Dimension) String() string {
	if d == (Dimension{}) {
		return "[dimensionless]"
	}
	var parts []string
	add := func(name string, exp int8) {
		if exp == 0 {
			return
		}
		if exp == 1 {
			parts = append(parts, "["+name+"]")
			return
		}
		parts = append(parts, fmt.Sprintf("[%s]%d", name, exp))
	}
	add("length", d.Length)
	add("mass", d.Mass)
	add("time", d.Time)
	add("temperature", d.Temperature)
	return strings.Join(parts, " ")
}

func (d Dimension) mul(o Dimension, sign int8) Dimension {
	return Dimension{
		Length:      d.Length + sign*o.Length,
		Mass:        d.Mass + sign*o.Mass,
		Time:        d.Time + sign*o.Time,
		Temperature: d.Temperature + sign*o.Temperature,
	}
}

// Quantity is an immutable (magnitude, dimension) pair. The magnitude is in
// SI base units; text holds the expression the quantity was parsed from.
type Quantity struct {
	mag  float64
	dim  Dimension
	text string
}

// unit is one entry in the unit table: SI scale factor, additive offset
// (temperature units only) and dimension.
type unit struct {
	factor float64
	offset float64
	dim    Dimension
}

var units = map[string]unit{
	// length
	"m": {1, 0, Len}, "meter": {1, 0, Len}, "meters": {1, 0, Len},
	"cm": {0.01, 0, Len},
	"mm": {0.001, 0, Len},
	"um": {1e-6, 0, Len},
	"in": {0.0254, 0, Len}, "inch": {0.0254, 0, Len}, "inches": {0.0254, 0, Len},
	"ft": {0.3048, 0, Len}, "foot": {0.3048, 0, Len}, "feet": {0.3048, 0, Len},

	// volume (SI base m^3)
	"L": {1e-3, 0, Volume}, "l": {1e-3, 0, Volume}, "liter": {1e-3, 0, Volume}, "liters": {1e-3, 0, Volume},
	"mL": {1e-6, 0, Volume}, "ml": {1e-6, 0, Volume},
	"uL": {1e-9, 0, Volume}, "ul": {1e-9, 0, Volume},
	"cc": {1e-6, 0, Volume},

	// time
	"s": {1, 0, Time}, "sec": {1, 0, Time}, "secs": {1, 0, Time},
	"second": {1, 0, Time}, "seconds": {1, 0, Time},
	"ms":  {1e-3, 0, Time},
	"min": {60, 0, Time}, "minute": {60, 0, Time}, "minutes": {60, 0, Time},
	"h": {3600, 0, Time}, "hr": {3600, 0, Time}, "hrs": {3600, 0, Time},
	"hour": {3600, 0, Time}, "hours": {3600, 0, Time},
	"day": {86400, 0, Time}, "days": {86400, 0, Time},

	// mass
	"kg": {1, 0, Mass},
	"g":  {1e-3, 0, Mass}, "gram": {1e-3, 0, Mass}, "grams": {1e-3, 0, Mass},
	"mg": {1e-6, 0, Mass},

	// temperature
	"K": {1, 0, Temperature}, "kelvin": {1, 0, Temperature},
	"degC": {1, 273.15, Temperature}, "celsius": {1, 273.15, Temperature},
	"degrees": {1, 273.15, Temperature}, // "0 degrees" per convention means Celsius
}

// Parse converts an expression like "20 cm", "1 mL/min", "3 minutes",
// "1/16 in" or "0 degC" into a Quantity. A bare number parses as a
// dimensionless quantity. At most one '/' is supported in the unit part;
// temperature units may not participate in compound units.
func Parse(s string) (Quantity, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Quantity{}, fmt.Errorf("parse quantity: empty expression")
	}

	fields := strings.Fields(trimmed)
	mag, err := parseMagnitude(fields[0])
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}

	unitExpr := strings.Join(fields[1:], " ")
	if unitExpr == "" {
		return Quantity{mag: mag, dim: Dimensionless, text: trimmed}, nil
	}

	factor, offset, dim, err := parseUnitExpr(unitExpr)
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return Quantity{mag: mag*factor + offset, dim: dim, text: trimmed}, nil
}

// MustParse is Parse that panics on error. For statically known expressions
// such as component base states.
func MustParse(s string) Quantity {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Seconds constructs a time quantity from a number of seconds.
func Seconds(f float64) Quantity {
	return Quantity{
		mag:  f,
		dim:  Time,
		text: strconv.FormatFloat(f, 'g', -1, 64) + " s",
	}
}

// parseMagnitude accepts decimal numbers and simple fractions ("1/16").
func parseMagnitude(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("bad fraction numerator %q", num)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, fmt.Errorf("bad fraction denominator %q", den)
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad magnitude %q", s)
	}
	return f, nil
}

// parseUnitExpr resolves a unit expression of the form "u" or "u/v",
// with whitespace around the slash tolerated.
func parseUnitExpr(expr string) (factor, offset float64, dim Dimension, err error) {
	num, den, compound := strings.Cut(expr, "/")
	nu, ok := units[strings.TrimSpace(num)]
	if !ok {
		return 0, 0, Dimension{}, fmt.Errorf("unknown unit %q", strings.TrimSpace(num))
	}
	if !compound {
		return nu.factor, nu.offset, nu.dim, nil
	}
	if nu.offset != 0 {
		return 0, 0, Dimension{}, fmt.Errorf("offset unit %q not allowed in compound expression", num)
	}
	du, ok := units[strings.TrimSpace(den)]
	if !ok {
		return 0, 0, Dimension{}, fmt.Errorf("unknown unit %q", strings.TrimSpace(den))
	}
	if du.offset != 0 {
		return 0, 0, Dimension{}, fmt.Errorf("offset unit %q not allowed in compound expression", den)
	}
	return nu.factor / du.factor, 0, nu.dim.mul(du.dim, -1), nil
}

// Magnitude returns the magnitude in SI base units.
func (q Quantity) Magnitude() float64 { return q.mag }

// Dimension returns the quantity's dimension vector.
func (q Quantity) Dimension() Dimension { return q.dim }

// SameDimension reports whether q and o are commensurable.
func (q Quantity) SameDimension(o Quantity) bool { return q.dim == o.dim }

// IsTime reports whether q is a quantity of time.
func (q Quantity) IsTime() bool { return q.dim == Time }

// Seconds converts a time quantity to seconds.
func (q Quantity) Seconds() (float64, error) {
	if !q.IsTime() {
		return 0, fmt.Errorf("quantity %q is not a time", q.text)
	}
	return q.mag, nil
}

// Cmp compares two commensurable quantities: -1, 0 or +1.
func (q Quantity) Cmp(o Quantity) int {
	switch {
	case q.mag < o.mag:
		return -1
	case q.mag > o.mag:
		return 1
	default:
		return 0
	}
}

// Add sums two commensurable quantities. The result renders in SI base
// units rather than either operand's original text.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	if !q.SameDimension(o) {
		return Quantity{}, fmt.Errorf("cannot add %s to %s", o.dim, q.dim)
	}
	sum := q.mag + o.mag
	out := Quantity{mag: sum, dim: q.dim}
	if q.dim == Time {
		out.text = strconv.FormatFloat(sum, 'g', -1, 64) + " s"
	} else {
		out.text = strconv.FormatFloat(sum, 'g', -1, 64)
	}
	return out, nil
}

// String returns the expression the quantity was parsed from.
func (q Quantity) String() string { return q.text }

// TimeEqual reports whether two times, in seconds, coincide within
// TimeEpsilon.
func TimeEqual(a, b float64) bool {
	return math.Abs(a-b) <= TimeEpsilon
}
