package bound

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Format renders b as rule text:
//
//	"> min"            min only
//	"> min, <= max"    both
//	"<= max"           max only
//	""                 neither
func Format(b Bound) string {
	var sb strings.Builder
	if b.HasMin {
		sb.WriteString("> ")
		sb.WriteString(FormatFloat(b.Min))
		if b.HasMax {
			sb.WriteString(", <= ")
			sb.WriteString(FormatFloat(b.Max))
		}
	} else if b.HasMax {
		sb.WriteString("<= ")
		sb.WriteString(FormatFloat(b.Max))
	}
	return sb.String()
}

// FormatMap renders every bound in m. Features with no constraint are kept
// with an empty string.
func FormatMap(m Map) map[string]string {
	out := make(map[string]string, len(m))
	for name, b := range m {
		out[name] = Format(b)
	}
	return out
}

// FormatFloat writes v with the shortest digits that parse back to the same
// float64, in the layout Python's str(float) uses: fixed notation with a
// trailing ".0" for integral values when 1e-4 <= |v| < 1e16, scientific
// otherwise.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// Parse reads rule text produced by Format back into a Bound.
func Parse(s string) (Bound, error) {
	var b Bound
	s = strings.TrimSpace(s)
	if s == "" {
		return b, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		var op string
		switch {
		case strings.HasPrefix(part, "<="):
			op = "<="
		case strings.HasPrefix(part, ">"):
			op = ">"
		default:
			return Bound{}, errors.Mark(errors.Newf("bound %q: unknown operator", s), ErrInvalidThreshold)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(part[len(op):]), 64)
		if err != nil {
			return Bound{}, errors.Mark(errors.Wrapf(err, "bound %q", s), ErrInvalidThreshold)
		}
		if op == "<=" {
			b.Max, b.HasMax = v, true
		} else {
			b.Min, b.HasMin = v, true
		}
	}
	if err := b.check(); err != nil {
		return Bound{}, err
	}
	return b, nil
}
