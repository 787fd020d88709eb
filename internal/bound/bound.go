// Package bound tracks the interval a single feature must fall in to reach a
// tree node, and renders those intervals as rule text.
package bound

import (
	"math"

	"github.com/cockroachdb/errors"
)

// ErrInvertedBound is the kind of error returned when a split would widen a
// bound instead of tightening it, or when min ends up above max.
var ErrInvertedBound = errors.New("inverted bound")

// ErrInvalidThreshold is the kind of error returned when a split threshold is
// not a finite number.
var ErrInvalidThreshold = errors.New("invalid threshold")

// Bound is the (min, max] interval for one feature. Either side may be unset,
// meaning the path to the node places no constraint on that side.
type Bound struct {
	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

// Unbounded returns a bound with neither side set.
func Unbounded() Bound { return Bound{} }

// Between returns a bound with both sides set.
func Between(min, max float64) Bound {
	return Bound{Min: min, Max: max, HasMin: true, HasMax: true}
}

// AtMost returns a bound with only max set.
func AtMost(max float64) Bound { return Bound{Max: max, HasMax: true} }

// Above returns a bound with only min set.
func Above(min float64) Bound { return Bound{Min: min, HasMin: true} }

// IsUnbounded reports whether neither side is set.
func (b Bound) IsUnbounded() bool { return !b.HasMin && !b.HasMax }

// Contains reports whether v satisfies the bound: v > min and v <= max.
func (b Bound) Contains(v float64) bool {
	if b.HasMin && !(v > b.Min) {
		return false
	}
	if b.HasMax && !(v <= b.Max) {
		return false
	}
	return true
}

// Refine returns b narrowed by one split on value. upper selects the left
// branch ("<= value"), which sets max; otherwise the right branch ("> value")
// sets min. b is taken by value, so the caller's bound is never modified.
func Refine(b Bound, value float64, upper bool) (Bound, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return b, errors.Mark(errors.Newf("threshold %v is not finite", value), ErrInvalidThreshold)
	}
	if upper {
		if b.HasMax && value > b.Max {
			return b, errors.Mark(errors.New("value > max"), ErrInvertedBound)
		}
		b.Max, b.HasMax = value, true
	} else {
		if b.HasMin && value < b.Min {
			return b, errors.Mark(errors.New("value < min"), ErrInvertedBound)
		}
		b.Min, b.HasMin = value, true
	}
	if err := b.check(); err != nil {
		return b, err
	}
	return b, nil
}

func (b Bound) check() error {
	if b.HasMin && b.HasMax && b.Min > b.Max {
		return errors.Mark(errors.New("min > max"), ErrInvertedBound)
	}
	return nil
}

// Map holds the bound of every feature constrained on a root-to-node path.
type Map map[string]Bound

// Clone returns an independent copy of m. Bound is a value type, so a shallow
// copy of the map is enough.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// With returns a copy of m with feature set to b. m itself is unchanged.
func (m Map) With(feature string, b Bound) Map {
	out := m.Clone()
	out[feature] = b
	return out
}
