package bound

import (
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func scanBound(t *testing.T, d *datadriven.TestData) Bound {
	var b Bound
	if d.HasArg("min") {
		b.Min, b.HasMin = scanFloat(t, d, "min"), true
	}
	if d.HasArg("max") {
		b.Max, b.HasMax = scanFloat(t, d, "max"), true
	}
	return b
}

func scanFloat(t *testing.T, d *datadriven.TestData, key string) float64 {
	var s string
	d.ScanArgs(t, key, &s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		d.Fatalf(t, "%s: %v", key, err)
	}
	return v
}

func debugString(b Bound) string {
	side := func(set bool, v float64) string {
		if !set {
			return "_"
		}
		return FormatFloat(v)
	}
	return fmt.Sprintf("[%s, %s]", side(b.HasMin, b.Min), side(b.HasMax, b.Max))
}

func TestRefineDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/refine", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "refine":
			b := scanBound(t, d)
			v := scanFloat(t, d, "value")
			got, err := Refine(b, v, d.HasArg("upper"))
			if err != nil {
				return "error: " + err.Error()
			}
			return debugString(got)
		default:
			d.Fatalf(t, "unknown command %q", d.Cmd)
			return ""
		}
	})
}

func TestFormatDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/format", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "format":
			return strconv.Quote(Format(scanBound(t, d)))
		default:
			d.Fatalf(t, "unknown command %q", d.Cmd)
			return ""
		}
	})
}

func TestRefineErrorKinds(t *testing.T) {
	_, err := Refine(AtMost(3), 4, true)
	require.True(t, errors.Is(err, ErrInvertedBound))
	require.EqualError(t, err, "value > max")

	_, err = Refine(Between(2, 3), 1, false)
	require.True(t, errors.Is(err, ErrInvertedBound))
	require.EqualError(t, err, "value < min")

	_, err = Refine(Unbounded(), math.Inf(1), false)
	require.True(t, errors.Is(err, ErrInvalidThreshold))
	require.False(t, errors.Is(err, ErrInvertedBound))
}

func TestRefineUpperAboveMin(t *testing.T) {
	// Only an existing max can reject a left branch; a min below the new
	// max just closes the interval.
	got, err := Refine(Above(3), 4, true)
	require.NoError(t, err)
	require.Equal(t, Between(3, 4), got)

	_, err = Refine(Above(3), 2, true)
	require.True(t, errors.Is(err, ErrInvertedBound))
	require.EqualError(t, err, "min > max")
}

func TestRefineDoesNotTouchCaller(t *testing.T) {
	orig := AtMost(3)
	got, err := Refine(orig, 2, true)
	require.NoError(t, err)
	require.Equal(t, AtMost(2), got)
	require.Equal(t, AtMost(3), orig)
}

func TestMapCloneIndependence(t *testing.T) {
	m := Map{"SIZEX": AtMost(1.4005)}
	left := m.With("POSX", AtMost(179.4))
	right := m.With("POSX", Above(179.4))

	left["SIZEX"] = Between(0.1, 1.4005)

	require.Len(t, m, 1)
	require.Equal(t, AtMost(1.4005), m["SIZEX"])
	require.Equal(t, AtMost(1.4005), right["SIZEX"])
	require.Equal(t, Above(179.4), right["POSX"])
}

func TestFormatMap(t *testing.T) {
	got := FormatMap(Map{
		"POSX":  Above(179.39999389648438),
		"POSY":  Above(112.14999389648438),
		"SIZEX": AtMost(1.4005000591278076),
		"PIN":   Unbounded(),
	})
	require.Equal(t, map[string]string{
		"POSX":  "> 179.39999389648438",
		"POSY":  "> 112.14999389648438",
		"SIZEX": "<= 1.4005000591278076",
		"PIN":   "",
	}, got)
}

func TestFormatParseRoundTrip(t *testing.T) {
	values := []float64{179.39999389648438, 1.4005000591278076, 23.75, 0.19349999725818634, 3, -0.5, 1e-7, 4.2e20}
	for _, lo := range values {
		for _, hi := range values {
			if lo > hi {
				continue
			}
			want := Between(lo, hi)
			got, err := Parse(Format(want))
			require.NoError(t, err)
			require.Equal(t, want, got, "text %q", Format(want))
		}
	}
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("> 5.0, <= 3.0")
	require.True(t, errors.Is(err, ErrInvertedBound))

	_, err = Parse(">= 5.0")
	require.Error(t, err)

	_, err = Parse("<= abc")
	require.True(t, errors.Is(err, ErrInvalidThreshold))
}

func TestContains(t *testing.T) {
	b := Between(23.75, 32.65)
	require.False(t, b.Contains(23.75))
	require.True(t, b.Contains(23.76))
	require.True(t, b.Contains(32.65))
	require.False(t, b.Contains(32.66))
	require.True(t, Unbounded().Contains(-1e300))
}
