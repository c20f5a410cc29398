// Package symbols turns attribute values into proportional symbols.
//
// Two radius formulas are available and selected by configuration:
//
//	linear:     radius = value / divisor
//	normalized: radius = factor * (value / minimum)^exponent * baseRadius
//
// The normalized (Flannery-style) formula needs the global minimum of the whole
// sequence, so it can only be built after the minimum scan has run.
package symbols

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/symbolmap/internal/attributes"
)

var (
	// ErrNegativeValue is returned for negative input under the reject policy.
	ErrNegativeValue = errors.New("negative value")
	// ErrNonFiniteValue is returned for NaN or infinite input.
	ErrNonFiniteValue = errors.New("value is not finite")
	// ErrNoMinimum is returned when the normalized formula has no usable minimum.
	ErrNoMinimum = errors.New("global minimum unavailable")
)

// NegativePolicy decides what happens to negative attribute values.
type NegativePolicy int

const (
	// RejectNegative reports negative values as invalid; the marker keeps its previous state.
	RejectNegative NegativePolicy = iota
	// ClampNegative draws negative values with radius 0.
	ClampNegative
)

// ParseNegativePolicy maps "reject" and "clamp" to a policy.
func ParseNegativePolicy(s string) (NegativePolicy, error) {
	switch s {
	case "reject", "":
		return RejectNegative, nil
	case "clamp":
		return ClampNegative, nil
	default:
		return RejectNegative, fmt.Errorf("unknown negative policy %q", s)
	}
}

// RadiusCalculator maps an attribute value to a marker radius. Implementations
// are pure: identical input gives identical output.
type RadiusCalculator interface {
	Radius(value float64) (float64, error)
	Name() string
}

// checkValue applies the shared value policy. zero is set when the value is drawn
// with radius 0 without running the formula.
func checkValue(v float64, policy NegativePolicy) (zero bool, err error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false, ErrNonFiniteValue
	}
	if v < 0 {
		if policy == ClampNegative {
			return true, nil
		}
		return false, ErrNegativeValue
	}
	return v == 0, nil
}

// Linear scales values by a constant divisor.
type Linear struct {
	Divisor  float64
	Negative NegativePolicy
}

// Name implements RadiusCalculator.
func (l Linear) Name() string { return "linear" }

// Radius implements RadiusCalculator.
func (l Linear) Radius(value float64) (float64, error) {
	zero, err := checkValue(value, l.Negative)
	if err != nil || zero {
		return 0, err
	}
	return value / l.Divisor, nil
}

// Normalized implements the Flannery appearance compensation relative to the
// global minimum.
type Normalized struct {
	Minimum    float64
	BaseRadius float64
	Factor     float64
	Exponent   float64
	Negative   NegativePolicy
}

// NewNormalized builds the normalized formula. The minimum must be valid and
// strictly positive.
func NewNormalized(minimum attributes.Minimum, baseRadius, factor, exponent float64, negative NegativePolicy) (Normalized, error) {
	if !minimum.Valid {
		return Normalized{}, ErrNoMinimum
	}
	if minimum.Value <= 0 {
		return Normalized{}, fmt.Errorf("%w: minimum %v must be positive", ErrNoMinimum, minimum.Value)
	}
	return Normalized{
		Minimum:    minimum.Value,
		BaseRadius: baseRadius,
		Factor:     factor,
		Exponent:   exponent,
		Negative:   negative,
	}, nil
}

// Name implements RadiusCalculator.
func (n Normalized) Name() string { return "normalized" }

// Radius implements RadiusCalculator.
func (n Normalized) Radius(value float64) (float64, error) {
	zero, err := checkValue(value, n.Negative)
	if err != nil || zero {
		return 0, err
	}
	return n.Factor * math.Pow(value/n.Minimum, n.Exponent) * n.BaseRadius, nil
}

// Options selects and parameterizes a formula.
type Options struct {
	Formula        string // "linear" or "normalized"
	Divisor        float64
	BaseRadius     float64
	Factor         float64
	Exponent       float64
	NegativePolicy string
}

// NewCalculator builds the configured formula. minimum is only read by the
// normalized formula.
func NewCalculator(opts Options, minimum attributes.Minimum) (RadiusCalculator, error) {
	policy, err := ParseNegativePolicy(opts.NegativePolicy)
	if err != nil {
		return nil, err
	}

	switch opts.Formula {
	case "linear", "":
		divisor := opts.Divisor
		if divisor <= 0 {
			divisor = 10
		}
		return Linear{Divisor: divisor, Negative: policy}, nil
	case "normalized":
		n, err := NewNormalized(minimum, opts.BaseRadius, opts.Factor, opts.Exponent, policy)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown radius formula %q", opts.Formula)
	}
}
