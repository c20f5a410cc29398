// Package models defines the core domain entities for the symbolmap application.
// These models represent mapped point features, the ordered attribute sequence
// that drives symbology, and the proportional-symbol markers rendered for them.
//
// Terminology:
//   - Feature: one point from the input GeoJSON with an identity field and numeric attributes.
//   - Attribute sequence: the ordered attribute keys (one per period) the user steps through.
//   - Marker: the proportional symbol drawn for one feature.
package models

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Feature represents a single mapped point. It is immutable after load.
type Feature struct {
	ID       string  `json:"id"`       // Stable feature identifier (GeoJSON id or position in collection)
	Identity string  `json:"identity"` // Value of the identity field, e.g. city name or ZIP code
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
	// Properties holds the decoded GeoJSON properties as-is.
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection is the decoded input dataset.
type FeatureCollection struct {
	Source   string    `json:"source"`
	Features []Feature `json:"features"`
	// PropertyOrder lists the first feature's property keys in document order.
	PropertyOrder []string `json:"property_order"`
}

// Validate checks that all feature fields are valid.
func (f *Feature) Validate() error {
	if f.ID == "" {
		return errors.New("feature ID must not be empty")
	}
	if math.IsNaN(f.Lng) || math.IsNaN(f.Lat) {
		return errors.New("feature coordinates must be numbers")
	}
	if f.Lng < -180 || f.Lng > 180 {
		return errors.New("feature longitude must be between -180 and 180")
	}
	if f.Lat < -90 || f.Lat > 90 {
		return errors.New("feature latitude must be between -90 and 90")
	}
	return nil
}

// Value reads a numeric attribute. A missing key yields a *MissingAttributeError;
// a present key that is not a finite number yields an *InvalidValueError.
// Numeric strings are accepted.
func (f *Feature) Value(attribute string) (float64, error) {
	raw, ok := f.Properties[attribute]
	if !ok || raw == nil {
		return 0, &MissingAttributeError{FeatureID: f.ID, Attribute: attribute}
	}

	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, &InvalidValueError{FeatureID: f.ID, Attribute: attribute, Value: raw, Reason: "not a number"}
		}
		v = parsed
	default:
		return 0, &InvalidValueError{FeatureID: f.ID, Attribute: attribute, Value: raw, Reason: "not a number"}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &InvalidValueError{FeatureID: f.ID, Attribute: attribute, Value: raw, Reason: "not finite"}
	}
	return v, nil
}

// AttributeSequence is the ordered list of attribute keys stepped through by the view.
type AttributeSequence []string

// Len returns the number of periods in the sequence.
func (s AttributeSequence) Len() int { return len(s) }

// At returns the key at index i. The caller guarantees 0 <= i < Len().
func (s AttributeSequence) At(i int) string { return s[i] }

// Index returns the position of key, or -1.
func (s AttributeSequence) Index(key string) int {
	for i, k := range s {
		if k == key {
			return i
		}
	}
	return -1
}
