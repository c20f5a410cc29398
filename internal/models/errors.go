package models

import (
	"errors"
	"fmt"
)

// ErrEmptySequence is returned when no property key matches the attribute marker.
var ErrEmptySequence = errors.New("attribute sequence is empty")

// DataLoadError is fatal to initialization: the dataset could not be fetched,
// decoded, or validated, so no renderer or controller may be set up.
type DataLoadError struct {
	Source string
	Stage  string // "fetch", "decode", "schema", "sequence"
	Err    error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("data load failed (%s) for %s: %v", e.Stage, e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// MissingAttributeError reports a feature without the selected attribute.
// Non-fatal: the feature's marker keeps its previous state.
type MissingAttributeError struct {
	FeatureID string
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("feature %s has no attribute %q", e.FeatureID, e.Attribute)
}

// InvalidValueError reports a value that cannot be turned into a radius.
// Non-fatal: the feature's marker keeps its previous state.
type InvalidValueError struct {
	FeatureID string
	Attribute string
	Value     interface{}
	Reason    string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("feature %s attribute %q: invalid value %v (%s)", e.FeatureID, e.Attribute, e.Value, e.Reason)
}

// IsMissing reports whether err is (or wraps) a MissingAttributeError.
func IsMissing(err error) bool {
	var target *MissingAttributeError
	return errors.As(err, &target)
}

// IsInvalid reports whether err is (or wraps) an InvalidValueError.
func IsInvalid(err error) bool {
	var target *InvalidValueError
	return errors.As(err, &target)
}
