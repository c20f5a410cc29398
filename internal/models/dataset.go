package models

import (
	"errors"
	"time"
)

// Dataset is a cached copy of a fetched GeoJSON body.
type Dataset struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Body         []byte    `json:"-"`
	FeatureCount int       `json:"feature_count"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Validate checks that all dataset fields are valid
func (d *Dataset) Validate() error {
	if d.ID == "" {
		return errors.New("dataset ID must not be empty")
	}
	if d.Source == "" {
		return errors.New("dataset source must not be empty")
	}
	if len(d.Body) == 0 {
		return errors.New("dataset body must not be empty")
	}
	if d.FeatureCount < 0 {
		return errors.New("feature count must not be negative")
	}
	if d.FetchedAt.After(time.Now()) {
		return errors.New("fetched at must not be in the future")
	}
	return nil
}
