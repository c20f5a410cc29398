package models

import (
	"errors"
	"math"
	"regexp"
)

// SymbolStyle is the fixed visual style shared by every marker.
type SymbolStyle struct {
	FillColor   string  `json:"fill_color"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fill_opacity"`
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks that all style fields are valid.
func (s *SymbolStyle) Validate() error {
	if !hexColor.MatchString(s.FillColor) {
		return errors.New("fill color must be a hex color")
	}
	if !hexColor.MatchString(s.Color) {
		return errors.New("stroke color must be a hex color")
	}
	if s.Weight < 0 {
		return errors.New("stroke weight must not be negative")
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		return errors.New("opacity must be between 0.0 and 1.0")
	}
	if s.FillOpacity < 0 || s.FillOpacity > 1 {
		return errors.New("fill opacity must be between 0.0 and 1.0")
	}
	return nil
}

// Marker is the proportional symbol for one feature. Radius and popup are
// mutated on every sequence change; position and feature binding never change.
type Marker struct {
	ID          string      `json:"id"`
	FeatureID   string      `json:"feature_id"`
	Identity    string      `json:"identity"`
	Lng         float64     `json:"lng"`
	Lat         float64     `json:"lat"`
	Attribute   string      `json:"attribute"` // attribute the current radius was computed from
	Value       float64     `json:"value"`
	Radius      float64     `json:"radius"`
	Popup       string      `json:"popup"`
	PopupOffset [2]float64  `json:"popup_offset"` // pixel offset, (0, -radius)
	Style       SymbolStyle `json:"style"`
}

// Validate checks that all marker fields are valid.
func (m *Marker) Validate() error {
	if m.ID == "" {
		return errors.New("marker ID must not be empty")
	}
	if m.FeatureID == "" {
		return errors.New("marker feature ID must not be empty")
	}
	if math.IsNaN(m.Radius) || math.IsInf(m.Radius, 0) {
		return errors.New("marker radius must be finite")
	}
	if m.Radius < 0 {
		return errors.New("marker radius must not be negative")
	}
	return nil
}
