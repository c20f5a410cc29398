package view

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/rewired-gh/symbolmap/internal/models"
	"github.com/rewired-gh/symbolmap/internal/sequence"
)

// Period is one entry of the attribute sequence with its display label.
type Period struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// State is a point-in-time copy of the view.
type State struct {
	Source    string          `json:"source"`
	Index     int             `json:"index"`
	Attribute string          `json:"attribute"`
	Label     string          `json:"label"`
	Slider    sequence.Slider `json:"slider"`
	Periods   []Period        `json:"periods"`
	Formula   string          `json:"formula"`
	Minimum   *float64        `json:"minimum,omitempty"`
	Map       MapInfo         `json:"map"`
	Markers   []models.Marker `json:"markers"`
}

// State returns a copy of the current view state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state()
}

// state requires v.mu to be held.
func (v *View) state() State {
	popup := v.layer.Popup()
	seq := v.controller.Attributes()
	periods := make([]Period, seq.Len())
	for i, key := range seq {
		periods[i] = Period{Key: key, Label: popup.PeriodLabel(key)}
	}

	s := State{
		Source:    v.collection.Source,
		Index:     v.controller.Index(),
		Attribute: v.controller.Attribute(),
		Label:     popup.PeriodLabel(v.controller.Attribute()),
		Slider:    v.controller.Slider(),
		Periods:   periods,
		Formula:   v.layer.Calculator().Name(),
		Map:       v.opts.Map,
		Markers:   v.layer.Markers(),
	}
	if v.minimum.Valid {
		m := v.minimum.Value
		s.Minimum = &m
	}
	return s
}

// GeoJSON encodes the current markers as a FeatureCollection of points whose
// properties carry radius, style and popup content.
func (v *View) GeoJSON() ([]byte, error) {
	state := v.State()
	return EncodeMarkers(state.Markers, state.Attribute, state.Label)
}

// EncodeMarkers encodes markers as a GeoJSON FeatureCollection.
func EncodeMarkers(markers []models.Marker, attribute, label string) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(markers))}
	for _, m := range markers {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       m.FeatureID,
			Geometry: geom.NewPointFlat(geom.XY, []float64{m.Lng, m.Lat}),
			Properties: map[string]interface{}{
				"identity":     m.Identity,
				"attribute":    m.Attribute,
				"period":       label,
				"current":      m.Attribute == attribute,
				"value":        m.Value,
				"radius":       m.Radius,
				"popup":        m.Popup,
				"popup_offset": m.PopupOffset,
				"fillColor":    m.Style.FillColor,
				"color":        m.Style.Color,
				"weight":       m.Style.Weight,
				"opacity":      m.Style.Opacity,
				"fillOpacity":  m.Style.FillOpacity,
			},
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode markers: %w", err)
	}
	return data, nil
}
