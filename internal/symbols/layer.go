package symbols

import (
	"fmt"

	"github.com/rewired-gh/symbolmap/internal/models"
)

// UpdateError represents a per-feature failure while sizing a marker
type UpdateError struct {
	FeatureID string
	Err       error
}

func (e UpdateError) Error() string {
	return fmt.Sprintf("update error for feature %s: %v", e.FeatureID, e.Err)
}

func (e UpdateError) Unwrap() error { return e.Err }

// UpdateReport summarizes one construction or update pass over the layer.
type UpdateReport struct {
	Attribute string        `json:"attribute"`
	Updated   int           `json:"updated"`
	Skipped   []UpdateError `json:"-"`
}

// SkippedCount returns how many markers kept their previous state.
func (r UpdateReport) SkippedCount() int { return len(r.Skipped) }

// Layer owns one marker per feature. Markers are created once and afterwards
// only their radius, value and popup change.
type Layer struct {
	features []models.Feature
	markers  []*models.Marker
	calc     RadiusCalculator
	popup    PopupFormatter
	style    models.SymbolStyle
}

// NewLayer builds the markers for the initial attribute. A feature without a
// usable initial value gets a radius-0 marker and is listed in the report.
func NewLayer(features []models.Feature, initial string, calc RadiusCalculator, style models.SymbolStyle, popup PopupFormatter) (*Layer, UpdateReport) {
	l := &Layer{
		features: features,
		markers:  make([]*models.Marker, len(features)),
		calc:     calc,
		popup:    popup,
		style:    style,
	}

	report := UpdateReport{Attribute: initial}
	for i := range features {
		f := &features[i]
		m := &models.Marker{
			ID:        "marker-" + f.ID,
			FeatureID: f.ID,
			Identity:  f.Identity,
			Lng:       f.Lng,
			Lat:       f.Lat,
			Attribute: initial,
			Style:     style,
		}
		l.markers[i] = m

		value, radius, err := l.size(f, initial)
		if err != nil {
			m.Popup = popup.Format(f, initial, 0, false)
			report.Skipped = append(report.Skipped, UpdateError{FeatureID: f.ID, Err: err})
			continue
		}
		l.apply(m, f, initial, value, radius)
		report.Updated++
	}
	return l, report
}

// Update resizes every marker whose feature has a valid value for attribute and
// replaces its popup. Other markers are left unchanged and listed in the report.
func (l *Layer) Update(attribute string) UpdateReport {
	report := UpdateReport{Attribute: attribute}
	for i := range l.features {
		f := &l.features[i]
		value, radius, err := l.size(f, attribute)
		if err != nil {
			report.Skipped = append(report.Skipped, UpdateError{FeatureID: f.ID, Err: err})
			continue
		}
		l.apply(l.markers[i], f, attribute, value, radius)
		report.Updated++
	}
	return report
}

func (l *Layer) size(f *models.Feature, attribute string) (float64, float64, error) {
	value, err := f.Value(attribute)
	if err != nil {
		return 0, 0, err
	}
	radius, err := l.calc.Radius(value)
	if err != nil {
		return 0, 0, &models.InvalidValueError{FeatureID: f.ID, Attribute: attribute, Value: value, Reason: err.Error()}
	}
	return value, radius, nil
}

func (l *Layer) apply(m *models.Marker, f *models.Feature, attribute string, value, radius float64) {
	m.Attribute = attribute
	m.Value = value
	m.Radius = radius
	m.PopupOffset = [2]float64{0, -radius}
	m.Popup = l.popup.Format(f, attribute, value, true)
}

// Calculator returns the radius formula in use.
func (l *Layer) Calculator() RadiusCalculator { return l.calc }

// Popup returns the popup formatter in use.
func (l *Layer) Popup() PopupFormatter { return l.popup }

// Len returns the number of markers.
func (l *Layer) Len() int { return len(l.markers) }

// Markers returns a copy of the current marker state.
func (l *Layer) Markers() []models.Marker {
	out := make([]models.Marker, len(l.markers))
	for i, m := range l.markers {
		out[i] = *m
	}
	return out
}
