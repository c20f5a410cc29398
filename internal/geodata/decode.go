package geodata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/rewired-gh/symbolmap/internal/logger"
	"github.com/rewired-gh/symbolmap/internal/models"
)

// Decode parses a GeoJSON FeatureCollection body into typed features.
// Features without a point geometry are skipped with a warning. A body that is
// not a FeatureCollection, or that yields no valid point feature, is a
// *models.DataLoadError.
func Decode(source string, body []byte, identityField string) (*models.FeatureCollection, error) {
	var raw geojson.FeatureCollection
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &models.DataLoadError{Source: source, Stage: "decode", Err: err}
	}

	fc := &models.FeatureCollection{
		Source:   source,
		Features: make([]models.Feature, 0, len(raw.Features)),
	}

	firstKept := -1
	for i, f := range raw.Features {
		if f == nil {
			continue
		}
		feature, err := toFeature(i, f, identityField)
		if err != nil {
			logger.Warn("Skipping feature %d of %s: %v", i, source, err)
			continue
		}
		if firstKept < 0 {
			firstKept = i
		}
		fc.Features = append(fc.Features, feature)
	}

	if len(fc.Features) == 0 {
		return nil, &models.DataLoadError{Source: source, Stage: "schema", Err: errors.New("no point features found")}
	}
	fc.PropertyOrder = propertyOrder(body, firstKept)
	return fc, nil
}

func toFeature(i int, f *geojson.Feature, identityField string) (models.Feature, error) {
	point, ok := f.Geometry.(*geom.Point)
	if !ok || point == nil || point.Empty() {
		return models.Feature{}, fmt.Errorf("geometry is not a point")
	}

	id := f.ID
	if id == "" {
		id = strconv.Itoa(i)
	}

	props := f.Properties
	if props == nil {
		props = map[string]interface{}{}
	}

	identity := ""
	if v, ok := props[identityField]; ok && v != nil {
		identity = formatIdentity(v)
	} else {
		logger.Debug("Feature %s has no identity field %q", id, identityField)
	}

	feature := models.Feature{
		ID:         id,
		Identity:   identity,
		Lng:        point.X(),
		Lat:        point.Y(),
		Properties: props,
	}
	if err := feature.Validate(); err != nil {
		return models.Feature{}, err
	}
	return feature, nil
}

// formatIdentity renders identity values without float noise, so a ZIP code
// decoded as 53703 (float64) prints as "53703".
func formatIdentity(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// propertyOrder returns the property keys of feature index in document order.
// Decoding into a map loses that order, so it is read from the raw body.
func propertyOrder(body []byte, index int) []string {
	var keys []string
	gjson.GetBytes(body, fmt.Sprintf("features.%d.properties", index)).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}
