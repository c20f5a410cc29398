// Package attributes derives the attribute sequence from a loaded dataset and
// scans it for the global minimum used by the normalized radius formula.
package attributes

import (
	"fmt"
	"math"
	"strings"

	"github.com/rewired-gh/symbolmap/internal/models"
)

// Extract returns, in document order, every property key of the first feature
// that contains marker. An empty result is returned as-is; callers decide
// whether an empty sequence is fatal.
func Extract(fc *models.FeatureCollection, marker string) models.AttributeSequence {
	seq := models.AttributeSequence{}
	if fc == nil || marker == "" {
		return seq
	}
	for _, key := range fc.PropertyOrder {
		if strings.Contains(key, marker) {
			seq = append(seq, key)
		}
	}
	return seq
}

// Label turns an attribute key into a human-readable period label by removing
// prefix and applying format ("temp1950s" -> "1950s", "rent_month_3" -> "month 3").
func Label(attribute, prefix, format string) string {
	period := strings.TrimPrefix(attribute, prefix)
	if format == "" {
		return period
	}
	return fmt.Sprintf(format, period)
}

// PeriodKeys expands template over [start, end] by step, e.g.
// PeriodKeys("t%ds", 1950, 2010, 10) -> t1950s ... t2010s.
func PeriodKeys(template string, start, end, step int) []string {
	if step < 1 || end < start {
		return nil
	}
	keys := make([]string, 0, (end-start)/step+1)
	for p := start; p <= end; p += step {
		keys = append(keys, fmt.Sprintf(template, p))
	}
	return keys
}

// Minimum is the result of a global minimum scan.
type Minimum struct {
	Value   float64
	Valid   bool // false when no readable value was found
	Scanned int  // values that contributed
	Skipped int  // values that were missing or invalid
}

// GlobalMinimum returns the smallest value over every feature and every key.
// Missing and non-numeric values are skipped rather than poisoning the result
// with NaN; each one is returned as a non-fatal error for the caller to log.
func GlobalMinimum(features []models.Feature, keys []string) (Minimum, []error) {
	return scanMinimum(features, keys, false)
}

// PositiveMinimum is GlobalMinimum restricted to values greater than zero, the
// domain of the normalized formula. Zero and negative values are skipped and
// reported as *models.InvalidValueError; the radius policy still sizes their
// markers.
func PositiveMinimum(features []models.Feature, keys []string) (Minimum, []error) {
	return scanMinimum(features, keys, true)
}

func scanMinimum(features []models.Feature, keys []string, positiveOnly bool) (Minimum, []error) {
	minimum := Minimum{Value: math.Inf(1)}
	var skipped []error

	for i := range features {
		for _, key := range keys {
			v, err := features[i].Value(key)
			if err != nil {
				skipped = append(skipped, err)
				minimum.Skipped++
				continue
			}
			if positiveOnly && v <= 0 {
				skipped = append(skipped, &models.InvalidValueError{
					FeatureID: features[i].ID, Attribute: key, Value: v, Reason: "not positive",
				})
				minimum.Skipped++
				continue
			}
			if v < minimum.Value {
				minimum.Value = v
			}
			minimum.Scanned++
		}
	}

	if minimum.Scanned == 0 {
		return Minimum{Skipped: minimum.Skipped}, skipped
	}
	minimum.Valid = true
	return minimum, skipped
}
