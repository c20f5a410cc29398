package symbols

import (
	"fmt"
	"html"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/symbolmap/internal/attributes"
	"github.com/rewired-gh/symbolmap/internal/models"
)

// PopupFormatter builds the popup HTML bound to each marker.
type PopupFormatter struct {
	IdentityLabel string // "City"
	ValueLabel    string // "Average number of 90-degree days per year in the %s"
	Unit          string // "days"
	LabelPrefix   string // stripped from the attribute key to get the period
	LabelFormat   string // "%s" or "month %s"
}

// PeriodLabel returns the human-readable period for an attribute key.
func (p PopupFormatter) PeriodLabel(attribute string) string {
	return attributes.Label(attribute, p.LabelPrefix, p.LabelFormat)
}

// Format renders the popup for f at attribute. When ok is false the value line
// shows "no data".
func (p PopupFormatter) Format(f *models.Feature, attribute string, value float64, ok bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<p><b>%s:</b> %s</p>", html.EscapeString(p.IdentityLabel), html.EscapeString(f.Identity))

	label := p.ValueLabel
	if strings.Contains(label, "%s") {
		label = fmt.Sprintf(label, p.PeriodLabel(attribute))
	}

	valueText := "no data"
	if ok {
		valueText = humanize.Commaf(value)
		if p.Unit != "" {
			valueText += " " + p.Unit
		}
	}
	fmt.Fprintf(&b, "<p><b>%s:</b> %s</p>", html.EscapeString(label), html.EscapeString(valueText))

	return b.String()
}
