// Package view owns everything a running map view needs: the loaded features,
// the attribute sequence, the global minimum, the marker layer and the sequence
// controller. It replaces ambient globals with one explicit object.
//
// Initialization is strictly ordered: load, extract, scan minimum, build the
// radius formula, build markers at index 0, create the controller. After that
// every input (HTTP, chat command, CLI) goes through the View, which runs it to
// completion under a mutex before the next one starts.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/rewired-gh/symbolmap/internal/attributes"
	"github.com/rewired-gh/symbolmap/internal/config"
	"github.com/rewired-gh/symbolmap/internal/logger"
	"github.com/rewired-gh/symbolmap/internal/models"
	"github.com/rewired-gh/symbolmap/internal/sequence"
	"github.com/rewired-gh/symbolmap/internal/symbols"
)

// maxLoggedSkips bounds per-feature warnings for one pass.
const maxLoggedSkips = 10

// Loader fetches and decodes a dataset.
type Loader interface {
	Load(ctx context.Context, source string) (*models.FeatureCollection, error)
}

// PeriodRange selects the keys read by the minimum scan.
type PeriodRange struct {
	Template string
	Start    int
	End      int
	Step     int
}

// MapInfo describes the basemap for clients.
type MapInfo struct {
	Center      [2]float64 `json:"center"` // lat, lng
	Zoom        int        `json:"zoom"`
	TileURL     string     `json:"tile_url"`
	TileSize    int        `json:"tile_size"`
	ZoomOffset  int        `json:"zoom_offset"`
	Attribution string     `json:"attribution"`
	AccessToken string     `json:"access_token,omitempty"`
}

// Options holds everything needed to build a View.
type Options struct {
	Source          string
	AttributeMarker string
	MinRange        *PeriodRange // nil scans the extracted sequence
	Symbols         symbols.Options
	Style           models.SymbolStyle
	Popup           symbols.PopupFormatter
	Map             MapInfo
}

// OptionsFromConfig maps the application config onto view options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Source:          cfg.Data.Source,
		AttributeMarker: cfg.Sequence.AttributeMarker,
		Symbols: symbols.Options{
			Formula:        cfg.Symbols.Formula,
			Divisor:        cfg.Symbols.Divisor,
			BaseRadius:     cfg.Symbols.BaseRadius,
			Factor:         cfg.Symbols.Factor,
			Exponent:       cfg.Symbols.Exponent,
			NegativePolicy: cfg.Symbols.NegativePolicy,
		},
		Style: models.SymbolStyle{
			FillColor:   cfg.Symbols.Style.FillColor,
			Color:       cfg.Symbols.Style.Color,
			Weight:      cfg.Symbols.Style.Weight,
			Opacity:     cfg.Symbols.Style.Opacity,
			FillOpacity: cfg.Symbols.Style.FillOpacity,
		},
		Popup: symbols.PopupFormatter{
			IdentityLabel: cfg.Popup.IdentityLabel,
			ValueLabel:    cfg.Popup.ValueLabel,
			Unit:          cfg.Popup.Unit,
			LabelPrefix:   cfg.Sequence.LabelPrefix,
			LabelFormat:   cfg.Sequence.LabelFormat,
		},
		Map: MapInfo{
			Center:      [2]float64{cfg.Map.CenterLat, cfg.Map.CenterLng},
			Zoom:        cfg.Map.Zoom,
			TileURL:     cfg.Map.TileURL,
			TileSize:    cfg.Map.TileSize,
			ZoomOffset:  cfg.Map.ZoomOffset,
			Attribution: cfg.Map.Attribution,
			AccessToken: cfg.Map.AccessToken,
		},
	}
	if cfg.Sequence.MinTemplate != "" {
		opts.MinRange = &PeriodRange{
			Template: cfg.Sequence.MinTemplate,
			Start:    cfg.Sequence.MinStart,
			End:      cfg.Sequence.MinEnd,
			Step:     cfg.Sequence.MinStep,
		}
	}
	return opts
}

// View is the single owner of sequence state and markers.
type View struct {
	mu         sync.Mutex
	opts       Options
	collection *models.FeatureCollection
	minimum    attributes.Minimum
	layer      *symbols.Layer
	controller *sequence.Controller
}

// Load blocks until the dataset is loaded and decoded, then initializes the
// view. Any failure is a *models.DataLoadError and no view is returned.
func Load(ctx context.Context, loader Loader, opts Options) (*View, error) {
	fc, err := loader.Load(ctx, opts.Source)
	if err != nil {
		var loadErr *models.DataLoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &models.DataLoadError{Source: opts.Source, Stage: "fetch", Err: err}
	}
	return New(fc, opts)
}

// New initializes a view over an already loaded collection.
func New(fc *models.FeatureCollection, opts Options) (*View, error) {
	seq := attributes.Extract(fc, opts.AttributeMarker)
	if seq.Len() == 0 {
		return nil, &models.DataLoadError{Source: fc.Source, Stage: "sequence", Err: models.ErrEmptySequence}
	}
	logger.Info("Attribute sequence (%d): %v", seq.Len(), []string(seq))

	keys := []string(seq)
	if r := opts.MinRange; r != nil {
		keys = attributes.PeriodKeys(r.Template, r.Start, r.End, r.Step)
	}
	scan := attributes.GlobalMinimum
	if opts.Symbols.Formula == "normalized" {
		scan = attributes.PositiveMinimum
	}
	minimum, skipped := scan(fc.Features, keys)
	logSkipped("minimum scan", skipped)
	if minimum.Valid {
		logger.Info("Global minimum %.4g over %d values (%d skipped)", minimum.Value, minimum.Scanned, minimum.Skipped)
	} else {
		logger.Warn("No readable values for the minimum scan over %d keys", len(keys))
	}

	calc, err := symbols.NewCalculator(opts.Symbols, minimum)
	if err != nil {
		return nil, &models.DataLoadError{Source: fc.Source, Stage: "symbols", Err: err}
	}

	layer, report := symbols.NewLayer(fc.Features, seq.At(0), calc, opts.Style, opts.Popup)
	logReport(report)

	controller, err := sequence.New(seq, layer)
	if err != nil {
		return nil, &models.DataLoadError{Source: fc.Source, Stage: "sequence", Err: err}
	}

	logger.Info("View ready: %d markers, formula=%s, attribute=%s", layer.Len(), calc.Name(), seq.At(0))
	return &View{
		opts:       opts,
		collection: fc,
		minimum:    minimum,
		layer:      layer,
		controller: controller,
	}, nil
}

// Forward steps to the next period, wrapping at the end. The returned state is
// taken before any other input can run.
func (v *View) Forward() (sequence.Transition, State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.record("forward", v.controller.StepForward()), v.state()
}

// Reverse steps to the previous period, wrapping at the start.
func (v *View) Reverse() (sequence.Transition, State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.record("reverse", v.controller.StepBackward()), v.state()
}

// Jump positions the sequence at i, clamped to the valid range.
func (v *View) Jump(i int) (sequence.Transition, State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.record("jump", v.controller.JumpTo(i)), v.state()
}

func (v *View) record(input string, tr sequence.Transition) sequence.Transition {
	logger.Debug("Sequence %s: %d -> %d (%s), %d updated, %d skipped",
		input, tr.From, tr.To, tr.Attribute, tr.Report.Updated, tr.Report.SkippedCount())
	if tr.Clamped {
		logger.Debug("Jump target clamped to %d", tr.To)
	}
	logReport(tr.Report)
	return tr
}

func logReport(report symbols.UpdateReport) {
	errs := make([]error, len(report.Skipped))
	for i, e := range report.Skipped {
		errs[i] = e
	}
	logSkipped("update "+report.Attribute, errs)
}

// logSkipped logs missing attributes at debug level (an accepted policy) and
// invalid values at warn level.
func logSkipped(pass string, errs []error) {
	for i, err := range errs {
		if i == maxLoggedSkips {
			logger.Debug("%s: %d more skipped values not shown", pass, len(errs)-maxLoggedSkips)
			return
		}
		if models.IsInvalid(err) {
			logger.Warn("%s: %v", pass, err)
		} else {
			logger.Debug("%s: %v", pass, err)
		}
	}
}
