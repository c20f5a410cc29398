package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Sequence SequenceConfig `mapstructure:"sequence"`
	Symbols  SymbolsConfig  `mapstructure:"symbols"`
	Popup    PopupConfig    `mapstructure:"popup"`
	Map      MapConfig      `mapstructure:"map"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DataConfig holds the GeoJSON source configuration
type DataConfig struct {
	Source         string        `mapstructure:"source"` // http(s) URL or file path
	IdentityField  string        `mapstructure:"identity_field"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	CacheFallback  bool          `mapstructure:"cache_fallback"`
}

// SequenceConfig controls attribute extraction and the minimum scan
type SequenceConfig struct {
	Preset          string `mapstructure:"preset"` // "temperature", "rent" or "" for explicit values
	AttributeMarker string `mapstructure:"attribute_marker"`
	LabelPrefix     string `mapstructure:"label_prefix"`
	LabelFormat     string `mapstructure:"label_format"`
	// MinTemplate, when set, makes the minimum scan read fmt.Sprintf(MinTemplate, period)
	// for every period in [MinStart, MinEnd] by MinStep instead of the extracted sequence.
	MinTemplate string `mapstructure:"min_template"`
	MinStart    int    `mapstructure:"min_start"`
	MinEnd      int    `mapstructure:"min_end"`
	MinStep     int    `mapstructure:"min_step"`
}

// SymbolsConfig selects the radius formula and the fixed marker style
type SymbolsConfig struct {
	Formula        string      `mapstructure:"formula"` // "linear" or "normalized"
	Divisor        float64     `mapstructure:"divisor"`
	BaseRadius     float64     `mapstructure:"base_radius"`
	Factor         float64     `mapstructure:"factor"`
	Exponent       float64     `mapstructure:"exponent"`
	NegativePolicy string      `mapstructure:"negative_policy"` // "reject" or "clamp"
	Style          StyleConfig `mapstructure:"style"`
}

// StyleConfig holds marker style constants
type StyleConfig struct {
	FillColor   string  `mapstructure:"fill_color"`
	Color       string  `mapstructure:"color"`
	Weight      float64 `mapstructure:"weight"`
	Opacity     float64 `mapstructure:"opacity"`
	FillOpacity float64 `mapstructure:"fill_opacity"`
}

// PopupConfig holds popup labels
type PopupConfig struct {
	IdentityLabel string `mapstructure:"identity_label"`
	ValueLabel    string `mapstructure:"value_label"` // %s receives the period label
	Unit          string `mapstructure:"unit"`
}

// MapConfig describes the basemap handed to clients
type MapConfig struct {
	CenterLat   float64 `mapstructure:"center_lat"`
	CenterLng   float64 `mapstructure:"center_lng"`
	Zoom        int     `mapstructure:"zoom"`
	TileURL     string  `mapstructure:"tile_url"`
	TileSize    int     `mapstructure:"tile_size"`
	ZoomOffset  int     `mapstructure:"zoom_offset"`
	Attribution string  `mapstructure:"attribution"`
	AccessToken string  `mapstructure:"access_token"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig holds the dataset cache configuration
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path"` // empty disables the cache
	MaxDatasets int    `mapstructure:"max_datasets"`
}

// TelegramConfig holds Telegram command surface configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// SYMBOLMAP_MAP_ACCESS_TOKEN overrides map.access_token, etc.
	v.SetEnvPrefix("SYMBOLMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyPreset(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data defaults
	v.SetDefault("data.source", "data/big_city_temps.geojson")
	v.SetDefault("data.timeout", "30s")
	v.SetDefault("data.max_retries", 3)
	v.SetDefault("data.retry_delay_base", "1s")
	v.SetDefault("data.cache_fallback", true)
	v.SetDefault("data.identity_field", "")

	// Sequence defaults (empty dataset fields are filled from the preset)
	v.SetDefault("sequence.preset", "temperature")
	v.SetDefault("sequence.attribute_marker", "")
	v.SetDefault("sequence.min_template", "")
	v.SetDefault("sequence.min_step", 1)

	// Symbol defaults
	v.SetDefault("symbols.formula", "linear")
	v.SetDefault("symbols.divisor", 10.0)
	v.SetDefault("symbols.base_radius", 3.0)
	v.SetDefault("symbols.factor", 1.0083)
	v.SetDefault("symbols.exponent", 2.5)
	v.SetDefault("symbols.negative_policy", "reject")
	v.SetDefault("symbols.style.fill_color", "#ff7800")
	v.SetDefault("symbols.style.color", "#000")
	v.SetDefault("symbols.style.weight", 1.0)
	v.SetDefault("symbols.style.opacity", 1.0)
	v.SetDefault("symbols.style.fill_opacity", 0.8)

	// Map defaults
	v.SetDefault("map.center_lat", 41.0)
	v.SetDefault("map.center_lng", -100.0)
	v.SetDefault("map.zoom", 4)
	v.SetDefault("map.tile_url", "https://api.mapbox.com/styles/v1/mapbox/light-v11/tiles/{z}/{x}/{y}?access_token={accessToken}")
	v.SetDefault("map.tile_size", 512)
	v.SetDefault("map.zoom_offset", -1)
	v.SetDefault("map.access_token", "")
	v.SetDefault("map.attribution", `© <a href="https://www.mapbox.com/contribute/">Mapbox</a> © <a href="http://www.openstreetmap.org/copyright">OpenStreetMap</a>`)

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/symbolmap.db")
	v.SetDefault("storage.max_datasets", 10)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// preset bundles the dataset-specific settings of one map variant.
type preset struct {
	identityField   string
	attributeMarker string
	labelPrefix     string
	labelFormat     string
	identityLabel   string
	valueLabel      string
	unit            string
}

var presets = map[string]preset{
	"temperature": {
		identityField:   "city",
		attributeMarker: "temp",
		labelPrefix:     "temp",
		labelFormat:     "%s",
		identityLabel:   "City",
		valueLabel:      "Average number of 90-degree days per year in the %s",
		unit:            "days",
	},
	"rent": {
		identityField:   "zipCode",
		attributeMarker: "rent",
		labelPrefix:     "rent_month_",
		labelFormat:     "month %s",
		identityLabel:   "ZIP code",
		valueLabel:      "Median rent in %s",
		unit:            "USD",
	},
}

// applyPreset fills every dataset field that the file and environment left unset.
func (c *Config) applyPreset() error {
	if c.Sequence.Preset == "" {
		return nil
	}
	p, ok := presets[strings.ToLower(c.Sequence.Preset)]
	if !ok {
		return fmt.Errorf("unknown sequence.preset %q", c.Sequence.Preset)
	}

	fill := func(dst *string, val string) {
		if *dst == "" {
			*dst = val
		}
	}
	fill(&c.Data.IdentityField, p.identityField)
	fill(&c.Sequence.AttributeMarker, p.attributeMarker)
	fill(&c.Sequence.LabelPrefix, p.labelPrefix)
	fill(&c.Sequence.LabelFormat, p.labelFormat)
	fill(&c.Popup.IdentityLabel, p.identityLabel)
	fill(&c.Popup.ValueLabel, p.valueLabel)
	fill(&c.Popup.Unit, p.unit)
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate data config
	if c.Data.Source == "" {
		return fmt.Errorf("data.source is required")
	}
	if c.Data.IdentityField == "" {
		return fmt.Errorf("data.identity_field is required")
	}
	if c.Data.Timeout <= 0 {
		return fmt.Errorf("data.timeout must be positive")
	}
	if c.Data.MaxRetries < 1 {
		return fmt.Errorf("data.max_retries must be at least 1")
	}

	// Validate sequence config
	if c.Sequence.AttributeMarker == "" {
		return fmt.Errorf("sequence.attribute_marker is required")
	}
	if !strings.Contains(c.Sequence.LabelFormat, "%s") {
		return fmt.Errorf("sequence.label_format must contain %%s")
	}
	if c.Sequence.MinTemplate != "" {
		if !strings.Contains(c.Sequence.MinTemplate, "%d") {
			return fmt.Errorf("sequence.min_template must contain %%d")
		}
		if c.Sequence.MinStep < 1 {
			return fmt.Errorf("sequence.min_step must be at least 1")
		}
		if c.Sequence.MinEnd < c.Sequence.MinStart {
			return fmt.Errorf("sequence.min_end must not be before sequence.min_start")
		}
	}

	// Validate symbols config
	switch c.Symbols.Formula {
	case "linear":
		if c.Symbols.Divisor <= 0 {
			return fmt.Errorf("symbols.divisor must be positive")
		}
	case "normalized":
		if c.Symbols.BaseRadius <= 0 {
			return fmt.Errorf("symbols.base_radius must be positive")
		}
		if c.Symbols.Factor <= 0 {
			return fmt.Errorf("symbols.factor must be positive")
		}
		if c.Symbols.Exponent <= 0 {
			return fmt.Errorf("symbols.exponent must be positive")
		}
	default:
		return fmt.Errorf("symbols.formula must be one of: linear, normalized")
	}
	if c.Symbols.NegativePolicy != "reject" && c.Symbols.NegativePolicy != "clamp" {
		return fmt.Errorf("symbols.negative_policy must be one of: reject, clamp")
	}
	if c.Symbols.Style.FillOpacity < 0 || c.Symbols.Style.FillOpacity > 1 {
		return fmt.Errorf("symbols.style.fill_opacity must be between 0.0 and 1.0")
	}
	if c.Symbols.Style.Opacity < 0 || c.Symbols.Style.Opacity > 1 {
		return fmt.Errorf("symbols.style.opacity must be between 0.0 and 1.0")
	}

	// Validate map config
	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 {
		return fmt.Errorf("map.center_lat must be between -90 and 90")
	}
	if c.Map.CenterLng < -180 || c.Map.CenterLng > 180 {
		return fmt.Errorf("map.center_lng must be between -180 and 180")
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		return fmt.Errorf("map.zoom must be between 0 and 22")
	}

	// Validate server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	// Validate storage config
	if c.Storage.DBPath != "" && c.Storage.MaxDatasets < 1 {
		return fmt.Errorf("storage.max_datasets must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
