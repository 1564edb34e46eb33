package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultGeometryURL serves us-atlas state boundaries as TopoJSON.
const DefaultGeometryURL = "https://cdn.jsdelivr.net/npm/us-atlas@3/states-10m.json"

// Panel kinds.
const (
	KindGeo   = "geo"
	KindGrid  = "grid"
	KindTrend = "trend"
	KindCurve = "curve"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Panels   []PanelConfig  `mapstructure:"panels"`
	Render   RenderConfig   `mapstructure:"render"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// SourcesConfig holds shared data sources
type SourcesConfig struct {
	GeometryURL    string `mapstructure:"geometry_url"`
	GeometryObject string `mapstructure:"geometry_object"`
	// TrendURL is used by trend panels that name no source of their own.
	TrendURL string `mapstructure:"trend_url"`
}

// PanelConfig describes one visual unit on the page
type PanelConfig struct {
	ID     string `mapstructure:"id"`
	Kind   string `mapstructure:"kind"`
	Source string `mapstructure:"source"`
	Title  string `mapstructure:"title"`
}

// RenderConfig holds drawing parameters
type RenderConfig struct {
	Width          float64       `mapstructure:"width"`
	Aspect         float64       `mapstructure:"aspect"`
	GridCellWidth  float64       `mapstructure:"grid_cell_width"`
	GridCellHeight float64       `mapstructure:"grid_cell_height"`
	GridGap        float64       `mapstructure:"grid_gap"`
	ResizeDebounce time.Duration `mapstructure:"resize_debounce"`
	Curve          CurveConfig   `mapstructure:"curve"`
}

// CurveConfig holds the probability curve domain and normalization
type CurveConfig struct {
	Min           float64 `mapstructure:"min"`
	Max           float64 `mapstructure:"max"`
	Step          float64 `mapstructure:"step"`
	Normalization float64 `mapstructure:"normalization"`
}

// IngestConfig holds tabular parsing behavior
type IngestConfig struct {
	RowPolicy string `mapstructure:"row_policy"` // strict aborts on the first bad row, isolate skips it
}

// FetchConfig holds data source fetching configuration
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// RefreshConfig holds periodic reload configuration
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables periodic reloads
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath   string `mapstructure:"db_path"`
	MaxLoads int    `mapstructure:"max_loads"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is applied to the environment first.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("ELECTIONMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

// decode unmarshals v into a Config and fills panel defaults.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyPanelDefaults()
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Source defaults
	v.SetDefault("sources.geometry_url", DefaultGeometryURL)
	v.SetDefault("sources.geometry_object", "states")
	v.SetDefault("sources.trend_url", "")

	// Render defaults
	v.SetDefault("render.width", 960)
	v.SetDefault("render.aspect", 0.618) // golden ratio
	v.SetDefault("render.grid_cell_width", 60)
	v.SetDefault("render.grid_cell_height", 26)
	v.SetDefault("render.grid_gap", 4)
	v.SetDefault("render.resize_debounce", "150ms")
	v.SetDefault("render.curve.min", -10)
	v.SetDefault("render.curve.max", 10)
	v.SetDefault("render.curve.step", 0.5)
	v.SetDefault("render.curve.normalization", 5.1)

	// Ingest defaults
	v.SetDefault("ingest.row_policy", "strict")

	// Fetch defaults
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_delay_base", "1s")

	// Refresh defaults
	v.SetDefault("refresh.interval", "0s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/electionmap.db")
	v.SetDefault("storage.max_loads", 500)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// applyPanelDefaults fills titles and the shared trend source.
func (c *Config) applyPanelDefaults() {
	for i := range c.Panels {
		p := &c.Panels[i]
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if p.Kind == KindTrend && p.Source == "" {
			p.Source = c.Sources.TrendURL
		}
		if p.Title == "" {
			p.Title = defaultTitle(p.Kind)
		}
	}
}

func defaultTitle(kind string) string {
	switch kind {
	case KindGeo, KindGrid:
		return "2024 Electoral Map"
	case KindTrend:
		return "Winning Combinations Trend"
	case KindCurve:
		return "Spread to Win Probability"
	}
	return ""
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Server config
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	// Validate Panels
	if len(c.Panels) == 0 {
		return fmt.Errorf("panels must contain at least one panel")
	}
	seen := make(map[string]bool, len(c.Panels))
	hasGeo := false
	for i, p := range c.Panels {
		if p.ID == "" {
			return fmt.Errorf("panels[%d].id is required", i)
		}
		if strings.ContainsAny(p.ID, "/ .") {
			return fmt.Errorf("panels[%d].id must not contain '/', '.' or spaces", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("panels[%d].id %q is duplicated", i, p.ID)
		}
		seen[p.ID] = true
		switch p.Kind {
		case KindGeo:
			hasGeo = true
		case KindGrid, KindTrend, KindCurve:
		default:
			return fmt.Errorf("panels[%d].kind must be one of: geo, grid, trend, curve", i)
		}
	}
	if hasGeo && c.Sources.GeometryURL == "" {
		return fmt.Errorf("sources.geometry_url is required when a geo panel is configured")
	}

	// Validate Render config
	if c.Render.Width < 100 {
		return fmt.Errorf("render.width must be at least 100")
	}
	if c.Render.Aspect <= 0 || c.Render.Aspect > 4 {
		return fmt.Errorf("render.aspect must be between 0 and 4")
	}
	if c.Render.GridCellWidth <= 0 || c.Render.GridCellHeight <= 0 || c.Render.GridGap < 0 {
		return fmt.Errorf("render grid cell size must be positive and gap not negative")
	}
	if c.Render.ResizeDebounce < 0 {
		return fmt.Errorf("render.resize_debounce must not be negative")
	}
	if c.Render.Curve.Step <= 0 {
		return fmt.Errorf("render.curve.step must be positive")
	}
	if c.Render.Curve.Max < c.Render.Curve.Min {
		return fmt.Errorf("render.curve.max must not be below render.curve.min")
	}
	if c.Render.Curve.Normalization <= 0 {
		return fmt.Errorf("render.curve.normalization must be positive")
	}

	// Validate Ingest config
	validPolicies := map[string]bool{"strict": true, "isolate": true}
	if !validPolicies[c.Ingest.RowPolicy] {
		return fmt.Errorf("ingest.row_policy must be one of: strict, isolate")
	}

	// Validate Fetch config
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxRetries < 0 || c.Fetch.MaxRetries > 10 {
		return fmt.Errorf("fetch.max_retries must be between 0 and 10")
	}

	// Validate Refresh config
	if c.Refresh.Interval != 0 && c.Refresh.Interval < 10*time.Second {
		return fmt.Errorf("refresh.interval must be 0 or at least 10 seconds")
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

	// Validate Storage config
	if c.Storage.MaxLoads < 1 {
		return fmt.Errorf("storage.max_loads must be at least 1")
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

// Panel returns the panel config with id.
func (c *Config) Panel(id string) (PanelConfig, bool) {
	for _, p := range c.Panels {
		if p.ID == id {
			return p, true
		}
	}
	return PanelConfig{}, false
}
