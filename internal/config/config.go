package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Apify     ApifyConfig     `yaml:"apify" mapstructure:"apify"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Images    ImagesConfig    `yaml:"images" mapstructure:"images"`
	Content   ContentConfig   `yaml:"content" mapstructure:"content"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ApifyConfig holds Apify API settings and actor IDs.
type ApifyConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	PlacesActor      string `yaml:"places_actor" mapstructure:"places_actor"`
	ImageSearchActor string `yaml:"image_search_actor" mapstructure:"image_search_actor"`
	PollTimeoutSecs  int    `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	ContentModel string `yaml:"content_model" mapstructure:"content_model"`
	VisionModel  string `yaml:"vision_model" mapstructure:"vision_model"`
	MaxTokens    int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// StorageConfig holds object storage settings for finalized images.
type StorageConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket"`
}

// ScoringConfig tunes the image candidate scoring weights and gate
// thresholds. Defaults reproduce the calibration the directory launched with.
type ScoringConfig struct {
	MinDimension   int     `yaml:"min_dimension" mapstructure:"min_dimension"`
	MinPixels      int     `yaml:"min_pixels" mapstructure:"min_pixels"`
	MinAspectRatio float64 `yaml:"min_aspect_ratio" mapstructure:"min_aspect_ratio"`
	MaxAspectRatio float64 `yaml:"max_aspect_ratio" mapstructure:"max_aspect_ratio"`
	MaxCandidates  int     `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// ImagesConfig configures harvesting and finalization.
type ImagesConfig struct {
	MaxPerQuery      int     `yaml:"max_per_query" mapstructure:"max_per_query"`
	MaxUploads       int     `yaml:"max_uploads" mapstructure:"max_uploads"`
	VisionRatePerSec float64 `yaml:"vision_rate_per_sec" mapstructure:"vision_rate_per_sec"`
}

// ContentConfig configures the content generation stage.
type ContentConfig struct {
	DefaultCity    string `yaml:"default_city" mapstructure:"default_city"`
	TrackingSource string `yaml:"tracking_source" mapstructure:"tracking_source"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	ScrapeConcurrency int `yaml:"scrape_concurrency" mapstructure:"scrape_concurrency"`
	MaxMenuPages      int `yaml:"max_menu_pages" mapstructure:"max_menu_pages"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.places_actor", "compass~crawler-google-places")
	v.SetDefault("apify.image_search_actor", "hooli~google-images-scraper")
	v.SetDefault("apify.poll_timeout_secs", 120)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("anthropic.content_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("storage.bucket", "venue-images")
	v.SetDefault("scoring.min_dimension", 200)
	v.SetDefault("scoring.min_pixels", 30000)
	v.SetDefault("scoring.min_aspect_ratio", 0.33)
	v.SetDefault("scoring.max_aspect_ratio", 3.0)
	v.SetDefault("scoring.max_candidates", 15)
	v.SetDefault("images.max_per_query", 50)
	v.SetDefault("images.max_uploads", 15)
	v.SetDefault("images.vision_rate_per_sec", 0.5)
	v.SetDefault("content.default_city", "London")
	v.SetDefault("content.tracking_source", "dog-friendly-finder")
	v.SetDefault("pipeline.scrape_concurrency", 4)
	v.SetDefault("pipeline.max_menu_pages", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
