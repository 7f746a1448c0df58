package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is constructed once by Load
// and passed by reference into the pipelines; nothing mutates it afterwards.
type Config struct {
	Email      Email      `mapstructure:"email"`
	Zulip      Zulip      `mapstructure:"zulip"`
	Gemini     Gemini     `mapstructure:"gemini"`
	Processing Processing `mapstructure:"processing"`
	Sources    Sources    `mapstructure:"-"`
	LogLevel   string     `mapstructure:"log_level"`
	DryRun     bool       `mapstructure:"dry_run"`
}

// Email holds delivery configuration.
type Email struct {
	SenderEmail string   `mapstructure:"sender_email"`
	Recipients  []string `mapstructure:"recipients"`
	AWSRegion   string   `mapstructure:"aws_region"`
}

// Zulip holds chat API credentials.
type Zulip struct {
	Site   string `mapstructure:"site"`
	Email  string `mapstructure:"email"`
	APIKey string `mapstructure:"api_key"`
}

// Gemini holds the optional summarizer credentials. An empty APIKey selects
// the deterministic fallback summaries.
type Gemini struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Processing holds content-window and pipeline toggles.
type Processing struct {
	Timezone         string `mapstructure:"timezone"`
	LookbackDays     int    `mapstructure:"lookback_days"`
	RecentHours      int    `mapstructure:"recent_hours"`
	FetchTimeout     string `mapstructure:"fetch_timeout"`
	EnableConfluence bool   `mapstructure:"enable_confluence"`
	EnableZulip      bool   `mapstructure:"enable_zulip"`
}

// FetchTimeoutDuration parses the configured fetch timeout, defaulting to 60s.
func (p Processing) FetchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(p.FetchTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// ConfluenceSource describes one wiki page to scrape.
type ConfluenceSource struct {
	Name        string `yaml:"name"`
	WorkGroup   string `yaml:"work_group"`
	URL         string `yaml:"url"`
	Description string `yaml:"description,omitempty"`
}

// ZulipSource describes one chat stream to aggregate.
type ZulipSource struct {
	Name        string `yaml:"name"`
	WorkGroup   string `yaml:"work_group"`
	StreamName  string `yaml:"stream_name"`
	StreamID    int    `yaml:"stream_id"`
	Description string `yaml:"description,omitempty"`
}

// Sources holds all configured data sources.
type Sources struct {
	Confluence []ConfluenceSource `yaml:"confluence"`
	Zulip      []ZulipSource      `yaml:"zulip"`
}

// Load reads configuration from .env, environment variables and an optional
// yaml config file, then loads the source list from sourcesFile.
func Load(configFile, sourcesFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".roundup")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	sources, err := LoadSources(sourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources

	return cfg, nil
}

// LoadSources reads the source list from a yaml file. A missing file yields
// an empty source list, not an error.
func LoadSources(path string) (Sources, error) {
	if path == "" {
		path = "config/sources.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Sources{}, nil
		}
		return Sources{}, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var sources Sources
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return Sources{}, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	return sources, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("email.sender_email", "digest@example.org")
	v.SetDefault("email.recipients", []string{})
	v.SetDefault("email.aws_region", "us-east-1")

	v.SetDefault("zulip.site", "https://chat.fhir.org")

	v.SetDefault("gemini.model", "gemini-2.0-flash")

	v.SetDefault("processing.timezone", "America/New_York")
	v.SetDefault("processing.lookback_days", 7)
	v.SetDefault("processing.recent_hours", 24)
	v.SetDefault("processing.fetch_timeout", "60s")
	v.SetDefault("processing.enable_confluence", true)
	v.SetDefault("processing.enable_zulip", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("dry_run", false)
}

func bindEnvironmentVariables(v *viper.Viper) {
	_ = v.BindEnv("email.sender_email", "SES_SENDER_EMAIL")
	_ = v.BindEnv("email.recipients", "DIGEST_RECIPIENTS")
	_ = v.BindEnv("email.aws_region", "AWS_REGION")
	_ = v.BindEnv("zulip.site", "ZULIP_SITE")
	_ = v.BindEnv("zulip.email", "ZULIP_EMAIL")
	_ = v.BindEnv("zulip.api_key", "ZULIP_API_KEY")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("gemini.model", "GEMINI_MODEL")
	_ = v.BindEnv("processing.timezone", "DIGEST_TIMEZONE")
	_ = v.BindEnv("processing.lookback_days", "DIGEST_LOOKBACK_DAYS")
	_ = v.BindEnv("processing.recent_hours", "DIGEST_RECENT_HOURS")
	_ = v.BindEnv("processing.enable_confluence", "ENABLE_CONFLUENCE")
	_ = v.BindEnv("processing.enable_zulip", "ENABLE_ZULIP")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("dry_run", "DRY_RUN")
}
