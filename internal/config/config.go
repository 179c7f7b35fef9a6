package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the full application configuration. Values come from an optional
// yaml file with environment variables taking precedence for secrets and
// deployment-specific settings.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Counties map[string]CountyConfig `yaml:"counties"`
	Geocoder GeocoderConfig          `yaml:"geocoder"`
	Notify   NotifyConfig            `yaml:"notify"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// CountyConfig describes one county source. URL and PhotoListURL are the
// fallback asset links used when dynamic discovery fails or is disabled.
type CountyConfig struct {
	Name          string `yaml:"name"`
	State         string `yaml:"state"`
	DataType      string `yaml:"data_type"`
	URL           string `yaml:"url"`
	PhotoListURL  string `yaml:"photo_list_url"`
	SourceWebsite string `yaml:"source_website"`
	DynamicURLs   bool   `yaml:"dynamic_urls"`
	Status        string `yaml:"status"` // "" or "active" or "maintenance"
}

type GeocoderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RequestDelay   time.Duration `yaml:"request_delay"`
	BatchBudget    time.Duration `yaml:"batch_budget"`
	CacheFile      string        `yaml:"cache_file"`
}

type NotifyConfig struct {
	EmailEnabled   bool
	EmailTo        string
	EmailFrom      string
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPass       string
	WebhookEnabled bool
	WebhookURL     string
	SlackEnabled   bool
	SlackWebhook   string
	SlackChannel   string
	FileEnabled    bool
	FileLogPath    string
}

// Default returns the built-in configuration covering the currently
// supported counties.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "3001"},
		Counties: map[string]CountyConfig{
			"chatham": {
				Name:          "Chatham County",
				State:         "GA",
				DataType:      "pdf",
				URL:           "https://cms.chathamcountyga.gov/api/assets/taxcommissioner/bbcf4bac-48f3-47fe-894c-18397e65ebff?download=0",
				PhotoListURL:  "https://cms.chathamcountyga.gov/api/assets/taxcommissioner/59c03060-15c8-4653-9c6c-0568b45814c9?download=0",
				SourceWebsite: "https://tax.chathamcountyga.gov/TaxSaleList",
				DynamicURLs:   true,
			},
			"dekalb": {
				Name:     "DeKalb County",
				State:    "GA",
				DataType: "csv",
				URL:      "https://publicaccess.dekalbtax.org/forms/htmlframe.aspx?mode=content/search/tax_sale_listing.html",
				Status:   "maintenance",
			},
		},
		Geocoder: GeocoderConfig{
			BaseURL:        "https://nominatim.openstreetmap.org",
			UserAgent:      "TaxSaleListings/1.0",
			RequestTimeout: 5 * time.Second,
			RequestDelay:   300 * time.Millisecond,
			BatchBudget:    60 * time.Second,
			CacheFile:      "geocode_cache.json",
		},
	}
}

// Load reads the yaml file at path (missing file is not an error) and applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if cache := os.Getenv("GEOCODE_CACHE_FILE"); cache != "" {
		cfg.Geocoder.CacheFile = cache
	}
	if ua := os.Getenv("GEOCODER_USER_AGENT"); ua != "" {
		cfg.Geocoder.UserAgent = ua
	}
	if base := os.Getenv("GEOCODER_BASE_URL"); base != "" {
		cfg.Geocoder.BaseURL = base
	}

	cfg.Notify = NotifyConfig{
		EmailEnabled:   envBool("EMAIL_NOTIFICATIONS"),
		EmailTo:        os.Getenv("NOTIFICATION_EMAIL"),
		EmailFrom:      os.Getenv("FROM_EMAIL"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       os.Getenv("SMTP_PORT"),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPass:       os.Getenv("SMTP_PASS"),
		WebhookEnabled: envBool("WEBHOOK_NOTIFICATIONS"),
		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		SlackEnabled:   envBool("SLACK_NOTIFICATIONS"),
		SlackWebhook:   os.Getenv("SLACK_WEBHOOK_URL"),
		SlackChannel:   envDefault("SLACK_CHANNEL", "#tax-sale-updates"),
		FileEnabled:    envBool("FILE_NOTIFICATIONS"),
		FileLogPath:    envDefault("NOTIFICATION_LOG_PATH", "notifications.log"),
	}

	return cfg, nil
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
