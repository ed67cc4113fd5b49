package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Source is a single feed registry entry.
type Source struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

// Scraper modes.
const (
	ScraperHTTP    = "http"
	ScraperBrowser = "browser"
)

// Blob backends.
const (
	BlobS3 = "s3"
	BlobFS = "fs"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// BadgerDBPath locates the record store. An empty path disables every store-backed path.
	BadgerDBPath string `mapstructure:"BADGERDB_PATH"`

	// TelegramBotToken enables the chat control surface when set.
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`

	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	// Schedule is a cron spec for the ingestion cycle. Empty disables the scheduler.
	Schedule string `mapstructure:"SCHEDULE"`

	Feeds              []Source `mapstructure:"FEEDS"`
	FeedLimitPerSource int      `mapstructure:"FEED_LIMIT_PER_SOURCE"`

	ScraperMode         string  `mapstructure:"SCRAPER_MODE"`
	UserAgent           string  `mapstructure:"USER_AGENT"`
	ScrapeRatePerSecond float64 `mapstructure:"SCRAPE_RATE_PER_SECOND"`
	EnrichConcurrency   int     `mapstructure:"ENRICH_CONCURRENCY"`
	DefaultImageURL     string  `mapstructure:"DEFAULT_IMAGE_URL"`

	BlobBackend       string `mapstructure:"BLOB_BACKEND"`
	BlobFSDir         string `mapstructure:"BLOB_FS_DIR"`
	BlobPublicBaseURL string `mapstructure:"BLOB_PUBLIC_BASE_URL"`
	ImageBucket       string `mapstructure:"IMAGE_BUCKET"`
	ArchiveBucket     string `mapstructure:"ARCHIVE_BUCKET"`
	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3AccessKey       string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey       string `mapstructure:"S3_SECRET_KEY"`

	SnapshotDir     string   `mapstructure:"SNAPSHOT_DIR"`
	ResultsDir      string   `mapstructure:"RESULTS_DIR"`
	ExcludedSources []string `mapstructure:"EXCLUDED_SOURCES"`

	// RedisAddr switches the run guard from in-process to a Redis lease.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
}

// DefaultFeeds is the built-in feed registry used when the config file does not list any.
func DefaultFeeds() []Source {
	return []Source{
		{URL: "https://threatpost.com/feed/", Name: "ThreatPost"},
		{URL: "https://www.bleepingcomputer.com/feed/", Name: "BleepingComputer"},
		{URL: "https://feeds.feedburner.com/TheHackersNews", Name: "The Hacker News"},
		{URL: "https://www.darkreading.com/rss.xml", Name: "Dark Reading"},
		{URL: "https://www.csoonline.com/index.rss", Name: "CSO Online"},
		{URL: "https://www.securityweek.com/feed/", Name: "SecurityWeek"},
		{URL: "https://www.infosecurity-magazine.com/rss/news/", Name: "Infosecurity Magazine"},
		{URL: "https://www.kaspersky.com/blog/feed/", Name: "Securelist"},
		{URL: "https://www.scmagazine.com/home/feed", Name: "SC Magazine"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BADGERDB_PATH", "")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SCHEDULE", "@every 30m")
	v.SetDefault("FEED_LIMIT_PER_SOURCE", 12)
	v.SetDefault("SCRAPER_MODE", ScraperHTTP)
	v.SetDefault("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("SCRAPE_RATE_PER_SECOND", 4.0)
	v.SetDefault("ENRICH_CONCURRENCY", 4)
	v.SetDefault("DEFAULT_IMAGE_URL", "https://placehold.co/600x360/0f172a/ffffff?text=AI-CTI")
	v.SetDefault("BLOB_BACKEND", BlobFS)
	v.SetDefault("BLOB_FS_DIR", "./blob_data")
	v.SetDefault("BLOB_PUBLIC_BASE_URL", "")
	v.SetDefault("IMAGE_BUCKET", "article-thumbnails")
	v.SetDefault("ARCHIVE_BUCKET", "raw-feeds")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("SNAPSHOT_DIR", "./data_ingest/processed")
	v.SetDefault("RESULTS_DIR", "./data_results")
	v.SetDefault("EXCLUDED_SOURCES", []string{})
	v.SetDefault("REDIS_ADDR", "")
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, everything can come from the environment.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.normalize(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) normalize() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}

	switch c.ScraperMode {
	case ScraperHTTP, ScraperBrowser:
	default:
		return fmt.Errorf("invalid SCRAPER_MODE %q (want %s or %s)", c.ScraperMode, ScraperHTTP, ScraperBrowser)
	}

	switch c.BlobBackend {
	case BlobFS:
		if c.BlobFSDir == "" {
			return fmt.Errorf("BLOB_FS_DIR is required for the %s blob backend", BlobFS)
		}
		if c.BlobPublicBaseURL == "" {
			c.BlobPublicBaseURL = c.selfBlobBase()
		}
	case BlobS3:
		if c.BlobPublicBaseURL == "" {
			return fmt.Errorf("BLOB_PUBLIC_BASE_URL is required for the %s blob backend", BlobS3)
		}
	default:
		return fmt.Errorf("invalid BLOB_BACKEND %q (want %s or %s)", c.BlobBackend, BlobS3, BlobFS)
	}
	c.BlobPublicBaseURL = strings.TrimRight(c.BlobPublicBaseURL, "/")

	if c.ImageBucket == "" || c.ArchiveBucket == "" {
		return errors.New("IMAGE_BUCKET and ARCHIVE_BUCKET must not be empty")
	}

	if c.FeedLimitPerSource <= 0 {
		c.FeedLimitPerSource = 12
	}
	if c.EnrichConcurrency <= 0 {
		c.EnrichConcurrency = 1
	}
	if len(c.Feeds) == 0 {
		c.Feeds = DefaultFeeds()
	}
	for i, src := range c.Feeds {
		if src.URL == "" {
			return fmt.Errorf("feed %d has no url", i)
		}
	}
	return nil
}

// selfBlobBase is the /blobs route of this process's own HTTP control surface.
func (c Config) selfBlobBase() string {
	port := strings.TrimPrefix(c.HTTPAddr, ":")
	if _, p, err := net.SplitHostPort(c.HTTPAddr); err == nil {
		port = p
	}
	return "http://localhost:" + port + "/blobs"
}

// SelfServedBlobs reports whether cached images are only reachable through the /blobs
// route of `ctifeed serve`. One-shot commands cannot verify those URLs unless a serve
// process with the same HTTP_ADDR is running.
func (c Config) SelfServedBlobs() bool {
	return c.BlobBackend == BlobFS && c.BlobPublicBaseURL == c.selfBlobBase()
}

// StoreEnabled reports whether a record store path was configured.
func (c Config) StoreEnabled() bool {
	return c.BadgerDBPath != ""
}
