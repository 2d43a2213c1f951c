package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser       Browser       `mapstructure:"browser"`
	Listing       Listing       `mapstructure:"listing"`
	Detail        Detail        `mapstructure:"detail"`
	API           API           `mapstructure:"api"`
	Output        Output        `mapstructure:"output"`
	Storage       Storage       `mapstructure:"storage"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Kafka         Kafka         `mapstructure:"kafka"`
	Metrics       Metrics       `mapstructure:"metrics"`
	Schedule      Schedule      `mapstructure:"schedule"`
}

// Browser selects and configures the page automation driver.
type Browser struct {
	Driver    string        `mapstructure:"driver"` // "chrome" or "static"
	Headless  bool          `mapstructure:"headless"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Listing holds the browser connector configuration.
type Listing struct {
	URL               string        `mapstructure:"url"`
	TileSelector      string        `mapstructure:"tile_selector"`
	MaxScrollAttempts int           `mapstructure:"max_scroll_attempts"`
	SettleInterval    time.Duration `mapstructure:"settle_interval"`
	TilesFile         string        `mapstructure:"tiles_file"`
	Fields            TileFields    `mapstructure:"fields"`
}

// TileFields are the per-field CSS selectors inside a tile.
type TileFields struct {
	Title        string `mapstructure:"title"`
	Link         string `mapstructure:"link"`
	Image        string `mapstructure:"image"`
	Date         string `mapstructure:"date"`
	Prize        string `mapstructure:"prize"`
	Participants string `mapstructure:"participants"`
	Tags         string `mapstructure:"tags"`
}

// Detail holds the detail enricher configuration. Each field lists
// selectors tried in order; "selector@attr" reads an attribute.
type Detail struct {
	HeadingSelector string        `mapstructure:"heading_selector"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout"`
	Delay           time.Duration `mapstructure:"delay"`
	Concurrency     int           `mapstructure:"concurrency"`
	MaxRetries      int           `mapstructure:"max_retries"`
	Fields          DetailFields  `mapstructure:"fields"`
}

// DetailFields are the cascading selector lists for detail pages.
type DetailFields struct {
	Title        []string `mapstructure:"title"`
	Subtitle     []string `mapstructure:"subtitle"`
	Date         []string `mapstructure:"date"`
	Prize        []string `mapstructure:"prize"`
	StatsValue   []string `mapstructure:"stats_value"`
	Participants []string `mapstructure:"participants"`
	Image        []string `mapstructure:"image"`
	Tags         []string `mapstructure:"tags"`
}

// API holds the search API connector configuration.
type API struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Method    string            `mapstructure:"method"`
	PageSize  int               `mapstructure:"page_size"`
	Query     map[string]any    `mapstructure:"query"`
	Headers   map[string]string `mapstructure:"headers"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	PageDelay time.Duration     `mapstructure:"page_delay"`
}

// Output holds the local artifact configuration.
type Output struct {
	Path   string `mapstructure:"path"`
	Indent bool   `mapstructure:"indent"`
}

// Storage holds S3/MinIO storage configuration.
type Storage struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Elasticsearch holds the optional index sink configuration.
type Elasticsearch struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Kafka holds the optional message sink configuration.
type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Metrics holds the Prometheus textfile export configuration.
type Metrics struct {
	Textfile string `mapstructure:"textfile"`
}

// Schedule configures repeated runs. An empty Cron runs once.
type Schedule struct {
	Cron string `mapstructure:"cron"` // standard five-field spec or a descriptor like "@every 6h"
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Browser: Browser{
			Driver:    "chrome",
			Headless:  true,
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:   60 * time.Second,
		},
		Listing: Listing{
			URL:               "https://devpost.com/hackathons",
			TileSelector:      ".hackathon-tile",
			MaxScrollAttempts: 12,
			SettleInterval:    2500 * time.Millisecond,
			TilesFile:         "data/tiles.json",
			Fields: TileFields{
				Title:        "h3",
				Link:         "a@href",
				Image:        "img@src",
				Date:         ".submission-period",
				Prize:        ".prize-amount",
				Participants: ".participants strong",
				Tags:         ".theme-label",
			},
		},
		Detail: Detail{
			HeadingSelector: "h1",
			WaitTimeout:     15 * time.Second,
			Delay:           1 * time.Second,
			Concurrency:     4,
			MaxRetries:      2,
			Fields: DetailFields{
				Title:        []string{"#challenge-title", "h1", "meta[property='og:title']@content", "title"},
				Subtitle:     []string{"#introduction h3", "h3.large", "meta[name='description']@content"},
				Date:         []string{"#challenge-information .submission-period", ".submission-period", "time"},
				Prize:        []string{"#prizes .prize-amount", ".prize-amount", "[data-currency-value]"},
				StatsValue:   []string{"#challenge-information .info-with-icon .value", ".stats .value"},
				Participants: []string{"#challenge-information .participants strong", ".participants strong", ".participants"},
				Image:        []string{"meta[property='og:image']@content", "#challenge-header img@src"},
				Tags:         []string{"#challenge-information .theme-label", ".theme-label", ".tags a"},
			},
		},
		API: API{
			Endpoint: "https://api.devfolio.co/api/search/hackathons",
			Method:   "POST",
			PageSize: 50,
			Query: map[string]any{
				"type": "application_open",
			},
			Timeout:   30 * time.Second,
			PageDelay: 500 * time.Millisecond,
		},
		Output: Output{
			Path:   "data/hackathons.json",
			Indent: true,
		},
		Storage: Storage{
			Enabled:         false,
			Endpoint:        "localhost:9000",
			Bucket:          "hackathons",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
		},
		Elasticsearch: Elasticsearch{
			Enabled:   false,
			Addresses: []string{"http://localhost:9200"},
			Index:     "hackathons",
		},
		Kafka: Kafka{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "hackathons",
		},
	}
}

// Validate reports configuration that would make a run meaningless.
func (c Config) Validate() error {
	var errs []error
	if c.Listing.URL == "" {
		errs = append(errs, errors.New("listing.url is required"))
	}
	if c.Listing.TileSelector == "" {
		errs = append(errs, errors.New("listing.tile_selector is required"))
	}
	if c.Listing.MaxScrollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("listing.max_scroll_attempts must be positive, got %d", c.Listing.MaxScrollAttempts))
	}
	if c.API.Endpoint == "" {
		errs = append(errs, errors.New("api.endpoint is required"))
	}
	if c.API.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("api.page_size must be positive, got %d", c.API.PageSize))
	}
	if c.Detail.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("detail.concurrency must be positive, got %d", c.Detail.Concurrency))
	}
	if c.Detail.MaxRetries < 0 {
		errs = append(errs, errors.New("detail.max_retries cannot be negative"))
	}
	switch c.Browser.Driver {
	case "chrome", "static":
	default:
		errs = append(errs, fmt.Errorf("browser.driver must be chrome or static, got %q", c.Browser.Driver))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.topic are required when kafka is enabled"))
	}
	return errors.Join(errs...)
}
