package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pubhub-IN/pubhub-sub000/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	cfg       config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "hackathons",
	Short: "Aggregate hackathon listings from a listing site and a search API",
	Long: `hackathons collects hackathon listings from two sources, a scrolling
listing page (with each listing's detail page) and a paginated search API,
then normalizes, deduplicates by link and writes a single JSON array.

Commands:
  run        Run the whole pipeline, once or on a schedule
  tiles      Scrape the listing page and save the tiles file
  aggregate  Enrich saved tiles, query the API, merge and emit
  index      Index a stored run's listings into Elasticsearch`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

func initLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/hackathons")
		viper.AddConfigPath(".")
	}

	// HACKATHONS_LISTING_URL -> listing.url
	viper.SetEnvPrefix("HACKATHONS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{
		"browser.driver",
		"browser.headless",
		"listing.url",
		"listing.tiles_file",
		"api.endpoint",
		"output.path",
		"storage.enabled",
		"storage.endpoint",
		"storage.bucket",
		"storage.access_key_id",
		"storage.secret_access_key",
		"elasticsearch.enabled",
		"elasticsearch.addresses",
		"elasticsearch.index",
		"elasticsearch.username",
		"elasticsearch.password",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic",
		"metrics.textfile",
		"schedule.cron",
	} {
		viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Comma-separated lists from env
	if addrs := os.Getenv("HACKATHONS_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
	if brokers := os.Getenv("HACKATHONS_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
}
