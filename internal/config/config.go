package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Feeds      Feeds      `mapstructure:"feeds"`
	Popularity Popularity `mapstructure:"popularity"`
	Gemini     Gemini     `mapstructure:"gemini"`
	Selection  Selection  `mapstructure:"selection"`
	Email      Email      `mapstructure:"email"`
}

// App holds general application configuration
type App struct {
	Debug         bool   `mapstructure:"debug"`
	DataDir       string `mapstructure:"data_dir"`
	FeedsPath     string `mapstructure:"feeds_path"`
	FavoritesPath string `mapstructure:"favorites_path"`
}

// Feeds holds feed ingestion configuration
type Feeds struct {
	LookbackDays int    `mapstructure:"lookback_days"`
	MaxEntries   int    `mapstructure:"max_entries"` // per feed, fallback for undated feeds
	Timeout      string `mapstructure:"timeout"`
}

// Popularity holds engagement-signal source configuration
type Popularity struct {
	HNBaseURL     string `mapstructure:"hn_base_url"`
	RedditBaseURL string `mapstructure:"reddit_base_url"`
	Timeout       string `mapstructure:"timeout"`
}

// Gemini holds Google Gemini configuration
type Gemini struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// Selection holds the pipeline's filtering and selection constants
type Selection struct {
	EmbeddingTopN  int     `mapstructure:"embedding_top_n"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	MinArticles    int     `mapstructure:"min_articles"`
	MaxArticles    int     `mapstructure:"max_articles"`
}

// Email holds digest dispatch configuration
type Email struct {
	SMTPHost    string `mapstructure:"smtp_host"`
	SMTPPort    int    `mapstructure:"smtp_port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	ToAddress   string `mapstructure:"to_address"`
}

var globalConfig *Config

// Load loads the configuration from .env, environment variables, an
// optional YAML config file, and built-in defaults.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists (for local development)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".readingrecs")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", "data")
	viper.SetDefault("app.feeds_path", "feeds.txt")
	viper.SetDefault("app.favorites_path", "examples/favorites.md")

	viper.SetDefault("feeds.lookback_days", 7)
	viper.SetDefault("feeds.max_entries", 10)
	viper.SetDefault("feeds.timeout", "15s")

	viper.SetDefault("popularity.hn_base_url", "https://hn.algolia.com")
	viper.SetDefault("popularity.reddit_base_url", "https://www.reddit.com")
	viper.SetDefault("popularity.timeout", "10s")

	viper.SetDefault("gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("gemini.embedding_model", "gemini-embedding-001")

	viper.SetDefault("selection.embedding_top_n", 30)
	viper.SetDefault("selection.score_threshold", 7)
	viper.SetDefault("selection.min_articles", 5)
	viper.SetDefault("selection.max_articles", 10)

	viper.SetDefault("email.smtp_host", "smtp.gmail.com")
	viper.SetDefault("email.smtp_port", 587)
}

func bindEnvironmentVariables() {
	bindEnvKeys("gemini.api_key", []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY"})
	bindEnvKeys("email.username", []string{"GMAIL_USER", "EMAIL_USERNAME"})
	bindEnvKeys("email.password", []string{"GMAIL_APP_PASSWORD", "EMAIL_PASSWORD"})
	bindEnvKeys("email.to_address", []string{"GMAIL_TO", "EMAIL_TO"})
	bindEnvKeys("email.from_address", []string{"GMAIL_USER", "EMAIL_FROM"})
}

func bindEnvKeys(configKey string, envKeys []string) {
	// BindEnv takes the config key followed by env vars in precedence order.
	_ = viper.BindEnv(append([]string{configKey}, envKeys...)...)
}

func validate(config *Config) error {
	if config.Selection.MinArticles > config.Selection.MaxArticles {
		return fmt.Errorf("selection.min_articles (%d) exceeds selection.max_articles (%d)",
			config.Selection.MinArticles, config.Selection.MaxArticles)
	}
	if config.Selection.EmbeddingTopN <= 0 {
		return fmt.Errorf("selection.embedding_top_n must be positive")
	}
	if config.Feeds.LookbackDays <= 0 {
		return fmt.Errorf("feeds.lookback_days must be positive")
	}
	return nil
}
