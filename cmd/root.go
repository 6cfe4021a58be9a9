package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/listing-scout/internal/browser"
	"github.com/spigell/listing-scout/internal/control"
	"github.com/spigell/listing-scout/internal/filtering"
	"github.com/spigell/listing-scout/internal/relevance"
	"github.com/spigell/listing-scout/internal/traversal"
)

const (
	app       = "listing-scout"
	envPrefix = "LISTING_SCOUT"
)

type Config struct {
	Browser      browser.Config   `mapstructure:"browser"`
	Relevance    relevance.Config `mapstructure:"relevance"`
	AI           *AIConfig        `mapstructure:"ai"`
	Store        *StoreConfig     `mapstructure:"store"`
	Profile      *ProfileConfig   `mapstructure:"profile"`
	Control      control.Config   `mapstructure:"control"`
	Identity     traversal.Config `mapstructure:"identity"`
	Filters      filtering.Config `mapstructure:"filters"`
	PollInterval time.Duration    `mapstructure:"poll-interval"`
}

type AIConfig struct {
	// Provider is gemini, openai or googleai. The last two go through langchaingo.
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	BaseURL        string `mapstructure:"base-url"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type StoreConfig struct {
	// Driver is http, sqlite, postgres or memory.
	Driver  string `mapstructure:"driver"`
	URL     string `mapstructure:"url"`
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
	// Listen is used by serve-store.
	Listen string `mapstructure:"listen"`
}

type ProfileConfig struct {
	Path string `mapstructure:"path"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "listing-scout walks a startup job listing in your browser and drafts cover letters for relevant jobs",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is listing-scout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every key so env overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	b := browser.DefaultConfig()
	v.SetDefault("browser.cdp-endpoint", b.CDPEndpoint)
	v.SetDefault("browser.listing-url", b.ListingURL)
	v.SetDefault("browser.user-id-storage-key", b.UserIDStorageKey)
	v.SetDefault("browser.settle-delay", b.SettleDelay)
	v.SetDefault("browser.scroll-pause", b.ScrollPause)
	v.SetDefault("browser.scroll-step", b.ScrollStep)
	v.SetDefault("browser.typing-delay", b.TypingDelay)
	v.SetDefault("browser.screenshot-dir", "")

	v.SetDefault("relevance.title-threshold", relevance.DefaultThreshold)
	v.SetDefault("relevance.description-threshold", relevance.DefaultThreshold)

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.embedding-model", "")
	v.SetDefault("ai.api-key", "")
	v.SetDefault("ai.api-key-file", "")
	v.SetDefault("ai.base-url", "")
	v.SetDefault("ai.max-retries", 3)
	v.SetDefault("ai.max-log-length", 400)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.url", "")
	v.SetDefault("store.dsn", app+".db")
	v.SetDefault("store.dsn-file", "")
	v.SetDefault("store.listen", "127.0.0.1:8091")

	v.SetDefault("profile.path", "profile.json")

	v.SetDefault("control.listen", "")
	v.SetDefault("identity.user-id", "")
	v.SetDefault("identity.require", false)

	v.SetDefault("filters.min-title-length", 5)

	v.SetDefault("poll-interval", traversal.DefaultPollInterval)
}

// bindEnv maps keys like store.dsn to LISTING_SCOUT_STORE_DSN.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()

	bindEnv(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine, everything has a default or an env
	// override. An explicit or broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.AI == nil {
		c.AI = &AIConfig{}
	}
	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	if c.Profile == nil {
		c.Profile = &ProfileConfig{}
	}

	for name, t := range map[string]float64{
		"relevance.title-threshold":       c.Relevance.TitleThreshold,
		"relevance.description-threshold": c.Relevance.DescriptionThreshold,
	} {
		if t < 0 || t > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, t)
		}
	}

	if strings.TrimSpace(c.Profile.Path) == "" {
		return errors.New("profile.path is required")
	}

	return c.Browser.Validate()
}
