package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/prep-assistant/internal/chat"
	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/store"
)

const (
	app = "prep-assistant"
)

type Config struct {
	Store  *StoreConfig  `mapstructure:"store"`
	Chat   *ChatConfig   `mapstructure:"chat"`
	AI     *AIConfig     `mapstructure:"ai"`
	Server *ServerConfig `mapstructure:"server"`
}

type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	DSN     string      `mapstructure:"dsn"`
	REST    *RESTConfig `mapstructure:"rest"`
}

type RESTConfig struct {
	URL        string        `mapstructure:"url"`
	Table      string        `mapstructure:"table"`
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user-agent"`
}

type ChatConfig struct {
	Timeout     time.Duration  `mapstructure:"timeout"`
	KeepHistory bool           `mapstructure:"keep-history"`
	History     *HistoryConfig `mapstructure:"history"`
}

type HistoryConfig struct {
	Backend  string        `mapstructure:"backend"`
	Dir      string        `mapstructure:"dir"`
	Key      string        `mapstructure:"key"`
	RedisURL string        `mapstructure:"redis-url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "prep-assistant answers interview preparation questions from shared interview experiences",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

var envBindings = map[string]string{
	"store.rest.url":          "BAAS_URL",
	"store.rest.api-key":      "BAAS_ANON_KEY",
	"store.rest.api-key-file": "BAAS_API_KEY_FILE",
	"store.dsn":               "DATABASE_URL",
	"ai.gemini.api-key":       "GEMINI_API_KEY",
	"ai.gemini.api-key-file":  "GEMINI_API_KEY_FILE",
	"chat.history.redis-url":  "REDIS_URL",
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is prep-assistant.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("store.backend", backendREST)
	viper.SetDefault("store.rest.table", experience.TableName)
	viper.SetDefault("store.rest.timeout", 10*time.Second)

	viper.SetDefault("chat.timeout", chat.DefaultTimeout)
	viper.SetDefault("chat.keep-history", false)
	viper.SetDefault("chat.history.backend", historyFile)
	viper.SetDefault("chat.history.key", chat.DefaultKey)
	viper.SetDefault("chat.history.ttl", 24*time.Hour)

	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.gemini.max-retries", 2)
	viper.SetDefault("ai.gemini.max-log-length", 200)

	viper.SetDefault("server.addr", ":8080")
}

func initConfig() {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config every setting can come from defaults and the environment.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{Backend: backendREST}
	}
	if config.Store.REST == nil {
		config.Store.REST = &RESTConfig{Table: experience.TableName}
	}
	if config.Chat == nil {
		config.Chat = &ChatConfig{}
	}
	if config.Chat.History == nil {
		config.Chat.History = &HistoryConfig{Backend: historyMemory, Key: chat.DefaultKey}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{Addr: ":8080"}
	}

	return config, nil
}

// storeBackends lists the accepted store.backend values.
var storeBackends = []string{backendREST, store.DriverPostgres, store.DriverSQLite}
