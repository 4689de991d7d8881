package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/advice"
	"github.com/spigell/prep-assistant/internal/ai"
	"github.com/spigell/prep-assistant/internal/ai/gemini"
	"github.com/spigell/prep-assistant/internal/chat"
	"github.com/spigell/prep-assistant/internal/matcher"
	"github.com/spigell/prep-assistant/internal/secrets"
	"github.com/spigell/prep-assistant/internal/store"
)

const (
	backendREST = "rest"

	historyMemory = "memory"
	historyFile   = "file"
	historyRedis  = "redis"
)

// openLookup builds the configured experience store.
func openLookup(cfg *StoreConfig, logger *zap.Logger) (store.Lookup, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	switch backend {
	case "", backendREST:
		return openREST(cfg.REST, logger)
	case store.DriverPostgres, store.DriverSQLite:
		return openSQL(backend, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("%w: %q (use one of %s)", store.ErrNoBackend, cfg.Backend, strings.Join(storeBackends, ", "))
	}
}

func openREST(cfg *RESTConfig, logger *zap.Logger) (*store.RESTStore, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "store api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set BAAS_ANON_KEY, BAAS_API_KEY_FILE or store.rest.api-key)", err)
	}

	rest, err := store.NewREST(cfg.URL, apiKey, logger)
	if err != nil {
		return nil, fmt.Errorf("%w (set BAAS_URL or store.rest.url)", err)
	}

	if cfg.Table != "" {
		rest.Table = cfg.Table
	}
	if cfg.UserAgent != "" {
		rest.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		rest.HTTPClient.Timeout = cfg.Timeout
	}

	logger.Debug("using rest store", zap.String("url", rest.BaseURL), zap.String("table", rest.Table))
	return rest, nil
}

func openSQL(driver, dsn string, logger *zap.Logger) (*store.SQLStore, error) {
	sqlStore, err := store.OpenSQL(driver, dsn)
	if err != nil {
		return nil, err
	}

	// The BaaS owns the postgres schema; only a local sqlite file is migrated here.
	if driver == store.DriverSQLite {
		if err := sqlStore.Migrate(); err != nil {
			return nil, err
		}
	}

	logger.Debug("using sql store", zap.String("driver", driver))
	return sqlStore, nil
}

// newAdvisor returns the Gemini advisor when it is enabled and a key resolves, nil otherwise.
func newAdvisor(ctx context.Context, cfg *AIConfig, logger *zap.Logger) ai.Advisor {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GOOGLE_API_KEY",
	})
	if err != nil {
		logger.Warn("ai is enabled but gemini is unavailable, using built-in advice",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY, GEMINI_API_KEY_FILE, GOOGLE_API_KEY or ai.gemini.api-key"),
		)
		return nil
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		logger.Warn("creating gemini generator, using built-in advice", zap.Error(err))
		return nil
	}

	return gemini.NewAdvisor(generator, cfg.Gemini.MaxLogLength, genLogger)
}

// newAssistant wires store, matcher and advisor together.
func newAssistant(ctx context.Context, config *Config, logger *zap.Logger) (*ai.Assistant, *matcher.Matcher, error) {
	lookup, err := openLookup(config.Store, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening experience store: %w", err)
	}

	rules := matcher.DefaultRules()
	m := matcher.New(lookup, rules, logger)
	synthesizer := advice.NewSynthesizer(rules, nil)

	return ai.NewAssistant(m, newAdvisor(ctx, config.AI, logger), synthesizer, logger), m, nil
}

// newHistory builds the configured history store. The returned func releases it.
func newHistory(ctx context.Context, cfg *HistoryConfig, logger *zap.Logger) (chat.HistoryStore, func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", historyMemory:
		return chat.NewMemoryStore(), noop, nil
	case historyFile:
		dir := cfg.Dir
		if dir == "" {
			cache, err := os.UserCacheDir()
			if err != nil {
				return nil, noop, fmt.Errorf("locating cache directory for chat history: %w", err)
			}
			dir = filepath.Join(cache, app)
		}
		fileStore, err := chat.NewFileStore(dir)
		if err != nil {
			return nil, noop, err
		}
		logger.Debug("using file chat history", zap.String("dir", fileStore.Dir))
		return fileStore, noop, nil
	case historyRedis:
		if cfg.RedisURL == "" {
			return nil, noop, errors.New("chat.history.redis-url is required for the redis history backend (or set REDIS_URL)")
		}
		rdb, err := chat.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		logger.Debug("using redis chat history", zap.Duration("ttl", cfg.TTL))
		return chat.NewRedisStore(rdb, "", cfg.TTL), func() { rdb.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown chat history backend %q (use memory, file or redis)", cfg.Backend)
	}
}
