package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/api"
	"github.com/spigell/prep-assistant/internal/chat"
	"github.com/spigell/prep-assistant/internal/logger"
)

const (
	shutdownTimeout = 10 * time.Second

	// Sessions idle this long leave memory when history has no ttl of its own.
	defaultSessionIdle = 24 * time.Hour
	evictInterval      = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat and search HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	assistant, m, err := newAssistant(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the assistant", zap.Error(err))
	}

	history, release, err := newHistory(ctx, config.Chat.History, logger)
	if err != nil {
		logger.Fatal("opening chat history", zap.Error(err))
	}
	defer release()

	sessions := chat.NewManager(assistant, history, logger,
		chat.WithTimeout(config.Chat.Timeout),
		chat.WithKeepHistory(config.Chat.KeepHistory),
		chat.WithNotifier(func(err error) {
			logger.Warn("the assistant could not answer", zap.Error(err))
		}),
	)
	go evictIdleSessions(ctx, sessions, config.Chat.History.TTL, logger)

	handler := api.NewHandler(sessions, m, logger)

	server := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           api.NewRouter(handler, config.Server.AllowedOrigins, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A chat submission may legitimately take up to chat.timeout.
		WriteTimeout: config.Chat.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting the prep-assistant api", zap.String("addr", server.Addr), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("serving http", zap.Error(err))
		}
		return
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// evictIdleSessions drops sessions from memory once they have been idle as long as
// their persisted log lives. An evicted session is restored from history on demand.
func evictIdleSessions(ctx context.Context, sessions *chat.Manager, idle time.Duration, logger *zap.Logger) {
	if idle <= 0 {
		idle = defaultSessionIdle
	}

	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.EvictIdle(idle); n > 0 {
				logger.Info("evicted idle chat sessions", zap.Int("count", n), zap.Int("active", sessions.Len()))
			}
		}
	}
}
