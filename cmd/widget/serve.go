package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/companin/widget/internal/apiclient"
	"github.com/companin/widget/internal/config"
	"github.com/companin/widget/internal/events"
	"github.com/companin/widget/internal/handler"
	"github.com/companin/widget/internal/loader"
	natsclient "github.com/companin/widget/internal/nats"
	"github.com/companin/widget/internal/service"
	"github.com/companin/widget/internal/store"
	"github.com/companin/widget/pkg/logger"
	"github.com/companin/widget/pkg/tracing"
)

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the loader scripts, embed pages and instance API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting widget server")

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "companin-widget", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Lifecycle events are optional
	var (
		publisher  events.Publisher = events.NopPublisher{}
		natsClient *natsclient.Client
	)
	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(ctx, natsConfig(cfg), log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		natsClient = nc

		streams := natsclient.NewStreamManager(nc)
		if err := streams.EnsureStream(ctx); err != nil {
			return fmt.Errorf("failed to ensure stream: %w", err)
		}
		publisher = events.NewNATSPublisher(streams, log)
	} else {
		log.Info("NATS_URL not set, widget events disabled")
	}

	// Local persistence
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	var pinger handler.Pinger
	if p, ok := st.(handler.Pinger); ok {
		pinger = p
	}

	api, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	})
	if err != nil {
		return err
	}

	// Initialize services
	instances := service.NewInstanceService(api, st, publisher, service.Config{
		IdleTimeout:   cfg.InstanceIdleTimeout,
		TypingDelay:   cfg.TypingDelay,
		PollInterval:  cfg.ExpiryPollInterval,
		FeedbackDelay: cfg.FeedbackDelay,
		ExpirySkew:    cfg.SessionExpirySkew,
	}, log)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go instances.Run(sweepCtx)

	// Initialize handlers
	loaderHandler, err := handler.NewLoaderHandler(scriptConfig(cfg))
	if err != nil {
		return err
	}
	embedHandler := handler.NewEmbedHandler(instances, handler.EmbedConfig{
		InstanceSecret: cfg.InstanceSecret,
		TokenTTL:       cfg.InstanceTokenTTL,
		DefaultLocale:  cfg.DefaultLocale,
		SecureCookies:  !cfg.DevMode,
	}, log)

	origins := []string{cfg.PublicBaseURL}
	if cfg.DevMode {
		origins = append(origins, cfg.DevBaseURL)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Health:            handler.NewHealthHandler(natsClient, pinger),
		Loader:            loaderHandler,
		Embed:             embedHandler,
		Logger:            log,
		InstanceSecret:    cfg.InstanceSecret,
		AllowedOrigins:    origins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	stopSweep()
	instances.Shutdown()

	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	driver := store.StoreType(cfg.StoreDriver)
	if driver != store.StoreTypeRedis {
		return store.NewStore(driver, store.WithTTL(cfg.StoreTTL))
	}

	client, err := store.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return store.NewStore(driver,
		store.WithRedisClient(client),
		store.WithTTL(cfg.StoreTTL),
		store.WithKeyPrefix("companin:widget:"),
	)
}

func natsConfig(cfg *config.Config) natsclient.Config {
	return natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}
}

func scriptConfig(cfg *config.Config) loader.ScriptConfig {
	return loader.ScriptConfig{
		BaseURL:             cfg.PublicBaseURL,
		DevBaseURL:          cfg.DevBaseURL,
		AllowedOriginSuffix: cfg.AllowedFrameOriginSuffix,
		DefaultLocale:       cfg.DefaultLocale,
	}
}
