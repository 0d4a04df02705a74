package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wanderweb/app/internal/config"
	"wanderweb/app/internal/content"
	appdb "wanderweb/app/internal/db"
	"wanderweb/app/internal/flavor"
	apphttp "wanderweb/app/internal/http"
	"wanderweb/app/internal/llm"
	applog "wanderweb/app/internal/log"
	"wanderweb/app/internal/page"
	"wanderweb/app/internal/preferences"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}
	logger.AddHook(applog.NewRedactionHook(cfg.LLMAPIKey))

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     version,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{
		Path:        cfg.DBPath,
		Logger:      logger,
		BusyTimeout: cfg.DBBusyTimeout,
		Pool: appdb.Pool{
			MaxOpen:     cfg.DBMaxOpenConns,
			MaxIdle:     cfg.DBMaxIdleConns,
			MaxIdleTime: cfg.DBConnMaxIdle,
			MaxLifetime: cfg.DBConnMaxLife,
		},
	})
	if err != nil {
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	if err := preferences.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running migrations")
	}

	repository, err := preferences.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building preferences repository")
	}

	store, err := preferences.NewStore(repository, logger)
	if err != nil {
		return eris.Wrap(err, "building preferences store")
	}

	catalogue, err := flavor.LoadCatalogue(cfg.FlavorsPath)
	if err != nil {
		return eris.Wrap(err, "loading flavors")
	}

	registry, err := flavor.NewRegistry(catalogue, cfg.DefaultFlavor, cfg.EnabledFlavors)
	if err != nil {
		return eris.Wrap(err, "building flavor registry")
	}

	generator, err := newGenerator(cfg, logger)
	if err != nil {
		return eris.Wrap(err, "initialising generator")
	}

	pages, err := page.NewService(page.Options{
		Generator:   generator,
		Flavors:     registry,
		Processor:   content.NewProcessor(content.ProcessorOptions{}),
		Credentials: page.CredentialChain{store, page.StaticCredential(cfg.LLMAPIKey)},
		Logger:      logger,
		SentryHub:   sentryHub,
	})
	if err != nil {
		return eris.Wrap(err, "creating page service")
	}

	transport, err := apphttp.NewServer(apphttp.Options{
		Pages:            pages,
		Preferences:      store,
		Database:         dbConn,
		GeneratorModel:   cfg.LLMModel,
		ServerCredential: cfg.LLMAPIKey != "",
		Logger:           logger,
		SentryHub:        sentryHub,
		Version:          version,
		RateLimiter: apphttp.RateLimiterSettings{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
			ClientTTL:         cfg.RateLimitTTL,
		},
	})
	if err != nil {
		return eris.Wrap(err, "initialising http transport")
	}
	defer transport.Close()

	httpServer := &stdhttp.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler: transport.Handler(),
	}

	logger.WithFields(logrus.Fields{
		"addr":     httpServer.Addr,
		"provider": cfg.LLMProvider,
		"model":    cfg.LLMModel,
		"flavors":  registry.EnabledIDs(),
	}).Info("starting http server")

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return eris.Wrap(err, "http server error")
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("stopping http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "shutting down http server")
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("http server shut down cleanly")
	return nil
}

func newGenerator(cfg *config.Config, logger *logrus.Logger) (llm.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIGenerator(llm.OpenAIOptions{
			BaseURL: cfg.LLMEndpoint,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
			Logger:  logger,
		})
	default:
		return llm.NewGeminiGenerator(llm.GeminiOptions{
			BaseURL: cfg.LLMEndpoint,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
			Logger:  logger,
		})
	}
}
