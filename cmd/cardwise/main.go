package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"cardwise/internal/calendar"
	"cardwise/internal/config"
	"cardwise/internal/feeds"
	apphttp "cardwise/internal/http"
	"cardwise/internal/insights"
	"cardwise/internal/ledger"
	"cardwise/internal/log"
	"cardwise/internal/storage"
)

func main() {
	// Load .env for local development, ignore errors in production.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []ledger.Option
	if cfg.StrictCycleDays {
		opts = append(opts, ledger.WithStrictCycleDays())
	}
	repo := ledger.New(ctx, store, store, logger, opts...)

	feedClient := feeds.NewClient(logger)
	offersSvc := feeds.NewOffersService(feedClient, cfg.OffersURL, cfg.FeedCacheTTL)
	ratesSvc := feeds.NewRatesService(feedClient, cfg.RatesURL, cfg.FeedCacheTTL)
	holidaysSvc := feeds.NewHolidaysService(feedClient, cfg.HolidaysURL, cfg.FeedCacheTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:       repo,
		Insights:     insights.NewService(offersSvc, ratesSvc, cfg.BaseCurrency, logger),
		Calendar:     calendar.NewService(holidaysSvc, cfg.CountryCode, logger),
		Offers:       offersSvc,
		Rates:        ratesSvc,
		Holidays:     holidaysSvc,
		BaseCurrency: cfg.BaseCurrency,
		CountryCode:  cfg.CountryCode,
		Logger:       logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting cardwise server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
