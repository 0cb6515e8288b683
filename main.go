package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"breach-lookup/api"
	"breach-lookup/breach"
	"breach-lookup/config"
	"breach-lookup/logging"
	"breach-lookup/lookup"
	"breach-lookup/metrics"
	"breach-lookup/vetting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("connector stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run is the connector's startup: it builds the HTTP client from the static
// transport settings, picks a token store and serves until signalled.
func run(cfg config.Config, logger *zap.Logger) error {
	m, err := metrics.New(metrics.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return err
	}

	httpClient, err := breach.NewHTTPClient(breach.TransportOptions{
		CertFile:   cfg.Request.Cert,
		KeyFile:    cfg.Request.Key,
		Passphrase: cfg.Request.Passphrase,
		CAFile:     cfg.Request.CA,
		Proxy:      cfg.Request.Proxy,
		Timeout:    cfg.Request.Timeout,
	})
	if err != nil {
		return err
	}

	client := breach.NewClient(cfg.Breach.BaseURL, httpClient, logger.Named("breach"), m)

	var store breach.TokenStore = breach.NewMemoryTokenStore()
	if cfg.Redis.Addr != "" {
		rs := breach.NewRedisTokenStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rs.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rs.Ping(pingCtx); err != nil {
			logger.Warn("redis token store unreachable, tokens will be fetched until it recovers", zap.Error(err))
		}
		cancel()
		store = rs
		logger.Info("using redis token store", zap.String("addr", cfg.Redis.Addr))
	}

	svc := lookup.NewService(client, breach.NewTokenCache(client, store, logger.Named("token"), m), logger.Named("lookup"), m).
		WithConcurrency(cfg.Lookup.Concurrency)
	if cfg.Whois.Enabled {
		svc.WithRegistrar(vetting.NewWhoisRegistrar(cfg.Whois.Timeout, logger.Named("whois")))
		logger.Info("whois enrichment enabled")
	}

	defaults := lookup.Options{
		ClientID:             cfg.Breach.ClientID,
		ClientSecret:         cfg.Breach.ClientSecret,
		Blacklist:            cfg.Breach.Blacklist,
		DomainBlacklistRegex: cfg.Breach.DomainBlacklistRegex,
	}
	srv := &http.Server{
		Addr:              cfg.App.ListenAddr,
		Handler:           api.New(svc, defaults, prometheus.DefaultGatherer, logger.Named("api")).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("breach lookup connector listening",
		zap.String("addr", cfg.App.ListenAddr),
		zap.String("provider", cfg.Breach.BaseURL),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
