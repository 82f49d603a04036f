package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/config"
	"github.com/you/go-flight-aggregator/internal/engine"
	"github.com/you/go-flight-aggregator/internal/httpx"
	"github.com/you/go-flight-aggregator/internal/normalize"
	"github.com/you/go-flight-aggregator/internal/pricing"
	"github.com/you/go-flight-aggregator/internal/providers"
	"github.com/you/go-flight-aggregator/internal/token"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	tokens := token.NewManager([]token.Authenticator{
		&providers.TBOAuthenticator{
			Host:      cfg.TBOHost,
			ClientID:  cfg.TBOClientID,
			Username:  cfg.TBOUsername,
			Password:  cfg.TBOPassword,
			EndUserIP: cfg.TBOEndUserIP,
		},
		&providers.AmadeusAuthenticator{
			Host:         cfg.AmadeusHost,
			ClientID:     cfg.AmadeusClientID,
			ClientSecret: cfg.AmadeusClientSecret,
		},
		&providers.StaticKeyAuthenticator{ProviderID: "tripjack", APIKey: cfg.TripjackAPIKey},
		&providers.StaticKeyAuthenticator{ProviderID: "skylink", APIKey: cfg.SkyLinkAPIKey},
	}, logger)

	available := map[string]providers.Client{
		"tbo":      providers.NewTBO(cfg.TBOHost, cfg.ProviderTimeout, tokens),
		"tripjack": providers.NewTripjack(cfg.TripjackHost, cfg.ProviderTimeout, tokens),
		"amadeus":  providers.NewAmadeus(cfg.AmadeusHost, cfg.ProviderTimeout, tokens),
		"skylink":  providers.NewSkyLink(cfg.SkyLinkHost, cfg.ProviderTimeout, tokens),
	}

	// Assemble the provider chain in configured priority order.
	var clients []providers.Client
	for _, name := range cfg.ProviderPriority {
		c, ok := available[name]
		if !ok {
			logger.Warn("unknown provider in priority list", zap.String("provider", name))
			continue
		}
		clients = append(clients, c)
	}

	norm := normalize.New(pricing.NewExtractor(), logger)
	orch := engine.NewOrchestrator(clients, tokens, norm, cfg.ProviderTimeout, cfg.CacheTTL, logger)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           httpx.NewRouter(orch, cfg, logger),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logger.Info("TLS enabled")
			log.Fatal(srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile))
		} else {
			log.Fatal(srv.ListenAndServe())
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	return logger
}
