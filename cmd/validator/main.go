package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vodeneev/parlaybet/internal/parlay"
	"github.com/Vodeneev/parlaybet/internal/pkg/config"
	"github.com/Vodeneev/parlaybet/internal/pkg/logging"
	"github.com/Vodeneev/parlaybet/internal/pkg/rules"
	"github.com/Vodeneev/parlaybet/internal/pkg/storage"
)

const (
	defaultConfigPath = "configs/validator.yaml"
)

func main() {
	var configPath string
	var addr string

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.StringVar(&addr, "addr", "", "HTTP listen address, overrides server.addr (e.g. :8080)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	_, logCloser, err := logging.SetupLogger(&cfg.Logging, "validator")
	if err != nil {
		log.Printf("Warning: failed to setup logging: %v, continuing with default logger", err)
	} else {
		defer logCloser.Close()
	}
	slog.Info("Config loaded", "path", configPath, "market_source", cfg.Market.Source)

	table := rules.Default()
	if cfg.RulesFile != "" {
		table, err = rules.LoadFile(cfg.RulesFile)
		if err != nil {
			slog.Error("Failed to load rules file", "path", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Rules loaded", "path", cfg.RulesFile, "sportsbooks", len(table.Sportsbooks()))
	}

	source, sourceCloser, err := newSnapshotSource(cfg)
	if err != nil {
		slog.Error("Failed to initialize snapshot source", "source", cfg.Market.Source, "error", err)
		os.Exit(1)
	}
	defer sourceCloser.Close()

	opts := []parlay.Option{parlay.WithFetchTimeout(cfg.Market.FetchTimeout)}
	var notifier *parlay.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		notifier, err = parlay.NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			slog.Warn("Telegram notifier disabled", "error", err)
		} else {
			opts = append(opts, parlay.WithNotifier(notifier))
			defer notifier.Stop()
		}
	}

	pipeline := parlay.NewPipeline(cfg.Engine, table, source, opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("pong\n"))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	pipeline.RegisterHTTP(mux)

	var handler http.Handler = mux
	if cfg.Server.RequestTimeout > 0 {
		handler = http.TimeoutHandler(mux, cfg.Server.RequestTimeout, `{"error":"request timed out"}`)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal, stopping validator...")
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	slog.Info("Parlay validator stopped")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newSnapshotSource builds the configured market snapshot source.
func newSnapshotSource(cfg *config.Config) (parlay.SnapshotSource, io.Closer, error) {
	switch strings.ToLower(cfg.Market.Source) {
	case "http":
		if cfg.Market.OddsURL == "" {
			return nil, nil, fmt.Errorf("market.odds_url is required for the http source")
		}
		slog.Info("Using odds feed", "url", cfg.Market.OddsURL)
		return parlay.NewHTTPSnapshotClient(cfg.Market.OddsURL, cfg.Market.FetchTimeout), nopCloser{}, nil
	case "postgres":
		src, err := storage.NewPostgresSnapshotSource(&cfg.Postgres, cfg.Market.MaxAge)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	case "redis":
		src, err := storage.NewRedisSnapshotSource(&cfg.Redis, cfg.Market.MaxAge)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	default:
		return nil, nil, fmt.Errorf("unknown market source %q", cfg.Market.Source)
	}
}
