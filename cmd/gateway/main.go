// Command gateway runs the local multi-protocol LLM gateway.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/auth"
	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/internal/gateway"
	"github.com/poemonsense/antigravity-gateway/internal/logging"
	"github.com/poemonsense/antigravity-gateway/internal/server"
	"github.com/poemonsense/antigravity-gateway/internal/store"
	"github.com/poemonsense/antigravity-gateway/internal/tokenpool"
	"github.com/poemonsense/antigravity-gateway/internal/upstream"
)

func openStore(ctx context.Context, cfg *config.Config) (store.AccountStore, error) {
	switch cfg.Accounts.Backend {
	case "redis":
		return store.NewRedisStore(ctx, cfg.Accounts.RedisAddr, cfg.Accounts.RedisPassword, cfg.Accounts.RedisDB)
	case "sqlite":
		return store.NewSQLiteStore(cfg.Accounts.SQLitePath)
	default:
		return store.NewFileStore(cfg.Accounts.Dir)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(logging.Options{
		Debug:      cfg.Logging.Debug,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if !cfg.Enabled {
		log.Info("gateway disabled by config, exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accountStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open account store (%s): %v", cfg.Accounts.Backend, err)
	}

	pool := tokenpool.New(accountStore, auth.NewOAuthRefresher())
	if err = pool.Reload(ctx); err != nil {
		log.Warnf("initial account load failed: %v", err)
	}

	cfgStore := config.NewStore(cfg)
	client := upstream.New(upstream.Options{
		Endpoints:  cfg.Endpoints,
		UserAgent:  cfg.UserAgent,
		TimeoutSec: cfg.RequestTimeout,
		ProxyURL:   proxyURL(cfg),
	})

	orch := gateway.NewOrchestrator(cfgStore, pool, client)
	srv := server.New(cfgStore, orch, pool)

	go func() {
		err := config.Watch(ctx, *configPath, cfgStore, func(next *config.Config) {
			if err := pool.Reload(ctx); err != nil {
				log.Warnf("account reload after config change failed: %v", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Warnf("config watcher stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Info("gateway stopped")
}

func proxyURL(cfg *config.Config) string {
	if !cfg.UpstreamProxy.Enabled {
		return ""
	}
	return cfg.UpstreamProxy.URL
}
