package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"cardforge/internal/artifactcache"
	"cardforge/internal/cardgen"
	"cardforge/internal/config"
	"cardforge/internal/daemon"
	"cardforge/internal/jobstore"
	"cardforge/internal/logging"
	"cardforge/internal/notifications"
	"cardforge/internal/poller"
	"cardforge/internal/services/goapi"
	"cardforge/internal/services/openai"
	"cardforge/internal/services/opensea"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := jobstore.Open(cfg)
	if err != nil {
		log.Fatalf("open job store: %v", err)
	}

	lookup, err := opensea.New(cfg.OpenSea.APIKey, cfg.OpenSea.BaseURL, cfg.OpenSea.Chain, cfg.OpenSea.Contract)
	if err != nil {
		log.Fatalf("init opensea client: %v", err)
	}
	model := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	images := goapi.New(cfg.GoAPI.APIKey, cfg.GoAPI.BaseURL, cfg.GoAPI.ProcessMode,
		goapi.WithAspectRatio(cfg.Generator.AspectRatio))

	// A degraded model API should not keep the daemon down; cached artifacts
	// are still servable.
	pingCtx, pingCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := model.HealthCheck(pingCtx); err != nil {
		logger.Warn("openai api check failed", logging.Error(err))
	}
	pingCancel()

	caches := cardgen.Caches{
		Traits:   artifactcache.New(cardgen.CategoryTraits, cfg.CachePath(cardgen.CategoryTraits), logger),
		Analysis: artifactcache.New(cardgen.CategoryAnalysis, cfg.CachePath(cardgen.CategoryAnalysis), logger),
		Details:  artifactcache.New(cardgen.CategoryDetails, cfg.CachePath(cardgen.CategoryDetails), logger),
		Art:      artifactcache.New(cardgen.CategoryArt, cfg.CachePath(cardgen.CategoryArt), logger),
	}

	generator := cardgen.New(caches, lookup, model, images, store, logger,
		cardgen.WithPoller(poller.New(cfg.PollInterval(), cfg.Generator.MaxPollAttempts, poller.WithLogger(logger))),
		cardgen.WithStyleSuffix(cfg.Generator.StyleSuffix),
		cardgen.WithNotifier(notifications.NewService(cfg)))

	d, err := daemon.New(cfg, store, generator, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("cardforged shutting down")
	d.Stop()
}
