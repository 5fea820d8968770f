package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/subtitle-autosync/internal/align"
	"github.com/MimeLyc/subtitle-autosync/internal/config"
	"github.com/MimeLyc/subtitle-autosync/internal/gate"
	"github.com/MimeLyc/subtitle-autosync/internal/httpapi"
	"github.com/MimeLyc/subtitle-autosync/internal/jobs"
	"github.com/MimeLyc/subtitle-autosync/internal/pipeline"
	"github.com/MimeLyc/subtitle-autosync/internal/provider"
	"github.com/MimeLyc/subtitle-autosync/internal/resolver"
	"github.com/MimeLyc/subtitle-autosync/internal/store"
	"github.com/MimeLyc/subtitle-autosync/internal/translate"
	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	initLogging(cfg)

	// One instance per cache directory: two daemons sharing a store would
	// race on job dedupe, which lives in memory.
	lock := flock.New(filepath.Join(cfg.Storage.CacheDir, ".autosync.lock"))

	index, err := store.NewIndex(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("Failed to open artifact index: %v", err)
	}
	defer index.Close()

	artifacts, err := store.NewFileStore(cfg.Storage.CacheDir, index)
	if err != nil {
		log.Fatal("Failed to open artifact store: %v", err)
	}

	locked, err := lock.TryLock()
	if err != nil || !locked {
		log.Fatal("Another instance already owns %s (err=%v)", cfg.Storage.CacheDir, err)
	}
	defer lock.Unlock()

	source, err := provider.NewOpenSubtitles(provider.OpenSubtitlesConfig{
		APIKey:    cfg.Provider.APIKey,
		APIURL:    cfg.Provider.APIURL,
		UserAgent: cfg.Provider.UserAgent,
		Timeout:   cfg.Provider.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to build source provider: %v", err)
	}

	res := resolver.New(source, cfg.Pipeline.MaxVariants)
	aligner := align.NewFFSubsync(cfg.Align.Binary, cfg.Align.Timeout)

	var translator *translate.DocumentTranslator
	if cfg.Translate.APIKey != "" {
		engine, err := translate.NewHTTPEngine(translate.EngineConfig{
			APIKey:    cfg.Translate.APIKey,
			APIURL:    cfg.Translate.APIURL,
			Model:     cfg.Translate.Model,
			UserAgent: cfg.Provider.UserAgent,
			Timeout:   cfg.Translate.Timeout,
		})
		if err != nil {
			log.Fatal("Failed to build translation engine: %v", err)
		}
		translator = translate.NewDocumentTranslator(engine, translate.Options{
			BatchSize:    cfg.Translate.BatchSize,
			BatchDelay:   cfg.Translate.BatchDelay,
			RetryBackoff: cfg.Translate.RetryBackoff,
		})
	} else {
		log.Warn("No translation engine configured, running alignment only")
	}

	worker := pipeline.NewWorker(pipeline.Config{
		Mode:              pipeline.Mode(cfg.Pipeline.Mode),
		ReferenceLanguage: cfg.Pipeline.ReferenceLang,
		TargetLanguage:    cfg.Pipeline.TargetLang,
		MaxVariants:       cfg.Pipeline.MaxVariants,
		TempDir:           cfg.Pipeline.TempDir,
		DownloadTimeout:   cfg.Pipeline.DownloadTimeout,
	}, res, source, artifacts, aligner, translator)

	coordinator := jobs.NewCoordinator(cfg.Pipeline.WorkerCount)
	coordinator.Start(worker.Run)
	defer coordinator.Stop()

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Pipeline.SweepCron, func() {
		pipeline.SweepTempDir(cfg.Pipeline.TempDir, 6*time.Hour)
	}); err != nil {
		log.Fatal("Invalid SWEEP_CRON: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	deliveryGate := gate.New(artifacts, cfg.Server.PollInterval, 0)
	server := httpapi.NewServer(coordinator, deliveryGate, artifacts, httpapi.Options{
		TargetLangCode: cfg.Pipeline.TargetLangCode,
		MaxVariants:    cfg.Pipeline.MaxVariants,
		FetchTimeout:   cfg.Server.FetchTimeout,
		PublicURL:      cfg.Server.PublicURL,
	})

	go func() {
		log.Info("Listening on %s", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(cfg.Server.ListenAddr); err != nil {
			log.Error("HTTP server stopped: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown: %v", err)
	}
}

func initLogging(cfg *config.Config) {
	level := log.LevelInfo
	switch cfg.System.LogLevel {
	case "debug":
		level = log.LevelDebug
	case "warn":
		level = log.LevelWarn
	case "error":
		level = log.LevelError
	}
	if cfg.System.LogFile != "" {
		if err := log.InitFileLogger(cfg.System.LogFile, level); err == nil {
			return
		}
		log.Error("Failed to open log file %s, logging to stdout", cfg.System.LogFile)
	}
	log.InitLogger(level)
}
