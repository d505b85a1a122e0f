// Package main provides the factura worker entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/factura/internal/catalog"
	"github.com/thebtf/factura/internal/config"
	"github.com/thebtf/factura/internal/llm"
	"github.com/thebtf/factura/internal/watcher"
	"github.com/thebtf/factura/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides settings)")
	seedFile := flag.String("seed", "", "Seed the catalog from a YAML file and keep serving")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	// Local development keys live in .env; missing file is fine.
	_ = godotenv.Load()

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load settings, using defaults")
		cfg = config.Default()
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	log.Info().Str("version", Version).Str("backend", cfg.StoreBackend).Msg("factura starting")

	store, err := catalog.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open catalog store")
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
	}()

	if *seedFile != "" {
		n, err := catalog.Seed(ctx, store, *seedFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", *seedFile).Msg("seed failed")
		}
		log.Info().Int("businesses", n).Msg("catalog seeded")
	}

	model, err := llm.NewLangChainClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init model client")
	}

	svc, err := worker.NewService(cfg, store, model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build worker")
	}

	// Pick up settings edits without a restart.
	w, err := watcher.New(config.SettingsPath(), func() {
		reloaded, err := config.Load()
		if err != nil {
			log.Warn().Err(err).Msg("settings reload failed, keeping previous")
			return
		}
		svc.ApplySettings(reloaded)
	})
	if err != nil {
		log.Warn().Err(err).Msg("settings watcher unavailable")
	} else {
		if err := w.Start(); err != nil {
			log.Warn().Err(err).Msg("settings watcher failed to start")
		}
		defer w.Stop()
	}

	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker exited with error")
	}
	log.Info().Msg("factura stopped")
}
