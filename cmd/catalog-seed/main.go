// Package main provides the catalog bulk loader. It imports business
// records from a YAML seed file into the configured store and exits.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/factura/internal/catalog"
	"github.com/thebtf/factura/internal/config"
)

func main() {
	seedFile := flag.String("file", "seed.yaml", "YAML seed file to import")
	timeout := flag.Duration("timeout", 30*time.Second, "Import timeout")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load settings, using defaults")
		cfg = config.Default()
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open catalog store")
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	n, err := catalog.Seed(ctx, store, *seedFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", *seedFile).Msg("import failed")
	}
	log.Info().Int("businesses", n).Str("backend", cfg.StoreBackend).Msg("import complete")
}
