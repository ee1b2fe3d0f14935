package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-proctor/internal/catalog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// seed-tests loads remotely served tests from a YAML catalog file into
// Postgres and drops their cached payloads from Redis.
func main() {
	var (
		file   string
		dryRun bool
	)
	flag.StringVar(&file, "file", "", "YAML catalog file to import")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the file without writing")
	flag.Parse()
	if file == "" {
		fmt.Fprintln(os.Stderr, "Usage: seed-tests -file tests.yaml [-dry-run]")
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	companies, err := catalog.LoadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Invalid catalog file")
	}
	companies = catalog.Qualify(companies)

	var ids []string
	for _, c := range companies {
		for _, t := range c.Tests {
			ids = append(ids, t.ID)
		}
	}
	log.Info().Int("companies", len(companies)).Int("tests", len(ids)).Msg("Catalog file parsed")
	if dryRun {
		return
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	repo := repository.NewTestRepository(pool)
	for _, c := range companies {
		if err := repo.UpsertCompany(ctx, c); err != nil {
			log.Fatal().Err(err).Str("company", c.ID).Msg("Failed to upsert company")
		}
		log.Info().Str("company", c.ID).Int("tests", len(c.Tests)).Msg("Company seeded")
	}

	rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; cached payloads expire on their own")
		return
	}
	defer rdb.Close()

	remote := catalog.NewRemote(repo, rdb, cfg.CatalogCacheTTL, log)
	if err := remote.Invalidate(ctx, ids...); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate cached tests")
		return
	}
	log.Info().Int("tests", len(ids)).Msg("Seed complete")
}
