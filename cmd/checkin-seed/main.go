package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"checkin-desk/common/database"
	"checkin-desk/common/logger"
	"checkin-desk/internal/config"
	"checkin-desk/internal/repository"
	"checkin-desk/internal/seed"

	"go.uber.org/zap"
)

func main() {
	schemaFile := flag.String("schema", "", "apply this SQL file before loading (e.g. scripts/schema.sql)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-schema schema.sql] <seed.yaml>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.NewLogger(cfg.Log.Level, "console", "checkin-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	fixture, err := seed.LoadFile(flag.Arg(0))
	if err != nil {
		log.Fatal("invalid seed file", zap.String("path", flag.Arg(0)), zap.Error(err))
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("cannot connect to database", zap.String("host", cfg.Database.Host), zap.Error(err))
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *schemaFile != "" {
		sqlContent, err := os.ReadFile(*schemaFile)
		if err != nil {
			log.Fatal("failed to read schema file", zap.String("path", *schemaFile), zap.Error(err))
		}
		if _, err := db.ExecContext(ctx, string(sqlContent)); err != nil {
			log.Fatal("failed to apply schema", zap.String("path", *schemaFile), zap.Error(err))
		}
		log.Info("schema applied", zap.String("path", *schemaFile))
	}

	if err := repository.NewPostgresCheckInStore(db).Load(ctx, fixture); err != nil {
		log.Fatal("failed to load seed", zap.Error(err))
	}

	students := 0
	for _, t := range fixture.Teams {
		students += len(t.Students)
	}
	log.Info("seed loaded",
		zap.Int("events", len(fixture.Events)),
		zap.Int("organizations", len(fixture.Organizations)),
		zap.Int("teams", len(fixture.Teams)),
		zap.Int("students", students),
	)
}
