package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/config"
	"github.com/iliyamo/theater-canteen/internal/database"
	"github.com/iliyamo/theater-canteen/internal/logger"
	"github.com/iliyamo/theater-canteen/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Must(cfg.Env).Named("admin")
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database open", zap.Error(err))
	}
	defer db.Close()

	cli := commandLine{
		users:   repository.NewUserRepo(db),
		tokens:  repository.NewTokenRepo(db),
		migrate: func(ctx context.Context) (int, error) { return database.Migrate(ctx, db) },
		cost:    cfg.BcryptCost,
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			log.Error("command failed", zap.Error(err))
		}
		db.Close()
		os.Exit(1)
	}
}
