package main

import (
	"go.uber.org/zap"

	"github.com/pageza/cantine/backend/config"
	"github.com/pageza/cantine/backend/internal/database"
	"github.com/pageza/cantine/backend/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Must(false, "info").Fatal("failed to load configuration", zap.Error(err))
	}
	log := logging.Must(config.IsProduction(), cfg.LogLevel)
	defer log.Sync()

	db, err := database.New(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("all migrations applied successfully")
}
