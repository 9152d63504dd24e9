package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/cantine/backend/config"
	"github.com/pageza/cantine/backend/internal/database"
	"github.com/pageza/cantine/backend/internal/logging"
	"github.com/pageza/cantine/backend/internal/router"
	"github.com/pageza/cantine/backend/internal/server"
	"github.com/pageza/cantine/backend/internal/service"
)

const presignExpiry = time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Must(false, "info").Fatal("failed to load configuration", zap.Error(err))
	}
	log := logging.Must(config.IsProduction(), cfg.LogLevel)
	defer log.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reporter := logging.NewReporter(cfg.RollbarToken, string(cfg.Environment), cfg.ServerHost)
	defer reporter.Close()

	db, err := database.New(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	storage, mediaRoot, err := newStorage(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialise storage", zap.Error(err))
	}

	opts := []service.AccountOption{service.WithTokenTTL(cfg.JWTAccessTTL, cfg.JWTRefreshTTL)}
	routerOpts := router.Options{
		Config:    cfg,
		DB:        db,
		Log:       log,
		Reporter:  reporter,
		MediaRoot: mediaRoot,
	}
	if database.RedisConfigured(cfg) {
		client, err := database.NewRedisClient(cfg, log)
		if err != nil {
			log.Warn("redis unavailable, login rate limiting and token revocation disabled", zap.Error(err))
		} else {
			defer client.Close()
			opts = append(opts, service.WithTokenStore(service.NewRedisTokenStore(client)))
			routerOpts.Redis = client
		}
	}

	loc := cfg.Location()
	clock := func() time.Time { return time.Now().In(loc) }
	routerOpts.Services = router.NewServices(db, cfg.JWTSecret, storage, clock, opts...)

	handler, err := router.SetupRouter(routerOpts)
	if err != nil {
		log.Fatal("failed to set up routes", zap.Error(err))
	}

	if err := server.New(cfg, handler, log).Start(); err != nil {
		log.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

// newStorage returns the configured upload backend, plus the local root to
// serve under /media when files stay on disk.
func newStorage(ctx context.Context, cfg *config.Config) (service.FileStorage, string, error) {
	if cfg.StorageBackend == "s3" {
		s3Config, err := config.NewS3Config(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		return service.NewS3Storage(s3Config, presignExpiry), "", nil
	}
	return service.NewLocalStorage(cfg.MediaRoot, cfg.MediaURL), cfg.MediaRoot, nil
}
