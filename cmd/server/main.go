package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/config"
	"github.com/fieldprep/exercise-hub/internal/database"
	"github.com/fieldprep/exercise-hub/internal/handler"
	"github.com/fieldprep/exercise-hub/internal/middleware"
	"github.com/fieldprep/exercise-hub/internal/queue"
	"github.com/fieldprep/exercise-hub/internal/repository"
	"github.com/fieldprep/exercise-hub/internal/router"
	"github.com/fieldprep/exercise-hub/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	tokens := auth.NewTokenService(cfg.APIJWTSecret, cfg.DocsJWTSecret)
	if tokens.DocsFallback() {
		logger.Warn("DOCS_JWT_SECRET not set, documentation tokens reuse the API secret",
			zap.String("api_secret_prefix", config.SecretPrefix(cfg.APIJWTSecret)))
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tasks := repository.NewTaskRepo(db)
	exercises := repository.NewExerciseRepo(db)
	assignments := repository.NewAssignmentRepo(db)

	recorder := audit.NewRecorder(logger, service.AuditPublisher{})
	authenticator := auth.NewAuthenticator(users, tokens, logger)

	// Consumer drains security.events into the local audit log. It
	// reconnects on its own; a dead broker must not block startup.
	go func() {
		if err := queue.StartSecurityConsumer(service.BrokerURL()); err != nil {
			logger.Warn("security consumer stopped", zap.Error(err))
		}
	}()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and response cache disabled")
	}

	h := router.Handlers{
		Auth:      handler.NewAuthHandler(authenticator, recorder),
		Docs:      handler.NewDocsHandler(cfg, tokens, recorder),
		Users:     handler.NewUserHandler(users, roles, exercises, assignments, recorder, cfg.BcryptCost),
		Roles:     handler.NewRoleHandler(roles, recorder),
		Tasks:     handler.NewTaskHandler(tasks, roles),
		Exercises: handler.NewExerciseHandler(exercises),
	}
	mw := router.Middleware{
		APIAuth:      middleware.APIAuth(tokens, users, recorder),
		RequireAdmin: middleware.RequireAdmin(recorder),
		DocsAuth:     middleware.DocsAuth(tokens, recorder),
		LoginLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:        middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, h, mw)
	router.RegisterProtected(e, h, mw)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
