package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/attendance-api/internal/config"
	"github.com/noah-isme/attendance-api/internal/database"
	"github.com/noah-isme/attendance-api/internal/handler"
	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/repository"
	"github.com/noah-isme/attendance-api/internal/router"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/internal/utils"
	"github.com/noah-isme/attendance-api/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to access database handle")
	}
	defer sqlDB.Close()

	healthChecks := map[string]handler.Pinger{"database": sqlDB}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("statistics cache disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
			healthChecks["redis"] = database.RedisPinger{Client: redisClient}
		}
	}

	validate := validation.New()

	repos := repository.NewRepositories(db)
	uow := repository.NewUnitOfWork(db)

	studentService := service.NewStudentService(repos.Students, uow, logger)
	attendanceService := service.NewAttendanceService(repos.Students, repos.Attendance, uow, redisClient, cfg.StatsCacheTTL, logger)
	activityService := service.NewActivityService(repos.Activity, logger)

	studentHandler := handler.NewStudentHandler(studentService, validate, logger)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService, validate, logger, handler.WithLocation(cfg.Location))
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if fiberErr, ok := err.(*fiber.Error); ok {
				status = fiberErr.Code
			}
			return utils.SendError(c, status, err.Error())
		},
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigin,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		StudentHandler:    studentHandler,
		AttendanceHandler: attendanceHandler,
		ActivityHandler:   activityHandler,
		HealthChecks:      healthChecks,
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Str("timezone", cfg.Timezone).Msg("starting server")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
