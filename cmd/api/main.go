package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tracker-api/internal/config"
	"github.com/noah-isme/gema-tracker-api/internal/database"
	"github.com/noah-isme/gema-tracker-api/internal/handler"
	"github.com/noah-isme/gema-tracker-api/internal/middleware"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
	"github.com/noah-isme/gema-tracker-api/internal/router"
	"github.com/noah-isme/gema-tracker-api/internal/service"
	"github.com/noah-isme/gema-tracker-api/internal/session"
	cloud "github.com/noah-isme/gema-tracker-api/pkg/cloudinary"
	"github.com/noah-isme/gema-tracker-api/pkg/s3store"
)

func main() {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, fanout runs over redis only")
		} else {
			defer natsConn.Close()
		}
	}

	uploader, err := newUploader(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to create upload storage")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	fanout := func(topic string) service.Fanout {
		redisChannel, natsSubject := service.FanoutChannels(cfg.ChannelPrefix, topic)
		f := service.Fanout{Redis: redisClient, RedisChannel: redisChannel}
		if natsConn != nil {
			f.NATS = natsConn
			f.NATSSubject = natsSubject
		}
		return f
	}

	notificationService := service.NewNotificationService(notificationRepo, fanout("notifications"), validate, logger)
	notificationService.Start(ctx)

	trackingService := service.NewTrackingService(assignmentRepo, studentRepo, submissionRepo, service.TrackingOptions{
		CacheTTL:   cfg.TrackingCacheTTL,
		Location:   cfg.TrackingLocation,
		TimeLayout: cfg.TrackingTimeLayout,
		Fanout:     fanout("tracking"),
	}, logger)
	trackingService.Start(ctx)

	activityRecorder := service.NewActivityRecorder(activityRepo, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, validate, activityRecorder, trackingService, logger)
	studentService := service.NewStudentService(studentRepo, validate, activityRecorder, logger)
	activityFeed := service.NewActivityFeedService(activityRepo, redisClient, cfg.ChannelPrefix, cfg.TrackingCacheTTL, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, studentRepo, validate, uploader, notificationService, trackingService, cfg.UploadMaxMB, logger)
	gradingService := service.NewGradingService(submissionRepo, validate, activityRecorder, notificationService, trackingService, logger)

	sessionStore := session.NewRedisStore(redisClient, cfg.ChannelPrefix, cfg.SessionTTL)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
		AccessLog:    !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(
			submissionService,
			gradingService,
			middleware.RateLimit("submissions", cfg.UploadRatePerMinute, time.Minute),
			logger,
		),
		TrackingHandler:     handler.NewTrackingHandler(trackingService, logger),
		AssignmentHandler:   handler.NewAssignmentHandler(assignmentService, logger),
		StudentHandler:      handler.NewStudentHandler(studentService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		SessionHandler:      handler.NewSessionHandler(sessionStore, validate, logger),
		ActivityFeedHandler: handler.NewActivityFeedHandler(activityFeed, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		SessionMiddleware:   middleware.SessionContext(sessionStore, logger),
		HealthProbes: map[string]handler.HealthProbe{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Msg("tracker api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if strings.EqualFold(cfg.LogFormat, "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

func newUploader(cfg config.Config, logger zerolog.Logger) (service.FileUploader, error) {
	if cfg.StorageDriver == config.StorageS3 {
		return s3store.New(s3store.Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			UseSSL:        cfg.S3UseSSL,
			Prefix:        "submissions",
			PublicBaseURL: cfg.S3PublicBaseURL,
		}, logger)
	}

	return cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
