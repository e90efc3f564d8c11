package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/handler"
	"github.com/noah-isme/siakad-api/internal/repository"
	"github.com/noah-isme/siakad-api/internal/service"
	"github.com/noah-isme/siakad-api/pkg/cache"
	"github.com/noah-isme/siakad-api/pkg/config"
	"github.com/noah-isme/siakad-api/pkg/database"
	"github.com/noah-isme/siakad-api/pkg/jobs"
	"github.com/noah-isme/siakad-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logr)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(db.DB, logr, "up"); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, running without cache", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	app, err := buildApp(cfg, logr, db, cacheRepo)
	if err != nil {
		return err
	}
	defer app.shutdown()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	// Requests drained by Shutdown may still publish enrollment events.
	app.shutdown()
	return err
}

// app holds the wired services and handlers of one server process.
type app struct {
	metrics     *service.MetricsService
	auth        *service.AuthService
	queue       *jobs.Queue
	stopWorkers context.CancelFunc

	health        *handler.MetricsHandler
	authH         *handler.AuthHandler
	users         *handler.UserHandler
	terms         *handler.TermHandler
	catalog       *handler.CatalogHandler
	krs           *handler.KRSHandler
	enrollments   *handler.EnrollmentHandler
	records       *handler.RecordHandler
	notifications *handler.NotificationHandler
	announcements *handler.AnnouncementHandler
}

// startQueue runs the queue until shutdown, independent of the signal context.
func (a *app) startQueue(q *jobs.Queue) {
	ctx, cancel := context.WithCancel(context.Background())
	a.queue = q
	a.stopWorkers = cancel
	q.Start(ctx)
}

func (a *app) shutdown() {
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.stopWorkers != nil {
		a.stopWorkers()
	}
}

func buildApp(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, cacheRepo *repository.CacheRepository) (*app, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cacheRepo.Enabled())

	scale, err := service.ParseGradeScale(cfg.Academic.GradeScale, cfg.Academic.GradeScoreCutoffs)
	if err != nil {
		return nil, fmt.Errorf("grade scale: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	termRepo := repository.NewTermRepository(db)
	programRepo := repository.NewProgramRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, cacheSvc, validate, logr)
	catalogSvc := service.NewCatalogService(service.CatalogRepositories{
		Programs:  programRepo,
		Rooms:     roomRepo,
		Lecturers: lecturerRepo,
		Courses:   courseRepo,
		Sections:  sectionRepo,
		Students:  studentRepo,
	}, termRepo, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, studentRepo, lecturerRepo, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)

	a := &app{metrics: metrics, auth: authSvc}

	var events interface{ TryEnqueue(jobs.Job) error }
	if cfg.Notifications.Enabled {
		queue := jobs.NewQueue("notifications", jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
		notificationSvc.Register(queue)
		a.startQueue(queue)
		events = queue
	}

	enrollmentSvc := service.NewEnrollmentService(
		enrollmentRepo,
		sectionRepo,
		studentRepo,
		lecturerRepo,
		termSvc,
		events,
		cacheSvc,
		metrics,
		service.EnrollmentConfig{AllowReopen: cfg.Academic.AllowReopenRejected},
		logr,
	)
	gradeSvc := service.NewGradeService(gradeRepo, scale, metrics, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, service.AttendanceConfig{
		UnmarkedPolicy: service.UnmarkedPolicy(cfg.Academic.AttendanceUnmarkedPolicy),
		LowThreshold:   cfg.Academic.AttendanceLowThreshold,
	}, logr)
	recordSvc := service.NewRecordService(studentRepo, termSvc, enrollmentRepo, gradeSvc, attendanceSvc, cacheSvc, logr)

	var cachePing handler.PingFunc
	if cacheRepo.Enabled() {
		cachePing = cacheRepo.Ping
	}
	a.health = handler.NewMetricsHandler(metrics, db.PingContext, cachePing)
	a.authH = handler.NewAuthHandler(authSvc)
	a.users = handler.NewUserHandler(userSvc)
	a.terms = handler.NewTermHandler(termSvc)
	a.catalog = handler.NewCatalogHandler(catalogSvc)
	a.krs = handler.NewKRSHandler(catalogSvc, enrollmentSvc)
	a.enrollments = handler.NewEnrollmentHandler(enrollmentSvc)
	a.records = handler.NewRecordHandler(catalogSvc, recordSvc, gradeSvc)
	a.notifications = handler.NewNotificationHandler(notificationSvc)
	a.announcements = handler.NewAnnouncementHandler(announcementSvc)
	return a, nil
}
