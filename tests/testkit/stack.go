// Package testkit assembles the full HTTP stack over sqlite and miniredis for
// the contract, integration and performance suites.
package testkit

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tracker-api/internal/config"
	"github.com/noah-isme/gema-tracker-api/internal/database"
	"github.com/noah-isme/gema-tracker-api/internal/handler"
	"github.com/noah-isme/gema-tracker-api/internal/middleware"
	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
	"github.com/noah-isme/gema-tracker-api/internal/router"
	"github.com/noah-isme/gema-tracker-api/internal/service"
	"github.com/noah-isme/gema-tracker-api/internal/session"
)

// Secret signs every token minted by the kit.
const Secret = "testkit-secret"

// Uploader stores nothing and returns a predictable URL.
type Uploader struct {
	mu    sync.Mutex
	Names []string
}

// Upload drains the reader and records the name.
func (u *Uploader) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Names = append(u.Names, name)
	return "https://files.test/" + name, nil
}

// Stack is a running application backed by in-memory stores.
type Stack struct {
	App           *fiber.App
	DB            *gorm.DB
	Redis         *redis.Client
	Uploader      *Uploader
	Notifications service.NotificationService
}

// Options tune the stack for a suite.
type Options struct {
	KeepAlive   time.Duration
	UploadMaxMB int
}

// New builds the stack and registers cleanup on t.
func New(t testing.TB, opts Options) *Stack {
	t.Helper()
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 50 * time.Millisecond
	}
	if opts.UploadMaxMB <= 0 {
		opts.UploadMaxMB = 1
	}

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	uploader := &Uploader{}
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), service.Fanout{}, validate, logger)
	tracking := service.NewTrackingService(assignmentRepo, studentRepo, submissionRepo, service.TrackingOptions{CacheTTL: time.Minute}, logger)
	submissions := service.NewSubmissionService(submissionRepo, assignmentRepo, studentRepo, validate, uploader, notifications, tracking, opts.UploadMaxMB, logger)
	activity := service.NewActivityRecorder(activityRepo, logger)
	grading := service.NewGradingService(submissionRepo, validate, activity, notifications, tracking, logger)
	assignments := service.NewAssignmentService(assignmentRepo, validate, activity, tracking, logger)
	students := service.NewStudentService(studentRepo, validate, activity, logger)
	feed := service.NewActivityFeedService(activityRepo, client, "kit", time.Minute, logger)
	store := session.NewRedisStore(client, "kit", time.Hour)

	cfg := config.Config{AppName: "Tracker Kit", AppEnv: "test", JWTSecret: Secret}
	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   handler.NewSubmissionHandler(submissions, grading, nil, logger),
		TrackingHandler:     handler.NewTrackingHandler(tracking, logger),
		AssignmentHandler:   handler.NewAssignmentHandler(assignments, logger),
		StudentHandler:      handler.NewStudentHandler(students, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, opts.KeepAlive),
		SessionHandler:      handler.NewSessionHandler(store, validate, logger),
		ActivityFeedHandler: handler.NewActivityFeedHandler(feed, logger),
		JWTMiddleware:       middleware.JWTProtected(Secret),
		SessionMiddleware:   middleware.SessionContext(store, logger),
	})

	return &Stack{App: app, DB: db, Redis: client, Uploader: uploader, Notifications: notifications}
}

// Token mints an HS256 bearer token for the given identity.
func Token(t testing.TB, userID uint, role string) string {
	t.Helper()
	id := strconv.FormatUint(uint64(userID), 10)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  id,
		"role": role,
		"name": "User " + id,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(Secret))
	require.NoError(t, err)
	return token
}

// Do sends req through the app with an optional bearer token.
func (s *Stack) Do(t testing.TB, req *http.Request, token string) *http.Response {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Course is a seeded assignment with its enrolled class.
type Course struct {
	Assignment models.Assignment
	Students   []models.Student
}

// SeedCourse creates an assignment for class XI-A with the given roster size.
func SeedCourse(t testing.TB, db *gorm.DB, due time.Time, size int) Course {
	t.Helper()

	assignment := models.Assignment{Title: "Lab Report", ClassName: "XI-A", DueDate: due, MaxScore: 100}
	require.NoError(t, db.Create(&assignment).Error)

	students := make([]models.Student, 0, size)
	for i := 1; i <= size; i++ {
		n := strconv.Itoa(i)
		student := models.Student{Name: "Student " + n, Code: "S-" + n, Email: "student" + n + "@example.com", ClassName: "XI-A"}
		require.NoError(t, db.Create(&student).Error)
		students = append(students, student)
	}
	return Course{Assignment: assignment, Students: students}
}

// Serve runs the app on a loopback listener and returns its base URL.
func (s *Stack) Serve(t testing.TB) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.App.Listener(listener)
	}()

	t.Cleanup(func() {
		_ = s.App.ShutdownWithTimeout(time.Second)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})

	return "http://" + listener.Addr().String()
}
