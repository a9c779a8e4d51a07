package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
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

const handlerSecret = "handler-secret"

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

type stubUploader struct {
	mu    sync.Mutex
	names []string
}

func (s *stubUploader) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	return "https://files.test/" + name, nil
}

type testEnv struct {
	app           *fiber.App
	db            *gorm.DB
	redis         *redis.Client
	uploader      *stubUploader
	notifications service.NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

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

	uploader := &stubUploader{}
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), service.Fanout{}, validate, logger)
	tracking := service.NewTrackingService(assignmentRepo, studentRepo, submissionRepo, service.TrackingOptions{CacheTTL: time.Minute}, logger)
	submissions := service.NewSubmissionService(submissionRepo, assignmentRepo, studentRepo, validate, uploader, notifications, tracking, 1, logger)
	activity := service.NewActivityRecorder(activityRepo, logger)
	grading := service.NewGradingService(submissionRepo, validate, activity, notifications, tracking, logger)
	assignments := service.NewAssignmentService(assignmentRepo, validate, activity, tracking, logger)
	students := service.NewStudentService(studentRepo, validate, activity, logger)
	feed := service.NewActivityFeedService(activityRepo, client, "test", time.Minute, logger)
	store := session.NewRedisStore(client, "test", time.Hour)

	cfg := config.Config{AppName: "Tracker Test", AppEnv: "test", JWTSecret: handlerSecret}
	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   handler.NewSubmissionHandler(submissions, grading, nil, logger),
		TrackingHandler:     handler.NewTrackingHandler(tracking, logger),
		AssignmentHandler:   handler.NewAssignmentHandler(assignments, logger),
		StudentHandler:      handler.NewStudentHandler(students, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, 50*time.Millisecond),
		SessionHandler:      handler.NewSessionHandler(store, validate, logger),
		ActivityFeedHandler: handler.NewActivityFeedHandler(feed, logger),
		JWTMiddleware:       middleware.JWTProtected(handlerSecret),
		SessionMiddleware:   middleware.SessionContext(store, logger),
	})

	return &testEnv{app: app, db: db, redis: client, uploader: uploader, notifications: notifications}
}

func tokenFor(t *testing.T, userID uint, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(userID), 10),
		"role": role,
		"name": "User " + strconv.FormatUint(uint64(userID), 10),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(handlerSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, req *http.Request, token string) *http.Response {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil), token)
}

func (e *testEnv) sendJSON(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return e.do(t, req, token)
}

func decodeEnvelope(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	if data != nil && len(body.Data) > 0 {
		require.NoError(t, json.Unmarshal(body.Data, data))
	}
	return body
}

type course struct {
	assignment models.Assignment
	students   []models.Student
}

// seedCourse creates an assignment for class XI-A with three enrolled students.
func seedCourse(t *testing.T, db *gorm.DB, due time.Time) course {
	t.Helper()

	assignment := models.Assignment{Title: "Lab Report", ClassName: "XI-A", DueDate: due, MaxScore: 100}
	require.NoError(t, db.Create(&assignment).Error)

	students := []models.Student{
		{Name: "Ani", Code: "S-001", Email: "ani@example.com", ClassName: "XI-A"},
		{Name: "Budi", Code: "S-002", Email: "budi@example.com", ClassName: "XI-A"},
		{Name: "Cici", Code: "S-003", Email: "cici@example.com", ClassName: "XI-A"},
	}
	for i := range students {
		require.NoError(t, db.Create(&students[i]).Error)
	}

	return course{assignment: assignment, students: students}
}

// serve runs the app on a real listener for streaming tests.
func (e *testEnv) serve(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.app.Listener(listener)
	}()

	t.Cleanup(func() {
		_ = e.app.ShutdownWithTimeout(time.Second)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})

	return "http://" + listener.Addr().String()
}
