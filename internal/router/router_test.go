package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/attendance-api/internal/config"
	"github.com/noah-isme/attendance-api/internal/database"
	"github.com/noah-isme/attendance-api/internal/handler"
	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/repository"
	"github.com/noah-isme/attendance-api/internal/router"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/internal/validation"
)

var fixedNow = time.Date(2024, time.January, 10, 9, 30, 0, 0, time.UTC)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	logger := zerolog.New(io.Discard)
	validate := validation.New()
	repos := repository.NewRepositories(db)
	uow := repository.NewUnitOfWork(db)

	studentService := service.NewStudentService(repos.Students, uow, logger)
	attendanceService := service.NewAttendanceService(repos.Students, repos.Attendance, uow, cache, time.Minute, logger)
	activityService := service.NewActivityService(repos.Activity, logger)

	cfg := config.Config{AppName: "Attendance API", AppEnv: "test", RateLimitMax: 1000, RateLimitWindow: time.Minute}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		StudentHandler: handler.NewStudentHandler(studentService, validate, logger),
		AttendanceHandler: handler.NewAttendanceHandler(attendanceService, validate, logger,
			handler.WithClock(func() time.Time { return fixedNow })),
		ActivityHandler: handler.NewActivityHandler(activityService, logger),
		HealthChecks: map[string]handler.Pinger{
			"database": sqlDB,
			"redis":    database.RedisPinger{Client: cache},
		},
	})

	return app
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func call(t *testing.T, app *fiber.App, method, path string, payload interface{}) (int, apiResponse) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.HeaderCorrelationID, "test-"+strings.ToLower(method))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func createStudent(t *testing.T, app *fiber.App, name, roll string) uint {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/api/students", map[string]interface{}{
		"name":        name,
		"roll_number": roll,
		"email":       strings.ToLower(strings.Fields(name)[0]) + "@example.com",
		"department":  "Physics",
		"year":        1,
	})
	require.Equal(t, fiber.StatusCreated, status, body.Message)

	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))
	return created.ID
}

func markAttendance(t *testing.T, app *fiber.App, roll, status, date string) {
	t.Helper()
	payload := map[string]string{"roll_number": roll, "status": status}
	if date != "" {
		payload["date"] = date
	}
	code, body := call(t, app, http.MethodPost, "/api/attendance/mark", payload)
	require.Equal(t, fiber.StatusCreated, code, body.Message)
}

func TestStudentLifecycle(t *testing.T) {
	app := setupApp(t)
	id := createStudent(t, app, "Alice Johnson", "20240001")

	status, body := call(t, app, http.MethodGet, "/api/students/roll/20240001", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, string(body.Data), `"name":"Alice Johnson"`)

	status, _ = call(t, app, http.MethodPost, "/api/students", map[string]interface{}{
		"name": "Duplicate", "roll_number": "20240001", "year": 1,
	})
	require.Equal(t, fiber.StatusConflict, status)

	path := "/api/students/" + jsonNumber(id)
	for i := 0; i < 2; i++ {
		status, _ = call(t, app, http.MethodPatch, path+"/deactivate", nil)
		require.Equal(t, fiber.StatusOK, status)
	}

	status, body = call(t, app, http.MethodGet, "/api/students?activeOnly=true", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.JSONEq(t, `[]`, string(body.Data))

	status, body = call(t, app, http.MethodGet, "/api/students/stats/count", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.JSONEq(t, `{"count":0}`, string(body.Data))

	status, _ = call(t, app, http.MethodDelete, path, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, app, http.MethodGet, path, nil)
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestAttendanceFlow(t *testing.T) {
	app := setupApp(t)
	createStudent(t, app, "Alice Johnson", "20240001")
	bobID := createStudent(t, app, "Bob Stone", "20240002")

	for day := 1; day <= 7; day++ {
		markAttendance(t, app, "20240001", "present", "2024-01-0"+jsonNumber(uint(day)))
	}
	markAttendance(t, app, "20240001", "ABSENT", "2024-01-08")
	markAttendance(t, app, "20240001", "ABSENT", "2024-01-09")
	markAttendance(t, app, "20240002", "PRESENT", "")
	markAttendance(t, app, "20240002", "ABSENT", "")

	status, body := call(t, app, http.MethodGet, "/api/attendance/student/20240001/stats/range?startDate=2024-01-01&endDate=2024-01-10", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.JSONEq(t, `{"total_days":9,"present_days":7,"absent_days":2,"attendance_percentage":70}`, string(body.Data))

	status, body = call(t, app, http.MethodGet, "/api/attendance/today", nil)
	require.Equal(t, fiber.StatusOK, status)
	var today []struct {
		RollNumber string `json:"roll_number"`
		Status     string `json:"status"`
		Date       string `json:"date"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &today))
	require.Len(t, today, 1)
	require.Equal(t, "ABSENT", today[0].Status)
	require.Equal(t, "2024-01-10", today[0].Date)

	status, body = call(t, app, http.MethodGet, "/api/attendance/date/2024-01-10/summary", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.JSONEq(t, `{"date":"2024-01-10","present":0,"absent":1,"total":1,"attendance_percentage":0}`, string(body.Data))

	status, _ = call(t, app, http.MethodDelete, "/api/students/"+jsonNumber(bobID), nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = call(t, app, http.MethodGet, "/api/attendance/range?startDate=2024-01-09&endDate=2024-01-10", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, string(body.Data), `"student_name":"Deleted Student"`)
	require.Contains(t, string(body.Data), `"roll_number":"N/A"`)

	status, _ = call(t, app, http.MethodGet, "/api/attendance/status/ABSENT?startDate=2024-01-09&endDate=2024-01-10", nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, body = call(t, app, http.MethodGet, "/api/activity?action=attendance.marked&page_size=5", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.JSONEq(t, `{"page":1,"page_size":5,"total_items":11,"total_pages":3}`, string(body.Meta))
	require.Contains(t, string(body.Data), `"correlation_id":"test-post"`)

	status, body = call(t, app, http.MethodGet, "/api/activity?correlation_id=test-delete&entity_id="+jsonNumber(bobID), nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, string(body.Meta), `"total_items":1`)
	require.Contains(t, string(body.Data), `"action":"student.deleted"`)

	status, _ = call(t, app, http.MethodGet, "/api/activity?entity_id=abc", nil)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	app := setupApp(t)

	status, body := call(t, app, http.MethodGet, "/api/health", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, string(body.Data), `"database":"ok"`)

	createStudent(t, app, "Alice Johnson", "20240001")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), `attendance_http_requests_total{method="POST",route="/api/students",status="201"}`)
}

func jsonNumber(value uint) string {
	encoded, _ := json.Marshal(value)
	return string(encoded)
}
