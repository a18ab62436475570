package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
)

type testEnv struct {
	db         *gorm.DB
	repos      repository.Repositories
	students   StudentService
	attendance AttendanceService
	activity   ActivityService
	redis      *miniredis.Miniredis
	cache      *redis.Client
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Attendance{}, &models.ActivityLog{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repos := repository.NewRepositories(db)
	uow := repository.NewUnitOfWork(db)

	return testEnv{
		db:         db,
		repos:      repos,
		students:   NewStudentService(repos.Students, uow, testLogger()),
		attendance: NewAttendanceService(repos.Students, repos.Attendance, uow, client, time.Minute, testLogger()),
		activity:   NewActivityService(repos.Activity, testLogger()),
		redis:      mr,
		cache:      client,
	}
}

func day(d int) models.Date {
	return models.NewDate(2024, time.January, d)
}
