package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/attendance-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Attendance{}, &models.ActivityLog{}))
	return db
}

func createStudent(t *testing.T, repo StudentRepository, name, roll, department string) models.Student {
	t.Helper()
	student := models.Student{Name: name, RollNumber: roll, Department: department, Year: 2, Active: true}
	require.NoError(t, repo.Create(context.Background(), &student))
	return student
}

func TestStudentRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	alice := createStudent(t, repo, "Alice Johnson", "20240001", "Physics")
	createStudent(t, repo, "Bob Stone", "20240002", "Chemistry")
	createStudent(t, repo, "Malice Cooper", "20240003", "Physics")
	require.NoError(t, repo.SetActive(ctx, alice.ID, false))

	students, total, err := repo.List(ctx, StudentFilter{Name: "ALICE"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, "Alice Johnson", students[0].Name)

	students, _, err = repo.List(ctx, StudentFilter{Department: "Physics", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, "Malice Cooper", students[0].Name)

	students, total, err = repo.List(ctx, StudentFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, students, 1)

	students, _, err = repo.List(ctx, StudentFilter{Department: "History"})
	require.NoError(t, err)
	require.NotNil(t, students)
	require.Empty(t, students)

	active, err := repo.CountActive(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), active)
}

func TestStudentRepositoryNameSearchTreatsWildcardsLiterally(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	createStudent(t, repo, "Alice", "20240001", "Physics")

	for _, term := range []string{"_", "%", `\`, "A_ice"} {
		students, total, err := repo.List(ctx, StudentFilter{Name: term})
		require.NoError(t, err)
		require.Zero(t, total, term)
		require.Empty(t, students, term)
	}

	createStudent(t, repo, "Bob_100%", "20240002", "Chemistry")

	students, total, err := repo.List(ctx, StudentFilter{Name: "b_1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Bob_100%", students[0].Name)

	students, _, err = repo.List(ctx, StudentFilter{Name: "0%"})
	require.NoError(t, err)
	require.Len(t, students, 1)
}

func TestStudentRepositoryRollNumberIsUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)

	createStudent(t, repo, "Asha", "20240001", "Maths")
	duplicate := models.Student{Name: "Other", RollNumber: "20240001", Year: 1, Active: true}
	err := repo.Create(context.Background(), &duplicate)
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

	exists, err := repo.ExistsByRollNumber(context.Background(), "20240001")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestStudentRepositoryMissingRowsReportNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	_, err := repo.Update(ctx, 99, map[string]interface{}{"name": "Nobody"})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.ErrorIs(t, repo.SetActive(ctx, 99, false), gorm.ErrRecordNotFound)
	require.ErrorIs(t, repo.Delete(ctx, 99), gorm.ErrRecordNotFound)

	found, err := repo.FindByIDs(ctx, []uint{99})
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestAttendanceRepositoryUpsertKeepsOneRowPerDay(t *testing.T) {
	db := setupTestDB(t)
	students := NewStudentRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	student := createStudent(t, students, "Asha", "20240001", "Maths")
	day := models.NewDate(2024, time.January, 5)

	first := models.Attendance{StudentID: student.ID, Date: day, Status: models.AttendanceStatusPresent}
	require.NoError(t, repo.Upsert(ctx, &first))
	require.NotZero(t, first.ID)

	second := models.Attendance{StudentID: student.ID, Date: day, Status: models.AttendanceStatusAbsent}
	require.NoError(t, repo.Upsert(ctx, &second))
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.AttendanceStatusAbsent, second.Status)

	records, total, err := repo.List(ctx, AttendanceFilter{StudentID: &student.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, day, records[0].Date)
}

func TestAttendanceRepositoryRangeQueriesAndCounts(t *testing.T) {
	db := setupTestDB(t)
	students := NewStudentRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	student := createStudent(t, students, "Asha", "20240001", "Maths")
	other := createStudent(t, students, "Bala", "20240002", "Maths")
	start := models.NewDate(2024, time.January, 1)
	for i := 0; i < 5; i++ {
		status := models.AttendanceStatusPresent
		if i%2 == 1 {
			status = models.AttendanceStatusAbsent
		}
		record := models.Attendance{StudentID: student.ID, Date: start.AddDays(i), Status: status}
		require.NoError(t, repo.Upsert(ctx, &record))
	}
	outside := models.Attendance{StudentID: student.ID, Date: start.AddDays(40), Status: models.AttendanceStatusPresent}
	require.NoError(t, repo.Upsert(ctx, &outside))
	otherMark := models.Attendance{StudentID: other.ID, Date: start, Status: models.AttendanceStatusAbsent}
	require.NoError(t, repo.Upsert(ctx, &otherMark))

	window := models.DateRange{Start: start, End: start.AddDays(4)}
	present, err := repo.CountByStatus(ctx, student.ID, window, models.AttendanceStatusPresent)
	require.NoError(t, err)
	require.Equal(t, int64(3), present)

	absent, err := repo.CountByStatus(ctx, student.ID, window, models.AttendanceStatusAbsent)
	require.NoError(t, err)
	require.Equal(t, int64(2), absent)

	history, _, err := repo.List(ctx, AttendanceFilter{StudentID: &student.ID, NewestFirst: true})
	require.NoError(t, err)
	require.Len(t, history, 6)
	require.Equal(t, start.AddDays(40), history[0].Date)

	inRange, _, err := repo.List(ctx, AttendanceFilter{Range: &window})
	require.NoError(t, err)
	require.Len(t, inRange, 6)
	require.Equal(t, start, inRange[0].Date)

	absences, _, err := repo.List(ctx, AttendanceFilter{Range: &window, Status: models.AttendanceStatusAbsent})
	require.NoError(t, err)
	require.Len(t, absences, 3)

	counts, err := repo.CountStatusesOnDate(ctx, start)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.AttendanceStatusPresent])
	require.Equal(t, int64(1), counts[models.AttendanceStatusAbsent])
}

func TestAttendanceRepositorySaveAndDelete(t *testing.T) {
	db := setupTestDB(t)
	students := NewStudentRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	student := createStudent(t, students, "Asha", "20240001", "Maths")
	record := models.Attendance{StudentID: student.ID, Date: models.NewDate(2024, time.May, 1), Status: models.AttendanceStatusPresent}
	require.NoError(t, repo.Upsert(ctx, &record))

	record.Status = models.AttendanceStatusAbsent
	record.Date = models.NewDate(2024, time.May, 2)
	require.NoError(t, repo.Save(ctx, &record))

	stored, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttendanceStatusAbsent, stored.Status)
	require.Equal(t, models.NewDate(2024, time.May, 2), stored.Date)

	require.NoError(t, repo.Delete(ctx, record.ID))
	_, err = repo.GetByID(ctx, record.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.ErrorIs(t, repo.Delete(ctx, record.ID), gorm.ErrRecordNotFound)
}

func TestActivityLogRepositoryFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	one, two := uint(1), uint(2)
	entries := []models.ActivityLog{
		{Action: "student.created", EntityType: "student", EntityID: &one, CorrelationID: "req-1"},
		{Action: "attendance.marked", EntityType: "attendance", EntityID: &one, CorrelationID: "req-2"},
		{Action: "attendance.marked", EntityType: "attendance", EntityID: &two, CorrelationID: "req-2"},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	listed, total, err := repo.List(ctx, ActivityLogFilter{CorrelationID: "req-2"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, entries[2].ID, listed[0].ID)

	listed, total, err = repo.List(ctx, ActivityLogFilter{EntityType: "attendance", EntityID: &one})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, entries[1].ID, listed[0].ID)

	listed, total, err = repo.List(ctx, ActivityLogFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, listed, 1)
	require.Equal(t, entries[0].ID, listed[0].ID)
}

func TestUnitOfWorkRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	uow := NewUnitOfWork(db)
	ctx := context.Background()
	boom := errors.New("boom")

	err := uow.Do(ctx, func(repos Repositories) error {
		student := models.Student{Name: "Temp", RollNumber: "20249999", Year: 1, Active: true}
		if err := repos.Students.Create(ctx, &student); err != nil {
			return err
		}
		if err := repos.Activity.Create(ctx, &models.ActivityLog{Action: "student.created", EntityType: "student"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := NewStudentRepository(db).ExistsByRollNumber(ctx, "20249999")
	require.NoError(t, err)
	require.False(t, exists)

	entries, total, err := NewActivityLogRepository(db).List(ctx, ActivityLogFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, entries)
}
