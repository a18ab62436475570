package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/repository"
)

func createTestStudent(t *testing.T, svc StudentService, name, roll, department string) dto.StudentResponse {
	t.Helper()
	student, err := svc.Create(context.Background(), dto.CreateStudentRequest{
		Name:       name,
		RollNumber: roll,
		Email:      "student@example.com",
		Phone:      "9876543210",
		Department: department,
		Year:       2,
	})
	require.NoError(t, err)
	return student
}

func TestStudentServiceCreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := createTestStudent(t, env.students, "Alice <b>Johnson</b>", "20240001", "Physics")
	require.NotZero(t, created.ID)
	require.Equal(t, "Alice Johnson", created.Name)
	require.True(t, created.Active)

	fetched, err := env.students.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, created.Name, fetched.Name)
	require.Equal(t, created.RollNumber, fetched.RollNumber)
	require.Equal(t, created.Email, fetched.Email)
	require.Equal(t, created.Phone, fetched.Phone)
	require.Equal(t, created.Department, fetched.Department)
	require.Equal(t, created.Year, fetched.Year)
	require.Equal(t, created.Active, fetched.Active)

	byRoll, err := env.students.GetByRollNumber(ctx, "20240001")
	require.NoError(t, err)
	require.Equal(t, created.ID, byRoll.ID)

	entries, _, err := env.repos.Activity.List(ctx, repository.ActivityLogFilter{Action: "student.created"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStudentServiceCreateRejectsDuplicateRollNumber(t *testing.T) {
	env := newTestEnv(t)
	createTestStudent(t, env.students, "Alice", "20240001", "Physics")

	_, err := env.students.Create(context.Background(), dto.CreateStudentRequest{
		Name:       "Another Alice",
		RollNumber: "20240001",
		Year:       1,
	})
	require.ErrorIs(t, err, ErrStudentRollNumberTaken)

	count, err := env.students.CountActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestStudentServiceGetMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.students.Get(context.Background(), 99)
	require.ErrorIs(t, err, ErrStudentNotFound)

	_, err = env.students.GetByRollNumber(context.Background(), "99999999")
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentServiceUpdateAppliesOnlyProvidedFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createTestStudent(t, env.students, "Alice", "20240001", "Physics")

	updated, err := env.students.Update(ctx, created.ID, dto.UpdateStudentRequest{
		Department: dto.Some("Mathematics"),
		Year:       dto.Some(3),
	})
	require.NoError(t, err)
	require.Equal(t, "Mathematics", updated.Department)
	require.Equal(t, 3, updated.Year)
	require.Equal(t, "Alice", updated.Name)
	require.Equal(t, created.Email, updated.Email)
	require.Equal(t, created.RollNumber, updated.RollNumber)

	_, err = env.students.Update(ctx, 404, dto.UpdateStudentRequest{Name: dto.Some("Ghost")})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentServiceDeactivateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createTestStudent(t, env.students, "Alice", "20240001", "Physics")
	createTestStudent(t, env.students, "Bob", "20240002", "Physics")

	require.NoError(t, env.students.Deactivate(ctx, created.ID))
	require.NoError(t, env.students.Deactivate(ctx, created.ID))

	fetched, err := env.students.Get(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, fetched.Active)

	active, err := env.students.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Bob", active[0].Name)

	all, err := env.students.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.ErrorIs(t, env.students.Deactivate(ctx, 404), ErrStudentNotFound)
}

func TestStudentServiceSearchAndDepartment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createTestStudent(t, env.students, "Alice Johnson", "20240001", "Physics")
	createTestStudent(t, env.students, "Bob Stone", "20240002", "Chemistry")
	createTestStudent(t, env.students, "Malice Cooper", "20240003", "Physics")

	matches, err := env.students.SearchByName(ctx, "ALICE")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	physics, err := env.students.ListByDepartment(ctx, "Physics")
	require.NoError(t, err)
	require.Len(t, physics, 2)

	empty, err := env.students.SearchByName(ctx, "   ")
	require.NoError(t, err)
	require.Empty(t, empty)

	page, err := env.students.ListActivePaginated(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, int64(3), page.Pagination.TotalItems)
}

func TestStudentServiceDeleteRemovesStudent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := createTestStudent(t, env.students, "Alice", "20240001", "Physics")

	require.NoError(t, env.students.Delete(ctx, created.ID))
	_, err := env.students.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrStudentNotFound)
	require.ErrorIs(t, env.students.Delete(ctx, created.ID), ErrStudentNotFound)
}
