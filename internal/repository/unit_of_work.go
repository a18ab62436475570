package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Students   StudentRepository
	Attendance AttendanceRepository
	Activity   ActivityLogRepository
}

// NewRepositories binds every repository to db.
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Students:   NewStudentRepository(db),
		Attendance: NewAttendanceRepository(db),
		Activity:   NewActivityLogRepository(db),
	}
}

// UnitOfWork runs a group of repository calls in a single transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork constructs a transaction runner backed by gorm.
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

// Do commits when fn returns nil and rolls everything back otherwise.
func (u *gormUnitOfWork) Do(ctx context.Context, fn func(repos Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
