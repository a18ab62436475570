package models

import (
	"fmt"
	"strings"
	"time"
)

// AttendanceStatus enumerates the marks a student can receive for a day.
type AttendanceStatus string

const (
	// AttendanceStatusPresent marks a student as present.
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	// AttendanceStatusAbsent marks a student as absent.
	AttendanceStatusAbsent AttendanceStatus = "ABSENT"
)

// ParseAttendanceStatus normalises user input into a known status.
func ParseAttendanceStatus(value string) (AttendanceStatus, error) {
	status := AttendanceStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown attendance status %q", value)
	}
	return status, nil
}

// Valid reports whether the status is one of the supported marks.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusAbsent
}

// Attendance is a single daily mark for a student. The student reference is
// not a foreign key: rows outlive the student they point at.
type Attendance struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	StudentID uint             `gorm:"not null;uniqueIndex:idx_attendance_student_date,priority:1" json:"student_id"`
	Date      Date             `gorm:"column:attendance_date;not null;uniqueIndex:idx_attendance_student_date,priority:2;index" json:"date"`
	Status    AttendanceStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TableName pins the table name used by the raw upsert clause.
func (Attendance) TableName() string {
	return "attendances"
}
