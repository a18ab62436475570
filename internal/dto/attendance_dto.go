package dto

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/validation"
)

// Placeholder identity for attendance rows whose student has been deleted.
const (
	DeletedStudentName = "Deleted Student"
	UnknownRollNumber  = "N/A"
)

// MarkAttendanceRequest marks a student for a day. When Date is omitted the
// caller's current day is used. PUT /attendance/{id} reuses this payload.
type MarkAttendanceRequest struct {
	RollNumber string                `json:"roll_number" validate:"required,roll_code"`
	Status     string                `json:"status" validate:"required,oneof=PRESENT ABSENT"`
	Date       Optional[models.Date] `json:"date"`
}

// Normalize upper-cases the roll number and status.
func (r *MarkAttendanceRequest) Normalize() {
	r.RollNumber = strings.ToUpper(strings.TrimSpace(r.RollNumber))
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
}

// Validate reports every field that violates the marking rules.
func (r MarkAttendanceRequest) Validate(v *validator.Validate) error {
	c := validation.NewCollector(v)
	c.Struct(r)
	if date, ok := r.Date.Get(); ok && date.IsZero() {
		c.Add("date", "date must be YYYY-MM-DD")
	}
	return c.Err()
}

// AttendanceStatus returns the typed status. Call after Validate.
func (r MarkAttendanceRequest) AttendanceStatus() models.AttendanceStatus {
	return models.AttendanceStatus(r.Status)
}

// AttendanceResponse is an attendance record enriched with the student's identity.
type AttendanceResponse struct {
	ID          uint                    `json:"id"`
	StudentID   uint                    `json:"student_id"`
	StudentName string                  `json:"student_name"`
	RollNumber  string                  `json:"roll_number"`
	Date        models.Date             `json:"date"`
	Status      models.AttendanceStatus `json:"status"`
}

// NewAttendanceResponse joins a record with its student. A nil student yields
// the deleted-student placeholder.
func NewAttendanceResponse(record models.Attendance, student *models.Student) AttendanceResponse {
	response := AttendanceResponse{
		ID:          record.ID,
		StudentID:   record.StudentID,
		StudentName: DeletedStudentName,
		RollNumber:  UnknownRollNumber,
		Date:        record.Date,
		Status:      record.Status,
	}
	if student != nil {
		response.StudentName = student.Name
		response.RollNumber = student.RollNumber
	}
	return response
}

// AttendanceListResponse wraps a paginated attendance listing.
type AttendanceListResponse struct {
	Items      []AttendanceResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// AttendanceStatsResponse summarises a student's attendance.
type AttendanceStatsResponse struct {
	TotalDays            int64   `json:"total_days"`
	PresentDays          int64   `json:"present_days"`
	AbsentDays           int64   `json:"absent_days"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// StudentAttendanceHistoryResponse bundles a student's records with statistics.
type StudentAttendanceHistoryResponse struct {
	Student    StudentResponse         `json:"student"`
	Attendance []AttendanceResponse    `json:"attendance"`
	Statistics AttendanceStatsResponse `json:"statistics"`
}

// DailySummaryResponse counts marks recorded on a single date.
type DailySummaryResponse struct {
	Date                 models.Date `json:"date"`
	Present              int64       `json:"present"`
	Absent               int64       `json:"absent"`
	Total                int64       `json:"total"`
	AttendancePercentage float64     `json:"attendance_percentage"`
}
