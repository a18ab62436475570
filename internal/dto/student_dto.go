package dto

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/validation"
)

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	Name       string `json:"name" validate:"required"`
	RollNumber string `json:"roll_number" validate:"required,roll_number"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	Department string `json:"department"`
	Year       int    `json:"year" validate:"required,gt=0"`
}

// Normalize trims surrounding whitespace from text fields.
func (r *CreateStudentRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.RollNumber = strings.TrimSpace(r.RollNumber)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Department = strings.TrimSpace(r.Department)
}

// Validate reports every field that violates the creation rules.
func (r CreateStudentRequest) Validate(v *validator.Validate) error {
	c := validation.NewCollector(v)
	c.Struct(r)
	return c.Err()
}

// UpdateStudentRequest is a partial update; only supplied fields are applied.
// Roll numbers are immutable once issued.
type UpdateStudentRequest struct {
	Name       Optional[string] `json:"name"`
	Email      Optional[string] `json:"email"`
	Phone      Optional[string] `json:"phone"`
	Department Optional[string] `json:"department"`
	Year       Optional[int]    `json:"year"`
	Active     Optional[bool]   `json:"active"`
}

// Normalize trims surrounding whitespace from supplied text fields.
func (r *UpdateStudentRequest) Normalize() {
	for _, field := range []*Optional[string]{&r.Name, &r.Email, &r.Phone, &r.Department} {
		if field.Set {
			field.Value = strings.TrimSpace(field.Value)
		}
	}
}

// Validate checks only the fields that were supplied.
func (r UpdateStudentRequest) Validate(v *validator.Validate) error {
	c := validation.NewCollector(v)
	if name, ok := r.Name.Get(); ok {
		c.Var("name", name, "required")
	}
	if email, ok := r.Email.Get(); ok {
		c.Var("email", email, "omitempty,email")
	}
	if phone, ok := r.Phone.Get(); ok {
		c.Var("phone", phone, "omitempty,phone")
	}
	if year, ok := r.Year.Get(); ok {
		c.Var("year", year, "gt=0")
	}
	return c.Err()
}

// Empty reports whether the request carries no changes.
func (r UpdateStudentRequest) Empty() bool {
	return !r.Name.Set && !r.Email.Set && !r.Phone.Set && !r.Department.Set && !r.Year.Set && !r.Active.Set
}

// StudentResponse serializes a student for API clients.
type StudentResponse struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	RollNumber string    `json:"roll_number"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StudentListResponse wraps a paginated student listing.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewStudentResponse converts a model into a DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	return StudentResponse{
		ID:         student.ID,
		Name:       student.Name,
		RollNumber: student.RollNumber,
		Email:      student.Email,
		Phone:      student.Phone,
		Department: student.Department,
		Year:       student.Year,
		Active:     student.Active,
		CreatedAt:  student.CreatedAt,
		UpdatedAt:  student.UpdatedAt,
	}
}

// NewStudentResponseSlice converts a slice of models into DTOs.
func NewStudentResponseSlice(students []models.Student) []StudentResponse {
	responses := make([]StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, NewStudentResponse(student))
	}
	return responses
}
