package service

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	"github.com/noah-isme/attendance-api/internal/validation"
)

var (
	// ErrStudentNotFound indicates the referenced student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentRollNumberTaken indicates another student already holds the roll number.
	ErrStudentRollNumberTaken = errors.New("roll number already registered")
)

// StudentService orchestrates the student lifecycle.
type StudentService interface {
	Create(ctx context.Context, req dto.CreateStudentRequest) (dto.StudentResponse, error)
	Get(ctx context.Context, id uint) (dto.StudentResponse, error)
	GetByRollNumber(ctx context.Context, rollNumber string) (dto.StudentResponse, error)
	List(ctx context.Context, activeOnly bool) ([]dto.StudentResponse, error)
	ListActivePaginated(ctx context.Context, page, pageSize int) (dto.StudentListResponse, error)
	SearchByName(ctx context.Context, name string) ([]dto.StudentResponse, error)
	ListByDepartment(ctx context.Context, department string) ([]dto.StudentResponse, error)
	Update(ctx context.Context, id uint, req dto.UpdateStudentRequest) (dto.StudentResponse, error)
	Deactivate(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
	CountActive(ctx context.Context) (int64, error)
}

type studentService struct {
	repo      repository.StudentRepository
	uow       repository.UnitOfWork
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo repository.StudentRepository, uow repository.UnitOfWork, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		uow:       uow,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) Create(ctx context.Context, req dto.CreateStudentRequest) (dto.StudentResponse, error) {
	student := models.Student{
		Name:       s.cleanText(req.Name),
		RollNumber: strings.TrimSpace(req.RollNumber),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Department: s.cleanText(req.Department),
		Year:       req.Year,
		Active:     true,
	}
	if student.Name == "" {
		return dto.StudentResponse{}, validation.Errors{{Field: "name", Message: "name is required"}}
	}

	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		exists, err := repos.Students.ExistsByRollNumber(ctx, student.RollNumber)
		if err != nil {
			return err
		}
		if exists {
			return ErrStudentRollNumberTaken
		}

		if err := repos.Students.Create(ctx, &student); err != nil {
			return err
		}

		return recordActivity(ctx, repos.Activity, "student.created", "student", student.ID, map[string]interface{}{
			"roll_number": student.RollNumber,
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.StudentResponse{}, ErrStudentRollNumberTaken
		}
		return dto.StudentResponse{}, err
	}

	s.logger.Info().Uint("student_id", student.ID).Str("roll_number", student.RollNumber).Msg("student created")
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Get(ctx context.Context, id uint) (dto.StudentResponse, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, mapStudentError(err)
	}

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) GetByRollNumber(ctx context.Context, rollNumber string) (dto.StudentResponse, error) {
	student, err := s.repo.GetByRollNumber(ctx, strings.TrimSpace(rollNumber))
	if err != nil {
		return dto.StudentResponse{}, mapStudentError(err)
	}

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) List(ctx context.Context, activeOnly bool) ([]dto.StudentResponse, error) {
	return s.list(ctx, repository.StudentFilter{ActiveOnly: activeOnly})
}

func (s *studentService) ListActivePaginated(ctx context.Context, page, pageSize int) (dto.StudentListResponse, error) {
	students, total, err := s.repo.List(ctx, repository.StudentFilter{ActiveOnly: true, Page: page, PageSize: pageSize})
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	return dto.StudentListResponse{
		Items:      dto.NewStudentResponseSlice(students),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *studentService) SearchByName(ctx context.Context, name string) ([]dto.StudentResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return []dto.StudentResponse{}, nil
	}
	return s.list(ctx, repository.StudentFilter{Name: name})
}

func (s *studentService) ListByDepartment(ctx context.Context, department string) ([]dto.StudentResponse, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return []dto.StudentResponse{}, nil
	}
	return s.list(ctx, repository.StudentFilter{Department: department})
}

func (s *studentService) list(ctx context.Context, filter repository.StudentFilter) ([]dto.StudentResponse, error) {
	students, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewStudentResponseSlice(students), nil
}

func (s *studentService) Update(ctx context.Context, id uint, req dto.UpdateStudentRequest) (dto.StudentResponse, error) {
	if req.Empty() {
		return s.Get(ctx, id)
	}

	updates := make(map[string]interface{})
	changedFields := make([]string, 0)

	if name, ok := req.Name.Get(); ok {
		name = s.cleanText(name)
		if name == "" {
			return dto.StudentResponse{}, validation.Errors{{Field: "name", Message: "name is required"}}
		}
		updates["name"] = name
		changedFields = append(changedFields, "name")
	}
	if email, ok := req.Email.Get(); ok {
		updates["email"] = strings.TrimSpace(email)
		changedFields = append(changedFields, "email")
	}
	if phone, ok := req.Phone.Get(); ok {
		updates["phone"] = strings.TrimSpace(phone)
		changedFields = append(changedFields, "phone")
	}
	if department, ok := req.Department.Get(); ok {
		updates["department"] = s.cleanText(department)
		changedFields = append(changedFields, "department")
	}
	if year, ok := req.Year.Get(); ok {
		updates["year"] = year
		changedFields = append(changedFields, "year")
	}
	if active, ok := req.Active.Get(); ok {
		updates["active"] = active
		changedFields = append(changedFields, "active")
	}

	var student models.Student
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		updated, err := repos.Students.Update(ctx, id, updates)
		if err != nil {
			return err
		}
		student = updated

		return recordActivity(ctx, repos.Activity, "student.updated", "student", id, map[string]interface{}{
			"fields": changedFields,
		})
	})
	if err != nil {
		return dto.StudentResponse{}, mapStudentError(err)
	}

	return dto.NewStudentResponse(student), nil
}

// Deactivate flips the active flag off. Repeated calls succeed and leave the
// student inactive.
func (s *studentService) Deactivate(ctx context.Context, id uint) error {
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		if err := repos.Students.SetActive(ctx, id, false); err != nil {
			return err
		}
		return recordActivity(ctx, repos.Activity, "student.deactivated", "student", id, nil)
	})
	if err != nil {
		return mapStudentError(err)
	}

	s.logger.Info().Uint("student_id", id).Msg("student deactivated")
	return nil
}

// Delete removes the student row. Attendance rows that reference it are kept.
func (s *studentService) Delete(ctx context.Context, id uint) error {
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		student, err := repos.Students.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repos.Students.Delete(ctx, id); err != nil {
			return err
		}
		return recordActivity(ctx, repos.Activity, "student.deleted", "student", id, map[string]interface{}{
			"roll_number": student.RollNumber,
		})
	})
	if err != nil {
		return mapStudentError(err)
	}

	s.logger.Info().Uint("student_id", id).Msg("student deleted")
	return nil
}

func (s *studentService) CountActive(ctx context.Context) (int64, error) {
	return s.repo.CountActive(ctx)
}

// cleanText strips markup while keeping ordinary punctuation such as apostrophes.
func (s *studentService) cleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

func mapStudentError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrStudentNotFound
	}
	return err
}
