package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/attendance-api/internal/models"
)

// StudentFilter narrows student listings. Zero values disable a filter.
type StudentFilter struct {
	ActiveOnly bool
	Department string
	Name       string
	Page       int
	PageSize   int
}

// StudentRepository provides access to student records.
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetByRollNumber(ctx context.Context, rollNumber string) (models.Student, error)
	ExistsByRollNumber(ctx context.Context, rollNumber string) (bool, error)
	FindByIDs(ctx context.Context, ids []uint) (map[uint]models.Student, error)
	List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error)
	SetActive(ctx context.Context, id uint, active bool) error
	Delete(ctx context.Context, id uint) error
	CountActive(ctx context.Context) (int64, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) GetByRollNumber(ctx context.Context, rollNumber string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("roll_number = ?", rollNumber).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) ExistsByRollNumber(ctx context.Context, rollNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("roll_number = ?", rollNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *studentRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]models.Student, error) {
	result := make(map[uint]models.Student, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var students []models.Student
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, err
	}

	for _, student := range students {
		result[student.ID] = student
	}
	return result, nil
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{})

	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}

	if filter.Department != "" {
		query = query.Where("department = ?", filter.Department)
	}

	if filter.Name != "" {
		like := "%" + escapeLike(strings.ToLower(filter.Name)) + "%"
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\'`, like)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("id ASC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Limit(filter.PageSize).Offset(offset)
	}

	students := make([]models.Student, 0)
	if err := query.Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *studentRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error) {
	result := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return models.Student{}, result.Error
	}

	if result.RowsAffected == 0 {
		return models.Student{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *studentRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("id = ?", id).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *studentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Student{}, id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *studentRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("active = ?", true).
		Count(&count).Error
	return count, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes LIKE wildcards in user input match literally.
func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
