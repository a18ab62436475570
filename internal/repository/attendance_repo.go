package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/attendance-api/internal/models"
)

// AttendanceFilter narrows attendance listings. Nil or zero fields disable a filter.
type AttendanceFilter struct {
	StudentID *uint
	Date      *models.Date
	Range     *models.DateRange
	Status    models.AttendanceStatus
	Page      int
	PageSize  int
	// NewestFirst orders by date descending; otherwise ascending.
	NewestFirst bool
}

// AttendanceRepository persists daily attendance marks.
type AttendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) error
	GetByID(ctx context.Context, id uint) (models.Attendance, error)
	GetByStudentAndDate(ctx context.Context, studentID uint, date models.Date) (models.Attendance, error)
	Save(ctx context.Context, record *models.Attendance) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter AttendanceFilter) ([]models.Attendance, int64, error)
	CountByStatus(ctx context.Context, studentID uint, dateRange models.DateRange, status models.AttendanceStatus) (int64, error)
	CountStatusesOnDate(ctx context.Context, date models.Date) (map[models.AttendanceStatus]int64, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository constructs an attendance repository.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

// Upsert inserts the mark or, when the (student, date) pair already exists,
// overwrites its status in the same statement. record is reloaded afterwards.
func (r *attendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "attendance_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(record).Error
	if err != nil {
		return err
	}

	stored, err := r.GetByStudentAndDate(ctx, record.StudentID, record.Date)
	if err != nil {
		return err
	}
	*record = stored
	return nil
}

func (r *attendanceRepository) GetByID(ctx context.Context, id uint) (models.Attendance, error) {
	var record models.Attendance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return models.Attendance{}, err
	}

	return record, nil
}

func (r *attendanceRepository) GetByStudentAndDate(ctx context.Context, studentID uint, date models.Date) (models.Attendance, error) {
	var record models.Attendance
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND attendance_date = ?", studentID, date).
		First(&record).Error
	if err != nil {
		return models.Attendance{}, err
	}

	return record, nil
}

func (r *attendanceRepository) Save(ctx context.Context, record *models.Attendance) error {
	result := r.db.WithContext(ctx).Model(record).
		Select("student_id", "attendance_date", "status", "updated_at").
		Updates(record)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *attendanceRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Attendance{}, id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *attendanceRepository) List(ctx context.Context, filter AttendanceFilter) ([]models.Attendance, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Attendance{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Date != nil {
		query = query.Where("attendance_date = ?", *filter.Date)
	}

	if filter.Range != nil {
		query = query.Where("attendance_date BETWEEN ? AND ?", filter.Range.Start, filter.Range.End)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.NewestFirst {
		query = query.Order("attendance_date DESC").Order("id DESC")
	} else {
		query = query.Order("attendance_date ASC").Order("id ASC")
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Limit(filter.PageSize).Offset(offset)
	}

	records := make([]models.Attendance, 0)
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *attendanceRepository) CountByStatus(ctx context.Context, studentID uint, dateRange models.DateRange, status models.AttendanceStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("student_id = ?", studentID).
		Where("attendance_date BETWEEN ? AND ?", dateRange.Start, dateRange.End).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *attendanceRepository) CountStatusesOnDate(ctx context.Context, date models.Date) (map[models.AttendanceStatus]int64, error) {
	var rows []struct {
		Status models.AttendanceStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Select("status, COUNT(*) AS total").
		Where("attendance_date = ?", date).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.AttendanceStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
