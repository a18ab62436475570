package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/attendance-api/internal/models"
)

// ActivityLogFilter narrows audit trail queries. Zero values match everything.
type ActivityLogFilter struct {
	Page          int
	PageSize      int
	Action        string
	EntityType    string
	EntityID      *uint
	CorrelationID string
}

// ActivityLogRepository stores the audit entries written alongside student
// and attendance changes.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns matching entries newest first together with the unpaginated total.
func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(activityMatching(filter))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]models.ActivityLog, 0)
	err := base.Scopes(paginate(filter.Page, filter.PageSize)).
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func activityMatching(filter ActivityLogFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.Action != "" {
			db = db.Where("action = ?", filter.Action)
		}
		if filter.EntityType != "" {
			db = db.Where("entity_type = ?", filter.EntityType)
		}
		if filter.EntityID != nil {
			db = db.Where("entity_id = ?", *filter.EntityID)
		}
		if filter.CorrelationID != "" {
			db = db.Where("correlation_id = ?", filter.CorrelationID)
		}
		return db
	}
}

// paginate limits a query to one page; a non-positive size disables paging.
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return db
		}
		if page <= 0 {
			page = 1
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
