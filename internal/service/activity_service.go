package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
)

// ActivityService exposes the audit trail written alongside every change.
type ActivityService interface {
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	filter := repository.ActivityLogFilter{
		Page:          req.Page,
		PageSize:      req.PageSize,
		Action:        strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType:    strings.ToLower(strings.TrimSpace(req.EntityType)),
		EntityID:      req.EntityID,
		CorrelationID: strings.TrimSpace(req.CorrelationID),
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}

	return dto.ActivityListResponse{
		Items:      responses,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

// recordActivity writes an audit entry through the repository of the
// surrounding transaction so it commits or rolls back with the change.
func recordActivity(ctx context.Context, repo repository.ActivityLogRepository, action, entityType string, entityID uint, metadata map[string]interface{}) error {
	entry := models.ActivityLog{
		Action:        action,
		EntityType:    entityType,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Metadata:      sanitizeMetadata(metadata),
	}
	if entityID != 0 {
		id := entityID
		entry.EntityID = &id
	}

	return repo.Create(ctx, &entry)
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "phone") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}
