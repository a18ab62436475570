package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/attendance-api/internal/models"
)

// ActivityListRequest defines filters for retrieving audit entries.
type ActivityListRequest struct {
	Page          int
	PageSize      int
	Action        string
	EntityType    string
	EntityID      *uint
	CorrelationID string
}

// ActivityResponse serializes an audit entry.
type ActivityResponse struct {
	ID            uint                   `json:"id"`
	Action        string                 `json:"action"`
	EntityType    string                 `json:"entity_type"`
	EntityID      *uint                  `json:"entity_id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ActivityListResponse wraps paginated audit entries.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:            entry.ID,
		Action:        entry.Action,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		CorrelationID: entry.CorrelationID,
		Metadata:      metadataFromJSON(entry.Metadata),
		CreatedAt:     entry.CreatedAt,
	}
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}
