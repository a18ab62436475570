package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/internal/utils"
)

// ActivityHandler exposes the audit trail.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches audit trail routes to the router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	req := dto.ActivityListRequest{
		Page:          page,
		PageSize:      pageSize,
		Action:        c.Query("action"),
		EntityType:    c.Query("entity_type"),
		CorrelationID: c.Query("correlation_id"),
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "entity_id must be a positive integer")
		}
		entityID := uint(id)
		req.EntityID = &entityID
	}

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list activity")
	}

	return utils.OK(c, response.Items, "activity retrieved", response.Pagination)
}
