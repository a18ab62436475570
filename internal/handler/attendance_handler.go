package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/internal/utils"
)

// AttendanceHandler wires the attendance endpoints. It owns the clock used to
// resolve "today" in the configured location.
type AttendanceHandler struct {
	service   service.AttendanceService
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
	location  *time.Location
}

// AttendanceHandlerOption customises an AttendanceHandler.
type AttendanceHandlerOption func(*AttendanceHandler)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) AttendanceHandlerOption {
	return func(h *AttendanceHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLocation sets the time zone that decides which calendar day "today" is.
func WithLocation(location *time.Location) AttendanceHandlerOption {
	return func(h *AttendanceHandler) {
		if location != nil {
			h.location = location
		}
	}
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service service.AttendanceService, validate *validator.Validate, logger zerolog.Logger, opts ...AttendanceHandlerOption) *AttendanceHandler {
	h := &AttendanceHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "attendance_handler").Logger(),
		now:       time.Now,
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register attaches attendance routes to the router group.
func (h *AttendanceHandler) Register(router fiber.Router) {
	router.Post("/mark", h.mark)
	router.Get("/today", h.today)
	router.Get("/range", h.listRange)
	router.Get("/date/:date", h.listDate)
	router.Get("/date/:date/paginated", h.listDatePaginated)
	router.Get("/date/:date/summary", h.dailySummary)
	router.Get("/student/:rollNumber", h.history)
	router.Get("/student/:rollNumber/range", h.historyRange)
	router.Get("/student/:rollNumber/stats", h.statistics)
	router.Get("/student/:rollNumber/stats/range", h.statisticsRange)
	router.Get("/status/:status", h.listStatus)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *AttendanceHandler) currentDate() models.Date {
	return models.DateOf(h.now().In(h.location))
}

func (h *AttendanceHandler) mark(c *fiber.Ctx) error {
	var payload dto.MarkAttendanceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	payload.Normalize()
	if err := payload.Validate(h.validator); err != nil {
		return validationFailed(c, err)
	}

	record, err := h.service.Mark(requestContext(c), payload, h.currentDate())
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to mark attendance")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attendance marked", record)
}

func (h *AttendanceHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.MarkAttendanceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	payload.Normalize()
	if err := payload.Validate(h.validator); err != nil {
		return validationFailed(c, err)
	}

	record, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to update attendance")
	}

	return utils.SendSuccess(c, "attendance updated", record)
}

func (h *AttendanceHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return writeServiceError(c, h.logger, err, "failed to delete attendance")
	}

	return utils.SendSuccess(c, "attendance deleted", fiber.Map{"id": id})
}

func (h *AttendanceHandler) today(c *fiber.Ctx) error {
	records, err := h.service.ListForDate(requestContext(c), h.currentDate())
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list attendance")
	}

	return utils.SendSuccess(c, "attendance retrieved", records)
}

func (h *AttendanceHandler) listDate(c *fiber.Ctx) error {
	date, err := parseDateParam(c, "date")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.ListForDate(requestContext(c), date)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list attendance")
	}

	return utils.SendSuccess(c, "attendance retrieved", records)
}

func (h *AttendanceHandler) listDatePaginated(c *fiber.Ctx) error {
	date, err := parseDateParam(c, "date")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.ListForDatePaginated(requestContext(c), date, page, pageSize)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list attendance")
	}

	return utils.OK(c, response.Items, "attendance retrieved", response.Pagination)
}

func (h *AttendanceHandler) dailySummary(c *fiber.Ctx) error {
	date, err := parseDateParam(c, "date")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.DailySummary(requestContext(c), date)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to summarise attendance")
	}

	return utils.SendSuccess(c, "attendance summary retrieved", summary)
}

func (h *AttendanceHandler) listRange(c *fiber.Ctx) error {
	dateRange, err := parseRangeQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.ListForRange(requestContext(c), dateRange)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list attendance")
	}

	return utils.SendSuccess(c, "attendance retrieved", records)
}

func (h *AttendanceHandler) listStatus(c *fiber.Ctx) error {
	status, err := models.ParseAttendanceStatus(c.Params("status"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	dateRange, err := parseRangeQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.ListByStatus(requestContext(c), dateRange, status)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list attendance")
	}

	return utils.SendSuccess(c, "attendance retrieved", records)
}

func (h *AttendanceHandler) history(c *fiber.Ctx) error {
	return h.respondHistory(c, false)
}

func (h *AttendanceHandler) historyRange(c *fiber.Ctx) error {
	return h.respondHistory(c, true)
}

func (h *AttendanceHandler) respondHistory(c *fiber.Ctx, bounded bool) error {
	roll, err := rollParam(c, h.validator, "rollNumber")
	if err != nil {
		return validationFailed(c, err)
	}

	var dateRange *models.DateRange
	if bounded {
		parsed, err := parseRangeQuery(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		dateRange = &parsed
	}

	history, err := h.service.StudentHistory(requestContext(c), roll, dateRange)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to fetch attendance history")
	}

	return utils.SendSuccess(c, "attendance history retrieved", history)
}

func (h *AttendanceHandler) statistics(c *fiber.Ctx) error {
	return h.respondStatistics(c, false)
}

func (h *AttendanceHandler) statisticsRange(c *fiber.Ctx) error {
	return h.respondStatistics(c, true)
}

func (h *AttendanceHandler) respondStatistics(c *fiber.Ctx, bounded bool) error {
	roll, err := rollParam(c, h.validator, "rollNumber")
	if err != nil {
		return validationFailed(c, err)
	}

	var dateRange *models.DateRange
	if bounded {
		parsed, err := parseRangeQuery(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		dateRange = &parsed
	}

	stats, err := h.service.StudentStatistics(requestContext(c), roll, dateRange)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to compute attendance statistics")
	}

	return utils.SendSuccess(c, "attendance statistics retrieved", stats)
}
