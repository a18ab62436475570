package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/internal/utils"
	"github.com/noah-isme/attendance-api/internal/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parsePagination(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, errors.New("invalid page")
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return 0, 0, errors.New("invalid page size")
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	} else if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return page, pageSize, nil
}

func parseDateParam(c *fiber.Ctx, name string) (models.Date, error) {
	return models.ParseDate(c.Params(name))
}

// parseRangeQuery reads the mandatory startDate and endDate query parameters.
func parseRangeQuery(c *fiber.Ctx) (models.DateRange, error) {
	startRaw := strings.TrimSpace(c.Query("startDate"))
	endRaw := strings.TrimSpace(c.Query("endDate"))
	if startRaw == "" || endRaw == "" {
		return models.DateRange{}, errors.New("startDate and endDate are required")
	}

	start, err := models.ParseDate(startRaw)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("startDate: %w", err)
	}
	end, err := models.ParseDate(endRaw)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("endDate: %w", err)
	}

	return models.DateRange{Start: start, End: end}, nil
}

// rollParam upper-cases the roll number path parameter and checks its shape.
func rollParam(c *fiber.Ctx, v *validator.Validate, name string) (string, error) {
	roll := strings.ToUpper(strings.TrimSpace(c.Params(name)))
	collector := validation.NewCollector(v)
	collector.Var("roll_number", roll, "required,roll_code")
	if err := collector.Err(); err != nil {
		return "", err
	}
	return roll, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationFailed(c *fiber.Ctx, err error) error {
	if errs, ok := validation.AsErrors(err); ok {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", errs)
	}
	return utils.SendError(c, fiber.StatusBadRequest, err.Error())
}

// writeServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic 500 with fallback.
func writeServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, service.ErrStudentNotFound.Error())
	case errors.Is(err, service.ErrAttendanceNotFound):
		return utils.SendError(c, fiber.StatusNotFound, service.ErrAttendanceNotFound.Error())
	case errors.Is(err, service.ErrStudentRollNumberTaken):
		return utils.SendError(c, fiber.StatusConflict, service.ErrStudentRollNumberTaken.Error())
	case errors.Is(err, service.ErrAttendanceConflict):
		return utils.SendError(c, fiber.StatusConflict, service.ErrAttendanceConflict.Error())
	case errors.Is(err, service.ErrInvalidDateRange):
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrInvalidDateRange.Error())
	}

	if _, ok := validation.AsErrors(err); ok {
		return validationFailed(c, err)
	}

	requestLogger(logger, c).Error().Err(err).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}
