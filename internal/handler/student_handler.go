package handler

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/internal/utils"
)

// StudentHandler wires the student endpoints.
type StudentHandler struct {
	service   service.StudentService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(service service.StudentService, validate *validator.Validate, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches student routes to the router group. Literal segments are
// registered ahead of /:id.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/paginated", h.listPaginated)
	router.Get("/search", h.search)
	router.Get("/stats/count", h.countActive)
	router.Get("/roll/:rollNumber", h.getByRollNumber)
	router.Get("/department/:department", h.listByDepartment)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Patch("/:id/deactivate", h.deactivate)
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateStudentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	payload.Normalize()
	if err := payload.Validate(h.validator); err != nil {
		return validationFailed(c, err)
	}

	student, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to create student")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	activeOnly := false
	if raw := strings.TrimSpace(c.Query("activeOnly")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "activeOnly must be true or false")
		}
		activeOnly = parsed
	}

	students, err := h.service.List(requestContext(c), activeOnly)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list students")
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StudentHandler) listPaginated(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.ListActivePaginated(requestContext(c), page, pageSize)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list students")
	}

	return utils.OK(c, response.Items, "students retrieved", response.Pagination)
}

func (h *StudentHandler) search(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "name query parameter is required")
	}

	students, err := h.service.SearchByName(requestContext(c), name)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to search students")
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StudentHandler) countActive(c *fiber.Ctx) error {
	count, err := h.service.CountActive(requestContext(c))
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to count students")
	}

	return utils.SendSuccess(c, "active students counted", fiber.Map{"count": count})
}

func (h *StudentHandler) getByRollNumber(c *fiber.Ctx) error {
	roll, err := rollParam(c, h.validator, "rollNumber")
	if err != nil {
		return validationFailed(c, err)
	}

	student, err := h.service.GetByRollNumber(requestContext(c), roll)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to fetch student")
	}

	return utils.SendSuccess(c, "student retrieved", student)
}

func (h *StudentHandler) listByDepartment(c *fiber.Ctx) error {
	department := strings.TrimSpace(c.Params("department"))
	if unescaped, err := url.PathUnescape(department); err == nil {
		department = unescaped
	}

	students, err := h.service.ListByDepartment(requestContext(c), department)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to list students")
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	student, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to fetch student")
	}

	return utils.SendSuccess(c, "student retrieved", student)
}

func (h *StudentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.UpdateStudentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	payload.Normalize()
	if err := payload.Validate(h.validator); err != nil {
		return validationFailed(c, err)
	}

	student, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err, "failed to update student")
	}

	return utils.SendSuccess(c, "student updated", student)
}

func (h *StudentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return writeServiceError(c, h.logger, err, "failed to delete student")
	}

	return utils.SendSuccess(c, "student deleted", fiber.Map{"id": id})
}

func (h *StudentHandler) deactivate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.service.Deactivate(requestContext(c), id); err != nil {
		return writeServiceError(c, h.logger, err, "failed to deactivate student")
	}

	return utils.SendSuccess(c, "student deactivated", fiber.Map{"id": id, "active": false})
}
