package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradewatch/gradewatch-api/internal/dto"
	"github.com/gradewatch/gradewatch-api/internal/service"
	"github.com/gradewatch/gradewatch-api/internal/utils"
)

// ReportHandler exposes the report endpoints. Date query parameters are
// interpreted on the report calendar, so they are parsed in the same location
// the reports are evaluated in.
type ReportHandler struct {
	service  service.ReportService
	validate *validator.Validate
	location *time.Location
	logger   zerolog.Logger
}

// NewReportHandler creates a new handler instance.
func NewReportHandler(service service.ReportService, validate *validator.Validate, location *time.Location, logger zerolog.Logger) *ReportHandler {
	if location == nil {
		location = time.UTC
	}

	return &ReportHandler{
		service:  service,
		validate: validate,
		location: location,
		logger:   logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register attaches the report endpoints.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/today", h.today)
	router.Get("/week", h.week)
	router.Get("/attention", h.attention)
	router.Get("/scores", h.scores)
	router.Get("/service-hours", h.serviceHours)
	router.Get("/assignments/:id", h.assignment)
}

func (h *ReportHandler) today(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	date := h.queryDate(query)
	result, cacheHit, err := h.service.Today(c.UserContext(), date)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build today report")
		return utils.SendError(c, fiber.StatusBadGateway, "failed to build today report")
	}

	return utils.SendSuccessWithMeta(c, "today report generated", result, meta(cacheHit))
}

func (h *ReportHandler) week(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	date := h.queryDate(query)
	result, cacheHit, err := h.service.Week(c.UserContext(), date)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build week report")
		return utils.SendError(c, fiber.StatusBadGateway, "failed to build week report")
	}

	return utils.SendSuccessWithMeta(c, "week report generated", result, meta(cacheHit))
}

func (h *ReportHandler) attention(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, cacheHit, err := h.service.Attention(c.UserContext(), query.MinGain)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build attention report")
		return utils.SendError(c, fiber.StatusBadGateway, "failed to build attention report")
	}

	return utils.SendSuccessWithMeta(c, "attention report generated", result, meta(cacheHit))
}

func (h *ReportHandler) scores(c *fiber.Ctx) error {
	result, cacheHit, err := h.service.Scores(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build scores report")
		return utils.SendError(c, fiber.StatusBadGateway, "failed to build scores report")
	}

	return utils.SendSuccessWithMeta(c, "scores report generated", result, meta(cacheHit))
}

func (h *ReportHandler) serviceHours(c *fiber.Ctx) error {
	result, err := h.service.ServiceHours(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to compute service hours")
		return utils.SendError(c, fiber.StatusBadGateway, "failed to compute service hours")
	}

	return utils.SendSuccess(c, "service hours computed", result)
}

func (h *ReportHandler) assignment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	result, err := h.service.Assignment(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		}
		h.logger.Error().Err(err).Int64("assignment_id", id).Msg("failed to load assignment")
		return utils.SendError(c, fiber.StatusBadGateway, "failed to load assignment")
	}

	return utils.SendSuccess(c, "assignment retrieved", result)
}

func (h *ReportHandler) parseQuery(c *fiber.Ctx) (dto.ReportQuery, error) {
	var query dto.ReportQuery
	if err := c.QueryParser(&query); err != nil {
		return dto.ReportQuery{}, errors.New("invalid query parameters")
	}

	if err := h.validate.Struct(query); err != nil {
		return dto.ReportQuery{}, errors.New("invalid query parameters")
	}

	return query, nil
}

func (h *ReportHandler) queryDate(query dto.ReportQuery) time.Time {
	if query.Date == "" {
		return time.Now().In(h.location)
	}

	date, err := time.ParseInLocation("2006-01-02", query.Date, h.location)
	if err != nil {
		return time.Now().In(h.location)
	}

	return date
}

func meta(cacheHit bool) map[string]interface{} {
	return map[string]interface{}{"cache_hit": cacheHit}
}
