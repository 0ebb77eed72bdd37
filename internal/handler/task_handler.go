package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/gateway"
	"github.com/noah-isme/gema-tasks-api/internal/middleware"
	"github.com/noah-isme/gema-tasks-api/internal/observability"
	"github.com/noah-isme/gema-tasks-api/internal/service"
	"github.com/noah-isme/gema-tasks-api/internal/utils"
)

// Error messages returned to callers.
const (
	msgMissingParameters = "Missing parameters"
	msgInvalidParameters = "Invalid parameters"
	msgInvalidBody       = "Invalid request body"
	msgUnknownEndpoint   = "Unknown endpoint"
	msgMethodNotAllowed  = "Method not allowed"
	msgTaskNotFound      = "Task not found"
	msgInternalError     = "Internal server error"
)

var errInvalidIdentifier = errors.New("invalid identifier")

// TaskHandler routes task invocations to the task service.
type TaskHandler struct {
	service service.TaskService
	logger  zerolog.Logger
}

// NewTaskHandler constructs the handler.
func NewTaskHandler(service service.TaskService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger.With().Str("component", "task_handler").Logger(),
	}
}

// Handle dispatches a single invocation and records its outcome.
func (h *TaskHandler) Handle(ctx context.Context, event gateway.Event) gateway.Response {
	start := time.Now()

	if correlation := strings.TrimSpace(event.Header("X-Correlation-ID")); correlation != "" {
		ctx = middleware.ContextWithCorrelation(ctx, correlation)
	}

	operation, resp := h.dispatch(ctx, event)

	observability.TaskRequests().WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()
	observability.TaskRequestDuration().WithLabelValues(operation).Observe(time.Since(start).Seconds())

	return resp
}

// Register mounts the handler on a fiber router for every method.
func (h *TaskHandler) Register(router fiber.Router) {
	router.All("", h.serve)
}

func (h *TaskHandler) serve(c *fiber.Ctx) error {
	headers := make(map[string]string)
	for name, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	event := gateway.Event{
		HTTPMethod:            c.Method(),
		Headers:               headers,
		QueryStringParameters: c.Queries(),
		Body:                  string(c.Body()),
	}

	resp := h.Handle(c.UserContext(), event)
	for name, value := range resp.Headers {
		c.Set(name, value)
	}

	return c.Status(resp.StatusCode).SendString(resp.Body)
}

func (h *TaskHandler) dispatch(ctx context.Context, event gateway.Event) (string, gateway.Response) {
	switch event.Method() {
	case fiber.MethodOptions:
		return "preflight", utils.Preflight()
	case fiber.MethodGet:
		if teacher := event.Query("teacher_id"); teacher != "" {
			return "list_teacher", h.listForTeacher(ctx, teacher)
		}
		module, student := event.Query("module_id"), event.Query("student_id")
		if module != "" && student != "" {
			return "list_module", h.listForStudent(ctx, module, student)
		}
		return "list", utils.SendError(fiber.StatusBadRequest, msgMissingParameters)
	case fiber.MethodPost:
		switch event.Query("action") {
		case "create":
			return "create", h.create(ctx, event)
		case "submit":
			return "submit", h.submit(ctx, event)
		default:
			return "unknown", utils.SendError(fiber.StatusBadRequest, msgUnknownEndpoint)
		}
	default:
		return "unsupported", utils.SendError(fiber.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

func (h *TaskHandler) listForTeacher(ctx context.Context, rawTeacherID string) gateway.Response {
	teacherID, err := parseIdentifier(rawTeacherID)
	if err != nil {
		return utils.SendError(fiber.StatusBadRequest, msgInvalidParameters)
	}

	result, err := h.service.ListForTeacher(ctx, teacherID)
	if err != nil {
		return h.handleError(ctx, err)
	}

	return utils.SendJSON(fiber.StatusOK, result)
}

func (h *TaskHandler) listForStudent(ctx context.Context, rawModuleID, rawStudentID string) gateway.Response {
	moduleID, err := parseIdentifier(rawModuleID)
	if err != nil {
		return utils.SendError(fiber.StatusBadRequest, msgInvalidParameters)
	}
	studentID, err := parseIdentifier(rawStudentID)
	if err != nil {
		return utils.SendError(fiber.StatusBadRequest, msgInvalidParameters)
	}

	result, err := h.service.ListForStudent(ctx, moduleID, studentID)
	if err != nil {
		return h.handleError(ctx, err)
	}

	return utils.SendJSON(fiber.StatusOK, result)
}

func (h *TaskHandler) create(ctx context.Context, event gateway.Event) gateway.Response {
	var payload dto.TaskCreateRequest
	if err := event.DecodeBody(&payload); err != nil {
		return utils.SendError(fiber.StatusBadRequest, msgInvalidBody)
	}

	result, err := h.service.Create(ctx, payload)
	if err != nil {
		return h.handleError(ctx, err)
	}

	return utils.SendJSON(fiber.StatusCreated, result)
}

func (h *TaskHandler) submit(ctx context.Context, event gateway.Event) gateway.Response {
	var payload dto.TaskSubmitRequest
	if err := event.DecodeBody(&payload); err != nil {
		return utils.SendError(fiber.StatusBadRequest, msgInvalidBody)
	}

	result, err := h.service.Submit(ctx, payload)
	if err != nil {
		return h.handleError(ctx, err)
	}

	return utils.SendJSON(fiber.StatusOK, result)
}

func (h *TaskHandler) handleError(ctx context.Context, err error) gateway.Response {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(fiber.StatusNotFound, msgTaskNotFound)
	case errors.Is(err, service.ErrInvalidOptions):
		return utils.SendError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, ctx).Error().Err(err).Msg("internal server error")
		return utils.SendError(fiber.StatusInternalServerError, msgInternalError)
	}
}

func parseIdentifier(value string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errInvalidIdentifier
	}
	return uint(parsed), nil
}
