package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/database"
	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/events"
	"github.com/noah-isme/gema-tasks-api/internal/grading"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/observability"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

var (
	// ErrTaskNotFound indicates the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidOptions indicates the options do not fit the task type.
	ErrInvalidOptions = errors.New("invalid options")
)

const choiceOptionsSchema = `{
	"type": "array",
	"minItems": 2,
	"items": {"type": "string", "minLength": 1, "pattern": "\\S"}
}`

var choiceOptions = jsonschema.MustCompileString("choice_options.json", choiceOptionsSchema)

// RepositoryFactory binds a repository to an acquired database handle.
type RepositoryFactory func(db *gorm.DB) repository.TaskRepository

// TaskService exposes task listing, authoring and grading.
type TaskService interface {
	ListForTeacher(ctx context.Context, teacherID uint) (dto.TeacherTaskListResponse, error)
	ListForStudent(ctx context.Context, moduleID, studentID uint) (dto.ModuleTaskListResponse, error)
	Create(ctx context.Context, payload dto.TaskCreateRequest) (dto.TaskCreateResponse, error)
	Submit(ctx context.Context, payload dto.TaskSubmitRequest) (dto.TaskSubmitResponse, error)
}

type taskService struct {
	connector database.Connector
	newRepo   RepositoryFactory
	validator *validator.Validate
	publisher events.Publisher
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewTaskService builds the task service. Every call acquires its own database handle
// from connector and releases it before returning.
func NewTaskService(connector database.Connector, validate *validator.Validate, publisher events.Publisher, logger zerolog.Logger) TaskService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &taskService{
		connector: connector,
		newRepo:   repository.NewTaskRepository,
		validator: validate,
		publisher: publisher,
		logger:    logger.With().Str("component", "task_service").Logger(),
		tracer:    observability.Tracer("service/task"),
	}
}

func (s *taskService) ListForTeacher(ctx context.Context, teacherID uint) (dto.TeacherTaskListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.list_teacher", trace.WithAttributes(attribute.Int64("task.teacher_id", int64(teacherID))))
	defer span.End()

	var rows []repository.TeacherTaskRow
	err := s.withRepository(ctx, func(repo repository.TaskRepository) error {
		var err error
		rows, err = repo.ListByTeacher(ctx, teacherID)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return dto.TeacherTaskListResponse{}, err
	}

	tasks := make([]dto.TeacherTaskResponse, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, dto.TeacherTaskResponse{
			ID:             row.ID,
			Title:          row.Title,
			Description:    row.Description,
			TaskType:       row.TaskType,
			Points:         row.Points,
			ModuleTitle:    row.ModuleTitle,
			CompletedCount: row.CompletedCount,
		})
	}

	return dto.TeacherTaskListResponse{Tasks: tasks}, nil
}

func (s *taskService) ListForStudent(ctx context.Context, moduleID, studentID uint) (dto.ModuleTaskListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.list_module", trace.WithAttributes(
		attribute.Int64("task.module_id", int64(moduleID)),
		attribute.Int64("task.student_id", int64(studentID)),
	))
	defer span.End()

	var rows []repository.ModuleTaskRow
	err := s.withRepository(ctx, func(repo repository.TaskRepository) error {
		var err error
		rows, err = repo.ListByModuleForStudent(ctx, moduleID, studentID)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return dto.ModuleTaskListResponse{}, err
	}

	tasks := make([]dto.ModuleTaskResponse, 0, len(rows))
	for _, row := range rows {
		var options json.RawMessage
		if len(row.Options) > 0 {
			options = json.RawMessage(row.Options)
		}
		tasks = append(tasks, dto.ModuleTaskResponse{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description,
			TaskType:    row.TaskType,
			Options:     options,
			Points:      row.Points,
			IsCompleted: row.IsCompleted,
		})
	}

	return dto.ModuleTaskListResponse{Tasks: tasks}, nil
}

func (s *taskService) Create(ctx context.Context, payload dto.TaskCreateRequest) (dto.TaskCreateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskCreateResponse{}, err
	}

	options, err := normalizeOptions(payload)
	if err != nil {
		return dto.TaskCreateResponse{}, err
	}

	points := models.DefaultTaskPoints
	if payload.Points != nil {
		points = *payload.Points
	}

	task := models.Task{
		ModuleID:      payload.ModuleID.Uint(),
		TeacherID:     payload.TeacherID.Uint(),
		Title:         payload.Title,
		Description:   payload.Description,
		TaskType:      payload.TaskType,
		CorrectAnswer: payload.CorrectAnswer,
		Options:       options,
		Points:        points,
	}

	ctx, span := s.tracer.Start(ctx, "tasks.create", trace.WithAttributes(
		attribute.Int64("task.module_id", int64(task.ModuleID)),
		attribute.Int64("task.teacher_id", int64(task.TeacherID)),
		attribute.String("task.type", task.TaskType),
	))
	defer span.End()

	err = s.withRepository(ctx, func(repo repository.TaskRepository) error {
		return repo.Create(ctx, &task)
	})
	if err != nil {
		recordSpanError(span, err)
		return dto.TaskCreateResponse{}, err
	}

	s.logger.Info().Uint("task_id", task.ID).Uint("module_id", task.ModuleID).Uint("teacher_id", task.TeacherID).Msg("task created")
	s.publish(ctx, events.TypeTaskCreated, events.TaskCreated{
		TaskID:    task.ID,
		ModuleID:  task.ModuleID,
		TeacherID: task.TeacherID,
		TaskType:  task.TaskType,
		Points:    task.Points,
	})

	return dto.TaskCreateResponse{TaskID: task.ID, Message: "Task created"}, nil
}

func (s *taskService) Submit(ctx context.Context, payload dto.TaskSubmitRequest) (dto.TaskSubmitResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskSubmitResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "tasks.submit", trace.WithAttributes(
		attribute.Int64("task.id", int64(payload.TaskID)),
		attribute.Int64("task.student_id", int64(payload.StudentID)),
	))
	defer span.End()

	var (
		graded  grading.Result
		outcome repository.CompletionResult
	)
	err := s.withRepository(ctx, func(repo repository.TaskRepository) error {
		task, err := repo.GetByID(ctx, payload.TaskID.Uint())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to load task: %w", err)
		}

		graded = grading.Grade(*payload.Answer, task.CorrectAnswer, task.Points)
		outcome, err = repo.RecordCompletion(ctx, models.CompletedTask{
			TaskID:       task.ID,
			StudentID:    payload.StudentID.Uint(),
			Answer:       *payload.Answer,
			IsCorrect:    graded.IsCorrect,
			PointsEarned: graded.PointsEarned,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrTaskNotFound) {
			recordSpanError(span, err)
		}
		return dto.TaskSubmitResponse{}, err
	}

	span.SetAttributes(attribute.Bool("task.correct", graded.IsCorrect), attribute.Bool("task.points_awarded", outcome.PointsAwarded))

	result := "incorrect"
	if graded.IsCorrect {
		result = "correct"
	}
	observability.TaskSubmissions().WithLabelValues(result).Inc()
	if outcome.PointsAwarded {
		observability.PointsAwarded().Add(float64(graded.PointsEarned))
	}

	s.logger.Info().
		Uint("task_id", payload.TaskID.Uint()).
		Uint("student_id", payload.StudentID.Uint()).
		Bool("is_correct", graded.IsCorrect).
		Bool("points_awarded", outcome.PointsAwarded).
		Msg("answer graded")

	s.publish(ctx, events.TypeTaskGraded, events.TaskGraded{
		TaskID:        payload.TaskID.Uint(),
		StudentID:     payload.StudentID.Uint(),
		IsCorrect:     graded.IsCorrect,
		PointsEarned:  graded.PointsEarned,
		PointsAwarded: outcome.PointsAwarded,
	})

	return dto.TaskSubmitResponse{IsCorrect: graded.IsCorrect, PointsEarned: graded.PointsEarned}, nil
}

func (s *taskService) withRepository(ctx context.Context, fn func(repo repository.TaskRepository) error) error {
	db, release, err := s.connector.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire database: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release database connection")
		}
	}()

	return fn(s.newRepo(db))
}

func (s *taskService) publish(ctx context.Context, eventType string, data interface{}) {
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish task event")
	}
}

func normalizeOptions(payload dto.TaskCreateRequest) (datatypes.JSON, error) {
	if !payload.HasOptions() {
		if payload.TaskType == models.TaskTypeChoice {
			return nil, fmt.Errorf("%w: choice tasks require at least two options", ErrInvalidOptions)
		}
		return nil, nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Options); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	if payload.TaskType == models.TaskTypeChoice {
		var value interface{}
		if err := json.Unmarshal(compact.Bytes(), &value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		if err := choiceOptions.Validate(value); err != nil {
			return nil, fmt.Errorf("%w: choice tasks require at least two non-empty options", ErrInvalidOptions)
		}
	}

	return datatypes.JSON(compact.Bytes()), nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
