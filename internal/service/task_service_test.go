package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/database"
	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/events"
	"github.com/noah-isme/gema-tasks-api/internal/models"
)

type countingConnector struct {
	inner    database.Connector
	acquired int
	released int
	err      error
}

func (c *countingConnector) Acquire(ctx context.Context) (*gorm.DB, database.Release, error) {
	if c.err != nil {
		return nil, nil, c.err
	}
	db, release, err := c.inner.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	c.acquired++
	return db, func() error {
		c.released++
		return release()
	}, nil
}

type recordingPublisher struct {
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ interface{}) error {
	p.events = append(p.events, eventType)
	return p.err
}

type taskFixture struct {
	db        *gorm.DB
	connector *countingConnector
	publisher *recordingPublisher
	svc       TaskService
	module    models.Module
	student   models.User
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tasks.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	module := models.Module{Title: "Geography"}
	require.NoError(t, db.Create(&module).Error)
	student := models.User{Name: "Student"}
	require.NoError(t, db.Create(&student).Error)

	connector := &countingConnector{inner: database.NewPooledConnector(db)}
	publisher := &recordingPublisher{}
	validate := validator.New(validator.WithRequiredStructEnabled())

	return &taskFixture{
		db:        db,
		connector: connector,
		publisher: publisher,
		svc:       NewTaskService(connector, validate, publisher, zerolog.Nop()),
		module:    module,
		student:   student,
	}
}

func (f *taskFixture) createTask(t *testing.T, payload dto.TaskCreateRequest) uint {
	t.Helper()
	if payload.ModuleID == 0 {
		payload.ModuleID = dto.ID(f.module.ID)
	}
	if payload.TeacherID == 0 {
		payload.TeacherID = 1
	}
	created, err := f.svc.Create(context.Background(), payload)
	require.NoError(t, err)
	return created.TaskID
}

func stringPtr(value string) *string {
	return &value
}

func intPtr(value int) *int {
	return &value
}

func TestTaskServiceCreateStoresFields(t *testing.T) {
	f := newTaskFixture(t)

	payload := dto.TaskCreateRequest{
		ModuleID:      dto.ID(f.module.ID),
		TeacherID:     4,
		Title:         "Capital of France",
		Description:   "Pick the capital",
		TaskType:      models.TaskTypeChoice,
		CorrectAnswer: "Paris",
		Options:       json.RawMessage(`[ "Paris", "Lyon", "Nice" ]`),
		Points:        intPtr(15),
	}

	created, err := f.svc.Create(context.Background(), payload)
	require.NoError(t, err)
	require.NotZero(t, created.TaskID)
	require.Equal(t, "Task created", created.Message)

	var stored models.Task
	require.NoError(t, f.db.First(&stored, created.TaskID).Error)
	require.Equal(t, payload.ModuleID.Uint(), stored.ModuleID)
	require.Equal(t, payload.TeacherID.Uint(), stored.TeacherID)
	require.Equal(t, payload.Title, stored.Title)
	require.Equal(t, payload.Description, stored.Description)
	require.Equal(t, payload.TaskType, stored.TaskType)
	require.Equal(t, payload.CorrectAnswer, stored.CorrectAnswer)
	require.JSONEq(t, string(payload.Options), string(stored.Options))
	require.Equal(t, []interface{}{"Paris", "Lyon", "Nice"}, stored.OptionsValue())
	require.Equal(t, 15, stored.Points)

	require.Equal(t, []string{events.TypeTaskCreated}, f.publisher.events)
	require.Equal(t, 1, f.connector.acquired)
	require.Equal(t, 1, f.connector.released)
}

func TestTaskServiceCreateDefaultsPointsAndNullOptions(t *testing.T) {
	f := newTaskFixture(t)

	id := f.createTask(t, dto.TaskCreateRequest{
		Title:         "Square root",
		TaskType:      models.TaskTypeNumber,
		CorrectAnswer: "4",
		Options:       json.RawMessage(`null`),
	})

	var stored models.Task
	require.NoError(t, f.db.First(&stored, id).Error)
	require.Equal(t, models.DefaultTaskPoints, stored.Points)
	require.Nil(t, stored.OptionsValue())
}

func TestTaskServiceCreateValidation(t *testing.T) {
	f := newTaskFixture(t)

	cases := map[string]dto.TaskCreateRequest{
		"missing title":      {ModuleID: dto.ID(f.module.ID), TeacherID: 1, TaskType: models.TaskTypeText, CorrectAnswer: "a"},
		"unknown type":       {ModuleID: dto.ID(f.module.ID), TeacherID: 1, Title: "t", TaskType: "essay", CorrectAnswer: "a"},
		"missing module":     {TeacherID: 1, Title: "t", TaskType: models.TaskTypeText, CorrectAnswer: "a"},
		"negative points":    {ModuleID: dto.ID(f.module.ID), TeacherID: 1, Title: "t", TaskType: models.TaskTypeText, CorrectAnswer: "a", Points: intPtr(-1)},
		"missing answer key": {ModuleID: dto.ID(f.module.ID), TeacherID: 1, Title: "t", TaskType: models.TaskTypeText},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), payload)
			var validationErrors validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrors))
		})
	}

	require.Zero(t, f.connector.acquired)
}

func TestTaskServiceCreateRejectsBadChoiceOptions(t *testing.T) {
	f := newTaskFixture(t)

	for _, options := range []string{``, `null`, `["only one"]`, `["a", ""]`, `["a", "   "]`, `{"a": "b"}`, `[1, 2]`} {
		_, err := f.svc.Create(context.Background(), dto.TaskCreateRequest{
			ModuleID:      dto.ID(f.module.ID),
			TeacherID:     1,
			Title:         "Choice",
			TaskType:      models.TaskTypeChoice,
			CorrectAnswer: "a",
			Options:       json.RawMessage(options),
		})
		require.ErrorIs(t, err, ErrInvalidOptions, options)
	}

	require.Zero(t, f.connector.acquired)
}

func TestTaskServiceSubmitMatchesCaseAndWhitespaceInsensitively(t *testing.T) {
	f := newTaskFixture(t)
	id := f.createTask(t, dto.TaskCreateRequest{Title: "Capital", TaskType: models.TaskTypeText, CorrectAnswer: "paris"})

	for _, answer := range []string{"Paris", " paris ", "PARIS"} {
		result, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id), StudentID: dto.ID(f.student.ID), Answer: stringPtr(answer)})
		require.NoError(t, err)
		require.True(t, result.IsCorrect, answer)
		require.Equal(t, models.DefaultTaskPoints, result.PointsEarned)
	}
}

func TestTaskServiceSubmitAwardsPointsOnce(t *testing.T) {
	f := newTaskFixture(t)
	id := f.createTask(t, dto.TaskCreateRequest{Title: "Capital", TaskType: models.TaskTypeText, CorrectAnswer: "paris", Points: intPtr(25)})

	for i := 0; i < 2; i++ {
		result, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id), StudentID: dto.ID(f.student.ID), Answer: stringPtr("Paris")})
		require.NoError(t, err)
		require.Equal(t, dto.TaskSubmitResponse{IsCorrect: true, PointsEarned: 25}, result)
	}

	var student models.User
	require.NoError(t, f.db.First(&student, f.student.ID).Error)
	require.Equal(t, 25, student.Points)
}

func TestTaskServiceSubmitIncorrectAfterCorrectKeepsPoints(t *testing.T) {
	f := newTaskFixture(t)
	id := f.createTask(t, dto.TaskCreateRequest{Title: "Capital", TaskType: models.TaskTypeText, CorrectAnswer: "paris"})

	_, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id), StudentID: dto.ID(f.student.ID), Answer: stringPtr("paris")})
	require.NoError(t, err)

	result, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id), StudentID: dto.ID(f.student.ID), Answer: stringPtr("lyon")})
	require.NoError(t, err)
	require.Equal(t, dto.TaskSubmitResponse{IsCorrect: false, PointsEarned: 0}, result)

	var completion models.CompletedTask
	require.NoError(t, f.db.Where("task_id = ? AND student_id = ?", id, f.student.ID).First(&completion).Error)
	require.False(t, completion.IsCorrect)
	require.Equal(t, 0, completion.PointsEarned)
	require.Equal(t, "lyon", completion.Answer)

	var student models.User
	require.NoError(t, f.db.First(&student, f.student.ID).Error)
	require.Equal(t, models.DefaultTaskPoints, student.Points)
}

func TestTaskServiceSubmitUnknownTask(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: 999, StudentID: dto.ID(f.student.ID), Answer: stringPtr("x")})
	require.ErrorIs(t, err, ErrTaskNotFound)
	require.Equal(t, 1, f.connector.acquired)
	require.Equal(t, 1, f.connector.released)
	require.Empty(t, f.publisher.events)
}

func TestTaskServiceSubmitRequiresAnswerField(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: 1, StudentID: dto.ID(f.student.ID)})
	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))

	id := f.createTask(t, dto.TaskCreateRequest{Title: "Blank", TaskType: models.TaskTypeText, CorrectAnswer: "x"})
	result, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id), StudentID: dto.ID(f.student.ID), Answer: stringPtr("")})
	require.NoError(t, err)
	require.False(t, result.IsCorrect)
}

func TestTaskServiceSubmitIgnoresPublisherFailure(t *testing.T) {
	f := newTaskFixture(t)
	id := f.createTask(t, dto.TaskCreateRequest{Title: "Capital", TaskType: models.TaskTypeText, CorrectAnswer: "paris"})
	f.publisher.err = errors.New("broker down")

	result, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id), StudentID: dto.ID(f.student.ID), Answer: stringPtr("paris")})
	require.NoError(t, err)
	require.True(t, result.IsCorrect)
	require.Equal(t, []string{events.TypeTaskCreated, events.TypeTaskGraded}, f.publisher.events)
}

func TestTaskServiceListForStudentFlagsAnyCompletion(t *testing.T) {
	f := newTaskFixture(t)
	first := f.createTask(t, dto.TaskCreateRequest{Title: "First", TaskType: models.TaskTypeText, CorrectAnswer: "a"})
	second := f.createTask(t, dto.TaskCreateRequest{Title: "Second", TaskType: models.TaskTypeChoice, CorrectAnswer: "b", Options: json.RawMessage(`["a","b"]`)})
	third := f.createTask(t, dto.TaskCreateRequest{Title: "Third", TaskType: models.TaskTypeText, CorrectAnswer: "c"})

	base := time.Now().Add(-time.Hour)
	for i, id := range []uint{first, second, third} {
		require.NoError(t, f.db.Model(&models.Task{}).Where("id = ?", id).Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	_, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(first), StudentID: dto.ID(f.student.ID), Answer: stringPtr("wrong")})
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(third), StudentID: dto.ID(f.student.ID), Answer: stringPtr("c")})
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(second), StudentID: dto.ID(f.student.ID + 1), Answer: stringPtr("b")})
	require.NoError(t, err)

	result, err := f.svc.ListForStudent(context.Background(), f.module.ID, f.student.ID)
	require.NoError(t, err)
	require.Len(t, result.Tasks, 3)

	require.Equal(t, first, result.Tasks[0].ID)
	require.True(t, result.Tasks[0].IsCompleted)
	require.Equal(t, second, result.Tasks[1].ID)
	require.False(t, result.Tasks[1].IsCompleted)
	require.JSONEq(t, `["a","b"]`, string(result.Tasks[1].Options))
	require.Equal(t, third, result.Tasks[2].ID)
	require.True(t, result.Tasks[2].IsCompleted)
}

func TestTaskServiceListForTeacher(t *testing.T) {
	f := newTaskFixture(t)
	id := f.createTask(t, dto.TaskCreateRequest{TeacherID: 3, Title: "Mine", TaskType: models.TaskTypeText, CorrectAnswer: "a", Points: intPtr(7)})
	f.createTask(t, dto.TaskCreateRequest{TeacherID: 8, Title: "Other", TaskType: models.TaskTypeText, CorrectAnswer: "a"})

	_, err := f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id), StudentID: dto.ID(f.student.ID), Answer: stringPtr("b")})
	require.NoError(t, err)

	result, err := f.svc.ListForTeacher(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, []dto.TeacherTaskResponse{{
		ID:             id,
		Title:          "Mine",
		TaskType:       models.TaskTypeText,
		Points:         7,
		ModuleTitle:    "Geography",
		CompletedCount: 1,
	}}, result.Tasks)
}

func TestTaskServiceAcquireFailure(t *testing.T) {
	f := newTaskFixture(t)
	f.connector.err = errors.New("connection refused")

	_, err := f.svc.ListForTeacher(context.Background(), 1)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskServiceReleasesOnEveryCall(t *testing.T) {
	f := newTaskFixture(t)
	id := f.createTask(t, dto.TaskCreateRequest{Title: "Capital", TaskType: models.TaskTypeText, CorrectAnswer: "paris"})

	_, err := f.svc.ListForTeacher(context.Background(), 1)
	require.NoError(t, err)
	_, err = f.svc.ListForStudent(context.Background(), f.module.ID, f.student.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id), StudentID: dto.ID(f.student.ID), Answer: stringPtr("paris")})
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), dto.TaskSubmitRequest{TaskID: dto.ID(id + 100), StudentID: dto.ID(f.student.ID), Answer: stringPtr("paris")})
	require.ErrorIs(t, err, ErrTaskNotFound)

	require.Equal(t, 5, f.connector.acquired)
	require.Equal(t, f.connector.acquired, f.connector.released)
}
