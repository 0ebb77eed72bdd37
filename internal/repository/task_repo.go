package repository

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// TeacherTaskRow is one line of a teacher's task overview.
type TeacherTaskRow struct {
	ID             uint
	Title          string
	Description    string
	TaskType       string
	Points         int
	ModuleTitle    string
	CompletedCount int64
}

// ModuleTaskRow is a module task annotated with the student's completion state.
type ModuleTaskRow struct {
	ID          uint
	Title       string
	Description string
	TaskType    string
	Options     datatypes.JSON
	Points      int
	IsCompleted bool
}

// CompletionResult reports what RecordCompletion changed.
type CompletionResult struct {
	AlreadyAwarded bool
	PointsAwarded  bool
}

// TaskRepository defines persistence operations for tasks and their completions.
type TaskRepository interface {
	ListByTeacher(ctx context.Context, teacherID uint) ([]TeacherTaskRow, error)
	ListByModuleForStudent(ctx context.Context, moduleID, studentID uint) ([]ModuleTaskRow, error)
	GetByID(ctx context.Context, id uint) (models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	RecordCompletion(ctx context.Context, completion models.CompletedTask) (CompletionResult, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository instantiates a GORM-backed repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]TeacherTaskRow, error) {
	rows := make([]TeacherTaskRow, 0)
	err := r.db.WithContext(ctx).
		Table("tasks AS t").
		Select("t.id, t.title, t.description, t.task_type, t.points, m.title AS module_title, COUNT(ct.id) AS completed_count").
		Joins("JOIN modules m ON t.module_id = m.id").
		Joins("LEFT JOIN completed_tasks ct ON t.id = ct.task_id").
		Where("t.teacher_id = ?", teacherID).
		Group("t.id, m.title").
		Order("t.created_at DESC, t.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list teacher tasks: %w", err)
	}

	return rows, nil
}

func (r *taskRepository) ListByModuleForStudent(ctx context.Context, moduleID, studentID uint) ([]ModuleTaskRow, error) {
	rows := make([]ModuleTaskRow, 0)
	err := r.db.WithContext(ctx).
		Table("tasks AS t").
		Select("t.id, t.title, t.description, t.task_type, t.options, t.points, CASE WHEN ct.id IS NOT NULL THEN TRUE ELSE FALSE END AS is_completed").
		Joins("LEFT JOIN completed_tasks ct ON t.id = ct.task_id AND ct.student_id = ?", studentID).
		Where("t.module_id = ?", moduleID).
		Order("t.created_at ASC, t.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list module tasks: %w", err)
	}

	return rows, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// RecordCompletion upserts the student's answer and credits points for the first correct answer
// of the pair. The awarded flag is claimed with a conditional update and never cleared, so later
// correct answers, concurrent ones included, do not credit the pair again.
func (r *taskRepository) RecordCompletion(ctx context.Context, completion models.CompletedTask) (CompletionResult, error) {
	var result CompletionResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := completion
		row.ID = 0
		row.Awarded = false
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "is_correct", "points_earned", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to upsert completion: %w", err)
		}

		if !completion.IsCorrect {
			return nil
		}

		// The row lock taken by this update lets only one submission claim the award.
		claim := tx.Model(&models.CompletedTask{}).
			Where("task_id = ? AND student_id = ? AND awarded = ?", completion.TaskID, completion.StudentID, false).
			UpdateColumn("awarded", true)
		if claim.Error != nil {
			return fmt.Errorf("failed to claim award: %w", claim.Error)
		}
		if claim.RowsAffected != 1 {
			result.AlreadyAwarded = true
			return nil
		}

		update := tx.Model(&models.User{}).
			Where("id = ?", completion.StudentID).
			UpdateColumn("points", gorm.Expr("points + ?", completion.PointsEarned))
		if update.Error != nil {
			return fmt.Errorf("failed to award points: %w", update.Error)
		}
		result.PointsAwarded = update.RowsAffected > 0

		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	return result, nil
}
