package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a request identifier. It decodes from a JSON number or from a string of digits,
// which is how form-bound clients send it.
type ID uint

// UnmarshalJSON accepts 12 and "12". Signs, fractions and blank strings are rejected.
func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		raw = text
	}

	value, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil {
		return fmt.Errorf("invalid identifier %s", data)
	}

	*id = ID(value)
	return nil
}

// Uint returns the identifier as stored in the database.
func (id ID) Uint() uint {
	return uint(id)
}

// TaskCreateRequest describes the payload a teacher sends to create a task.
type TaskCreateRequest struct {
	ModuleID      ID              `json:"module_id" validate:"required,gt=0"`
	TeacherID     ID              `json:"teacher_id" validate:"required,gt=0"`
	Title         string          `json:"title" validate:"required,max=255"`
	Description   string          `json:"description"`
	TaskType      string          `json:"task_type" validate:"required,oneof=choice text number"`
	CorrectAnswer string          `json:"correct_answer" validate:"required"`
	Options       json.RawMessage `json:"options"`
	Points        *int            `json:"points" validate:"omitempty,gte=0"`
}

// HasOptions reports whether a non-null options value was supplied.
func (r TaskCreateRequest) HasOptions() bool {
	trimmed := strings.TrimSpace(string(r.Options))
	return trimmed != "" && trimmed != "null"
}

// TaskSubmitRequest describes a student's answer submission.
type TaskSubmitRequest struct {
	TaskID    ID      `json:"task_id" validate:"required,gt=0"`
	StudentID ID      `json:"student_id" validate:"required,gt=0"`
	Answer    *string `json:"answer" validate:"required"`
}

// TeacherTaskResponse summarizes a task in the teacher's overview.
type TeacherTaskResponse struct {
	ID             uint   `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	TaskType       string `json:"task_type"`
	Points         int    `json:"points"`
	ModuleTitle    string `json:"module_title"`
	CompletedCount int64  `json:"completed_count"`
}

// ModuleTaskResponse is a task as shown to a student inside a module.
type ModuleTaskResponse struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	TaskType    string          `json:"task_type"`
	Options     json.RawMessage `json:"options"`
	Points      int             `json:"points"`
	IsCompleted bool            `json:"is_completed"`
}

// TeacherTaskListResponse wraps the teacher overview.
type TeacherTaskListResponse struct {
	Tasks []TeacherTaskResponse `json:"tasks"`
}

// ModuleTaskListResponse wraps the student module listing.
type ModuleTaskListResponse struct {
	Tasks []ModuleTaskResponse `json:"tasks"`
}

// TaskCreateResponse is returned after a task was stored.
type TaskCreateResponse struct {
	TaskID  uint   `json:"task_id"`
	Message string `json:"message"`
}

// TaskSubmitResponse carries the grading outcome.
type TaskSubmitResponse struct {
	IsCorrect    bool `json:"is_correct"`
	PointsEarned int  `json:"points_earned"`
}
