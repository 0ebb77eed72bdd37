package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Task types accepted by the API.
const (
	TaskTypeChoice = "choice"
	TaskTypeText   = "text"
	TaskTypeNumber = "number"
)

// DefaultTaskPoints is awarded when a task is created without an explicit value.
const DefaultTaskPoints = 10

// Task is a gradable unit with one correct answer and a point value.
type Task struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ModuleID      uint           `gorm:"not null;index" json:"module_id"`
	TeacherID     uint           `gorm:"not null;index" json:"teacher_id"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	Description   string         `gorm:"type:text" json:"description"`
	TaskType      string         `gorm:"size:32;not null" json:"task_type"`
	CorrectAnswer string         `gorm:"type:text;not null" json:"-"`
	Options       datatypes.JSON `gorm:"type:json" json:"options"`
	Points        int            `gorm:"not null;default:10" json:"points"`
	CreatedAt     time.Time      `json:"created_at"`
	Module        Module         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// OptionsValue decodes the stored options, returning nil when none were set.
func (t Task) OptionsValue() interface{} {
	if len(t.Options) == 0 || string(t.Options) == "null" {
		return nil
	}

	var value interface{}
	if err := json.Unmarshal(t.Options, &value); err != nil {
		return nil
	}
	return value
}
