package models

import "time"

// CompletedTask records a student's latest answer for a task. Awarded latches once points
// were credited for the pair and is never cleared by later submissions.
type CompletedTask struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TaskID       uint      `gorm:"not null;uniqueIndex:idx_completed_task_student" json:"task_id"`
	StudentID    uint      `gorm:"not null;uniqueIndex:idx_completed_task_student" json:"student_id"`
	Answer       string    `gorm:"type:text" json:"answer"`
	IsCorrect    bool      `gorm:"not null;default:false" json:"is_correct"`
	PointsEarned int       `gorm:"not null;default:0" json:"points_earned"`
	Awarded      bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Task         Task      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
