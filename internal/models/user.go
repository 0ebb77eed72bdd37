package models

import "time"

// User is a teacher or student account carrying a cumulative points balance.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Points    int       `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Module groups tasks under a title.
type Module struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
