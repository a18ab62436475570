package models

import "time"

// Student represents a learner whose daily attendance is tracked.
type Student struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	RollNumber string    `gorm:"size:32;uniqueIndex;not null" json:"roll_number"`
	Email      string    `gorm:"size:255" json:"email"`
	Phone      string    `gorm:"size:16" json:"phone"`
	Department string    `gorm:"size:128;index" json:"department"`
	Year       int       `json:"year"`
	Active     bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
