package models

import "time"

// DefaultMaxScore applies when an assignment does not define its own maximum.
const DefaultMaxScore = 100.0

// Assignment represents an assignment definition with its deadline.
type Assignment struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	ClassName   string       `gorm:"size:64;index" json:"class_name"`
	DueDate     time.Time    `gorm:"not null" json:"due_date"`
	MaxScore    float64      `gorm:"not null;default:100" json:"max_score"`
	FileURL     string       `gorm:"size:512" json:"file_url"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Submissions []Submission `json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// ScoreCeiling returns the maximum score accepted when grading.
func (a Assignment) ScoreCeiling() float64 {
	if a.MaxScore <= 0 {
		return DefaultMaxScore
	}
	return a.MaxScore
}
