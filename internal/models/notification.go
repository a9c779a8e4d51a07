package models

import "time"

// Notification types understood by the front-end.
const (
	NotificationTypeSubmission   = "submission"
	NotificationTypeGrade        = "grade"
	NotificationTypeDeadline     = "deadline"
	NotificationTypeAnnouncement = "announcement"
	NotificationTypeSystem       = "system"
)

// Notification represents a message targeted to a specific user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
