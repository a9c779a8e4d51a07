package dto

import (
	"time"

	"github.com/noah-isme/gema-tracker-api/internal/models"
)

// AssignmentCreateRequest captures metadata for creating assignments.
type AssignmentCreateRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=255"`
	Description string  `json:"description" validate:"omitempty,min=5"`
	ClassName   string  `json:"class_name" validate:"omitempty,max=64"`
	DueDate     string  `json:"due_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	MaxScore    float64 `json:"max_score" validate:"omitempty,gt=0"`
	FileURL     string  `json:"file_url" validate:"omitempty,url"`
}

// AssignmentUpdateRequest patches assignment metadata. Nil fields are left untouched.
type AssignmentUpdateRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string  `json:"description" validate:"omitempty,min=5"`
	ClassName   *string  `json:"class_name" validate:"omitempty,max=64"`
	DueDate     *string  `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	MaxScore    *float64 `json:"max_score" validate:"omitempty,gt=0"`
	FileURL     *string  `json:"file_url" validate:"omitempty,url"`
}

// AssignmentResponse serializes an assignment for staff clients.
type AssignmentResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ClassName   string    `json:"class_name"`
	DueDate     time.Time `json:"due_date"`
	PastDue     bool      `json:"past_due"`
	MaxScore    float64   `json:"max_score"`
	FileURL     string    `json:"file_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAssignmentResponse converts a model into a DTO relative to now.
func NewAssignmentResponse(model models.Assignment, now time.Time) AssignmentResponse {
	return AssignmentResponse{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		ClassName:   model.ClassName,
		DueDate:     model.DueDate,
		PastDue:     model.IsPastDue(now),
		MaxScore:    model.ScoreCeiling(),
		FileURL:     model.FileURL,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment, now time.Time) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment, now))
	}
	return responses
}
