package dto

import (
	"time"

	"github.com/noah-isme/gema-tracker-api/internal/models"
)

// StudentCreateRequest registers a student on the roster.
type StudentCreateRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Code      string `json:"code" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email"`
	ClassName string `json:"class_name" validate:"omitempty,max=64"`
}

// StudentListRequest captures roster listing filters.
type StudentListRequest struct {
	Page      int
	PageSize  int
	ClassName string
	Search    string
}

// StudentResponse serializes a roster entry.
type StudentResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	ClassName string    `json:"class_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StudentListResponse is the `data` object of the roster listing.
type StudentListResponse struct {
	Items      []StudentResponse  `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewStudentResponse converts a model into a DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		ID:        model.ID,
		Name:      model.Name,
		Code:      model.Code,
		Email:     model.Email,
		ClassName: model.ClassName,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
