package dto

import (
	"time"

	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/tracking"
)

// SubmissionCreateRequest describes the multipart payload for submission upload.
// Keywords is always present in the payload, even when empty.
type SubmissionCreateRequest struct {
	AssignmentID uint   `form:"assignment_id" validate:"required,gt=0"`
	StudentID    uint   `form:"student_id" validate:"required,gt=0"`
	IsPublic     bool   `form:"is_public"`
	Keywords     string `form:"keywords" validate:"max=512"`
}

// SubmissionGradeRequest captures payloads for grading submissions.
type SubmissionGradeRequest struct {
	Score    *float64 `json:"score" validate:"required,gte=0"`
	Feedback string   `json:"feedback" validate:"omitempty,max=5000"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID *uint   `query:"assignment_id"`
	StudentID    *uint   `query:"student_id"`
	Status       *string `query:"status" validate:"omitempty,oneof=submitted graded"`
}

// SubmissionResponse is returned to API clients when viewing a submission.
type SubmissionResponse struct {
	ID           uint           `json:"id"`
	AssignmentID uint           `json:"assignment_id"`
	StudentID    uint           `json:"student_id"`
	FileURL      string         `json:"file_url"`
	Keywords     string         `json:"keywords"`
	IsPublic     bool           `json:"is_public"`
	Status       string         `json:"status"`
	Grade        *float64       `json:"grade"`
	Feedback     string         `json:"feedback"`
	GradedBy     *uint          `json:"graded_by"`
	GradedAt     *time.Time     `json:"graded_at"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Assignment   AssignmentLite `json:"assignment"`
	Student      StudentLite    `json:"student"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	DueDate  time.Time `json:"due_date"`
	MaxScore float64   `json:"max_score"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// SubmissionListResponse is the `data` object of the listing endpoint.
type SubmissionListResponse struct {
	Submissions []tracking.Record `json:"submissions"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		FileURL:      model.FileURL,
		Keywords:     model.Keywords,
		IsPublic:     model.IsPublic,
		Status:       model.Status,
		Grade:        model.Grade,
		Feedback:     model.Feedback,
		GradedBy:     model.GradedBy,
		GradedAt:     model.GradedAt,
		SubmittedAt:  model.SubmittedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}

	if model.Assignment.ID != 0 {
		response.Assignment = AssignmentLite{
			ID:       model.Assignment.ID,
			Title:    model.Assignment.Title,
			DueDate:  model.Assignment.DueDate,
			MaxScore: model.Assignment.ScoreCeiling(),
		}
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:   model.Student.ID,
			Name: model.Student.Name,
			Code: model.Student.Code,
		}
	}

	return response
}

// NewSubmissionRecord converts a stored submission into the listing contract.
func NewSubmissionRecord(model models.Submission) tracking.Record {
	id := model.ID
	record := tracking.Record{
		SubmissionID: &id,
		SubmittedAt:  tracking.FormatTimestamp(model.SubmittedAt),
		FileURL:      model.FileURL,
		Status:       explicitStatus(model.Status),
	}

	if model.Student.ID != 0 {
		record.User = newRecordUser(model.Student)
	}
	if model.Assignment.ID != 0 {
		record.Assignment = newAssignmentRef(model.Assignment)
	}

	return record
}

// NewMissingSubmissionRecord builds the record of a student who has not submitted.
func NewMissingSubmissionRecord(student models.Student, assignment models.Assignment) tracking.Record {
	return tracking.Record{
		User:       newRecordUser(student),
		Status:     string(tracking.StatusNotSubmitted),
		Assignment: newAssignmentRef(assignment),
	}
}

// NewSubmissionRecordSlice converts submission models into contract records.
func NewSubmissionRecordSlice(items []models.Submission) []tracking.Record {
	records := make([]tracking.Record, 0, len(items))
	for _, item := range items {
		records = append(records, NewSubmissionRecord(item))
	}
	return records
}

func newRecordUser(student models.Student) *tracking.RecordUser {
	return &tracking.RecordUser{
		ID:          student.ID,
		FullName:    student.Name,
		StudentCode: student.Code,
	}
}

func newAssignmentRef(assignment models.Assignment) *tracking.AssignmentRef {
	return &tracking.AssignmentRef{
		ID:       assignment.ID,
		Title:    assignment.Title,
		Deadline: tracking.FormatTimestamp(assignment.DueDate),
	}
}

func explicitStatus(stored string) string {
	switch stored {
	case models.SubmissionStatusGraded:
		return string(tracking.StatusGraded)
	case models.SubmissionStatusSubmitted:
		return string(tracking.StatusSubmitted)
	default:
		return stored
	}
}
