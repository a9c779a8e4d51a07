package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tracker-api/internal/models"
)

func TestSubmissionRepositoryLatestByStudent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{Title: "Essay", DueDate: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(&assignment).Error)
	other := models.Assignment{Title: "Quiz", DueDate: time.Now().Add(48 * time.Hour)}
	require.NoError(t, db.Create(&other).Error)

	ana := models.Student{Name: "Ana", Code: "S-01", Email: "ana@example.com"}
	budi := models.Student{Name: "Budi", Code: "S-02", Email: "budi@example.com"}
	require.NoError(t, db.Create(&ana).Error)
	require.NoError(t, db.Create(&budi).Error)

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := []models.Submission{
		{AssignmentID: assignment.ID, StudentID: ana.ID, FileURL: "first", Status: models.SubmissionStatusSubmitted, SubmittedAt: base},
		{AssignmentID: assignment.ID, StudentID: ana.ID, FileURL: "second", Status: models.SubmissionStatusSubmitted, SubmittedAt: base.Add(time.Hour)},
		{AssignmentID: other.ID, StudentID: budi.ID, FileURL: "quiz", Status: models.SubmissionStatusSubmitted, SubmittedAt: base},
	}
	for i := range rows {
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}

	latest, err := repo.LatestByStudent(ctx, assignment.ID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, "second", latest[ana.ID].FileURL)
	require.Equal(t, "Ana", latest[ana.ID].Student.Name)
	require.Equal(t, "Essay", latest[ana.ID].Assignment.Title)

	listed, err := repo.List(ctx, SubmissionFilter{AssignmentID: &assignment.ID})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "second", listed[0].FileURL)

	status := models.SubmissionStatusGraded
	listed, err = repo.List(ctx, SubmissionFilter{Status: &status})
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestSubmissionRepositoryUpdateKeepsKeywords(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{Title: "Essay", DueDate: time.Now()}
	require.NoError(t, db.Create(&assignment).Error)
	student := models.Student{Name: "Ana", Code: "S-01", Email: "ana@example.com"}
	require.NoError(t, db.Create(&student).Error)

	submission := models.Submission{AssignmentID: assignment.ID, StudentID: student.ID, Keywords: "", Status: models.SubmissionStatusSubmitted, SubmittedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, &submission))

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, "", stored.Keywords)

	grade := 88.0
	stored.Grade = &grade
	stored.Status = models.SubmissionStatusGraded
	require.NoError(t, repo.Update(ctx, &stored))

	reloaded, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.True(t, reloaded.IsGraded())
	require.Equal(t, 88.0, *reloaded.Grade)
}

func TestStudentRepositoryListByClass(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)

	require.NoError(t, db.Create(&models.Student{Name: "Zed", Code: "S-10", Email: "zed@example.com", ClassName: "XI-A"}).Error)
	require.NoError(t, db.Create(&models.Student{Name: "Ana", Code: "S-11", Email: "ana@example.com", ClassName: "XI-A"}).Error)
	require.NoError(t, db.Create(&models.Student{Name: "Budi", Code: "S-12", Email: "budi@example.com", ClassName: "XI-B"}).Error)

	students, err := repo.ListByClass(context.Background(), "XI-A")
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.Equal(t, "Ana", students[0].Name)

	all, err := repo.ListByClass(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}
