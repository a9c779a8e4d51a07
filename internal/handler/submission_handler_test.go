package handler_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/models"
)

type uploadForm struct {
	assignmentID uint
	studentID    uint
	keywords     *string
	fileName     string
	content      []byte
}

func uploadRequest(t *testing.T, form uploadForm) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("assignment_id", strconv.FormatUint(uint64(form.assignmentID), 10)))
	require.NoError(t, writer.WriteField("student_id", strconv.FormatUint(uint64(form.studentID), 10)))
	if form.keywords != nil {
		require.NoError(t, writer.WriteField("keywords", *form.keywords))
	}
	if form.fileName != "" {
		part, err := writer.CreateFormFile("file", form.fileName)
		require.NoError(t, err)
		_, err = part.Write(form.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/tutorial/submissions", body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func gradeRequest(id uint, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/v2/tutorial/submissions/%d/grade", id), strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func TestSubmissionHandlerCreateAndGrade(t *testing.T) {
	env := newTestEnv(t)
	c := seedCourse(t, env.db, time.Now().Add(24*time.Hour))
	ani, budi := c.students[0], c.students[1]
	aniToken := tokenFor(t, ani.ID, "student")
	teacherToken := tokenFor(t, 900, "teacher")

	empty := ""
	resp := env.do(t, uploadRequest(t, uploadForm{
		assignmentID: c.assignment.ID,
		studentID:    ani.ID,
		keywords:     &empty,
		fileName:     "essay.txt",
		content:      []byte("my final essay"),
	}), aniToken)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created dto.SubmissionResponse
	body := decodeEnvelope(t, resp, &created)
	require.True(t, body.Success)
	require.Equal(t, "submission created", body.Message)
	require.Equal(t, "https://files.test/essay.txt", created.FileURL)
	require.Equal(t, "", created.Keywords)
	require.Equal(t, models.SubmissionStatusSubmitted, created.Status)
	require.Equal(t, c.assignment.Title, created.Assignment.Title)

	detailPath := fmt.Sprintf("/api/v2/tutorial/submissions/%d", created.ID)
	resp = env.get(t, detailPath, aniToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, detailPath, tokenFor(t, budi.ID, "student"))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, gradeRequest(created.ID, `{"score": 90}`), aniToken)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, gradeRequest(created.ID, `{"score": 150}`), teacherToken)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, gradeRequest(created.ID, `{}`), teacherToken)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	invalid := decodeEnvelope(t, resp, nil)
	require.Equal(t, "required", invalid.Details["score"])

	resp = env.do(t, gradeRequest(created.ID, `{"score": 90, "feedback": "  Rapi dan lengkap  "}`), teacherToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var graded dto.SubmissionResponse
	decodeEnvelope(t, resp, &graded)
	require.Equal(t, models.SubmissionStatusGraded, graded.Status)
	require.NotNil(t, graded.Grade)
	require.InDelta(t, 90.0, *graded.Grade, 1e-9)
	require.Equal(t, "Rapi dan lengkap", graded.Feedback)
	require.NotNil(t, graded.GradedBy)
	require.Equal(t, uint(900), *graded.GradedBy)

	resp = env.get(t, "/api/v2/notifications", aniToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var inbox dto.NotificationListResponse
	decodeEnvelope(t, resp, &inbox)
	require.EqualValues(t, 2, inbox.Unread)
	require.Len(t, inbox.Notifications, 2)

	resp = env.get(t, "/api/v2/activity", teacherToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var feed dto.ActivityFeedResponse
	decodeEnvelope(t, resp, &feed)
	require.Len(t, feed.Items, 1)
	require.Equal(t, "submission.graded", feed.Items[0].Action)
	require.Equal(t, uint(900), feed.Items[0].ActorID)
}

func TestSubmissionHandlerRejectsInvalidUploads(t *testing.T) {
	env := newTestEnv(t)
	c := seedCourse(t, env.db, time.Now().Add(time.Hour))
	ani, budi := c.students[0], c.students[1]
	aniToken := tokenFor(t, ani.ID, "student")

	cases := []struct {
		name   string
		form   uploadForm
		token  string
		status int
	}{
		{
			name:   "other student",
			form:   uploadForm{assignmentID: c.assignment.ID, studentID: budi.ID, fileName: "essay.txt", content: []byte("text")},
			token:  aniToken,
			status: fiber.StatusForbidden,
		},
		{
			name:   "missing file",
			form:   uploadForm{assignmentID: c.assignment.ID, studentID: ani.ID},
			token:  aniToken,
			status: fiber.StatusBadRequest,
		},
		{
			name:   "image",
			form:   uploadForm{assignmentID: c.assignment.ID, studentID: ani.ID, fileName: "photo.png", content: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")},
			token:  aniToken,
			status: fiber.StatusUnsupportedMediaType,
		},
		{
			name:   "too large",
			form:   uploadForm{assignmentID: c.assignment.ID, studentID: ani.ID, fileName: "big.txt", content: bytes.Repeat([]byte("a"), 2*1024*1024)},
			token:  aniToken,
			status: fiber.StatusRequestEntityTooLarge,
		},
		{
			name:   "unknown assignment",
			form:   uploadForm{assignmentID: 999, studentID: ani.ID, fileName: "essay.txt", content: []byte("text")},
			token:  aniToken,
			status: fiber.StatusNotFound,
		},
		{
			name:   "no token",
			form:   uploadForm{assignmentID: c.assignment.ID, studentID: ani.ID, fileName: "essay.txt", content: []byte("text")},
			status: fiber.StatusUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.do(t, uploadRequest(t, tc.form), tc.token)
			require.Equal(t, tc.status, resp.StatusCode)
			body := decodeEnvelope(t, resp, nil)
			require.False(t, body.Success)
		})
	}

	require.Empty(t, env.uploader.names)
}

func TestSubmissionHandlerListScopesStudents(t *testing.T) {
	env := newTestEnv(t)
	c := seedCourse(t, env.db, time.Now().Add(time.Hour))

	for _, student := range c.students[:2] {
		require.NoError(t, env.db.Create(&models.Submission{
			AssignmentID: c.assignment.ID,
			StudentID:    student.ID,
			FileURL:      "https://files.test/" + student.Code,
			Status:       models.SubmissionStatusSubmitted,
			SubmittedAt:  time.Now().UTC(),
		}).Error)
	}

	path := fmt.Sprintf("/api/v2/tutorial/submissions?assignment_id=%d", c.assignment.ID)

	resp := env.get(t, path, tokenFor(t, 1, "admin"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var all dto.SubmissionListResponse
	decodeEnvelope(t, resp, &all)
	require.Len(t, all.Submissions, 2)

	resp = env.get(t, path, tokenFor(t, c.students[1].ID, "student"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var own dto.SubmissionListResponse
	decodeEnvelope(t, resp, &own)
	require.Len(t, own.Submissions, 1)
	require.NotNil(t, own.Submissions[0].User)
	require.Equal(t, "Budi", own.Submissions[0].User.FullName)
	require.Equal(t, "S-002", own.Submissions[0].User.StudentCode)

	resp = env.get(t, "/api/v2/tutorial/submissions?status=draft", tokenFor(t, 1, "admin"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/v2/tutorial/submissions/abc", tokenFor(t, 1, "admin"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
