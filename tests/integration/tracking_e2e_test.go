package integration_test

import (
	"bytes"
	"encoding/json"
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
	"github.com/noah-isme/gema-tracker-api/internal/tracking"
	"github.com/noah-isme/gema-tracker-api/tests/testkit"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decode(t *testing.T, resp *http.Response, out interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	if out != nil {
		require.NoError(t, json.Unmarshal(body.Data, out))
	}
	return body
}

func upload(t *testing.T, assignmentID, studentID uint, name string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("assignment_id", strconv.FormatUint(uint64(assignmentID), 10)))
	require.NoError(t, writer.WriteField("student_id", strconv.FormatUint(uint64(studentID), 10)))
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte("report body for " + name))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/tutorial/submissions", body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func board(t *testing.T, stack *testkit.Stack, token string, assignmentID uint, query string) tracking.Board {
	t.Helper()

	path := fmt.Sprintf("/api/v2/tutorial/assignments/%d/tracking%s", assignmentID, query)
	resp := stack.Do(t, httptest.NewRequest(http.MethodGet, path, nil), token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out tracking.Board
	decode(t, resp, &out)
	return out
}

func TestSubmissionLifecycleEndToEnd(t *testing.T) {
	stack := testkit.New(t, testkit.Options{})
	course := testkit.SeedCourse(t, stack.DB, time.Now().UTC().Add(48*time.Hour), 3)
	teacher := testkit.Token(t, 900, "teacher")
	first, second := course.Students[0], course.Students[1]

	initial := board(t, stack, teacher, course.Assignment.ID, "")
	require.Equal(t, tracking.Counts{Total: 3, NotSubmitted: 3}, initial.Summary)

	for _, student := range []struct {
		id   uint
		file string
	}{{first.ID, "first.pdf"}, {second.ID, "second.pdf"}} {
		resp := stack.Do(t, upload(t, course.Assignment.ID, student.id, student.file), testkit.Token(t, student.id, "student"))
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
	require.ElementsMatch(t, []string{"first.pdf", "second.pdf"}, stack.Uploader.Names)

	// uploads invalidate the cached snapshot
	afterUpload := board(t, stack, teacher, course.Assignment.ID, "")
	require.Equal(t, tracking.Counts{Total: 3, Submitted: 2, NotSubmitted: 1}, afterUpload.Summary)

	submitted := board(t, stack, teacher, course.Assignment.ID, "?status=submitted")
	require.Len(t, submitted.Rows, 2)
	require.Equal(t, tracking.StatusNotSubmitted, submitted.NextFilter)
	for _, row := range submitted.Rows {
		require.True(t, row.HasDetail)
		require.NotNil(t, row.SubmissionID)
		require.Equal(t, tracking.StyleSuccess, row.StatusStyleTag)
	}

	var target uint
	for _, row := range submitted.Rows {
		if row.StudentCode == first.Code {
			target = *row.SubmissionID
		}
	}
	require.NotZero(t, target)

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/v2/tutorial/submissions/%d/grade", target), strings.NewReader(`{"score": 84, "feedback": "solid work"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp := stack.Do(t, req, teacher)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	grading := board(t, stack, teacher, course.Assignment.ID, "?view=grading")
	require.Equal(t, tracking.Counts{Total: 3, Submitted: 1, NotSubmitted: 1, Graded: 1}, grading.Summary)

	graded := board(t, stack, teacher, course.Assignment.ID, "?view=grading&status=graded")
	require.Len(t, graded.Rows, 1)
	require.Equal(t, first.Name, graded.Rows[0].StudentName)
	require.Equal(t, tracking.StyleInfo, graded.Rows[0].StatusStyleTag)
	require.Equal(t, tracking.StatusAll, graded.NextFilter)

	var inbox dto.NotificationListResponse
	resp = stack.Do(t, httptest.NewRequest(http.MethodGet, "/api/v2/notifications", nil), testkit.Token(t, first.ID, "student"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &inbox)
	require.EqualValues(t, 2, inbox.Unread)

	var feed dto.ActivityFeedResponse
	resp = stack.Do(t, httptest.NewRequest(http.MethodGet, "/api/v2/activity", nil), teacher)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &feed)
	require.Len(t, feed.Items, 1)
}
