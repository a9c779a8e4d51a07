package performance_test

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/tests/testkit"
)

const (
	rosterSize = 120
	iterations = 200
)

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func measure(t *testing.T, client *http.Client, url, token string) []time.Duration {
	t.Helper()

	samples := make([]time.Duration, 0, iterations)
	for i := 0; i < iterations; i++ {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)

		start := time.Now()
		resp, err := client.Do(req)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		samples = append(samples, time.Since(start))
	}
	return samples
}

func TestTrackingBoardLatency(t *testing.T) {
	if testing.Short() {
		t.Skip("performance suite skipped in short mode")
	}

	stack := testkit.New(t, testkit.Options{})
	due := time.Now().UTC().Add(-time.Hour)
	course := testkit.SeedCourse(t, stack.DB, due, rosterSize)
	for i, student := range course.Students {
		if i%3 == 0 {
			continue
		}
		row := models.Submission{
			AssignmentID: course.Assignment.ID,
			StudentID:    student.ID,
			FileURL:      fmt.Sprintf("https://files.test/%d.pdf", student.ID),
			Status:       models.SubmissionStatusSubmitted,
			SubmittedAt:  due.Add(time.Duration(i-rosterSize/2) * time.Minute),
		}
		require.NoError(t, stack.DB.Create(&row).Error)
	}

	baseURL := stack.Serve(t)
	client := &http.Client{Timeout: 5 * time.Second}
	token := testkit.Token(t, 1, "teacher")

	for _, query := range []string{"", "?status=late_submission", "?view=grading&status=not_submitted"} {
		samples := measure(t, client, fmt.Sprintf("%s/api/v2/tutorial/assignments/%d/tracking%s", baseURL, course.Assignment.ID, query), token)
		p95 := percentile(samples, 0.95)
		t.Logf("tracking board%s p95=%s", query, p95)
		require.Less(t, p95, 150*time.Millisecond)
	}
}

func TestNotificationInboxLatency(t *testing.T) {
	if testing.Short() {
		t.Skip("performance suite skipped in short mode")
	}

	stack := testkit.New(t, testkit.Options{})
	for i := 0; i < 100; i++ {
		_, err := stack.Notifications.Publish(t.Context(), dto.NotificationCreateRequest{
			UserID:  "7",
			Title:   "Deadline",
			Type:    "deadline",
			Message: fmt.Sprintf("Reminder %d", i),
		})
		require.NoError(t, err)
	}

	baseURL := stack.Serve(t)
	client := &http.Client{Timeout: 5 * time.Second}
	samples := measure(t, client, baseURL+"/api/v2/notifications?limit=50", testkit.Token(t, 7, "student"))
	p95 := percentile(samples, 0.95)
	t.Logf("notification inbox p95=%s", p95)
	require.Less(t, p95, 100*time.Millisecond)
}
