package tracking

import (
	"strings"
	"time"
)

// Record is one element of the `data.submissions` collection returned by the
// submission listing endpoint. Timestamps are kept as received so that a
// malformed value degrades at display time instead of failing the decode.
type Record struct {
	SubmissionID *uint          `json:"submissionId,omitempty"`
	User         *RecordUser    `json:"user,omitempty"`
	SubmittedAt  *string        `json:"submittedAt,omitempty"`
	FileURL      string         `json:"fileUrl,omitempty"`
	Status       string         `json:"status,omitempty"`
	Deadline     *string        `json:"deadline,omitempty"`
	Assignment   *AssignmentRef `json:"assignment,omitempty"`
}

// RecordUser carries the identity of the student owning the record.
type RecordUser struct {
	ID          uint   `json:"id,omitempty"`
	FullName    string `json:"fullName"`
	StudentCode string `json:"studentCode"`
}

// AssignmentRef is the nested assignment object of a record.
type AssignmentRef struct {
	ID       uint    `json:"id,omitempty"`
	Title    string  `json:"title"`
	Deadline *string `json:"deadline,omitempty"`
}

// HasSubmissionID reports whether the record references a stored submission.
// Zero is not a valid identifier.
func (r Record) HasSubmissionID() bool {
	return r.SubmissionID != nil && *r.SubmissionID != 0
}

func (r Record) submittedAt() string {
	return trimmed(r.SubmittedAt)
}

// deadline prefers the record's own deadline over the inherited assignment one.
func (r Record) deadline() string {
	if own := trimmed(r.Deadline); own != "" {
		return own
	}
	if r.Assignment != nil {
		return trimmed(r.Assignment.Deadline)
	}
	return ""
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts the timestamp shapes emitted by the platform API.
// Values without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t in the record wire format.
func FormatTimestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
