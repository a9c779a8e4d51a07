package tracking

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a display-facing submission classification.
type Status string

const (
	// StatusAll is the pass-through filter value. It is never a row status.
	StatusAll Status = "All"
	// StatusSubmitted marks a submission received on time.
	StatusSubmitted Status = "Submitted"
	// StatusNotSubmitted marks a student without a submission.
	StatusNotSubmitted Status = "Not Submitted"
	// StatusLate marks a submission received after the deadline.
	StatusLate Status = "Late Submission"
	// StatusGraded marks a submission that has been evaluated.
	StatusGraded Status = "Graded"
)

// Style tags consumed by the front-end to color status badges.
const (
	StyleSuccess = "success"
	StyleWarning = "warning"
	StyleDanger  = "danger"
	StyleInfo    = "info"
	StyleDefault = "default"
)

// ErrUnknownStatus is returned when a filter value does not name a known status.
var ErrUnknownStatus = errors.New("unknown status")

var styleTags = map[Status]string{
	StatusSubmitted:    StyleSuccess,
	StatusLate:         StyleWarning,
	StatusNotSubmitted: StyleDanger,
	StatusGraded:       StyleInfo,
}

var knownStatuses = map[string]Status{
	"all":             StatusAll,
	"submitted":       StatusSubmitted,
	"not submitted":   StatusNotSubmitted,
	"late submission": StatusLate,
	"late":            StatusLate,
	"graded":          StatusGraded,
}

// StyleTag returns the badge style for a status, falling back to StyleDefault.
func StyleTag(status Status) string {
	if tag, ok := styleTags[status]; ok {
		return tag
	}
	return StyleDefault
}

// ParseStatus resolves a filter value given either as a label ("Late Submission")
// or as a slug ("late_submission"). An empty value selects StatusAll.
func ParseStatus(value string) (Status, error) {
	token := normalizeToken(value)
	if token == "" {
		return StatusAll, nil
	}

	status, ok := knownStatuses[token]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
	return status, nil
}

// Slug returns the URL-friendly form of the status.
func (s Status) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "_")
}

func normalizeToken(value string) string {
	replaced := strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(value))
	return strings.Join(strings.Fields(replaced), " ")
}
