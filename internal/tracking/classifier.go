package tracking

import (
	"errors"
	"fmt"
	"strings"
)

// Classifier derives the display status of a record. Implementations must be
// pure: the same record always yields the same status.
type Classifier interface {
	Classify(record Record) Status
}

// TimestampClassifier derives the status from the submission time and deadline.
// It backs the plain submission-tracking view.
type TimestampClassifier struct{}

// Classify implements Classifier.
func (TimestampClassifier) Classify(record Record) Status {
	submitted := record.submittedAt()
	if submitted == "" {
		return StatusNotSubmitted
	}

	submittedAt, ok := ParseTimestamp(submitted)
	if !ok {
		return StatusSubmitted
	}
	deadline, ok := ParseTimestamp(record.deadline())
	if !ok {
		return StatusSubmitted
	}

	if submittedAt.After(deadline) {
		return StatusLate
	}
	return StatusSubmitted
}

// ExplicitClassifier trusts the status field supplied with the record. It
// backs the grading view, where the server already knows whether a
// submission was graded. Lateness is not derived here.
type ExplicitClassifier struct{}

var explicitStatuses = map[string]Status{
	"submitted":     StatusSubmitted,
	"graded":        StatusGraded,
	"not submitted": StatusNotSubmitted,
}

// Classify implements Classifier.
func (ExplicitClassifier) Classify(record Record) Status {
	raw := strings.TrimSpace(record.Status)
	if raw == "" {
		if record.submittedAt() == "" {
			return StatusNotSubmitted
		}
		return StatusSubmitted
	}

	if status, ok := explicitStatuses[normalizeToken(raw)]; ok {
		return status
	}
	return Status(raw)
}

// Variant names the page context a board is built for.
type Variant string

const (
	// VariantSubmission is the submission-tracking page.
	VariantSubmission Variant = "submission"
	// VariantGrading is the grading-tracking page.
	VariantGrading Variant = "grading"
)

// ErrUnknownVariant is returned for unsupported view names.
var ErrUnknownVariant = errors.New("unknown view")

// ParseVariant resolves a view name. An empty value selects VariantSubmission.
func ParseVariant(value string) (Variant, error) {
	switch normalizeToken(value) {
	case "", string(VariantSubmission), "submissions":
		return VariantSubmission, nil
	case string(VariantGrading):
		return VariantGrading, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, value)
	}
}

// Classifier returns the classification strategy of the variant.
func (v Variant) Classifier() Classifier {
	if v == VariantGrading {
		return ExplicitClassifier{}
	}
	return TimestampClassifier{}
}

// Cycle returns the filter cycle of the variant.
func (v Variant) Cycle() Cycle {
	if v == VariantGrading {
		return GradingCycle
	}
	return SubmissionCycle
}
