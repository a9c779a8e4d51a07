package tracking

import (
	"strings"
	"time"
)

const (
	// NotAvailable replaces missing identity fields.
	NotAvailable = "N/A"
	// MissingTime replaces absent or unparseable timestamps.
	MissingTime = "--"
	// DefaultTimeLayout is the display layout for timestamps.
	DefaultTimeLayout = "02/01/2006 15:04"
)

// ViewRow is the presentation-ready shape of a record.
type ViewRow struct {
	StudentName         string `json:"studentName"`
	StudentCode         string `json:"studentCode"`
	DerivedStatus       Status `json:"derivedStatus"`
	StatusStyleTag      string `json:"statusStyleTag"`
	FormattedSubmitTime string `json:"formattedSubmitTime"`
	FileRef             string `json:"fileRef"`
	HasDetail           bool   `json:"hasDetail"`
	SubmissionID        *uint  `json:"submissionId"`
}

// AssignmentInfo is the header data of a board.
type AssignmentInfo struct {
	ID       uint   `json:"id,omitempty"`
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
}

// Mapper turns records into view rows.
type Mapper struct {
	classifier Classifier
	location   *time.Location
	layout     string
}

// MapperOption customises a Mapper.
type MapperOption func(*Mapper)

// WithLocation renders timestamps in loc.
func WithLocation(loc *time.Location) MapperOption {
	return func(m *Mapper) {
		if loc != nil {
			m.location = loc
		}
	}
}

// WithTimeLayout overrides DefaultTimeLayout.
func WithTimeLayout(layout string) MapperOption {
	return func(m *Mapper) {
		if strings.TrimSpace(layout) != "" {
			m.layout = layout
		}
	}
}

// NewMapper builds a mapper around the given classification strategy.
func NewMapper(classifier Classifier, opts ...MapperOption) Mapper {
	if classifier == nil {
		classifier = TimestampClassifier{}
	}
	m := Mapper{
		classifier: classifier,
		location:   time.UTC,
		layout:     DefaultTimeLayout,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Rows maps records one-to-one, preserving order.
func (m Mapper) Rows(records []Record) []ViewRow {
	rows := make([]ViewRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, m.Row(record))
	}
	return rows
}

// Row maps a single record.
func (m Mapper) Row(record Record) ViewRow {
	status := m.classifier.Classify(record)

	row := ViewRow{
		StudentName:         NotAvailable,
		StudentCode:         NotAvailable,
		DerivedStatus:       status,
		StatusStyleTag:      StyleTag(status),
		FormattedSubmitTime: m.formatTime(record.submittedAt()),
		FileRef:             strings.TrimSpace(record.FileURL),
		HasDetail:           record.HasSubmissionID(),
	}

	if record.User != nil {
		row.StudentName = orNotAvailable(record.User.FullName)
		row.StudentCode = orNotAvailable(record.User.StudentCode)
	}

	if row.HasDetail {
		id := *record.SubmissionID
		row.SubmissionID = &id
	}

	return row
}

// AssignmentInfo reads the header from the first record. All records of a
// fetch belong to the same assignment.
func (m Mapper) AssignmentInfo(records []Record) *AssignmentInfo {
	if len(records) == 0 || records[0].Assignment == nil {
		return nil
	}

	ref := records[0].Assignment
	return &AssignmentInfo{
		ID:       ref.ID,
		Title:    ref.Title,
		Deadline: m.formatTime(trimmed(ref.Deadline)),
	}
}

func (m Mapper) formatTime(raw string) string {
	parsed, ok := ParseTimestamp(raw)
	if !ok {
		return MissingTime
	}
	return parsed.In(m.location).Format(m.layout)
}

func orNotAvailable(value string) string {
	if strings.TrimSpace(value) == "" {
		return NotAvailable
	}
	return value
}
