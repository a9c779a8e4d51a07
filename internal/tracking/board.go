package tracking

import "time"

// Snapshot is the normalized result of one fetch. It is never mutated after
// construction, so it can be shared between readers.
type Snapshot struct {
	Variant    Variant
	Assignment *AssignmentInfo
	Rows       []ViewRow
	TakenAt    time.Time
}

// NewSnapshot classifies and maps records for the given variant.
func NewSnapshot(records []Record, variant Variant, opts ...MapperOption) Snapshot {
	mapper := NewMapper(variant.Classifier(), opts...)
	return Snapshot{
		Variant:    variant,
		Assignment: mapper.AssignmentInfo(records),
		Rows:       mapper.Rows(records),
	}
}

// Board is what a tracking page renders: summary cards, the active filter, the
// filtered table and the next value of the cycling control.
type Board struct {
	Variant    Variant         `json:"variant"`
	Assignment *AssignmentInfo `json:"assignment,omitempty"`
	Summary    Counts          `json:"summary"`
	Uncounted  int             `json:"uncounted"`
	Filter     Status          `json:"filter"`
	NextFilter Status          `json:"nextFilter"`
	Cycle      []Status        `json:"cycle"`
	Rows       []ViewRow       `json:"rows"`
	TakenAt    time.Time       `json:"takenAt"`
}

// Board derives the page view for the given filter. Counts always cover every
// row of the snapshot, not only the filtered ones.
func (s Snapshot) Board(filter Status) Board {
	if filter == "" {
		filter = StatusAll
	}

	cycle := s.Variant.Cycle()
	summary := Aggregate(s.Rows)

	return Board{
		Variant:    s.Variant,
		Assignment: s.Assignment,
		Summary:    summary,
		Uncounted:  summary.Uncounted(),
		Filter:     filter,
		NextFilter: cycle.Next(filter),
		Cycle:      cycle.Steps(),
		Rows:       Filter(s.Rows, filter),
		TakenAt:    s.TakenAt,
	}
}
