package tracking

// Counts is the fixed-shape summary of a row list. Rows whose status is not one
// of the buckets are only reflected in Total.
type Counts struct {
	Total        int `json:"total"`
	Submitted    int `json:"submitted"`
	Late         int `json:"late"`
	NotSubmitted int `json:"notSubmitted"`
	Graded       int `json:"graded"`
}

// Aggregate counts rows per status bucket.
func Aggregate(rows []ViewRow) Counts {
	return Counts{
		Total:        len(rows),
		Submitted:    len(Filter(rows, StatusSubmitted)),
		Late:         len(Filter(rows, StatusLate)),
		NotSubmitted: len(Filter(rows, StatusNotSubmitted)),
		Graded:       len(Filter(rows, StatusGraded)),
	}
}

// Uncounted returns how many rows fell outside every bucket.
func (c Counts) Uncounted() int {
	return c.Total - (c.Submitted + c.Late + c.NotSubmitted + c.Graded)
}

// Filter keeps the rows whose derived status equals status, in order.
// StatusAll returns rows unchanged.
func Filter(rows []ViewRow, status Status) []ViewRow {
	if status == StatusAll || status == "" {
		if rows == nil {
			return []ViewRow{}
		}
		return rows
	}

	filtered := make([]ViewRow, 0, len(rows))
	for _, row := range rows {
		if row.DerivedStatus == status {
			filtered = append(filtered, row)
		}
	}
	return filtered
}
