// Package export renders tracking boards as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/gema-tracker-api/internal/tracking"
)

const (
	// ContentType is the MIME type of generated workbooks.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	RowsSheet    = "Submissions"
	SummarySheet = "Summary"
)

var rowsHeader = []interface{}{"Student", "Student Code", "Status", "Submitted At", "File", "Submission ID"}

// Workbook writes the rows of board to one sheet and its counts to another.
func Workbook(board tracking.Board) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), RowsSheet); err != nil {
		return nil, fmt.Errorf("failed to name rows sheet: %w", err)
	}
	if err := file.SetSheetRow(RowsSheet, "A1", &rowsHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range board.Rows {
		submissionID := ""
		if row.SubmissionID != nil {
			submissionID = fmt.Sprintf("%d", *row.SubmissionID)
		}
		values := []interface{}{
			row.StudentName,
			row.StudentCode,
			string(row.DerivedStatus),
			row.FormattedSubmitTime,
			row.FileRef,
			submissionID,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := file.SetSheetRow(RowsSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := file.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	title, deadline := tracking.NotAvailable, tracking.MissingTime
	if board.Assignment != nil {
		title, deadline = board.Assignment.Title, board.Assignment.Deadline
	}

	summary := [][]interface{}{
		{"Assignment", title},
		{"Deadline", deadline},
		{"View", string(board.Variant)},
		{"Total", board.Summary.Total},
		{string(tracking.StatusSubmitted), board.Summary.Submitted},
		{string(tracking.StatusNotSubmitted), board.Summary.NotSubmitted},
	}
	if board.Variant == tracking.VariantGrading {
		summary = append(summary, []interface{}{string(tracking.StatusGraded), board.Summary.Graded})
	} else {
		summary = append(summary, []interface{}{string(tracking.StatusLate), board.Summary.Late})
	}
	if board.Uncounted > 0 {
		summary = append(summary, []interface{}{"Other", board.Uncounted})
	}

	for i, line := range summary {
		values := line
		if err := file.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &values); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName builds the download name of an assignment export.
func FileName(assignmentID uint, variant tracking.Variant) string {
	return fmt.Sprintf("assignment-%d-%s.xlsx", assignmentID, strings.ToLower(string(variant)))
}
