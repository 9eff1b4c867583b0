// Package export renders screened-candidate reports as XLSX workbooks for
// the recruiters who work outside the chat pipeline.
package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hirelinehq/hireline/internal/store"
)

const (
	summarySheet    = "Summary"
	candidatesSheet = "Candidates"
)

// CandidatesToExcel writes the candidate pipeline report to outputPath:
// a summary sheet with per-status counts and a candidate sheet sorted by
// screening score, best first.
func CandidatesToExcel(records []store.CandidateRecord, outputPath string) error {
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath += ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(candidatesSheet); err != nil {
		return fmt.Errorf("create candidates sheet: %w", err)
	}

	if err := writeSummary(f, records); err != nil {
		return fmt.Errorf("write summary sheet: %w", err)
	}
	if err := writeCandidates(f, records); err != nil {
		return fmt.Errorf("write candidates sheet: %w", err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		// Some network mounts reject excelize's direct save; go through a
		// buffer before giving up.
		var buf bytes.Buffer
		if writeErr := f.Write(&buf); writeErr != nil {
			return fmt.Errorf("save report: %v: %w", err, writeErr)
		}
		if fileErr := os.WriteFile(outputPath, buf.Bytes(), 0o644); fileErr != nil {
			return fmt.Errorf("save report: %v: %w", err, fileErr)
		}
	}
	return nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
}

func writeSummary(f *excelize.File, records []store.CandidateRecord) error {
	f.SetColWidth(summarySheet, "A", "A", 28)
	f.SetColWidth(summarySheet, "B", "B", 40)

	header, err := headerStyle(f)
	if err != nil {
		return err
	}

	f.SetCellValue(summarySheet, "A1", "Candidate Pipeline Report")
	f.SetCellStyle(summarySheet, "A1", "B1", header)
	f.MergeCell(summarySheet, "A1", "B1")

	byCategory := map[string]int{}
	screened := 0
	for _, rec := range records {
		if rec.Screened() {
			screened++
			byCategory[rec.AICategory]++
		}
	}

	rows := [][2]any{
		{"Generated", time.Now().Format("2006-01-02 15:04:05")},
		{"Total candidates", len(records)},
		{"Screened", screened},
		{"Top Candidate", byCategory["Top Candidate"]},
		{"Review", byCategory["Review"]},
		{"Rejected", byCategory["Rejected"]},
	}
	for i, row := range rows {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}
	return nil
}

var candidateColumns = []string{
	"Rank", "Name", "Platform", "Applied Role", "Score", "Category",
	"Citizenship", "Status", "Email", "Phone", "Resume", "Summary", "Profile",
}

func writeCandidates(f *excelize.File, records []store.CandidateRecord) error {
	header, err := headerStyle(f)
	if err != nil {
		return err
	}

	ranked := append([]store.CandidateRecord(nil), records...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].AIScore > ranked[j].AIScore })

	for i, col := range candidateColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(candidatesSheet, cell, col)
		f.SetCellStyle(candidatesSheet, cell, cell, header)
	}
	f.SetColWidth(candidatesSheet, "B", "B", 24)
	f.SetColWidth(candidatesSheet, "L", "M", 60)

	for i, rec := range ranked {
		values := []any{
			i + 1,
			rec.DisplayName(),
			rec.Platform,
			rec.AppliedRole,
			rec.AIScore,
			rec.AICategory,
			rec.CitizenshipStatus,
			rec.CurrentStatus,
			rec.Email,
			rec.Phone,
			rec.ResumeURL,
			rec.AISummary,
			rec.ContextSummary(),
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			f.SetCellValue(candidatesSheet, cell, v)
		}
	}
	return nil
}
