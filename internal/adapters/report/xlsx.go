package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/usecase"
)

const (
	ResultsSheet = "Results"
	FilesSheet   = "Files"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	resultsHeader = []any{"Rank", "Task", "Title", "Description", "Match", "Avg score", "Demos"}
	filesHeader   = []any{"Rank", "Task", "Demo", "Score", "MP4", "HDF5"}
)

// WriteXLSX renders grouped search results as a two-sheet workbook: one row
// per group, then one row per demonstration file pair.
func WriteXLSX(w io.Writer, outcome *domain.SearchOutcome) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("rename results sheet: %w", err)
	}
	if _, err := f.NewSheet(FilesSheet); err != nil {
		return fmt.Errorf("create files sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, ResultsSheet, 1, resultsHeader); err != nil {
		return err
	}
	if err := writeRow(f, FilesSheet, 1, filesHeader); err != nil {
		return err
	}

	fileRow := 2
	for i, g := range outcome.Groups {
		rank := i + 1
		row := []any{
			rank,
			g.Task,
			usecase.FormatTaskName(g.Task),
			g.Description,
			usecase.FormatScore(g.AvgScore),
			g.AvgScore,
			len(g.Files),
		}
		if err := writeRow(f, ResultsSheet, rank+1, row); err != nil {
			return err
		}
		for j, file := range g.Files {
			if err := writeRow(f, FilesSheet, fileRow, []any{rank, g.Task, j + 1, file.Score, file.MP4, file.HDF5}); err != nil {
				return err
			}
			fileRow++
		}
	}

	for _, sheet := range []string{ResultsSheet, FilesSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("freeze %s header: %w", sheet, err)
		}
	}
	if err := f.SetColWidth(ResultsSheet, "C", "D", 40); err != nil {
		return fmt.Errorf("size results columns: %w", err)
	}
	if err := f.SetColWidth(FilesSheet, "E", "F", 80); err != nil {
		return fmt.Errorf("size files columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("resolve %s row %d: %w", sheet, row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
