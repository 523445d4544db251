package httpapi

import (
	"bytes"
	"fmt"

	"checkin-desk/internal/service"

	"github.com/xuri/excelize/v2"
)

const rosterSheet = "Roster"

// rosterHeader fixed leading columns; one column per section and Status follow
var rosterHeader = []string{
	"Team Number",
	"Team Name",
	"Student Number",
	"Student Name",
	"Waiver",
}

// GenerateRosterExport one row per student of the organization, teams in summary order
func GenerateRosterExport(s *service.Summary) ([]byte, error) {
	headers := append(append([]string{}, rosterHeader...), s.SectionNames...)
	headers = append(headers, "Status")

	f := excelize.NewFile()
	// WriteTo needs the file open, so Close runs explicitly below
	index, err := f.NewSheet(rosterSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		if err := setCellValue(f, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetCellStyle(rosterSheet, name+"1", name+"1", headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		if err := f.SetColWidth(rosterSheet, name, name, 18); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	row := 2
	for _, team := range s.Teams {
		for _, st := range team.Students {
			values := []any{team.Number, team.TeamName, st.Number, st.Name, yesNo(st.Waiver)}
			for _, sectionID := range s.SectionIDs {
				values = append(values, service.RoomFor(st.Assignments, sectionID))
			}
			values = append(values, st.Status)

			for col, v := range values {
				if v == "" {
					continue
				}
				if err := setCellValue(f, col+1, row, v); err != nil {
					f.Close()
					return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
				}
			}
			row++
		}
	}

	if err := f.SetPanes(rosterSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(rosterSheet, cell, value)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
