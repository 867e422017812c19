package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"mcqscan/question"
)

const maxSheetName = 31

// workbookHeader is the header row of every folder sheet
var workbookHeader = []any{
	"ID", "Topic (BN)", "Topic (EN)", "Question", "A", "B", "C", "D",
	"Answer", "Reference", "Difficulty", "Short Explanation", "Tags",
}

// Workbook is a review spreadsheet with one sheet per folder
type Workbook struct {
	path   string
	f      *excelize.File
	sheets []string
	header int
}

// NewWorkbook starts an empty workbook that Save writes to path
func NewWorkbook(path string) (*Workbook, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4ECDC4"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &Workbook{path: path, f: f, header: header}, nil
}

// AddFolder writes records to a new sheet named after folder and returns
// the sheet name used
func (w *Workbook) AddFolder(folder string, records []question.Record) (string, error) {
	sheet := w.uniqueSheetName(folder)

	if len(w.sheets) == 0 {
		// reuse the default sheet of a new file
		if err := w.f.SetSheetName(w.f.GetSheetName(0), sheet); err != nil {
			return "", fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := w.f.NewSheet(sheet); err != nil {
		return "", fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	w.sheets = append(w.sheets, sheet)

	if err := w.f.SetSheetRow(sheet, "A1", &workbookHeader); err != nil {
		return "", err
	}
	if err := w.f.SetRowStyle(sheet, 1, 1, w.header); err != nil {
		return "", err
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		row := recordRow(rec)
		if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := w.f.SetColWidth(sheet, "D", "D", 60); err != nil {
		return "", err
	}
	if err := w.f.SetColWidth(sheet, "L", "L", 50); err != nil {
		return "", err
	}
	if err := w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return "", err
	}

	return sheet, nil
}

// Sheets returns the sheet names in the order they were added
func (w *Workbook) Sheets() []string {
	return append([]string(nil), w.sheets...)
}

// Save writes the workbook to its path and closes it
func (w *Workbook) Save() error {
	if len(w.sheets) == 0 {
		w.f.Close()
		return fmt.Errorf("no folders to export")
	}
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			w.f.Close()
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := w.f.SaveAs(w.path); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return w.f.Close()
}

func recordRow(rec question.Record) []any {
	opts := map[string]string{}
	for _, o := range rec.Options {
		opts[o.Key] = o.Text
	}
	short := ""
	if rec.Explanation != nil {
		short = rec.Explanation.Short
	}
	return []any{
		rec.ID,
		stringValue(rec.Context["topic_bn"]),
		stringValue(rec.Context["topic_en"]),
		rec.QuestionText,
		opts["a"], opts["b"], opts["c"], opts["d"],
		rec.CorrectAnswerKey,
		rec.Reference,
		rec.Difficulty,
		short,
		strings.Join(rec.Tags, ", "),
	}
}

// uniqueSheetName makes folder a valid, unused sheet name
func (w *Workbook) uniqueSheetName(folder string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(folder))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}
	name = truncateRunes(name, maxSheetName)

	used := make(map[string]bool, len(w.sheets))
	for _, s := range w.sheets {
		used[strings.ToLower(s)] = true
	}
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
