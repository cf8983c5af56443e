package curriculum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lexlab/tracer/internal/domain"
)

// Expected workbook columns, matched case-insensitively in the header row.
var workbookColumns = []string{"id", "kind", "phase", "difficulty", "prerequisites", "transfers_to", "correlated_with"}

// ImportWorkbook reads skill specs from the first sheet of a curriculum
// workbook. The header row names the columns; list-valued columns use
// semicolon separators. Blank rows are skipped.
func ImportWorkbook(path string) ([]domain.SkillSpec, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no data rows", sheets[0])
	}

	col := make(map[string]int)
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["id"]; !ok {
		return nil, fmt.Errorf("sheet %q missing id column", sheets[0])
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var specs []domain.SkillSpec
	for n, row := range rows[1:] {
		id := cell(row, "id")
		if id == "" {
			continue
		}
		spec := domain.SkillSpec{
			ID:             id,
			Kind:           domain.SkillKind(cell(row, "kind")),
			Prerequisites:  splitList(cell(row, "prerequisites")),
			TransfersTo:    splitList(cell(row, "transfers_to")),
			CorrelatedWith: splitList(cell(row, "correlated_with")),
		}
		if v := cell(row, "phase"); v != "" {
			phase, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad phase %q: %w", n+2, v, err)
			}
			spec.Phase = phase
		}
		if v := cell(row, "difficulty"); v != "" {
			difficulty, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad difficulty %q: %w", n+2, v, err)
			}
			spec.Difficulty = difficulty
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
