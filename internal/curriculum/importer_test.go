package curriculum

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lexlab/tracer/internal/domain"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "curriculum.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"id", "kind", "phase", "difficulty", "prerequisites", "transfers_to", "correlated_with"},
		{"s", "gpc", 1, 0.2, "", "sh", ""},
		{"h", "gpc", 1, 0.2, "", "", ""},
		{"sh", "gpc", 2, 0.4, "s; h", "ch", "ch"},
		{"", "", "", "", "", "", ""}, // blank row, skipped
	})

	specs, err := ImportWorkbook(path)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, "s", specs[0].ID)
	assert.Equal(t, []string{"sh"}, specs[0].TransfersTo)

	sh := specs[2]
	assert.Equal(t, domain.SkillKindGPC, sh.Kind)
	assert.Equal(t, 2, sh.Phase)
	assert.Equal(t, 0.4, sh.Difficulty)
	assert.Equal(t, []string{"s", "h"}, sh.Prerequisites)
	assert.Equal(t, []string{"ch"}, sh.CorrelatedWith)

	// The imported specs must form a valid registry.
	specs = append(specs, domain.SkillSpec{ID: "ch"})
	_, err = New(specs)
	require.NoError(t, err)
}

func TestImportWorkbookHeaderCaseInsensitive(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"ID", "Kind", "Phase", "Difficulty"},
		{"s", "gpc", 1, 0.3},
	})

	specs, err := ImportWorkbook(path)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, 0.3, specs[0].Difficulty)
}

func TestImportWorkbookRejectsBadNumbers(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"id", "phase"},
		{"s", "first"},
	})

	_, err := ImportWorkbook(path)
	assert.Error(t, err)
}

func TestImportWorkbookRequiresIDColumn(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"kind", "phase"},
		{"gpc", 1},
	})

	_, err := ImportWorkbook(path)
	assert.Error(t, err)
}
