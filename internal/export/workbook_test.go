package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "regression.xlsx")

	wb := NewWorkbook()
	require.NoError(t, wb.AddSheet(Sheet{
		Name:   "golden",
		Header: []string{"vin", "vout"},
		Rows:   [][]float64{{0, 0.5}, {0.25, 1}, {1, 2.5}},
	}))
	require.NoError(t, wb.AddTextSheet(TextSheet{
		Name:   "summary: amp/mode[0]",
		Header: []string{"Test", "Pin"},
		Rows:   [][]string{{"amp", "PASS"}},
	}))
	require.NoError(t, wb.Save(path))

	s, err := ReadSheet(path, "golden")
	require.NoError(t, err)
	assert.Equal(t, []string{"vin", "vout"}, s.Header)
	assert.Equal(t, [][]float64{{0, 0.5}, {0.25, 1}, {1, 2.5}}, s.Rows)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"golden", "summary_ amp_mode(0)"}, f.GetSheetList())
}

func TestReadSheetMissing(t *testing.T) {
	_, err := ReadSheet(filepath.Join(t.TempDir(), "none.xlsx"), "golden")
	assert.Error(t, err)
}
