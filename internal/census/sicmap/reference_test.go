package sicmap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/traditionalchinese"
)

var referenceRows = [][]string{
	{"ISIC_Rev3", "ROCSIC_6", "ROCSIC_7", "ROCSIC_8"},
	{"A", "1,2", "1,2,3", "01"},
	{"C", "5", "5,6", "05,06"},
	{"X", "Else", "Else", "Else"},
}

func writeXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, r := range rows {
		row := s.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "ISIC_to_ROCSIC.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadReference_XLSX(t *testing.T) {
	path := writeXLSX(t, "Sheet2", referenceRows)

	entries, err := LoadReference(context.Background(), path, ReferenceOptions{
		Sheet:                "Sheet2",
		ClassificationColumn: "ISIC_Rev3",
		CodeColumn:           "ROCSIC_7",
	})
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Classification: "A", Codes: "1,2,3"},
		{Classification: "C", Codes: "5,6"},
		{Classification: "X", Codes: "Else"},
	}, entries)

	tbl := Build(entries)
	c, err := tbl.Classify("05")
	require.NoError(t, err)
	assert.Equal(t, "C", c)
}

func TestLoadReference_XLSXMissingSheet(t *testing.T) {
	path := writeXLSX(t, "Sheet1", referenceRows)

	_, err := LoadReference(context.Background(), path, ReferenceOptions{
		Sheet:                "Sheet2",
		ClassificationColumn: "ISIC_Rev3",
		CodeColumn:           "ROCSIC_6",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sheet2")
}

func TestLoadReference_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.csv")
	content := "ISIC_Rev3,ROCSIC_6,ROCSIC_7,ROCSIC_8\nA,\"1,2\",\"1,2,3\",01\nX,Else,Else,Else\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := LoadReference(context.Background(), path, ReferenceOptions{
		ClassificationColumn: "ISIC_Rev3",
		CodeColumn:           "ROCSIC_6",
	})
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Classification: "A", Codes: "1,2"},
		{Classification: "X", Codes: "Else"},
	}, entries)
}

func TestLoadReference_Big5CSV(t *testing.T) {
	content, err := traditionalchinese.Big5.NewEncoder().String(
		"ISIC_Rev3,ROCSIC_8,說明\r\nD,\"08,09\",製造業\r\n,,\r\nX,Else,其他\r\n")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ref.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := ReadReference(context.Background(), path, ReferenceOptions{Encoding: "big5"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "製造業", rows[1][2])

	entries, err := ParseReference(rows, ReferenceOptions{ClassificationColumn: "ISIC_Rev3", CodeColumn: "ROCSIC_8"})
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Classification: "D", Codes: "08,09"},
		{Classification: "X", Codes: "Else"},
	}, entries)
}

func TestParseReference_MissingColumns(t *testing.T) {
	_, err := ParseReference(referenceRows, ReferenceOptions{ClassificationColumn: "ISIC_Rev4", CodeColumn: "ROCSIC_6"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ISIC_Rev4")

	_, err = ParseReference(referenceRows, ReferenceOptions{ClassificationColumn: "ISIC_Rev3", CodeColumn: "ROCSIC_9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROCSIC_9")

	_, err = ParseReference(nil, ReferenceOptions{})
	assert.Error(t, err)
}

func TestParseReference_ShortRowsAndBlanks(t *testing.T) {
	rows := [][]string{
		{"ISIC_Rev3", "ROCSIC_6"},
		{"A"},
		{"", ""},
		{"B", "7"},
	}
	entries, err := ParseReference(rows, ReferenceOptions{ClassificationColumn: "ISIC_Rev3", CodeColumn: "ROCSIC_6"})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Classification: "A"}, {Classification: "B", Codes: "7"}}, entries)
}
