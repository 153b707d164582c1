package sicmap

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/census-cli/internal/fetcher"
)

// ReferenceOptions locates the columns of the reference spreadsheet.
type ReferenceOptions struct {
	Sheet                string // xlsx only; empty means the first sheet
	ClassificationColumn string // e.g. "ISIC_Rev3"
	CodeColumn           string // e.g. "ROCSIC_6"
	Encoding             string // csv only; "" for UTF-8 or "big5"
}

// LoadReference reads reference entries from an .xlsx or .csv file. The first
// row is the header.
func LoadReference(ctx context.Context, path string, opts ReferenceOptions) ([]Entry, error) {
	rows, err := ReadReference(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return ParseReference(rows, opts)
}

// ReadReference returns the raw cells of a reference file so several code
// columns can be parsed from one read. Only Sheet and Encoding are used.
func ReadReference(ctx context.Context, path string, opts ReferenceOptions) ([][]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(ctx, path, opts.Encoding)
	default:
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.Sheet})
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sicmap: read reference %s", path)
	}
	return rows, nil
}

// ParseReference converts header-led rows into entries.
func ParseReference(rows [][]string, opts ReferenceOptions) ([]Entry, error) {
	if len(rows) == 0 {
		return nil, eris.New("sicmap: reference table is empty")
	}

	colIdx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		colIdx[strings.TrimSpace(h)] = i
	}
	classIdx, ok := colIdx[opts.ClassificationColumn]
	if !ok {
		return nil, eris.Errorf("sicmap: classification column %q not found", opts.ClassificationColumn)
	}
	codeIdx, ok := colIdx[opts.CodeColumn]
	if !ok {
		return nil, eris.Errorf("sicmap: code column %q not found", opts.CodeColumn)
	}

	entries := make([]Entry, 0, len(rows)-1)
	for _, r := range rows[1:] {
		e := Entry{
			Classification: cell(r, classIdx),
			Codes:          cell(r, codeIdx),
		}
		if e.Classification == "" && e.Codes == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func cell(r []string, idx int) string {
	if idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

func readCSV(ctx context.Context, path, enc string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open csv")
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		Encoding:  enc,
		TrimSpace: true,
		SkipBlank: true,
	})
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}
