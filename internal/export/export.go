// Package export writes census results to CSV and YAML files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/census-cli/internal/census/aggregate"
	"github.com/sells-group/census-cli/internal/model"
)

// ExtractedPath is the file holding a year's rows.
func ExtractedPath(dir, year string) string {
	return filepath.Join(dir, year+"_extracted.csv")
}

// AggregatePath is the file holding a year's asset totals grouped by key.
func AggregatePath(dir, year string, key model.Field) string {
	return filepath.Join(dir, fmt.Sprintf("%s_groupby_%s_asset.csv", year, key))
}

// SummaryPath is the file holding a year's run summary.
func SummaryPath(dir, year string) string {
	return filepath.Join(dir, year+"_summary.yaml")
}

// WriteRowsCSV writes one line per row with the given columns as header.
func WriteRowsCSV[T model.Valuer](w io.Writer, fields []model.Field, rows []T) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = string(f)
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write rows header")
	}

	rec := make([]string, len(fields))
	for i, r := range rows {
		for j, f := range fields {
			v, ok := r.Value(f)
			if !ok {
				return eris.Errorf("export: row %d has no %s column", i, f)
			}
			rec[j] = v
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "export: write row %d", i)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush rows")
}

// WriteAggregateCSV writes key,asset lines sorted by key.
func WriteAggregateCSV(w io.Writer, key model.Field, result aggregate.Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{string(key), string(model.FieldAsset)}); err != nil {
		return eris.Wrap(err, "export: write aggregate header")
	}
	for _, k := range result.Keys() {
		if err := cw.Write([]string{k, strconv.FormatInt(result[k], 10)}); err != nil {
			return eris.Wrapf(err, "export: write aggregate %q", k)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush aggregate")
}

// Summary is the YAML report written next to a year's CSV files.
type Summary struct {
	Year    string `yaml:"year"`
	Dataset string `yaml:"dataset"`
	RunID   string `yaml:"run_id,omitempty"`

	model.RunSummary `yaml:",inline"`

	Filters  []string         `yaml:"filters,omitempty"`
	Totals   map[string]int64 `yaml:"totals,omitempty"`
	Warnings []string         `yaml:"warnings,omitempty"`
	Samples  []string         `yaml:"samples,omitempty"`
}

// WriteSummaryYAML encodes s as YAML.
func WriteSummaryYAML(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return eris.Wrap(err, "export: encode summary")
	}
	return eris.Wrap(enc.Close(), "export: close summary encoder")
}

// WriteFile creates path (and its directory) and hands the file to write.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "export: close %s", path)
		}
	}()

	return write(f)
}
