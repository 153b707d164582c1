// Package sicmap maps ROC standard industry codes to ISIC classifications.
package sicmap

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/census-cli/internal/model"
)

// DefaultKey marks the reference entry used when no code matches.
const DefaultKey = "Else"

// Entry is one reference row: a classification and its comma-separated
// list of equivalent local codes.
type Entry struct {
	Classification string
	Codes          string
}

// WarningKind classifies a data-quality problem in the reference table.
type WarningKind string

const (
	// WarnPadding is a code listed both zero-padded and unpadded.
	WarnPadding WarningKind = "padding"
	// WarnConflict is a code listed under two classifications. The later entry wins.
	WarnConflict WarningKind = "conflict"
)

// Warning is a data-quality problem found while building a Table.
type Warning struct {
	Kind   WarningKind
	Code   string
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Kind, w.Code, w.Detail)
}

// MissingDefaultError is returned when a code has no match and the
// reference table has no "Else" entry.
type MissingDefaultError struct {
	Code string
}

func (e *MissingDefaultError) Error() string {
	return fmt.Sprintf("sicmap: no classification for code %q and no %q entry in reference table", e.Code, DefaultKey)
}

// Table maps local codes to classification codes. It is read-only once built.
type Table struct {
	codes      map[string]string
	raw        map[string]string // numeric value (or code) → code as written
	def        string
	hasDefault bool
	warnings   []Warning
}

// NormalizeCode prepends "0" to a purely numeric code whose value is below
// 10, so "5" becomes "05" and "05" becomes "005". Other codes are returned
// unchanged.
func NormalizeCode(code string) string {
	if v, ok := numericValue(code); ok && len(v) == 1 {
		return "0" + code
	}
	return code
}

// numericValue returns the digits of code without leading zeros ("0" for an
// all-zero code). ok is false when code is not purely numeric.
func numericValue(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return "", false
		}
	}
	v := strings.TrimLeft(code, "0")
	if v == "" {
		v = "0"
	}
	return v, true
}

// Build creates a Table from reference entries. Entries are applied in order.
func Build(entries []Entry) *Table {
	t := &Table{
		codes: make(map[string]string),
		raw:   make(map[string]string),
	}

	for _, e := range entries {
		class := strings.TrimSpace(e.Classification)
		for _, c := range strings.Split(e.Codes, ",") {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if c == DefaultKey {
				t.def = class
				t.hasDefault = true
				continue
			}
			t.add(c, class)
		}
	}

	return t
}

func (t *Table) add(written, class string) {
	code := NormalizeCode(written)
	key := written
	if v, ok := numericValue(written); ok {
		key = v
	}

	if prev, ok := t.raw[key]; ok && prev != written {
		t.warnings = append(t.warnings, Warning{
			Kind:   WarnPadding,
			Code:   code,
			Detail: fmt.Sprintf("listed as %q and %q", prev, written),
		})
	}
	if prevClass, ok := t.codes[code]; ok && prevClass != class {
		t.warnings = append(t.warnings, Warning{
			Kind:   WarnConflict,
			Code:   code,
			Detail: fmt.Sprintf("mapped to %q and %q, using %q", prevClass, class, class),
		})
	}

	t.raw[key] = written
	t.codes[code] = class
}

// Len returns the number of mapped codes, excluding the default entry.
func (t *Table) Len() int { return len(t.codes) }

// Default returns the default classification and whether one exists.
func (t *Table) Default() (string, bool) { return t.def, t.hasDefault }

// Warnings returns the data-quality problems found while building.
func (t *Table) Warnings() []Warning { return t.warnings }

// Lookup returns the classification of an exact local code.
func (t *Table) Lookup(code string) (string, bool) {
	c, ok := t.codes[code]
	return c, ok
}

// Classify resolves code, falling back to the default entry.
func (t *Table) Classify(code string) (string, error) {
	if c, ok := t.codes[code]; ok {
		return c, nil
	}
	if t.hasDefault {
		return t.def, nil
	}
	return "", &MissingDefaultError{Code: code}
}

// Options controls how rows are matched against the table.
type Options struct {
	// ShortCodeFallback retries a missed primary code with its two-character
	// short form before using the default entry.
	ShortCodeFallback bool
}

// ClassifyRow resolves the classification of a row by its primary code.
func (t *Table) ClassifyRow(row model.ExtractedRow, opts Options) (string, error) {
	if c, ok := t.codes[row.Primary]; ok {
		return c, nil
	}
	if opts.ShortCodeFallback {
		if c, ok := t.codes[row.PrimaryShort]; ok {
			return c, nil
		}
	}
	if t.hasDefault {
		return t.def, nil
	}
	return "", &MissingDefaultError{Code: row.Primary}
}

// Annotate classifies every row, returning new rows in the same order.
func (t *Table) Annotate(rows []model.ExtractedRow, opts Options) ([]model.AnnotatedRow, error) {
	out := make([]model.AnnotatedRow, len(rows))
	for i, r := range rows {
		c, err := t.ClassifyRow(r, opts)
		if err != nil {
			return nil, err
		}
		out[i] = model.AnnotatedRow{ExtractedRow: r, Classification: c}
	}
	return out, nil
}

// LogWarnings writes the data-quality warnings to log.
func (t *Table) LogWarnings(log *zap.Logger) {
	for _, w := range t.warnings {
		log.Warn("reference table data quality",
			zap.String("kind", string(w.Kind)),
			zap.String("code", w.Code),
			zap.String("detail", w.Detail),
		)
	}
}
