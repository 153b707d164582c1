// Package schema holds the fixed record layouts of the supported census years.
package schema

import (
	"fmt"
	"strconv"
)

// Year identifies a census survey by its ROC calendar year.
type Year int

// Supported survey years.
const (
	Year85 Year = 85 // 1996
	Year90 Year = 90 // 2001
	Year95 Year = 95 // 2006
)

// String returns the two-digit ROC year.
func (y Year) String() string { return strconv.Itoa(int(y)) }

// Encoding describes how the asset field is stored.
type Encoding int

const (
	// PlainInteger is a right-aligned decimal integer.
	PlainInteger Encoding = iota
	// ZonedDecimal is a digit string with an overpunched sign symbol.
	ZonedDecimal
)

func (e Encoding) String() string {
	switch e {
	case PlainInteger:
		return "plain"
	case ZonedDecimal:
		return "zoned"
	default:
		return "unknown"
	}
}

// Field is a 0-based offset and length within a record.
type Field struct {
	Offset int
	Length int
}

// End returns the exclusive end offset.
func (f Field) End() int { return f.Offset + f.Length }

// Slice returns the field's bytes from rec. The caller checks the record length.
func (f Field) Slice(rec string) string { return rec[f.Offset:f.End()] }

// Schema is the layout of one year's census records.
type Schema struct {
	Year          Year
	Scale         Field
	Primary       Field
	Asset         Field
	AssetEncoding Encoding
	// ReferenceColumn names the local-code column of the reference table for this year.
	ReferenceColumn string
}

// MinLength is the shortest record that holds every field.
func (s Schema) MinLength() int {
	n := 0
	for _, f := range []Field{s.Scale, s.Primary, s.Asset} {
		if f.End() > n {
			n = f.End()
		}
	}
	return n
}

// UnsupportedYearError is returned for a year outside the schema table.
type UnsupportedYearError struct {
	Year string
}

func (e *UnsupportedYearError) Error() string {
	return fmt.Sprintf("schema: unsupported year %q (supported: 85, 90, 95)", e.Year)
}

// Positions follow the code book: x3103/x3200/x3613 (85),
// x310004/x320000/x360013 (90), scale/primary/x360019 (95).
var schemas = map[Year]Schema{
	Year85: {
		Year:            Year85,
		Scale:           Field{Offset: 7, Length: 1},
		Primary:         Field{Offset: 13, Length: 4},
		Asset:           Field{Offset: 1138, Length: 15},
		AssetEncoding:   ZonedDecimal,
		ReferenceColumn: "ROCSIC_6",
	},
	Year90: {
		Year:            Year90,
		Scale:           Field{Offset: 11, Length: 1},
		Primary:         Field{Offset: 13, Length: 4},
		Asset:           Field{Offset: 1068, Length: 15},
		AssetEncoding:   PlainInteger,
		ReferenceColumn: "ROCSIC_7",
	},
	Year95: {
		Year:            Year95,
		Scale:           Field{Offset: 1, Length: 1},
		Primary:         Field{Offset: 2, Length: 4},
		Asset:           Field{Offset: 245, Length: 15},
		AssetEncoding:   ZonedDecimal,
		ReferenceColumn: "ROCSIC_8",
	},
}

// Supported returns the supported years in ascending order.
func Supported() []Year { return []Year{Year85, Year90, Year95} }

// ForYear returns the schema for y.
func ForYear(y Year) (Schema, error) {
	s, ok := schemas[y]
	if !ok {
		return Schema{}, &UnsupportedYearError{Year: y.String()}
	}
	return s, nil
}

// ParseYear reads the year from the first two characters of a dataset
// folder name, e.g. "85年AA290005".
func ParseYear(folder string) (Year, error) {
	if len(folder) < 2 {
		return 0, &UnsupportedYearError{Year: folder}
	}
	prefix := folder[:2]
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, &UnsupportedYearError{Year: prefix}
	}
	y := Year(n)
	if _, ok := schemas[y]; !ok {
		return 0, &UnsupportedYearError{Year: prefix}
	}
	return y, nil
}

// ForFolder resolves the schema of a dataset folder.
func ForFolder(folder string) (Schema, error) {
	y, err := ParseYear(folder)
	if err != nil {
		return Schema{}, err
	}
	return ForYear(y)
}
