package model

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// Field names a row column. The names match the exported CSV headers.
type Field string

// Row columns.
const (
	FieldScale          Field = "scale"
	FieldPrimary        Field = "primary"
	FieldPrimaryShort   Field = "roc_sic"
	FieldAsset          Field = "asset"
	FieldClassification Field = "isic"
)

// Fields lists every row column in export order.
func Fields() []Field {
	return []Field{FieldScale, FieldPrimary, FieldPrimaryShort, FieldAsset, FieldClassification}
}

// ParseField converts a column name into a Field.
func ParseField(s string) (Field, error) {
	for _, f := range Fields() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", eris.Errorf("model: unknown field %q (valid: scale, primary, roc_sic, asset, isic)", s)
}

// Numeric reports whether values of f compare as integers.
func (f Field) Numeric() bool { return f == FieldAsset }

// ExtractedRow holds the fields sliced from one census record.
type ExtractedRow struct {
	Scale        string `json:"scale"`
	Primary      string `json:"primary"`
	PrimaryShort string `json:"roc_sic"`
	Asset        int64  `json:"asset"`
}

// Value returns the column value of f as text. ok is false for columns the
// row does not carry.
func (r ExtractedRow) Value(f Field) (string, bool) {
	switch f {
	case FieldScale:
		return r.Scale, true
	case FieldPrimary:
		return r.Primary, true
	case FieldPrimaryShort:
		return r.PrimaryShort, true
	case FieldAsset:
		return strconv.FormatInt(r.Asset, 10), true
	default:
		return "", false
	}
}

// AssetValue returns the total assets.
func (r ExtractedRow) AssetValue() int64 { return r.Asset }

// AnnotatedRow is an ExtractedRow with its international classification.
type AnnotatedRow struct {
	ExtractedRow
	Classification string `json:"isic"`
}

// Value implements Valuer.
func (r AnnotatedRow) Value(f Field) (string, bool) {
	if f == FieldClassification {
		return r.Classification, true
	}
	return r.ExtractedRow.Value(f)
}

// Valuer is implemented by rows that predicates and aggregations read.
type Valuer interface {
	Value(f Field) (string, bool)
	AssetValue() int64
}
