package aggregate

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/census-cli/internal/model"
)

// Comparator is a predicate operator token.
type Comparator string

// Supported comparators.
const (
	Eq Comparator = "=="
	Ne Comparator = "!="
	Lt Comparator = "<"
	Le Comparator = "<="
	Gt Comparator = ">"
	Ge Comparator = ">="
)

// Two-character tokens come first so "<=" wins over "<" at the same position.
var comparators = []Comparator{Eq, Ne, Le, Ge, Lt, Gt}

// ParseComparator validates an operator token.
func ParseComparator(s string) (Comparator, error) {
	for _, c := range comparators {
		if string(c) == s {
			return c, nil
		}
	}
	return "", eris.Errorf("aggregate: unknown comparator %q", s)
}

// Predicate compares one row field against a literal. Asset values compare
// as integers; every other field compares as text.
type Predicate struct {
	Field   model.Field
	Op      Comparator
	Literal string
}

// NewPredicate builds a validated predicate.
func NewPredicate(field, op, literal string) (Predicate, error) {
	f, err := model.ParseField(field)
	if err != nil {
		return Predicate{}, err
	}
	c, err := ParseComparator(op)
	if err != nil {
		return Predicate{}, err
	}
	if f.Numeric() {
		if _, err := strconv.ParseInt(literal, 10, 64); err != nil {
			return Predicate{}, eris.Errorf("aggregate: field %s needs an integer literal, got %q", f, literal)
		}
	}
	return Predicate{Field: f, Op: c, Literal: literal}, nil
}

// ParsePredicate parses "field op literal", e.g. `scale != 8` or
// `asset>=1000`. The literal may be wrapped in single or double quotes.
func ParsePredicate(s string) (Predicate, error) {
	at, op := -1, Comparator("")
	for _, c := range comparators {
		i := strings.Index(s, string(c))
		if i >= 0 && (at < 0 || i < at) {
			at, op = i, c
		}
	}
	if at < 0 {
		return Predicate{}, eris.Errorf("aggregate: predicate %q has no comparator", s)
	}

	field := strings.TrimSpace(s[:at])
	if field == "" {
		return Predicate{}, eris.Errorf("aggregate: predicate %q has no field", s)
	}
	literal := unquote(strings.TrimSpace(s[at+len(op):]))
	return NewPredicate(field, string(op), literal)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// String renders the predicate in the form ParsePredicate accepts.
func (p Predicate) String() string {
	return string(p.Field) + " " + string(p.Op) + " " + strconv.Quote(p.Literal)
}

// Match reports whether row satisfies p. A row that does not carry the field
// never matches.
func (p Predicate) Match(row model.Valuer) bool {
	v, ok := row.Value(p.Field)
	if !ok {
		return false
	}

	var cmp int
	if p.Field.Numeric() {
		lit, err := strconv.ParseInt(p.Literal, 10, 64)
		if err != nil {
			return false
		}
		n := row.AssetValue()
		switch {
		case n < lit:
			cmp = -1
		case n > lit:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(v, p.Literal)
	}

	switch p.Op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	default:
		return false
	}
}

// Filter returns the rows matching every predicate, in their original order.
// The input slice is not modified.
func Filter[T model.Valuer](rows []T, preds ...Predicate) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		keep := true
		for _, p := range preds {
			if !p.Match(r) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}
