// Package zoned decodes signed zoned-decimal digit strings, where the final
// character carries both the last digit and the sign of the whole number.
// For example "788D" is 7884 and "788}" is -7880.
package zoned

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// overpunch maps a terminal symbol to its digit and sign.
var overpunch = map[byte]struct {
	digit int64
	neg   bool
}{
	'{': {0, false}, '}': {0, true},
	'A': {1, false}, 'J': {1, true},
	'B': {2, false}, 'K': {2, true},
	'C': {3, false}, 'L': {3, true},
	'D': {4, false}, 'M': {4, true},
	'E': {5, false}, 'N': {5, true},
	'F': {6, false}, 'O': {6, true},
	'G': {7, false}, 'P': {7, true},
	'H': {8, false}, 'Q': {8, true},
	'I': {9, false}, 'R': {9, true},
}

const (
	positive = "{ABCDEFGHI"
	negative = "}JKLMNOPQR"
)

// DecodeError reports a value that is not valid zoned decimal.
type DecodeError struct {
	Value  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("zoned: decode %q: %s", e.Value, e.Reason)
}

// Decode converts one zoned-decimal string into a signed integer.
// Leading spaces in the digit part are ignored; an all-blank digit part is zero.
func Decode(s string) (int64, error) {
	if s == "" {
		return 0, &DecodeError{Value: s, Reason: "empty value"}
	}

	last := s[len(s)-1]
	sym, ok := overpunch[last]
	if !ok {
		return 0, &DecodeError{Value: s, Reason: fmt.Sprintf("unrecognized sign symbol %q", last)}
	}

	var front int64
	if head := strings.TrimSpace(s[:len(s)-1]); head != "" {
		for i := 0; i < len(head); i++ {
			if head[i] < '0' || head[i] > '9' {
				return 0, &DecodeError{Value: s, Reason: "non-digit in leading digits"}
			}
		}
		v, err := strconv.ParseInt(head, 10, 64)
		if err != nil {
			return 0, &DecodeError{Value: s, Reason: "leading digits out of range"}
		}
		front = v
	}

	// The magnitude of a negative value may reach 1<<63.
	if front > math.MaxInt64/10+1 {
		return 0, &DecodeError{Value: s, Reason: "value out of range"}
	}
	mag := uint64(front)*10 + uint64(sym.digit)
	if sym.neg {
		if mag > 1<<63 {
			return 0, &DecodeError{Value: s, Reason: "value out of range"}
		}
		return -int64(mag), nil
	}
	if mag > math.MaxInt64 {
		return 0, &DecodeError{Value: s, Reason: "value out of range"}
	}
	return int64(mag), nil
}

// DecodeAll decodes a batch. The whole batch fails on the first malformed
// element and the returned error names its index.
func DecodeAll(values []string) ([]int64, error) {
	out := make([]int64, len(values))
	for i, v := range values {
		n, err := Decode(v)
		if err != nil {
			return nil, eris.Wrapf(err, "zoned: element %d", i)
		}
		out[i] = n
	}
	return out, nil
}

// Encode renders n as a zoned-decimal string of the given width, zero-padding
// the leading digits. It panics if width is less than 1.
func Encode(n int64, width int) string {
	if width < 1 {
		panic("zoned: width must be at least 1")
	}
	neg := n < 0
	abs := uint64(n)
	if neg {
		abs = uint64(-n) // also right for math.MinInt64
	}

	digit := abs % 10
	var sign byte
	if neg {
		sign = negative[digit]
	} else {
		sign = positive[digit]
	}

	head := ""
	if width > 1 {
		head = fmt.Sprintf("%0*d", width-1, abs/10)
	}
	return head + string(sign)
}
