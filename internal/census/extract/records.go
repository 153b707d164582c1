package extract

import (
	"bytes"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// recordSep terminates each record in the raw census files.
var recordSep = []byte("\r\n")

// SplitRecords decodes raw file contents as ASCII, silently dropping any
// byte outside the ASCII range, and splits it into CRLF-terminated records.
// Empty segments at the end of the file are discarded.
func SplitRecords(data []byte) ([]string, error) {
	ascii, _, err := transform.Bytes(asciiOnly(), data)
	if err != nil {
		return nil, eris.Wrap(err, "extract: ascii decode")
	}

	parts := bytes.Split(ascii, recordSep)
	for len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}

	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out, nil
}

// asciiOnly removes every non-ASCII rune. Invalid UTF-8 bytes decode as
// utf8.RuneError, which is outside ASCII and removed as well.
func asciiOnly() transform.Transformer {
	return runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	}))
}
