package census

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-cli/internal/census/schema"
	"github.com/sells-group/census-cli/internal/census/zoned"
)

// fixtureRecord builds a record of s's minimum length with the given fields
// written at their offsets.
func fixtureRecord(t *testing.T, y schema.Year, scale, primary string, asset int64) string {
	t.Helper()
	s, err := schema.ForYear(y)
	require.NoError(t, err)

	buf := []byte(strings.Repeat(" ", s.MinLength()))
	copy(buf[s.Scale.Offset:], scale)
	copy(buf[s.Primary.Offset:], primary)

	var raw string
	if s.AssetEncoding == schema.ZonedDecimal {
		raw = zoned.Encode(asset, s.Asset.Length)
	} else {
		raw = fmt.Sprintf("%*d", s.Asset.Length, asset)
	}
	copy(buf[s.Asset.Offset:], raw)
	return string(buf)
}

// writeDataFile writes records as one CRLF-terminated file.
func writeDataFile(t *testing.T, dir, name string, records ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r)
		b.WriteString("\r\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

// writeReference writes a reference CSV covering all three years.
func writeReference(t *testing.T, dir string, withDefault bool) string {
	t.Helper()
	content := "ISIC_Rev3,ROCSIC_6,ROCSIC_7,ROCSIC_8\n" +
		"D,\"0811,0812\",\"0811\",\"0811,5\"\n" +
		"G,4510,4510,4510\n"
	if withDefault {
		content += "X,Else,Else,Else\n"
	}
	path := filepath.Join(dir, "reference.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
