package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/traditionalchinese"
)

func createTestZIP(t *testing.T, files []string, contents []string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for i, name := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(contents[i]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_DatasetFolder(t *testing.T) {
	zipPath := createTestZIP(t,
		[]string{"85年AA290005/", "85年AA290005/a", "85年AA290005/b"},
		[]string{"", "rec1\r\n", "rec2\r\n"},
	)

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(destDir, "85年AA290005", "a"),
		filepath.Join(destDir, "85年AA290005", "b"),
	}, extracted)

	data, err := os.ReadFile(extracted[1])
	require.NoError(t, err)
	assert.Equal(t, "rec2\r\n", string(data))
}

func TestExtractZIP_Big5Names(t *testing.T) {
	name, err := traditionalchinese.Big5.NewEncoder().String("95年AA290007/AA290007")
	require.NoError(t, err)

	zipPath := filepath.Join(t.TempDir(), "big5.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, NonUTF8: true})
	require.NoError(t, err)
	_, err = fw.Write([]byte("rec\r\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(destDir, "95年AA290007", "AA290007")}, extracted)
}

func TestExtractZIP_SkipsFinderMetadata(t *testing.T) {
	zipPath := createTestZIP(t,
		[]string{"__MACOSX/90年AA290006/._a", "90年AA290006/.DS_Store", "90年AA290006/a"},
		[]string{"meta", "meta", "rec\r\n"},
	)

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(destDir, "90年AA290006", "a")}, extracted)
	assert.NoDirExists(t, filepath.Join(destDir, "__MACOSX"))
}

func TestExtractZIP_ZipSlipPrevention(t *testing.T) {
	zipPath := createTestZIP(t, []string{"../../evil"}, []string{"x"})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_InvalidArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip: open archive")
}
