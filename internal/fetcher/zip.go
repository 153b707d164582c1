package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/traditionalchinese"
)

// ExtractZIP unpacks a dataset archive into destDir and returns the extracted
// file paths in archive order. Entry names not flagged as UTF-8 are decoded as
// Big5, which is how archives built on Traditional Chinese Windows store
// folder names such as "85年AA290005". Finder metadata is skipped.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	root := filepath.Clean(destDir)
	var extracted []string
	for _, f := range r.File {
		name := entryName(f)
		if skipEntry(name) {
			continue
		}

		dest := filepath.Join(root, filepath.FromSlash(name))
		if !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
			return extracted, eris.Errorf("zip: illegal path %q (zip slip attempt)", name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return extracted, eris.Wrapf(err, "zip: create directory %s", name)
			}
			continue
		}
		if err := writeEntry(f, dest); err != nil {
			return extracted, eris.Wrapf(err, "zip: extract %s", name)
		}
		extracted = append(extracted, dest)
	}

	return extracted, nil
}

func entryName(f *zip.File) string {
	if !f.NonUTF8 {
		return f.Name
	}
	name, err := traditionalchinese.Big5.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return name
}

func skipEntry(name string) bool {
	first, _, _ := strings.Cut(name, "/")
	base := path.Base(name)
	return first == "__MACOSX" || base == ".DS_Store"
}

func writeEntry(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
