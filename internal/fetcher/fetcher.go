// Package fetcher downloads census inputs over HTTP or FTP and reads the
// tabular and archive formats they arrive in (CSV, XLSX, ZIP).
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Options configures the fetchers built by ForURL.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// IsRemote reports whether p is an http, https or ftp URL rather than a local path.
func IsRemote(p string) bool {
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return u.Host != ""
	default:
		return false
	}
}

// ForURL returns the fetcher that handles rawURL's scheme.
func ForURL(rawURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		}), nil
	case "ftp":
		return NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// Localize downloads rawURL into dir, keeping the URL's base name, and
// returns the local path. Local paths are returned unchanged.
func Localize(ctx context.Context, rawURL, dir string, opts Options) (string, error) {
	if !IsRemote(rawURL) {
		return rawURL, nil
	}

	f, err := ForURL(rawURL, opts)
	if err != nil {
		return "", err
	}

	u, _ := url.Parse(rawURL)
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create download dir")
	}
	dest := filepath.Join(dir, strings.ReplaceAll(name, string(os.PathSeparator), "_"))

	if _, err := f.DownloadToFile(ctx, rawURL, dest); err != nil {
		return "", eris.Wrapf(err, "fetcher: download %s", rawURL)
	}
	return dest, nil
}

// writeToFile copies body into a new file at path.
func writeToFile(body io.Reader, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}
