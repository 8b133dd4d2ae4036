package boundary

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultURL is the 1:500k cartographic boundary file of all US states.
const DefaultURL = "https://www2.census.gov/geo/tiger/GENZ2021/shp/cb_2021_us_state_500k.zip"

// ErrNoShapefile is returned when an archive holds no .shp member.
var ErrNoShapefile = errors.New("no shapefile found")

// HTTPClient is the subset of *http.Client the fetcher needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads boundary archives into a local directory and unpacks them.
type Fetcher struct {
	client HTTPClient
	dir    string
	log    *slog.Logger
}

// NewFetcher creates a Fetcher that keeps archives under dir.
func NewFetcher(client HTTPClient, dir string, log *slog.Logger) *Fetcher {
	return &Fetcher{client: client, dir: dir, log: log}
}

// Fetch makes sure the archive at rawURL is present under the fetcher directory,
// extracts it and returns the path of the extracted .shp file.
// An archive that already exists with content is not downloaded again.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create boundary directory: %w", err)
	}

	zipName, err := archiveName(rawURL)
	if err != nil {
		return "", err
	}
	zipPath := filepath.Join(f.dir, zipName)

	if info, statErr := os.Stat(zipPath); statErr == nil && info.Size() > 0 {
		f.log.DebugContext(ctx, "Boundary archive already downloaded", "path", zipPath)
	} else {
		f.log.InfoContext(ctx, "Downloading state boundaries", "url", rawURL)
		if err = f.download(ctx, rawURL, zipPath); err != nil {
			return "", fmt.Errorf("failed to download boundary archive: %w", err)
		}
	}

	extractDir := filepath.Join(f.dir, strings.TrimSuffix(zipName, filepath.Ext(zipName)))
	if err = os.MkdirAll(extractDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create extract directory: %w", err)
	}
	if err = extractZIP(zipPath, extractDir); err != nil {
		return "", fmt.Errorf("failed to extract boundary archive: %w", err)
	}

	return findFileByExt(extractDir, ".shp")
}

func archiveName(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse boundary url: %w", err)
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("boundary url %q has no file name", rawURL)
	}

	return name, nil
}

// download writes the response body to a temporary file that is renamed
// into place only once it is complete.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return os.Rename(tmp.Name(), dest)
}

func extractZIP(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if err = extractFile(file, filepath.Join(destDir, filepath.Base(file.Name))); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(file *zip.File, dest string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry %s: %w", file.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err = io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to extract %s: %w", file.Name, err)
	}

	return out.Close()
}

func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ext) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w in %s", ErrNoShapefile, dir)
}
