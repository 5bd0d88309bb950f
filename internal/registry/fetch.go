package registry

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/emora-osint/emora/internal/httpx"
)

// DefaultRemoteURL is where `emora update` downloads the database from.
const DefaultRemoteURL = "https://raw.githubusercontent.com/emora-osint/emora/main/internal/assets/sites.json"

const maxDatabaseBytes = 16 << 20

// Fetch downloads a database from rawURL, checks that it parses, and only then
// replaces destPath. The format is taken from destPath's extension.
func Fetch(ctx context.Context, client httpx.Doer, userAgent, rawURL, destPath string) (*Registry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download database")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a small snippet for diagnostics.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, errors.Errorf("download failed: %s (%s)", resp.Status, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDatabaseBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "download database")
	}
	if len(body) > maxDatabaseBytes {
		return nil, errors.Errorf("download failed: database larger than %d bytes", maxDatabaseBytes)
	}

	reg, err := Parse(body, FormatFromPath(destPath), rawURL)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	tmp := destPath + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return nil, errors.Wrap(err, "write database")
	}
	if err := os.Rename(tmp, destPath); err != nil {
		_ = os.Remove(tmp)
		return nil, errors.Wrap(err, "replace database")
	}

	return reg, nil
}
