// Package export uploads checkpoint and output artifacts to a blob store, so
// a finished (or long-running) scrape can be shared without copying the
// working directory around.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// BlobStore is the upload surface. Implementations live in the local and gcs
// subpackages.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Exporter copies scraper artifacts into a blob store.
type Exporter struct {
	store BlobStore
	log   *zap.Logger
}

// New builds an Exporter.
func New(store BlobStore, log *zap.Logger) *Exporter {
	return &Exporter{store: store, log: log}
}

// Export uploads each existing file under prefix, keyed by its base name,
// and returns the destination URIs. Missing files are skipped, not errors:
// a discovery-only run has no CSV yet.
func (e *Exporter) Export(ctx context.Context, prefix string, paths []string) ([]string, error) {
	var uris []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				e.log.Debug("artifact absent, skipping", zap.String("path", path))
				continue
			}
			return uris, fmt.Errorf("read artifact %s: %w", path, err)
		}
		key := prefix + "/" + filepath.Base(path)
		uri, err := e.store.PutObject(ctx, key, contentTypeFor(path), data)
		if err != nil {
			return uris, fmt.Errorf("upload %s: %w", key, err)
		}
		e.log.Info("artifact exported", zap.String("uri", uri), zap.Int("bytes", len(data)))
		uris = append(uris, uri)
	}
	return uris, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "application/json"
	case ".jsonl", ".journal":
		return "application/x-ndjson"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// WriteSortedIDs writes the IDs one per line in sorted order, for consumers
// that want a stable flat file rather than the JSON checkpoint format.
func WriteSortedIDs(path string, ids []string) error {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	var b strings.Builder
	for _, id := range sorted {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write id export: %w", err)
	}
	return nil
}
