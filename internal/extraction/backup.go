package extraction

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/regharvest/regharvest/internal/registry"
)

// JSONLBackup is the extraction write-ahead store: every record is appended
// and synced here before it reaches any other sink, so a crash after the
// append loses nothing. A .meta.json sidecar tracks counts for quick status.
type JSONLBackup struct {
	path string
	f    *os.File
	seen map[string]struct{}
}

type backupMeta struct {
	UpdatedAt time.Time `json:"updated_at"`
	Count     int       `json:"count"`
}

// OpenJSONLBackup opens (or creates) the backup at path and indexes the IDs
// already present, so resumed runs skip records that were captured before
// the checkpoint caught up.
func OpenJSONLBackup(path string) (*JSONLBackup, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	seen, err := indexBackup(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	return &JSONLBackup{path: path, f: f, seen: seen}, nil
}

func indexBackup(path string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return seen, nil
		}
		return nil, fmt.Errorf("open backup for indexing: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec struct {
			RegID string `json:"reg_id"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// A torn trailing line from a crash is expected; everything
			// before it is intact.
			continue
		}
		if rec.RegID != "" {
			seen[rec.RegID] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("index backup: %w", err)
	}
	return seen, nil
}

// Has reports whether regID is already backed up.
func (b *JSONLBackup) Has(regID string) bool {
	_, ok := b.seen[regID]
	return ok
}

// Count returns how many records the backup holds.
func (b *JSONLBackup) Count() int {
	return len(b.seen)
}

// Append writes the record as one JSON line and syncs it to disk, then
// refreshes the meta sidecar.
func (b *JSONLBackup) Append(rec *registry.Record) error {
	if b.Has(rec.RegID) {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.RegID, err)
	}
	if _, err := b.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append backup: %w", err)
	}
	if err := b.f.Sync(); err != nil {
		return fmt.Errorf("sync backup: %w", err)
	}
	b.seen[rec.RegID] = struct{}{}
	return b.writeMeta()
}

func (b *JSONLBackup) writeMeta() error {
	meta := backupMeta{UpdatedAt: time.Now().UTC(), Count: len(b.seen)}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup meta: %w", err)
	}
	tmp := b.path + ".meta.json.tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write backup meta: %w", err)
	}
	if err := os.Rename(tmp, b.path+".meta.json"); err != nil {
		return fmt.Errorf("replace backup meta: %w", err)
	}
	return nil
}

// Close closes the backup file.
func (b *JSONLBackup) Close() error {
	return b.f.Close()
}
