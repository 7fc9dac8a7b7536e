package extraction

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/regharvest/regharvest/internal/registry"
)

// CSVSink writes the published output file. Rows are flushed as they are
// written; on resume the existing file is scanned so IDs are never
// duplicated across runs.
type CSVSink struct {
	f    *os.File
	w    *csv.Writer
	seen map[string]struct{}
}

// OpenCSVSink opens (or creates) the CSV at path, writing the header when
// the file is new.
func OpenCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	seen, hadRows, err := indexCSV(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	s := &CSVSink{f: f, w: csv.NewWriter(f), seen: seen}
	if !hadRows {
		if err := s.w.Write(registry.CSVHeader()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}
	return s, nil
}

// indexCSV collects the reg_id column of an existing file. hadRows reports
// whether the file already had a header.
func indexCSV(path string) (map[string]struct{}, bool, error) {
	seen := make(map[string]struct{})
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return seen, false, nil
		}
		return nil, false, fmt.Errorf("open csv for indexing: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	hadRows := false
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("index csv: %w", err)
		}
		hadRows = true
		if first {
			first = false
			continue
		}
		if len(row) > 0 && row[0] != "" {
			seen[row[0]] = struct{}{}
		}
	}
	return seen, hadRows, nil
}

// Has reports whether regID already has a row.
func (s *CSVSink) Has(regID string) bool {
	_, ok := s.seen[regID]
	return ok
}

// Write appends the record's row and flushes it.
func (s *CSVSink) Write(rec *registry.Record) error {
	if s.Has(rec.RegID) {
		return nil
	}
	if err := s.w.Write(rec.CSVRow()); err != nil {
		return fmt.Errorf("write csv row %s: %w", rec.RegID, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv row %s: %w", rec.RegID, err)
	}
	s.seen[rec.RegID] = struct{}{}
	return nil
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return s.f.Close()
}
