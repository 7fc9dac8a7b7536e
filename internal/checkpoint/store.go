// Package checkpoint persists scraper progress so an interrupted run resumes
// without repeating completed work. Durability is layered: a synced
// write-ahead journal records every discovered ID immediately, and JSON
// snapshots of the full state are written atomically at a coarser cadence.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config locates the checkpoint files and tunes save cadence.
type Config struct {
	// Dir holds every checkpoint artifact. Created if absent.
	Dir string
	// SnapshotFile is the progress snapshot, default "checkpoint.json".
	SnapshotFile string
	// DiscoveredFile is the discovered-ID list, default "discovered_ids.json".
	// The journal lives next to it with a ".journal" suffix.
	DiscoveredFile string
	// LegacyIDsFile names the flat one-ID-per-line file older runs wrote,
	// default "reg_ids.txt". Migrated into DiscoveredFile on first load.
	LegacyIDsFile string
	// SaveInterval is the number of new discoveries between automatic
	// snapshot saves, default 50.
	SaveInterval int
	// CombinationMode switches the snapshot between prefix keys and
	// combination keys. Purely a labeling concern; both load identically.
	CombinationMode bool
}

func (c *Config) applyDefaults() {
	if c.SnapshotFile == "" {
		c.SnapshotFile = "checkpoint.json"
	}
	if c.DiscoveredFile == "" {
		c.DiscoveredFile = "discovered_ids.json"
	}
	if c.LegacyIDsFile == "" {
		c.LegacyIDsFile = "reg_ids.txt"
	}
	if c.SaveInterval <= 0 {
		c.SaveInterval = 50
	}
}

// Stats are the run counters carried inside the snapshot.
type Stats struct {
	TotalDiscovered int       `json:"total_discovered"`
	TotalExtracted  int       `json:"total_extracted"`
	Errors          int       `json:"errors"`
	Abandoned       int       `json:"abandoned"`
	StartTime       time.Time `json:"start_time"`
	LastSaveTime    time.Time `json:"last_save_time"`
}

// Summary is a read-only progress view for status output and the HTTP API.
type Summary struct {
	Discovered     int    `json:"discovered"`
	Extracted      int    `json:"extracted"`
	Pending        int    `json:"pending"`
	Failed         int    `json:"failed"`
	CompletedUnits int    `json:"completed_units"`
	AbandonedUnits int    `json:"abandoned_units"`
	CurrentUnit    string `json:"current_unit,omitempty"`
	CurrentPage    int    `json:"current_page,omitempty"`
	Stats          Stats  `json:"stats"`
}

type snapshot struct {
	CompletedPrefixes     []string `json:"completed_prefixes,omitempty"`
	CompletedCombinations []string `json:"completed_combinations,omitempty"`
	Abandoned             []string `json:"abandoned,omitempty"`
	ExtractedRegIDs       []string `json:"extracted_reg_ids"`
	FailedRegIDs          []string `json:"failed_reg_ids"`
	CurrentPrefix         string   `json:"current_prefix,omitempty"`
	CurrentCombination    string   `json:"current_combination,omitempty"`
	CurrentPage           int      `json:"current_page"`
	Stats                 Stats    `json:"stats"`
}

type discoveredFile struct {
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	TotalCount  int       `json:"total_count"`
	RegIDs      []string  `json:"reg_ids"`
}

// Store owns the checkpoint files for one scraper run. It is a single-writer
// structure; the discovery and extraction loops are sequential and no two
// processes may share a checkpoint directory.
type Store struct {
	cfg Config
	log *zap.Logger

	journal *journal

	discovered    []string
	discoveredSet map[string]struct{}
	completed     map[string]struct{}
	abandoned     map[string]struct{}
	extracted     map[string]struct{}
	failed        map[string]struct{}

	currentKey  string
	currentPage int
	stats       Stats
	sinceSave   int
}

// Open loads any existing checkpoint state from cfg.Dir and opens the journal
// for appending. Missing files mean a fresh run.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	cfg.applyDefaults()
	if cfg.Dir == "" {
		return nil, fmt.Errorf("checkpoint dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	s := &Store{
		cfg:           cfg,
		log:           log,
		discoveredSet: make(map[string]struct{}),
		completed:     make(map[string]struct{}),
		abandoned:     make(map[string]struct{}),
		extracted:     make(map[string]struct{}),
		failed:        make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if s.stats.StartTime.IsZero() {
		s.stats.StartTime = time.Now().UTC()
	}

	j, err := openJournal(s.journalPath())
	if err != nil {
		return nil, err
	}
	s.journal = j
	return s, nil
}

func (s *Store) discoveredPath() string { return filepath.Join(s.cfg.Dir, s.cfg.DiscoveredFile) }
func (s *Store) snapshotPath() string   { return filepath.Join(s.cfg.Dir, s.cfg.SnapshotFile) }
func (s *Store) legacyPath() string     { return filepath.Join(s.cfg.Dir, s.cfg.LegacyIDsFile) }
func (s *Store) journalPath() string    { return s.discoveredPath() + ".journal" }

func (s *Store) load() error {
	recovered, err := s.loadDiscovered()
	if err != nil {
		return err
	}
	if err := s.loadSnapshot(); err != nil {
		return err
	}
	s.stats.TotalDiscovered = len(s.discovered)
	s.stats.TotalExtracted = len(s.extracted)
	if recovered > 0 {
		// The journal ran ahead of the last snapshot; persist the recovered
		// IDs now so the window of divergence closes immediately.
		s.log.Info("recovered unsaved discoveries from journal",
			zap.Int("count", recovered))
		if err := s.Save(); err != nil {
			return fmt.Errorf("save recovered state: %w", err)
		}
	}
	return nil
}

// loadDiscovered populates the discovered list from the JSON file (falling
// back to a legacy flat file), then replays the journal on top. It returns
// how many journal IDs were missing from the saved list.
func (s *Store) loadDiscovered() (int, error) {
	var df discoveredFile
	err := readJSON(s.discoveredPath(), &df)
	switch {
	case err == nil:
		for _, id := range df.RegIDs {
			s.addDiscovered(id)
		}
		if !df.StartedAt.IsZero() {
			s.stats.StartTime = df.StartedAt
		}
	case os.IsNotExist(err):
		if migrated, merr := s.migrateLegacy(); merr != nil {
			return 0, merr
		} else if migrated > 0 {
			s.log.Info("migrated legacy id file", zap.Int("count", migrated))
		}
	default:
		return 0, fmt.Errorf("load discovered ids: %w", err)
	}

	journalIDs, err := replayJournal(s.journalPath())
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, id := range journalIDs {
		if s.addDiscovered(id) {
			recovered++
		}
	}
	return recovered, nil
}

func (s *Store) migrateLegacy() (int, error) {
	data, err := os.ReadFile(s.legacyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read legacy id file: %w", err)
	}
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if id := strings.TrimSpace(line); id != "" && s.addDiscovered(id) {
			n++
		}
	}
	return n, nil
}

func (s *Store) loadSnapshot() error {
	var snap snapshot
	if err := readJSON(s.snapshotPath(), &snap); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load snapshot: %w", err)
	}
	for _, k := range snap.CompletedPrefixes {
		s.completed[k] = struct{}{}
	}
	for _, k := range snap.CompletedCombinations {
		s.completed[k] = struct{}{}
	}
	for _, k := range snap.Abandoned {
		s.abandoned[k] = struct{}{}
	}
	for _, id := range snap.ExtractedRegIDs {
		s.extracted[id] = struct{}{}
	}
	for _, id := range snap.FailedRegIDs {
		s.failed[id] = struct{}{}
	}
	s.currentKey = snap.CurrentPrefix
	if snap.CurrentCombination != "" {
		s.currentKey = snap.CurrentCombination
	}
	s.currentPage = snap.CurrentPage
	s.stats = snap.Stats
	return nil
}

func (s *Store) addDiscovered(id string) bool {
	if _, ok := s.discoveredSet[id]; ok {
		return false
	}
	s.discoveredSet[id] = struct{}{}
	s.discovered = append(s.discovered, id)
	return true
}

// RecordDiscovery journals id and adds it to the discovered set. The journal
// write happens first and is synced, so a true return means the ID is
// durable. Duplicates return false without touching disk.
func (s *Store) RecordDiscovery(id string) (bool, error) {
	if _, ok := s.discoveredSet[id]; ok {
		return false, nil
	}
	if err := s.journal.append(id); err != nil {
		return false, err
	}
	s.addDiscovered(id)
	s.stats.TotalDiscovered = len(s.discovered)
	s.sinceSave++
	return true, nil
}

// MarkUnitComplete records a search unit as finished. Completed units are
// never re-searched on resume.
func (s *Store) MarkUnitComplete(key string) {
	s.completed[key] = struct{}{}
}

// MarkAbandoned records a unit that exhausted its retries. The unit enters
// the completed set so resumes skip it, and the abandoned set so it is
// reported separately and can be re-queued by hand.
func (s *Store) MarkAbandoned(key string) {
	s.completed[key] = struct{}{}
	s.abandoned[key] = struct{}{}
	s.stats.Abandoned = len(s.abandoned)
}

// RecordError bumps the error counter. Discovery calls it once per failed
// search attempt, so an abandoned unit contributes one error per retry.
func (s *Store) RecordError() {
	s.stats.Errors++
}

// IsCompleted reports whether the unit key has been finished or abandoned.
func (s *Store) IsCompleted(key string) bool {
	_, ok := s.completed[key]
	return ok
}

// CompletedSet returns a copy of the completed unit keys.
func (s *Store) CompletedSet() map[string]struct{} {
	out := make(map[string]struct{}, len(s.completed))
	for k := range s.completed {
		out[k] = struct{}{}
	}
	return out
}

// AbandonedUnits returns the abandoned unit keys, sorted.
func (s *Store) AbandonedUnits() []string {
	out := make([]string, 0, len(s.abandoned))
	for k := range s.abandoned {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarkExtracted records a registration ID whose detail record was captured.
func (s *Store) MarkExtracted(id string) {
	s.extracted[id] = struct{}{}
	delete(s.failed, id)
	s.stats.TotalExtracted = len(s.extracted)
}

// IsExtracted reports whether id has already been extracted.
func (s *Store) IsExtracted(id string) bool {
	_, ok := s.extracted[id]
	return ok
}

// MarkFailed records an extraction failure. Failed IDs stay pending.
func (s *Store) MarkFailed(id string) {
	s.failed[id] = struct{}{}
	s.stats.Errors++
}

// FailedIDs returns the failed registration IDs, sorted.
func (s *Store) FailedIDs() []string {
	out := make([]string, 0, len(s.failed))
	for id := range s.failed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ClearFailed removes id from the failed set ahead of a retry pass.
func (s *Store) ClearFailed(id string) {
	delete(s.failed, id)
}

// Discovered returns the discovered IDs in discovery order.
func (s *Store) Discovered() []string {
	out := make([]string, len(s.discovered))
	copy(out, s.discovered)
	return out
}

// Pending returns discovered-but-not-extracted IDs in discovery order, so
// repeated runs work the backlog deterministically.
func (s *Store) Pending() []string {
	var out []string
	for _, id := range s.discovered {
		if _, done := s.extracted[id]; !done {
			out = append(out, id)
		}
	}
	return out
}

// SetPosition records where the discovery loop is, for display and so a
// resume report can show how far the interrupted unit had paged.
func (s *Store) SetPosition(key string, page int) {
	s.currentKey = key
	s.currentPage = page
}

// Position returns the last recorded unit key and page. A resumed run
// searches that unit first rather than re-walking the plan from the top.
func (s *Store) Position() (string, int) {
	return s.currentKey, s.currentPage
}

// Save writes the discovered list and the snapshot atomically.
func (s *Store) Save() error {
	now := time.Now().UTC()
	df := discoveredFile{
		StartedAt:   s.stats.StartTime,
		LastUpdated: now,
		TotalCount:  len(s.discovered),
		RegIDs:      s.discovered,
	}
	if err := writeJSONAtomic(s.discoveredPath(), df); err != nil {
		return fmt.Errorf("save discovered ids: %w", err)
	}

	s.stats.LastSaveTime = now
	snap := snapshot{
		Abandoned:       setToSorted(s.abandoned),
		ExtractedRegIDs: setToSorted(s.extracted),
		FailedRegIDs:    setToSorted(s.failed),
		CurrentPage:     s.currentPage,
		Stats:           s.stats,
	}
	if s.cfg.CombinationMode {
		snap.CompletedCombinations = setToSorted(s.completed)
		snap.CurrentCombination = s.currentKey
	} else {
		snap.CompletedPrefixes = setToSorted(s.completed)
		snap.CurrentPrefix = s.currentKey
	}
	if err := writeJSONAtomic(s.snapshotPath(), snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.sinceSave = 0
	return nil
}

// MaybeSave saves when enough discoveries accumulated since the last save.
func (s *Store) MaybeSave() (bool, error) {
	if s.sinceSave < s.cfg.SaveInterval {
		return false, nil
	}
	if err := s.Save(); err != nil {
		return false, err
	}
	return true, nil
}

// Summary reports current progress.
func (s *Store) Summary() Summary {
	return Summary{
		Discovered:     len(s.discovered),
		Extracted:      len(s.extracted),
		Pending:        len(s.discovered) - len(s.extracted),
		Failed:         len(s.failed),
		CompletedUnits: len(s.completed),
		AbandonedUnits: len(s.abandoned),
		CurrentUnit:    s.currentKey,
		CurrentPage:    s.currentPage,
		Stats:          s.stats,
	}
}

// Reset archives the current checkpoint files into a timestamped subdirectory
// and reinitializes empty state. The journal is reopened fresh.
func (s *Store) Reset() error {
	if err := s.journal.close(); err != nil {
		return err
	}
	archive := filepath.Join(s.cfg.Dir, "archive-"+time.Now().UTC().Format("20060102-150405"))
	if err := os.MkdirAll(archive, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	for _, path := range []string{s.discoveredPath(), s.snapshotPath(), s.journalPath(), s.legacyPath()} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		dst := filepath.Join(archive, filepath.Base(path))
		if err := os.Rename(path, dst); err != nil {
			return fmt.Errorf("archive %s: %w", filepath.Base(path), err)
		}
	}
	s.log.Info("checkpoint reset", zap.String("archive", archive))

	s.discovered = nil
	s.discoveredSet = make(map[string]struct{})
	s.completed = make(map[string]struct{})
	s.abandoned = make(map[string]struct{})
	s.extracted = make(map[string]struct{})
	s.failed = make(map[string]struct{})
	s.currentKey = ""
	s.currentPage = 0
	s.stats = Stats{StartTime: time.Now().UTC()}
	s.sinceSave = 0

	j, err := openJournal(s.journalPath())
	if err != nil {
		return err
	}
	s.journal = j
	return nil
}

// Close saves a final snapshot and closes the journal.
func (s *Store) Close() error {
	if err := s.Save(); err != nil {
		return err
	}
	return s.journal.close()
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
