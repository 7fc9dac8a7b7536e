package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	s, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestRecordDiscoveryDedup(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Config{})
	added, err := s.RecordDiscovery("MED0001234567")
	require.NoError(t, err)
	require.True(t, added)

	added, err = s.RecordDiscovery("MED0001234567")
	require.NoError(t, err)
	require.False(t, added)

	require.Equal(t, []string{"MED0001234567"}, s.Discovered())
	require.NoError(t, s.Close())
}

func TestRecordDiscoveryJournaledBeforeReturn(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestStore(t, Config{Dir: dir})
	_, err := s.RecordDiscovery("NMW0009876543")
	require.NoError(t, err)

	// The journal must contain the ID even though no snapshot was saved.
	data, err := os.ReadFile(filepath.Join(dir, "discovered_ids.json.journal"))
	require.NoError(t, err)
	require.Equal(t, "NMW0009876543\n", string(data))
	require.NoError(t, s.Close())
}

func TestLoadRecoversFromJournalOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestStore(t, Config{Dir: dir})
	_, err := s.RecordDiscovery("MED0000000001")
	require.NoError(t, err)
	_, err = s.RecordDiscovery("MED0000000002")
	require.NoError(t, err)
	// Simulate a crash: journal is synced but no snapshot was written.
	require.NoError(t, s.journal.close())

	reopened := newTestStore(t, Config{Dir: dir})
	require.Equal(t, []string{"MED0000000001", "MED0000000002"}, reopened.Discovered())

	// Recovery must have saved immediately.
	var df discoveredFile
	require.NoError(t, readJSON(filepath.Join(dir, "discovered_ids.json"), &df))
	require.Equal(t, 2, df.TotalCount)
	require.NoError(t, reopened.Close())
}

func TestSaveAndReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestStore(t, Config{Dir: dir})
	_, err := s.RecordDiscovery("MED0000000001")
	require.NoError(t, err)
	s.MarkUnitComplete("A")
	s.MarkUnitComplete("B")
	s.RecordError()
	s.RecordError()
	s.MarkAbandoned("SM")
	s.MarkExtracted("MED0000000001")
	s.MarkFailed("MED0000000009")
	s.SetPosition("C", 3)
	require.NoError(t, s.Close())

	r := newTestStore(t, Config{Dir: dir})
	require.True(t, r.IsCompleted("A"))
	require.True(t, r.IsCompleted("B"))
	require.True(t, r.IsCompleted("SM"), "abandoned unit must not be re-searched")
	require.Equal(t, []string{"SM"}, r.AbandonedUnits())
	require.True(t, r.IsExtracted("MED0000000001"))
	require.Equal(t, []string{"MED0000000009"}, r.FailedIDs())

	sum := r.Summary()
	require.Equal(t, 1, sum.Discovered)
	require.Equal(t, 1, sum.Extracted)
	require.Equal(t, 1, sum.AbandonedUnits)
	require.Equal(t, "C", sum.CurrentUnit)
	require.Equal(t, 3, sum.CurrentPage)
	// Two search failures plus one extraction failure.
	require.Equal(t, 3, sum.Stats.Errors)
	key, page := r.Position()
	require.Equal(t, "C", key)
	require.Equal(t, 3, page)
	require.NoError(t, r.Close())
}

func TestCombinationModeSnapshotFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestStore(t, Config{Dir: dir, CombinationMode: true})
	s.MarkUnitComplete("Nurse|Victoria|A")
	s.SetPosition("Nurse|Victoria|B", 1)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, "checkpoint.json"))
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "completed_combinations")
	require.Contains(t, raw, "current_combination")
	require.NotContains(t, raw, "completed_prefixes")

	// A prefix-mode store still loads combination snapshots.
	r := newTestStore(t, Config{Dir: dir})
	require.True(t, r.IsCompleted("Nurse|Victoria|A"))
	require.NoError(t, r.Close())
}

func TestLegacyIDFileMigration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	legacy := "MED0000000001\nMED0000000002\n\nMED0000000001\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reg_ids.txt"), []byte(legacy), 0o644))

	s := newTestStore(t, Config{Dir: dir})
	require.Equal(t, []string{"MED0000000001", "MED0000000002"}, s.Discovered())
	require.NoError(t, s.Close())
}

func TestPendingInsertionOrder(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Config{})
	for _, id := range []string{"C3", "A1", "B2"} {
		_, err := s.RecordDiscovery(id)
		require.NoError(t, err)
	}
	s.MarkExtracted("A1")
	require.Equal(t, []string{"C3", "B2"}, s.Pending())
	require.NoError(t, s.Close())
}

func TestMaybeSaveInterval(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestStore(t, Config{Dir: dir, SaveInterval: 3})
	for i, id := range []string{"X1", "X2"} {
		_, err := s.RecordDiscovery(id)
		require.NoError(t, err)
		saved, err := s.MaybeSave()
		require.NoError(t, err)
		require.False(t, saved, "save %d too early", i)
	}
	_, err := s.RecordDiscovery("X3")
	require.NoError(t, err)
	saved, err := s.MaybeSave()
	require.NoError(t, err)
	require.True(t, saved)

	// Counter resets after a save.
	saved, err = s.MaybeSave()
	require.NoError(t, err)
	require.False(t, saved)
	require.NoError(t, s.Close())
}

func TestMarkExtractedClearsFailed(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Config{})
	s.MarkFailed("MED0000000007")
	s.MarkExtracted("MED0000000007")
	require.Empty(t, s.FailedIDs())
	require.True(t, s.IsExtracted("MED0000000007"))
	require.NoError(t, s.Close())
}

func TestResetArchivesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestStore(t, Config{Dir: dir})
	_, err := s.RecordDiscovery("MED0000000001")
	require.NoError(t, err)
	s.MarkUnitComplete("A")
	require.NoError(t, s.Save())

	require.NoError(t, s.Reset())
	require.Empty(t, s.Discovered())
	require.False(t, s.IsCompleted("A"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var archives []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "archive-") {
			archives = append(archives, e.Name())
		}
	}
	require.Len(t, archives, 1)

	// The store stays usable after a reset.
	added, err := s.RecordDiscovery("MED0000000002")
	require.NoError(t, err)
	require.True(t, added)
	require.NoError(t, s.Close())
}

func TestDiscoveredFileFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestStore(t, Config{Dir: dir})
	_, err := s.RecordDiscovery("MED0000000001")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, "discovered_ids.json"))
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"started_at", "last_updated", "total_count", "reg_ids"} {
		require.Contains(t, raw, field)
	}
}
