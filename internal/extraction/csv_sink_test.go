package extraction

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regharvest/regharvest/internal/registry"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := OpenCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(&registry.Record{RegID: "MED1", Name: "Jane CITIZEN"}))
	require.NoError(t, s.Close())

	// Reopen and append another row; no second header.
	s, err = OpenCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(&registry.Record{RegID: "MED2", Name: "John CITIZEN"}))
	require.NoError(t, s.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	require.Equal(t, registry.CSVHeader(), rows[0])
	require.Equal(t, "MED1", rows[1][0])
	require.Equal(t, "MED2", rows[2][0])
}

func TestCSVSinkDeduplicatesAcrossRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := OpenCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(&registry.Record{RegID: "MED1", Name: "Jane CITIZEN"}))
	require.NoError(t, s.Close())

	s, err = OpenCSVSink(path)
	require.NoError(t, err)
	require.True(t, s.Has("MED1"))
	require.NoError(t, s.Write(&registry.Record{RegID: "MED1", Name: "Jane CITIZEN"}))
	require.NoError(t, s.Close())

	require.Len(t, readCSV(t, path), 2)
}

func TestCSVSinkDeduplicatesWithinRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := OpenCSVSink(path)
	require.NoError(t, err)
	rec := &registry.Record{RegID: "MED1", Name: "Jane CITIZEN"}
	require.NoError(t, s.Write(rec))
	require.NoError(t, s.Write(rec))
	require.NoError(t, s.Close())

	require.Len(t, readCSV(t, path), 2)
}
