package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBlobStore struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeBlobStore) PutObject(_ context.Context, path, contentType string, data []byte) (string, error) {
	if f.objects == nil {
		f.objects = map[string][]byte{}
		f.types = map[string]string{}
	}
	f.objects[path] = data
	f.types[path] = contentType
	return "fake://" + path, nil
}

func TestExportUploadsExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	checkpointPath := filepath.Join(dir, "checkpoint.json")
	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(checkpointPath, []byte(`{"stats":{}}`), 0o644))
	require.NoError(t, os.WriteFile(csvPath, []byte("reg_id\n"), 0o644))

	store := &fakeBlobStore{}
	e := New(store, zap.NewNop())
	uris, err := e.Export(context.Background(), "runs/2026-08-30", []string{
		checkpointPath,
		csvPath,
		filepath.Join(dir, "missing.jsonl"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"fake://runs/2026-08-30/checkpoint.json",
		"fake://runs/2026-08-30/out.csv",
	}, uris)
	require.Equal(t, "application/json", store.types["runs/2026-08-30/checkpoint.json"])
	require.Equal(t, "text/csv", store.types["runs/2026-08-30/out.csv"])
}

func TestWriteSortedIDs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exports", "reg_ids.txt")
	require.NoError(t, WriteSortedIDs(path, []string{"C", "A", "B"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "A\nB\nC\n", string(data))
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, "application/json", contentTypeFor("a/b/checkpoint.json"))
	require.Equal(t, "application/x-ndjson", contentTypeFor("records.jsonl"))
	require.Equal(t, "application/x-ndjson", contentTypeFor("ids.journal"))
	require.Equal(t, "text/csv", contentTypeFor("out.CSV"))
	require.Equal(t, "application/octet-stream", contentTypeFor("reg_ids.txt"))
}
