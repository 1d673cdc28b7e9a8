package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoredFileNameStripsDirectories(t *testing.T) {
	require.Equal(t, "doc1_paper.pdf", StoredFileName("doc1", "../../etc/paper.pdf"))
	require.Equal(t, "doc1_paper.pdf", StoredFileName("doc1", `C:\Users\me\paper.pdf`))
	require.Equal(t, "doc1_upload.pdf", StoredFileName("doc1", ""))
}

func TestAtomicWriters(t *testing.T) {
	dir := t.TempDir()
	type row struct {
		N int `json:"n"`
	}
	path := filepath.Join(dir, "nested", "rows.jsonl")
	require.NoError(t, WriteJSONLinesAtomic(path, []row{{N: 1}, {N: 2}}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\"n\":1}\n{\"n\":2}\n", string(b))

	require.NoError(t, WriteJSONAtomic(filepath.Join(dir, "meta.json"), map[string]int{"pages": 3}))
	require.NoError(t, WriteTextAtomic(filepath.Join(dir, "text.txt"), "hello"))
	b, err = os.ReadFile(filepath.Join(dir, "text.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), "tmp-"), "temp file left behind: %s", e.Name())
	}

	require.NoError(t, RemoveIfExists(filepath.Join(dir, "nested")))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	require.NoError(t, RemoveIfExists(filepath.Join(dir, "missing")))
}

func TestChunkIDStable(t *testing.T) {
	id := ChunkID("d", 0, "x")
	require.Len(t, id, 64)
	require.Equal(t, id, ChunkID("d", 0, "x"))
	require.NotEqual(t, id, ChunkID("d", 1, "x"))
	require.NotEqual(t, id, ChunkID("e", 0, "x"))
	require.NotEqual(t, id, ChunkID("d", 0, "y"))
}

func TestCopyWithChecksum(t *testing.T) {
	var dst strings.Builder
	n, sum, err := CopyWithChecksum(&dst, strings.NewReader("abc"))
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.Equal(t, "abc", dst.String())
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
}
