package sink

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/sebnyberg/platepatch/internal/source"
)

func TestCreateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patch_0_0.png")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{1}, 100), 0644))

	f, err := Create(path, source.None)
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestCreateCompressed(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("patch-bytes "), 500)

	for _, c := range []source.Compression{source.Zstd, source.SeekableZstd} {
		path := filepath.Join(dir, "patch_0_0.png"+Ext(c))
		f, err := Create(path, c)
		require.NoError(t, err)
		_, err = f.Write(payload)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		s, err := source.Open(path)
		require.NoError(t, err)
		require.Equal(t, c, s.Compression)
		got, err := io.ReadAll(s)
		require.NoError(t, err)
		require.NoError(t, s.Close())
		require.Equal(t, payload, got, c.String())
	}
}

func TestCreateZstdStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patch.zst")
	f, err := Create(path, source.Zstd)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	out, err := dec.DecodeAll(raw, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", string(out))
}

func TestExt(t *testing.T) {
	require.Equal(t, "", Ext(source.None))
	require.Equal(t, ".zst", Ext(source.Zstd))
	require.Equal(t, ".zst", Ext(source.SeekableZstd))
}

func TestCreateMissingDir(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "nope", "patch.png"), source.None)
	require.ErrorIs(t, err, os.ErrNotExist)
}
