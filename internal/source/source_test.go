package source

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestOpenPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plate.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, 12, 7), 0644))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, None, s.Compression)

	cfg, format, err := s.Probe()
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 12, cfg.Width)
	require.Equal(t, 7, cfg.Height)

	img, err := s.Decode(false)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 12, 7), img.Bounds())
}

func TestOpenTIFF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, image.NewGray16(image.Rect(0, 0, 9, 5)), nil))
	path := filepath.Join(t.TempDir(), "plate.tif")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	cfg, format, err := s.Probe()
	require.NoError(t, err)
	require.Equal(t, "tiff", format)
	require.Equal(t, 9, cfg.Width)
}

func TestOpenZstd(t *testing.T) {
	raw := encodePNG(t, 20, 10)
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(raw, nil)
	require.NoError(t, enc.Close())

	path := filepath.Join(t.TempDir(), "plate.png.zst")
	require.NoError(t, os.WriteFile(path, compressed, 0644))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, Zstd, s.Compression)
	cfg, _, err := s.Probe()
	require.NoError(t, err)
	require.Equal(t, 20, cfg.Width)

	// Probe rewinds, so a full decode still works.
	img, err := s.Decode(false)
	require.NoError(t, err)
	require.Equal(t, 10, img.Bounds().Dy())
}

func TestOpenSeekableZstd(t *testing.T) {
	raw := encodePNG(t, 8, 6)
	path := filepath.Join(t.TempDir(), "plate.png.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	w, err := seekable.NewWriter(f, enc)
	require.NoError(t, err)
	_, err = w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, SeekableZstd, s.Compression)
	img, err := s.Decode(false)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "short.png")
	require.NoError(t, os.WriteFile(path, []byte("ab"), 0644))
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, _, err = s.Probe()
	require.Error(t, err)
}

func TestIsImageName(t *testing.T) {
	for name, want := range map[string]bool{
		"plate.png":     true,
		"PLATE.TIF":     true,
		"plate.tiff":    true,
		"plate.jpeg":    true,
		"plate.bmp.zst": true,
		"notes.txt":     false,
		"archive.zst":   false,
		"patches":       false,
	} {
		require.Equal(t, want, IsImageName(name), name)
	}
}
