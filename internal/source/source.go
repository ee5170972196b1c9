// Package source opens plate images for slicing.
//
// Sources may be stored plain, as a zstd stream, or in the seekable zstd
// format. Every Source is an io.ReadSeeker so that croppers can re-read the
// image once per patch.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go"
	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zstd"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Compression is the on-disk encoding of a source file.
type Compression int

const (
	None Compression = iota
	Zstd
	SeekableZstd
)

func (c Compression) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case SeekableZstd:
		return "seekable-zstd"
	default:
		return "none"
	}
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Source is an opened image file.
type Source struct {
	io.ReadSeeker

	Path        string
	Compression Compression

	closers []func() error
}

// Open opens the image at path, detecting zstd compression by its magic
// bytes.
func Open(path string) (*Source, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	s := &Source{
		ReadSeeker: f,
		Path:       path,
		closers:    []func() error{f.Close},
	}

	var magic [4]byte
	n, err := io.ReadFull(f, magic[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.Close()
		return nil, err
	}
	if n < len(magic) || !bytes.Equal(magic[:], zstdMagic) {
		return s, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() error {
		dec.Close()
		return nil
	})

	// A seek table footer means random access is available without
	// inflating the whole file.
	if r, err := seekable.NewReader(f, dec); err == nil {
		s.ReadSeeker = r
		s.Compression = SeekableZstd
		s.closers = append(s.closers, r.Close)
		return s, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.Close()
		return nil, err
	}
	if err := dec.Reset(f); err != nil {
		s.Close()
		return nil, err
	}
	data, err := io.ReadAll(dec)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("inflate zstd %q err, %w", path, err)
	}
	s.ReadSeeker = bytes.NewReader(data)
	s.Compression = Zstd
	return s, nil
}

// Rewind seeks back to the start of the image data.
func (s *Source) Rewind() error {
	_, err := s.Seek(0, io.SeekStart)
	return err
}

// Probe returns the registered format name and config of the image without
// decoding pixel data. The source is rewound afterwards.
func (s *Source) Probe() (image.Config, string, error) {
	if err := s.Rewind(); err != nil {
		return image.Config{}, "", err
	}
	cfg, format, err := image.DecodeConfig(s)
	if err != nil {
		return image.Config{}, "", err
	}
	return cfg, format, s.Rewind()
}

// Decode decodes the full image. When autoOrient is set, EXIF orientation
// tags on JPEG sources are applied.
func (s *Source) Decode(autoOrient bool) (image.Image, error) {
	if err := s.Rewind(); err != nil {
		return nil, err
	}
	return imaging.Decode(s, imaging.AutoOrientation(autoOrient))
}

// Close releases the source in reverse order of acquisition.
func (s *Source) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageName reports whether name has an image extension, optionally
// followed by ".zst".
func IsImageName(name string) bool {
	name = strings.ToLower(name)
	name = strings.TrimSuffix(name, ".zst")
	return imageExts[filepath.Ext(name)]
}
