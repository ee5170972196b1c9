// Package sink creates patch files on disk.
package sink

import (
	"io"
	"os"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go"
	"github.com/klauspost/compress/zstd"

	"github.com/sebnyberg/platepatch/internal/source"
)

const (
	outflags = os.O_RDWR | os.O_TRUNC | os.O_CREATE
	outperm  = 0640
)

// Ext returns the suffix appended to patch file names for c.
func Ext(c source.Compression) string {
	if c == source.None {
		return ""
	}
	return ".zst"
}

// File is a patch file being written.
type File struct {
	w       io.Writer
	closers []func() error
}

// Create opens path for writing, truncating any existing file. Data written
// to the returned File is compressed according to c.
func Create(path string, c source.Compression) (*File, error) {
	f, err := os.OpenFile(path, outflags, outperm)
	if err != nil {
		return nil, err
	}
	out := &File{w: f, closers: []func() error{f.Close}}

	switch c {
	case source.Zstd:
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			out.Close()
			return nil, err
		}
		out.w = enc
		out.closers = append(out.closers, enc.Close)
	case source.SeekableZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			out.Close()
			return nil, err
		}
		w, err := seekable.NewWriter(f, enc)
		if err != nil {
			enc.Close()
			out.Close()
			return nil, err
		}
		out.w = w
		out.closers = append(out.closers, enc.Close, w.Close)
	}
	return out, nil
}

func (f *File) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

// Close flushes any encoder and closes the file. The first error wins.
func (f *File) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	f.closers = nil
	return first
}
