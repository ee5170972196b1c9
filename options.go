package platepatch

import (
	"fmt"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/sebnyberg/platepatch/internal/source"
	"github.com/sebnyberg/platepatch/vipsx"
)

// Backend selects the Cropper used to cut patches.
type Backend int

const (
	// Auto streams uncompressed BMP sources to BMP patches and decodes
	// everything else in memory.
	Auto Backend = iota
	ImageBackend
	BMPBackend
	VipsBackend
)

func (b Backend) String() string {
	switch b {
	case ImageBackend:
		return "image"
	case BMPBackend:
		return "bmp"
	case VipsBackend:
		return "vips"
	default:
		return "auto"
	}
}

func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return Auto, nil
	case "image":
		return ImageBackend, nil
	case "bmp":
		return BMPBackend, nil
	case "vips":
		return VipsBackend, nil
	}
	return Auto, fmt.Errorf("unknown backend %q", s)
}

// Compression of written patch files.
type Compression = source.Compression

const (
	NoCompression = source.None
	Zstd          = source.Zstd
	SeekableZstd  = source.SeekableZstd
)

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return NoCompression, nil
	case "zstd":
		return Zstd, nil
	case "seekable", "seekable-zstd":
		return SeekableZstd, nil
	}
	return NoCompression, fmt.Errorf("unknown compression %q", s)
}

// DefaultFormat is the extension of patch files unless WithFormat is given.
const DefaultFormat = "png"

type options struct {
	grid        Grid
	format      string
	backend     Backend
	compression Compression
	autoOrient  bool
	pngLevel    png.CompressionLevel
	jpegQuality int
	logger      *zap.Logger
}

// Option configures slicing.
type Option func(*options)

func WithGrid(rows, cols int) Option {
	return func(o *options) { o.grid = Grid{Rows: rows, Cols: cols} }
}

// WithFormat sets the patch file extension, which also selects the encoder.
func WithFormat(ext string) Option {
	return func(o *options) { o.format = strings.ToLower(strings.TrimPrefix(ext, ".")) }
}

func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithAutoOrient applies EXIF orientation before slicing. Only the image
// backend honours it.
func WithAutoOrient(v bool) Option {
	return func(o *options) { o.autoOrient = v }
}

func WithPNGCompression(level png.CompressionLevel) Option {
	return func(o *options) { o.pngLevel = level }
}

func WithJPEGQuality(q int) Option {
	return func(o *options) { o.jpegQuality = q }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		grid:        DefaultGrid(),
		format:      DefaultFormat,
		pngLevel:    png.DefaultCompression,
		jpegQuality: 95,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) validate() error {
	if o.grid.Rows <= 0 || o.grid.Cols <= 0 {
		return fmt.Errorf("invalid grid %dx%d", o.grid.Rows, o.grid.Cols)
	}
	if _, err := imaging.FormatFromExtension(o.format); err != nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, o.format)
	}
	switch o.backend {
	case BMPBackend:
		if o.format != "bmp" {
			return fmt.Errorf("%w: bmp backend cannot write %q", ErrUnsupportedFormat, o.format)
		}
	case VipsBackend:
		if !vipsx.Supports(o.format) {
			return fmt.Errorf("%w: vips backend cannot write %q", ErrUnsupportedFormat, o.format)
		}
	}
	return nil
}

func (o *options) encodeOptions() []imaging.EncodeOption {
	return []imaging.EncodeOption{
		imaging.PNGCompressionLevel(o.pngLevel),
		imaging.JPEGQuality(o.jpegQuality),
	}
}
