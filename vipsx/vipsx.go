package vipsx

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var startOnce sync.Once

// Startup starts libvips for the lifetime of the process. It is safe to call
// more than once.
func Startup() {
	startOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelCritical)
		vips.Startup(nil)
	})
}

// Cropper crops regions out of an image held in memory and exports them in
// the configured format. The source is read fully on the first crop.
type Cropper struct {
	format string
	mtx    sync.Mutex
	r      io.Reader
	buf    []byte
}

// NewCropper returns a cropper that exports regions as format, one of png,
// jpg, jpeg, tif or tiff.
func NewCropper(r io.Reader, format string) *Cropper {
	return &Cropper{r: r, format: strings.ToLower(format)}
}

func (c *Cropper) Crop(cropArea image.Rectangle, out io.Writer) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.buf == nil {
		buf, err := io.ReadAll(c.r)
		if err != nil {
			return err
		}
		if len(buf) == 0 {
			return errors.New("empty source")
		}
		c.buf = buf
	}
	b, err := Crop(c.buf, cropArea, c.format)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

// Crop extracts cropArea from the encoded image in src and returns it
// encoded as format.
func Crop(src []byte, cropArea image.Rectangle, format string) ([]byte, error) {
	Startup()

	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	bounds := image.Rect(0, 0, img.Width(), img.Height())
	if !cropArea.In(bounds) || cropArea.Empty() {
		return nil, fmt.Errorf("crop area %v outside image %v", cropArea, bounds)
	}
	err = img.ExtractArea(cropArea.Min.X, cropArea.Min.Y, cropArea.Dx(), cropArea.Dy())
	if err != nil {
		return nil, err
	}

	var out []byte
	switch format {
	case "png":
		out, _, err = img.ExportPng(vips.NewPngExportParams())
	case "jpg", "jpeg":
		out, _, err = img.ExportJpeg(vips.NewJpegExportParams())
	case "tif", "tiff":
		out, _, err = img.ExportTiff(vips.NewTiffExportParams())
	default:
		return nil, fmt.Errorf("vips export %q not supported", format)
	}
	return out, err
}

// Supports reports whether Crop can export format.
func Supports(format string) bool {
	switch strings.ToLower(format) {
	case "png", "jpg", "jpeg", "tif", "tiff":
		return true
	}
	return false
}
