// Package platepatch slices plate images into a grid of patch files.
//
// A W x H source split into a Rows x Cols grid yields patches of exactly
// floor(W/Cols) x floor(H/Rows) pixels. Remainder pixels at the right and
// bottom edges belong to no patch and are discarded.
package platepatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sebnyberg/platepatch/bmpx"
	"github.com/sebnyberg/platepatch/internal/sink"
	"github.com/sebnyberg/platepatch/internal/source"
	"github.com/sebnyberg/platepatch/vipsx"
)

// Patch is a written patch file.
type Patch struct {
	Row  int
	Col  int
	Rect image.Rectangle
	Path string
}

// Result describes a slicing run. Patches are in row-major order. On error,
// Patches holds the files written before the failure.
type Result struct {
	Source      string
	Width       int
	Height      int
	PatchWidth  int
	PatchHeight int
	Grid        Grid
	Backend     Backend
	Patches     []Patch
}

// Paths returns the patch file paths in row-major order.
func (r Result) Paths() []string {
	paths := make([]string, len(r.Patches))
	for i, p := range r.Patches {
		paths[i] = p.Path
	}
	return paths
}

// SliceFile decodes the image at imagePath and writes one file per grid cell
// to outputDir, named {prefix}_{row}_{col}.{ext}. Existing files are
// overwritten.
//
// Nothing is written when the source cannot be decoded. A failure while
// writing leaves earlier patches on disk.
func SliceFile(ctx context.Context, imagePath, outputDir, prefix string, opts ...Option) (Result, error) {
	o := newOptions(opts)
	res := Result{Source: imagePath, Grid: o.grid}
	if err := o.validate(); err != nil {
		return res, err
	}
	if err := validatePrefix(prefix); err != nil {
		return res, err
	}

	src, err := source.Open(imagePath)
	if err != nil {
		return res, decodeErr("open file", imagePath, err)
	}
	defer src.Close()

	cfg, format, err := src.Probe()
	if err != nil {
		return res, decodeErr("decode config", imagePath, err)
	}

	backend := o.backend
	if backend == Auto {
		backend = ImageBackend
		if format == "bmp" && o.format == "bmp" {
			backend = BMPBackend
		}
	}

	var cropper Cropper
	var bounds image.Rectangle
	switch backend {
	case BMPBackend:
		_, err := bmpx.Probe(src)
		if rerr := src.Rewind(); err == nil {
			err = rerr
		}
		if err == nil {
			bounds = image.Rect(0, 0, cfg.Width, cfg.Height)
			cropper = bmpx.NewCropper(src)
			break
		}
		if o.backend != Auto || !errors.Is(err, bmpx.ErrUnsupported) {
			return res, decodeErr("decode bmp header", imagePath, err)
		}
		o.logger.Debug("bmp not streamable, decoding instead",
			zap.String("source", imagePath), zap.Error(err))
		backend = ImageBackend
	case VipsBackend:
		bounds = image.Rect(0, 0, cfg.Width, cfg.Height)
		cropper = vipsx.NewCropper(src, o.format)
	}
	if backend == ImageBackend {
		img, err := src.Decode(o.autoOrient)
		if err != nil {
			return res, decodeErr("decode", imagePath, err)
		}
		bounds = img.Bounds()
		cropper, err = NewImageCropper(img, o.format, o.encodeOptions()...)
		if err != nil {
			return res, fmt.Errorf("%w: %q", ErrUnsupportedFormat, o.format)
		}
	}
	res.Backend = backend

	return slice(ctx, cropper, bounds, outputDir, prefix, o, res)
}

// SliceImage slices an already decoded image. The backend option is ignored.
func SliceImage(ctx context.Context, img image.Image, outputDir, prefix string, opts ...Option) (Result, error) {
	o := newOptions(opts)
	res := Result{Grid: o.grid, Backend: ImageBackend}
	if err := o.validate(); err != nil {
		return res, err
	}
	if err := validatePrefix(prefix); err != nil {
		return res, err
	}
	cropper, err := NewImageCropper(img, o.format, o.encodeOptions()...)
	if err != nil {
		return res, fmt.Errorf("%w: %q", ErrUnsupportedFormat, o.format)
	}
	return slice(ctx, cropper, img.Bounds(), outputDir, prefix, o, res)
}

func slice(
	ctx context.Context,
	cropper Cropper,
	bounds image.Rectangle,
	outputDir, prefix string,
	o *options,
	res Result,
) (Result, error) {
	g := o.grid
	res.Width, res.Height = bounds.Dx(), bounds.Dy()
	if !g.Fits(res.Width, res.Height) {
		err := fmt.Errorf("%w: %dx%d source for %dx%d grid",
			ErrTooSmall, res.Width, res.Height, g.Rows, g.Cols)
		return res, decodeErr("slice", res.Source, err)
	}
	res.PatchWidth, res.PatchHeight = g.PatchSize(res.Width, res.Height)

	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return res, ioErr("create dir", outputDir, err)
	}

	res.Patches = make([]Patch, 0, g.Rows*g.Cols)
	var buf bytes.Buffer
	for i := 0; i < g.Rows; i++ {
		for j := 0; j < g.Cols; j++ {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			rect := g.Rect(bounds, i, j)
			path := filepath.Join(outputDir, g.PatchName(prefix, i, j, o.format)+sink.Ext(o.compression))

			buf.Reset()
			if err := cropper.Crop(rect, &buf); err != nil {
				if errors.Is(err, io.ErrUnexpectedEOF) {
					return res, decodeErr("crop", res.Source, err)
				}
				return res, ioErr("crop", path, err)
			}
			if err := writeFile(path, buf.Bytes(), o.compression); err != nil {
				return res, ioErr("write file", path, err)
			}
			res.Patches = append(res.Patches, Patch{Row: i, Col: j, Rect: rect, Path: path})
			o.logger.Debug("wrote patch",
				zap.String("path", path),
				zap.Stringer("rect", rect))
		}
	}

	o.logger.Info("sliced image",
		zap.String("source", res.Source),
		zap.String("output_dir", outputDir),
		zap.Stringer("backend", res.Backend),
		zap.Int("width", res.Width),
		zap.Int("height", res.Height),
		zap.Int("patch_width", res.PatchWidth),
		zap.Int("patch_height", res.PatchHeight),
		zap.Int("patches", len(res.Patches)))
	return res, nil
}

func writeFile(path string, data []byte, c Compression) error {
	f, err := sink.Create(path, c)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func validatePrefix(prefix string) error {
	if strings.ContainsAny(prefix, `/\`) || strings.ContainsRune(prefix, os.PathSeparator) {
		return fmt.Errorf("prefix %q contains a path separator", prefix)
	}
	return nil
}
