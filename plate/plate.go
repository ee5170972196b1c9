// Package plate slices every plate of a plate directory.
//
// The expected layout is one subdirectory per plate, each holding its source
// image. Patches are written next to the source:
//
//	root/
//	  plate-01/
//	    plate-01.tif
//	    patches/
//	      patch_0_0.png ... patch_3_3.png
package plate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sebnyberg/platepatch"
	"github.com/sebnyberg/platepatch/internal/source"
)

const (
	DefaultPatchesDir = "patches"
	DefaultPrefix     = "patch"
)

// ErrNoSource is reported for plate directories without an image.
var ErrNoSource = errors.New("no source image")

type Options struct {
	PatchesDir string
	Prefix     string

	// FailFast stops the batch at the first failing plate.
	FailFast bool

	Slice  []platepatch.Option
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.PatchesDir == "" {
		o.PatchesDir = DefaultPatchesDir
	}
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Report is the outcome for a single plate.
type Report struct {
	Plate  string
	Source string
	Result platepatch.Result
	Err    error
}

// Run slices the source image of every plate directory under root, in
// lexical order. Failed plates are recorded in their Report and summarised
// in the returned error. Plates after a failure are still processed unless
// FailFast is set.
func Run(ctx context.Context, root string, opts Options) ([]Report, error) {
	opts = opts.withDefaults()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read plates dir %q err, %w", root, err)
	}

	sliceOpts := append([]platepatch.Option{platepatch.WithLogger(opts.Logger)}, opts.Slice...)

	var reports []Report
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || hidden(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		plateDir := filepath.Join(root, e.Name())
		rep := Report{Plate: e.Name()}
		rep.Source, rep.Err = FindSource(plateDir, opts.PatchesDir)
		if rep.Err == nil {
			out := filepath.Join(plateDir, opts.PatchesDir)
			rep.Result, rep.Err = platepatch.SliceFile(ctx, rep.Source, out, opts.Prefix, sliceOpts...)
		}
		reports = append(reports, rep)

		if rep.Err != nil {
			opts.Logger.Warn("plate failed",
				zap.String("plate", rep.Plate),
				zap.String("source", rep.Source),
				zap.Error(rep.Err))
			errs = append(errs, fmt.Errorf("plate %q: %w", rep.Plate, rep.Err))
			if opts.FailFast || errors.Is(rep.Err, context.Canceled) {
				break
			}
		}
	}

	if len(errs) > 0 {
		return reports, fmt.Errorf("%d of %d plates failed: %w", len(errs), len(reports), errors.Join(errs...))
	}
	return reports, nil
}

// FindSource returns the first image file in plateDir in lexical order,
// skipping hidden files and the patches directory.
func FindSource(plateDir, patchesDir string) (string, error) {
	entries, err := os.ReadDir(plateDir)
	if err != nil {
		return "", fmt.Errorf("read plate dir %q err, %w", plateDir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if name == patchesDir || hidden(name) || !e.Type().IsRegular() {
			continue
		}
		if source.IsImageName(name) {
			return filepath.Join(plateDir, name), nil
		}
	}
	return "", fmt.Errorf("%w in %q", ErrNoSource, plateDir)
}

// Patches lists an existing patch set of a plate in row-major order. Files
// not named {prefix}_{row}_{col}.{ext} are ignored.
func Patches(patchDir, prefix string) ([]platepatch.Patch, error) {
	entries, err := os.ReadDir(patchDir)
	if err != nil {
		return nil, fmt.Errorf("read patch dir %q err, %w", patchDir, err)
	}
	var patches []platepatch.Patch
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		row, col, ok := parsePatchName(e.Name(), prefix)
		if !ok {
			continue
		}
		patches = append(patches, platepatch.Patch{
			Row:  row,
			Col:  col,
			Path: filepath.Join(patchDir, e.Name()),
		})
	}
	sort.Slice(patches, func(i, j int) bool {
		if patches[i].Row != patches[j].Row {
			return patches[i].Row < patches[j].Row
		}
		return patches[i].Col < patches[j].Col
	})
	return patches, nil
}

func parsePatchName(name, prefix string) (row, col int, ok bool) {
	rest, found := strings.CutPrefix(name, prefix+"_")
	if !found {
		return 0, 0, false
	}
	stem, _, found := strings.Cut(rest, ".")
	if !found {
		return 0, 0, false
	}
	rs, cs, found := strings.Cut(stem, "_")
	if !found {
		return 0, 0, false
	}
	row, err := strconv.Atoi(rs)
	if err != nil || row < 0 {
		return 0, 0, false
	}
	col, err = strconv.Atoi(cs)
	if err != nil || col < 0 {
		return 0, 0, false
	}
	return row, col, true
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
