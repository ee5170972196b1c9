package platepatch

import (
	"fmt"
	"image"
)

// DefaultRows and DefaultCols give the 4x4 grid used for plate images.
const (
	DefaultRows = 4
	DefaultCols = 4
)

// Grid describes how a source image is partitioned into patches.
type Grid struct {
	Rows int
	Cols int
}

// DefaultGrid returns the 4x4 grid.
func DefaultGrid() Grid {
	return Grid{Rows: DefaultRows, Cols: DefaultCols}
}

// PatchSize returns the size of a single patch for a source of the given
// dimensions. Sizes are floor-divided, so any remainder columns on the right
// and remainder rows at the bottom belong to no patch.
func (g Grid) PatchSize(width, height int) (pw, ph int) {
	return width / g.Cols, height / g.Rows
}

// Fits reports whether every patch of a width x height source is non-empty.
func (g Grid) Fits(width, height int) bool {
	return g.Rows > 0 && g.Cols > 0 && width >= g.Cols && height >= g.Rows
}

// Rect returns the rectangle of patch (i, j) within bounds. Row i counts
// from the top and column j from the left.
func (g Grid) Rect(bounds image.Rectangle, i, j int) image.Rectangle {
	pw, ph := g.PatchSize(bounds.Dx(), bounds.Dy())
	return image.Rect(
		j*pw, i*ph,
		(j+1)*pw, (i+1)*ph,
	).Add(bounds.Min)
}

// Rects returns all patch rectangles in row-major order.
func (g Grid) Rects(bounds image.Rectangle) []image.Rectangle {
	rects := make([]image.Rectangle, 0, g.Rows*g.Cols)
	for i := 0; i < g.Rows; i++ {
		for j := 0; j < g.Cols; j++ {
			rects = append(rects, g.Rect(bounds, i, j))
		}
	}
	return rects
}

// PatchName returns the file name of patch (i, j), e.g. "patch_1_2.png".
func (g Grid) PatchName(prefix string, i, j int, ext string) string {
	return fmt.Sprintf("%s_%d_%d.%s", prefix, i, j, ext)
}
