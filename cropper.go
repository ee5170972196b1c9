package platepatch

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/sebnyberg/platepatch/bmpx"
	"github.com/sebnyberg/platepatch/vipsx"
)

var _ Cropper = new(bmpx.Cropper)
var _ Cropper = new(vipsx.Cropper)
var _ Cropper = new(ImageCropper)

type Cropper interface {
	// Crop crops the provided region out of an image and puts the result in
	// the provided writer
	Crop(r image.Rectangle, to io.Writer) error
}

// ImageCropper crops a decoded image and encodes each region.
//
// Regions are copied into a new image anchored at the origin. Common pixel
// types are kept (16-bit grayscale TIFFs stay 16-bit), other images are
// copied to NRGBA.
type ImageCropper struct {
	img    image.Image
	format imaging.Format
	opts   []imaging.EncodeOption
}

// NewImageCropper returns a cropper encoding regions of img as the format
// named by ext.
func NewImageCropper(img image.Image, ext string, opts ...imaging.EncodeOption) (*ImageCropper, error) {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, err
	}
	return &ImageCropper{img: img, format: format, opts: opts}, nil
}

func (c *ImageCropper) Crop(r image.Rectangle, to io.Writer) error {
	return imaging.Encode(to, copyRegion(c.img, r), c.format, c.opts...)
}

// copyRegion returns the r region of img as a standalone image with bounds
// starting at (0, 0). Encoders such as tiff assume Pix covers exactly the
// image bounds, which does not hold for a SubImage.
func copyRegion(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	dr := image.Rect(0, 0, r.Dx(), r.Dy())
	var dst draw.Image
	switch src := img.(type) {
	case *image.Gray:
		dst = image.NewGray(dr)
	case *image.Gray16:
		dst = image.NewGray16(dr)
	case *image.RGBA:
		dst = image.NewRGBA(dr)
	case *image.RGBA64:
		dst = image.NewRGBA64(dr)
	case *image.NRGBA64:
		dst = image.NewNRGBA64(dr)
	case *image.CMYK:
		dst = image.NewCMYK(dr)
	case *image.Paletted:
		dst = image.NewPaletted(dr, src.Palette)
	default:
		return imaging.Crop(img, r)
	}
	draw.Draw(dst, dr, img, r.Min, draw.Src)
	return dst
}
