package bmpx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
)

// ErrUnsupported is returned for BMP variants that cannot be cropped as a
// byte stream. Callers are expected to fall back to a decoding cropper.
var ErrUnsupported = errors.New("bmp: unsupported")

// Cropper crops regions out of a single BMP. Each call to Crop re-reads the
// image from the start, which requires the source to be an io.Seeker when
// more than one region is cropped.
type Cropper struct {
	cropCount int
	mtx       sync.Mutex
	r         io.Reader
}

func NewCropper(r io.Reader) *Cropper {
	return &Cropper{r: r}
}

func (c *Cropper) Crop(region image.Rectangle, out io.Writer) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	// Guard against re-cropping of the same image unless it has been provided
	// as an io.Seeker (can be reset)
	if c.cropCount > 0 {
		s, ok := c.r.(io.Seeker)
		if !ok {
			return errors.New("re-cropping not supported for non-io.Seekers")
		}
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}
	c.cropCount++

	return Crop(c.r, out, region)
}

// Crop crops the provided region of the BMP found in the input stream to the
// output stream.
//
// The input BMP must be uncompressed and without alpha. Both bottom-up and
// top-down row orders are supported, and the output keeps the input order.
//
// Thanks to the simplicity of the BMP format, crop uses a very small amount of
// memory (~8KiB).
//
// If src is an io.ReadSeeker, then the cropper will seek to skip pixels that
// are outside the cropping region.
//
// Cropping complexity scales primarily with number of cropped rows, not
// columns.
func Crop(src io.Reader, dst io.Writer, region image.Rectangle) error {
	hdr, err := Probe(src)
	if err != nil {
		return err
	}

	// Find / validate crop area
	dim := image.Rect(0, 0, hdr.Config.Width, hdr.Config.Height)
	region = dim.Intersect(region)
	if region.Empty() {
		return errors.New("crop area empty or out of bounds")
	}

	byteWidth := func(pixels, bitsPerPixel int) int {
		return ((pixels*bitsPerPixel + 31) / 32) * 4
	}

	// Rewrite header with crop dimensions
	rowBytes := byteWidth(hdr.Config.Width, hdr.BitsPerPixel)
	wantWidth := byteWidth(region.Dx(), hdr.BitsPerPixel)
	imageSize := wantWidth * region.Dy()
	height := int32(region.Dy())
	if hdr.TopDown {
		height = -height
	}
	binary.LittleEndian.PutUint32(hdr.HeaderBytes[2:6], uint32(imageSize+len(hdr.HeaderBytes)))
	binary.LittleEndian.PutUint32(hdr.HeaderBytes[18:22], uint32(region.Dx()))
	binary.LittleEndian.PutUint32(hdr.HeaderBytes[22:26], uint32(height))
	binary.LittleEndian.PutUint32(hdr.HeaderBytes[34:38], uint32(imageSize))
	if _, err := dst.Write(hdr.HeaderBytes); err != nil {
		return err
	}

	// Seek if possible, otherwise copy to discard
	var seek func(off int) (n int64, err error)
	if s, ok := src.(io.Seeker); ok {
		seek = func(off int) (n int64, err error) {
			return s.Seek(int64(off), io.SeekCurrent)
		}
	} else {
		seek = func(off int) (n int64, err error) {
			return io.CopyN(io.Discard, src, int64(off))
		}
	}

	// Skip rows before the region. Bottom-up images store the last row first.
	skipRows := hdr.Config.Height - region.Max.Y
	if hdr.TopDown {
		skipRows = region.Min.Y
	}
	if _, err := seek(rowBytes * skipRows); err != nil {
		return err
	}

	// Each BMP pixel row is padded to be 4-byte aligned, so both the rows
	// being read and the rows being written may carry trailing padding.
	bytesPerPixel := hdr.BitsPerPixel / 8
	left := bytesPerPixel * region.Min.X
	mid := region.Dx() * bytesPerPixel
	right := rowBytes - (mid + left)
	padding := make([]byte, wantWidth-mid)

	for dy := 0; dy < region.Dy(); dy++ {
		if _, err := seek(left); err != nil {
			return err
		}
		n, err := io.CopyN(dst, src, int64(mid))
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		if n != int64(mid) {
			return io.ErrUnexpectedEOF
		}
		if _, err := dst.Write(padding); err != nil {
			return err
		}
		// The final row has no need to skip the remainder.
		if dy == region.Dy()-1 {
			break
		}
		if _, err := seek(right); err != nil {
			return err
		}
	}

	return nil
}

// Probe decodes the header and reports ErrUnsupported unless Crop can stream
// the image.
func Probe(r io.Reader) (DecodeResult, error) {
	hdr, err := DecodeHeader(r)
	if err != nil {
		return hdr, err
	}
	if hdr.AllowAlpha {
		return DecodeResult{}, fmt.Errorf("%w: alpha channel", ErrUnsupported)
	}
	return hdr, nil
}

type DecodeResult struct {
	Config       image.Config
	BitsPerPixel int
	TopDown      bool
	AllowAlpha   bool
	HeaderBytes  []byte
	ImageOffset  uint32
}

// DecodeHeader was copied from 'x/image/bmp' and edited for streaming crops.
// Unlike the x/image implementation, the header and palette bytes are
// retained so that they can be re-written to cropped images.
func DecodeHeader(r io.Reader) (res DecodeResult, err error) {
	readUint16 := func(b []byte) uint16 {
		return uint16(b[0]) | uint16(b[1])<<8
	}
	readUint32 := func(b []byte) uint32 {
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}

	// We only support those BMP images with one of the following DIB headers:
	// - BITMAPINFOHEADER (40 bytes)
	// - BITMAPV4HEADER (108 bytes)
	// - BITMAPV5HEADER (124 bytes)
	const (
		fileHeaderLen   = 14
		infoHeaderLen   = 40
		v4InfoHeaderLen = 108
		v5InfoHeaderLen = 124
	)
	var empty DecodeResult
	var b [2048]byte
	if _, err := io.ReadFull(r, b[:fileHeaderLen+4]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return empty, err
	}
	if string(b[:2]) != "BM" {
		return empty, errors.New("bmp: invalid format")
	}
	offset := readUint32(b[10:14])
	infoLen := readUint32(b[14:18])
	if infoLen != infoHeaderLen && infoLen != v4InfoHeaderLen && infoLen != v5InfoHeaderLen {
		return empty, fmt.Errorf("%w: info header length %d", ErrUnsupported, infoLen)
	}
	if _, err := io.ReadFull(r, b[fileHeaderLen+4:fileHeaderLen+infoLen]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return empty, err
	}
	res.ImageOffset = offset
	width := int(int32(readUint32(b[18:22])))
	height := int(int32(readUint32(b[22:26])))
	if height < 0 {
		height, res.TopDown = -height, true
	}
	if width < 0 || height < 0 {
		return empty, fmt.Errorf("%w: negative width", ErrUnsupported)
	}
	// We only support 1 plane and 8, 24 or 32 bits per pixel and no
	// compression.
	planes, bpp, compression := readUint16(b[26:28]), readUint16(b[28:30]), readUint32(b[30:34])
	// if compression is set to BI_BITFIELDS, but the bitmask is set to the default bitmask
	// that would be used if compression was set to 0, we can continue as if compression was 0
	if compression == 3 && infoLen > infoHeaderLen &&
		readUint32(b[54:58]) == 0xff0000 && readUint32(b[58:62]) == 0xff00 &&
		readUint32(b[62:66]) == 0xff && readUint32(b[66:70]) == 0xff000000 {
		compression = 0
	}
	if planes != 1 || compression != 0 {
		return empty, fmt.Errorf("%w: planes=%d compression=%d", ErrUnsupported, planes, compression)
	}
	switch bpp {
	case 8:
		if offset != fileHeaderLen+infoLen+256*4 {
			return empty, fmt.Errorf("%w: palette size", ErrUnsupported)
		}
		pre := fileHeaderLen + int(infoLen)
		if _, err := io.ReadFull(r, b[pre:pre+256*4]); err != nil {
			return empty, err
		}
		pcm := make(color.Palette, 256)
		for i := range pcm {
			// BMP images are stored in BGR order rather than RGB order.
			// Every 4th byte is padding.
			pcm[i] = color.RGBA{b[pre+4*i+2], b[pre+4*i+1], b[pre+4*i+0], 0xFF}
		}
		res.Config = image.Config{ColorModel: pcm, Width: width, Height: height}
		res.BitsPerPixel = 8
	case 24:
		if offset != fileHeaderLen+infoLen {
			return empty, fmt.Errorf("%w: pixel offset", ErrUnsupported)
		}
		res.Config = image.Config{ColorModel: color.RGBAModel, Width: width, Height: height}
		res.BitsPerPixel = 24
	case 32:
		if offset != fileHeaderLen+infoLen {
			return empty, fmt.Errorf("%w: pixel offset", ErrUnsupported)
		}
		// Alpha is only honoured for headers larger than BITMAPINFOHEADER,
		// matching x/image/bmp.
		res.Config = image.Config{ColorModel: color.RGBAModel, Width: width, Height: height}
		res.BitsPerPixel = 32
		res.AllowAlpha = infoLen > infoHeaderLen
	default:
		return empty, fmt.Errorf("%w: %d bits per pixel", ErrUnsupported, bpp)
	}
	res.HeaderBytes = make([]byte, offset)
	copy(res.HeaderBytes, b[:offset])
	return res, nil
}
