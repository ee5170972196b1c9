package vipsx

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodedGradient(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), 0, 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestVips(t *testing.T) {
	src := encodedGradient(t, 40, 20)
	region := image.Rect(10, 5, 20, 10)
	out, err := Crop(src, region, "png")
	require.NoError(t, err, "crop")

	got, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, region.Dx(), got.Bounds().Dx())
	require.Equal(t, region.Dy(), got.Bounds().Dy())
	r, g, _, _ := got.At(0, 0).RGBA()
	require.Equal(t, uint32(10), r>>8)
	require.Equal(t, uint32(5), g>>8)
}

func TestCropper(t *testing.T) {
	c := NewCropper(bytes.NewReader(encodedGradient(t, 8, 8)), "png")
	for _, region := range []image.Rectangle{
		image.Rect(0, 0, 2, 2),
		image.Rect(6, 6, 8, 8),
	} {
		var out bytes.Buffer
		require.NoError(t, c.Crop(region, &out))
		got, err := png.Decode(&out)
		require.NoError(t, err)
		require.Equal(t, region.Size(), got.Bounds().Size())
	}
}

func TestCropErrors(t *testing.T) {
	src := encodedGradient(t, 8, 8)
	_, err := Crop(src, image.Rect(4, 4, 12, 12), "png")
	require.Error(t, err)
	_, err = Crop(src, image.Rect(0, 0, 2, 2), "gif")
	require.Error(t, err)
	require.False(t, Supports("bmp"))
	require.True(t, Supports("TIFF"))
}
