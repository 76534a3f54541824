package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, w, h int, fill color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeNPNGRoundTrip(t *testing.T) {
	src := encodeTestPNG(t, 4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	decoded, err := DecodeN(src, FormatPNG)
	require.NoError(t, err)
	require.Equal(t, 4, decoded.Width)
	require.Equal(t, 4, decoded.Height)
	require.Equal(t, 4, decoded.ChannelCount)
	require.Equal(t, byte(10), decoded.Pixels[0])
	require.Equal(t, byte(20), decoded.Pixels[1])
	require.Equal(t, byte(30), decoded.Pixels[2])
	require.Equal(t, byte(255), decoded.Pixels[3])
}

func TestEncodePNGThenDecodeRecoversPixels(t *testing.T) {
	pixels := []byte{1, 2, 3, 255, 4, 5, 6, 255, 7, 8, 9, 255, 10, 11, 12, 255}
	out, err := EncodePNG(pixels, 2, 2, 4)
	require.NoError(t, err)

	decoded, err := DecodeN(out, FormatPNG)
	require.NoError(t, err)
	require.Equal(t, pixels, decoded.Pixels)
}

func TestDecodeEmbeddedDispatchesByExtension(t *testing.T) {
	src := encodeTestPNG(t, 2, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	decoded, err := DecodeEmbedded(src, "png")
	require.NoError(t, err)
	require.Equal(t, 2, decoded.Width)
}

func TestResizeProducesRequestedDimensions(t *testing.T) {
	pixels := make([]byte, 4*4*4)
	for i := range pixels {
		pixels[i] = 128
	}
	resized := Resize(pixels, 4, 4, 2, 2)
	require.Len(t, resized, 2*2*4)
}

func rleScanline(t *testing.T, w int, r, g, b, e byte) []byte {
	t.Helper()
	out := []byte{2, 2, byte(w >> 8), byte(w & 0xff)}
	for _, v := range []byte{r, g, b, e} {
		out = append(out, byte(128+w), v)
	}
	return out
}

func TestDecodeHDRFlatScanline(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("#?RADIANCE\n")
	buf.WriteString("FORMAT=32-bit_rle_rgbe\n")
	buf.WriteString("\n")
	buf.WriteString("-Y 2 +X 2\n")
	// Two scanlines of flat (non-RLE) pixels, width 2 (< 8 forces flat path).
	for row := 0; row < 2; row++ {
		for x := 0; x < 2; x++ {
			buf.Write([]byte{128, 128, 128, 136}) // mantissa 128 * 2^(136-136) = 128.0
		}
	}

	decoded, err := decodeHDR(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, decoded.Width)
	require.Equal(t, 2, decoded.Height)
	require.Equal(t, 32, decoded.BitDepth)
	require.Equal(t, 4, decoded.ChannelCount)
}

func TestDecodeHDRRejectsBadMagic(t *testing.T) {
	_, err := decodeHDR([]byte("not an hdr file\n"))
	require.Error(t, err)
}
