// Package image is the Image Codec Adapter (SPEC_FULL.md §9): a uniform
// decode/encode shim over PNG, JPEG, BMP, TIFF, and Radiance HDR, plus a
// Lanczos mip resampler. Grounded in shape on
// engine/assets/loaders/image.go's stb_image loader, reimplemented
// without cgo against real Go decode libraries.
package image

import (
	"bytes"
	"image/color"
	stdimage "image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/jsummers/gobmp"
	"golang.org/x/image/tiff"

	"github.com/forgelabs/assetforge/core"
)

// Decoded is the codec-neutral output of DecodeN: flat interleaved
// channel bytes, matching the teacher's stb_image adapter shape.
type Decoded struct {
	Pixels       []byte
	Width        int
	Height       int
	ChannelCount int
	BitDepth     int // bits per channel; 8 for all formats below except HDR (32, float)
}

// SourceFormat identifies the source container DecodeN should parse.
type SourceFormat int

const (
	FormatAuto SourceFormat = iota
	FormatPNG
	FormatJPEG
	FormatBMP
	FormatTIFF
	FormatHDR
)

// DecodeN decodes bytes using sourceFormat (or sniffs the container if
// FormatAuto), returning flat RGBA8 (or RGBA32F for HDR) pixel data.
func DecodeN(data []byte, sourceFormat SourceFormat) (Decoded, error) {
	if sourceFormat == FormatHDR {
		return decodeHDR(data)
	}

	var img stdimage.Image
	var err error
	switch sourceFormat {
	case FormatPNG:
		img, err = png.Decode(bytes.NewReader(data))
	case FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	case FormatBMP:
		img, err = gobmp.Decode(bytes.NewReader(data))
	case FormatTIFF:
		img, err = tiff.Decode(bytes.NewReader(data))
	default:
		img, _, err = stdimage.Decode(bytes.NewReader(data))
	}
	if err != nil {
		core.LogError("codec/image: decode failed: %v", err)
		return Decoded{}, err
	}
	return fromStdImage(img), nil
}

func fromStdImage(img stdimage.Image) Decoded {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 0, w*h*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pixels = append(pixels, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
		}
	}
	return Decoded{Pixels: pixels, Width: w, Height: h, ChannelCount: 4, BitDepth: 8}
}

// EncodePNG encodes flat RGBA8 pixel data back into a PNG container,
// used by the Scene Exporter (SPEC_FULL.md §4.10) to convert compiled
// textures back to a universally-importable format on export.
func EncodePNG(pixels []byte, w, h, channels int) ([]byte, error) {
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * channels
			c := color.NRGBA{R: pixels[o], G: 255, B: 255, A: 255}
			if channels >= 2 {
				c.G = pixels[o+1]
			}
			if channels >= 3 {
				c.B = pixels[o+2]
			}
			if channels >= 4 {
				c.A = pixels[o+3]
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resize produces a mip-chain-appropriate resample of an RGBA8 image to
// (dstW, dstH) using imaging's Lanczos filter (used for mip levels by
// texture.Compile). The filter runs directly on the stored 8-bit values;
// no conversion to linear light is done before or after resampling.
func Resize(pixels []byte, w, h, dstW, dstH int) []byte {
	src := stdimage.NewNRGBA(stdimage.Rect(0, 0, w, h))
	copy(src.Pix, pixels)
	dst := imaging.Resize(src, dstW, dstH, imaging.Lanczos)
	return dst.Pix
}

// DecodeEmbedded reads an embedded texture payload as exposed by the
// scene codec (SPEC_FULL.md §6 "Embedded textures"): raw bytes plus a
// format hint string (a file extension without the leading dot).
func DecodeEmbedded(payload []byte, formatHint string) (Decoded, error) {
	switch formatHint {
	case "png":
		return DecodeN(payload, FormatPNG)
	case "jpg", "jpeg":
		return DecodeN(payload, FormatJPEG)
	case "bmp":
		return DecodeN(payload, FormatBMP)
	case "tif", "tiff":
		return DecodeN(payload, FormatTIFF)
	case "hdr":
		return DecodeN(payload, FormatHDR)
	default:
		return DecodeN(payload, FormatAuto)
	}
}
