// Package bc implements BC1 (DXT1) and BC3 (DXT5) block compression
// directly against the published block layout. No third-party Go BC
// encoder appears anywhere in the example corpus (see DESIGN.md), so this
// is the one codec in the repo with no library backing; it is still an
// "opaque adapter" per spec.md §9 and exposes the same per-block and
// whole-image contracts as codec/astc so the Texture Compressor can treat
// both uniformly.
package bc

import (
	"fmt"
)

// Format selects which BC variant a BlockEncoder produces.
type Format int

const (
	FormatBC1 Format = iota // RGB + optional 1-bit alpha (DXT1)
	FormatBC3                // RGBA (DXT5)
)

// BlockSize is the compressed byte size of one 4x4 block for f.
func (f Format) BlockSize() int {
	switch f {
	case FormatBC1:
		return 8
	case FormatBC3:
		return 16
	default:
		return 0
	}
}

// BlockEncoder holds the per-image parameters shared by every block
// compressed through it (SPEC_FULL.md §4.3 "create an encoder for
// (width, height, format, quality)").
type BlockEncoder struct {
	Width, Height int
	Format        Format
	AlphaThreshold byte // single-bit-alpha cutoff for BC1-with-alpha targets
}

// CreateBlockEncoder allocates a BlockEncoder for one whole image.
func CreateBlockEncoder(width, height int, format Format, alphaThreshold byte) (*BlockEncoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("codec/bc: invalid dimensions %dx%d", width, height)
	}
	return &BlockEncoder{Width: width, Height: height, Format: format, AlphaThreshold: alphaThreshold}, nil
}

// CompressBlockXY compresses one 4x4 texel block whose top-left texel is
// at (blockX*4, blockY*4) in an RGBA8 source of stride srcStride bytes,
// writing the compressed block into dst (which must be at least
// e.Format.BlockSize() bytes).
func (e *BlockEncoder) CompressBlockXY(blockX, blockY int, src []byte, srcStride int, dst []byte) error {
	if len(dst) < e.Format.BlockSize() {
		return fmt.Errorf("codec/bc: dst too small for block")
	}
	var block [16][4]byte
	for ty := 0; ty < 4; ty++ {
		for tx := 0; tx < 4; tx++ {
			srcX := blockX*4 + tx
			srcY := blockY*4 + ty
			o := srcY*srcStride + srcX*4
			if srcX < e.Width && srcY < e.Height && o+4 <= len(src) {
				copy(block[ty*4+tx][:], src[o:o+4])
			} else {
				// Clamp-to-edge padding for partial edge blocks.
				cx, cy := clampInt(srcX, e.Width-1), clampInt(srcY, e.Height-1)
				o = cy*srcStride + cx*4
				copy(block[ty*4+tx][:], src[o:o+4])
			}
		}
	}

	switch e.Format {
	case FormatBC1:
		encodeBC1Block(block, e.AlphaThreshold, dst)
	case FormatBC3:
		encodeBC3Block(block, dst)
	default:
		return fmt.Errorf("codec/bc: unsupported format %v", e.Format)
	}
	return nil
}

// DestroyEncoder releases e. BlockEncoder holds no native resources, so
// this is a no-op kept for contract symmetry with codec/astc.Context.Close.
func (e *BlockEncoder) DestroyEncoder() {}

func clampInt(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Convert is the single-shot whole-image fallback path for platforms that
// don't support per-block parallel encoding (SPEC_FULL.md §4.3 "Otherwise:
// single-shot whole-image convert(src_tex, dst_tex, options)").
func Convert(src []byte, width, height int, format Format, alphaThreshold byte) ([]byte, error) {
	enc, err := CreateBlockEncoder(width, height, format, alphaThreshold)
	if err != nil {
		return nil, err
	}
	defer enc.DestroyEncoder()

	blocksX := (width + 3) / 4
	blocksY := (height + 3) / 4
	out := make([]byte, blocksX*blocksY*format.BlockSize())
	stride := width * 4

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			o := (by*blocksX + bx) * format.BlockSize()
			if err := enc.CompressBlockXY(bx, by, src, stride, out[o:o+format.BlockSize()]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// encodeBC1Block picks the two extreme-luminance texels as endpoints
// (a fast, low-quality but deterministic heuristic) and writes a BC1
// block: two RGB565 endpoints plus 2-bit-per-texel indices. When any
// texel's alpha falls below threshold, encodes the 3-color + transparent-
// black mode (endpoint0 <= endpoint1) per the DXT1 "punch-through alpha"
// convention.
func encodeBC1Block(block [16][4]byte, alphaThreshold byte, dst []byte) {
	hasTransparent := false
	for _, t := range block {
		if t[3] < alphaThreshold {
			hasTransparent = true
			break
		}
	}

	c0, c1 := pickEndpoints(block)
	e0 := rgbTo565(c0)
	e1 := rgbTo565(c1)
	if hasTransparent && e0 > e1 {
		e0, e1 = e1, e0
		c0, c1 = c1, c0
	} else if !hasTransparent && e0 <= e1 {
		e0, e1 = e1, e0
		c0, c1 = c1, c0
	}

	palette := bc1Palette(c0, c1, hasTransparent)

	dst[0] = byte(e0)
	dst[1] = byte(e0 >> 8)
	dst[2] = byte(e1)
	dst[3] = byte(e1 >> 8)

	var indices uint32
	for i := 15; i >= 0; i-- {
		idx := nearestPaletteIndex(block[i], palette, hasTransparent && block[i][3] < alphaThreshold)
		indices = (indices << 2) | uint32(idx)
	}
	dst[4] = byte(indices)
	dst[5] = byte(indices >> 8)
	dst[6] = byte(indices >> 16)
	dst[7] = byte(indices >> 24)
}

// encodeBC3Block writes BC3: a BC1 color block plus an independent
// alpha block using two 8-bit endpoints and 3-bit interpolated indices.
func encodeBC3Block(block [16][4]byte, dst []byte) {
	aMin, aMax := block[0][3], block[0][3]
	for _, t := range block {
		if t[3] < aMin {
			aMin = t[3]
		}
		if t[3] > aMax {
			aMax = t[3]
		}
	}
	dst[0] = aMax
	dst[1] = aMin

	alphaPalette := bc3AlphaPalette(aMax, aMin)
	var indices uint64
	for i := 15; i >= 0; i-- {
		idx := nearestAlphaIndex(block[i][3], alphaPalette)
		indices = (indices << 3) | uint64(idx)
	}
	for i := 0; i < 6; i++ {
		dst[2+i] = byte(indices >> (8 * i))
	}

	encodeBC1Block(block, 0, dst[8:16])
}

func pickEndpoints(block [16][4]byte) ([4]byte, [4]byte) {
	minI, maxI := 0, 0
	minLum, maxLum := luminance(block[0]), luminance(block[0])
	for i, t := range block {
		l := luminance(t)
		if l < minLum {
			minLum, minI = l, i
		}
		if l > maxLum {
			maxLum, maxI = l, i
		}
	}
	return block[maxI], block[minI]
}

func luminance(c [4]byte) int {
	return int(c[0])*299 + int(c[1])*587 + int(c[2])*114
}

func rgbTo565(c [4]byte) uint16 {
	r := uint16(c[0]) >> 3
	g := uint16(c[1]) >> 2
	b := uint16(c[2]) >> 3
	return (r << 11) | (g << 5) | b
}

func from565(v uint16) [4]byte {
	r := byte((v >> 11) & 0x1f)
	g := byte((v >> 5) & 0x3f)
	b := byte(v & 0x1f)
	return [4]byte{(r << 3) | (r >> 2), (g << 2) | (g >> 4), (b << 3) | (b >> 2), 255}
}

func bc1Palette(c0, c1 [4]byte, hasTransparent bool) [4][4]byte {
	e0 := from565(rgbTo565(c0))
	e1 := from565(rgbTo565(c1))
	var p [4][4]byte
	p[0], p[1] = e0, e1
	if hasTransparent {
		p[2] = lerpRGB(e0, e1, 0.5)
		p[3] = [4]byte{0, 0, 0, 0}
	} else {
		p[2] = lerpRGB(e0, e1, 1.0/3.0)
		p[3] = lerpRGB(e0, e1, 2.0/3.0)
	}
	return p
}

func lerpRGB(a, b [4]byte, t float32) [4]byte {
	return [4]byte{
		lerpByte(a[0], b[0], t),
		lerpByte(a[1], b[1], t),
		lerpByte(a[2], b[2], t),
		255,
	}
}

func lerpByte(a, b byte, t float32) byte {
	return byte(float32(a) + (float32(b)-float32(a))*t)
}

func nearestPaletteIndex(texel [4]byte, palette [4][4]byte, forceTransparent bool) byte {
	if forceTransparent {
		return 3
	}
	best := 0
	bestDist := colorDistSq(texel, palette[0])
	for i := 1; i < 4; i++ {
		d := colorDistSq(texel, palette[i])
		if d < bestDist {
			bestDist, best = d, i
		}
	}
	return byte(best)
}

func colorDistSq(a, b [4]byte) int {
	dr := int(a[0]) - int(b[0])
	dg := int(a[1]) - int(b[1])
	db := int(a[2]) - int(b[2])
	return dr*dr + dg*dg + db*db
}

func bc3AlphaPalette(aMax, aMin byte) [8]byte {
	var p [8]byte
	p[0], p[1] = aMax, aMin
	for i := 1; i <= 6; i++ {
		p[1+i] = byte((int(aMax)*(7-i) + int(aMin)*i) / 7)
	}
	return p
}

func nearestAlphaIndex(a byte, palette [8]byte) byte {
	best := 0
	bestDist := absInt(int(a) - int(palette[0]))
	for i := 1; i < 8; i++ {
		d := absInt(int(a) - int(palette[i]))
		if d < bestDist {
			bestDist, best = d, i
		}
	}
	return byte(best)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
