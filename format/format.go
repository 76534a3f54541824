// Package format implements the Format Policy (SPEC_FULL.md §4.1): given a
// texture preset, the set of target platforms, and a source pixel format,
// it decides which binary-types to emit, their target pixel formats, the
// mip policy, and any required pre-conversion.
package format

import (
	"math"

	"github.com/forgelabs/assetforge/config"
)

// Preset is the semantic category of a texture driving format, mip, and
// compression-parameter selection (GLOSSARY "Preset").
type Preset int

const (
	PresetUnknown Preset = iota
	PresetDiffuse
	PresetDiffuseWithAlphaMask
	PresetDiffuseWithAlphaTransparency
	PresetNormals
	PresetMetalness
	PresetRoughness
	PresetEmissionColor
	PresetEmissionFactor
	PresetAmbientOcclusion
	PresetGreyscale8
	PresetGreyscaleWithAlpha8
	PresetEnvironmentCubemapDiffuseHDR
	PresetEnvironmentCubemapSpecular
	PresetBRDF
	PresetAlpha
	PresetExplicit
	PresetDepth
)

// BinaryType is one of the per-platform encoded variants of a texture.
type BinaryType int

const (
	BinaryUncompressed BinaryType = iota
	BinaryBC
	BinaryASTC
)

// PixelFormat identifies a concrete target or source pixel layout.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatRGBA8
	FormatRGB8
	FormatR8
	FormatRG8
	FormatRGBA16F
	FormatRGBA32F
	FormatBC1
	FormatBC1Alpha
	FormatBC3
	FormatBC5 // normals
	FormatBC6H
	FormatASTC4x4LDR
	FormatASTC4x4HDR
	FormatASTC4x4Mask
	FormatASTC6x6Normal
)

// BlockExtent returns the (x, y) block size of a compressed format, or
// (1, 1) for an uncompressed one.
func (f PixelFormat) BlockExtent() (int, int) {
	switch f {
	case FormatBC1, FormatBC1Alpha, FormatBC3, FormatBC5, FormatBC6H:
		return 4, 4
	case FormatASTC4x4LDR, FormatASTC4x4HDR, FormatASTC4x4Mask:
		return 4, 4
	case FormatASTC6x6Normal:
		return 6, 6
	default:
		return 1, 1
	}
}

func (f PixelFormat) IsCompressed() bool {
	x, y := f.BlockExtent()
	return x > 1 || y > 1
}

// MipPolicy describes how many mips to emit for one binary-type.
type MipPolicy struct {
	Count            int
	GenerateMips     bool
	RequiredSource   PixelFormat
	RequiredPreConv  bool
}

// Decision is the Format Policy's output for one binary-type.
type Decision struct {
	BinaryType BinaryType
	Target     PixelFormat
	Mip        MipPolicy
}

// AlphaUsage mirrors the pixel classifier's 3-way result (pixel.Classification)
// without importing that package, to keep format policy-only and avoid a
// dependency cycle. No other package converts between the two: texture
// maps pixel.Classify's result straight onto a Preset.
type AlphaUsage int

const (
	AlphaNone AlphaUsage = iota
	AlphaMask
	AlphaTransparency
)

// SelectBinaryTypes returns the union of binary-types the given platform
// set requires (SPEC_FULL.md §4.1 "each platform contributes a subset").
func SelectBinaryTypes(platforms []config.Platform) []BinaryType {
	set := map[BinaryType]bool{}
	for _, p := range platforms {
		set[BinaryUncompressed] = true
		if p.SupportsPerBlockBC() {
			set[BinaryBC] = true
		}
		set[BinaryASTC] = true // ASTC is emitted everywhere ASTC-capable GPUs exist; mobile+desktop both consume it
	}
	var out []BinaryType
	for _, bt := range []BinaryType{BinaryUncompressed, BinaryBC, BinaryASTC} {
		if set[bt] {
			out = append(out, bt)
		}
	}
	return out
}

// targetTable maps (preset, binaryType) to a target PixelFormat. Built as
// a flat table in the teacher's enum-plus-struct idiom
// (engine/resources/types.go).
var targetTable = map[Preset]map[BinaryType]PixelFormat{
	PresetDiffuse: {
		BinaryUncompressed: FormatRGBA8,
		BinaryBC:           FormatBC1,
		BinaryASTC:         FormatASTC4x4LDR,
	},
	PresetDiffuseWithAlphaMask: {
		BinaryUncompressed: FormatRGBA8,
		BinaryBC:           FormatBC1Alpha,
		BinaryASTC:         FormatASTC4x4Mask,
	},
	PresetDiffuseWithAlphaTransparency: {
		BinaryUncompressed: FormatRGBA8,
		BinaryBC:           FormatBC3,
		BinaryASTC:         FormatASTC4x4LDR,
	},
	PresetNormals: {
		BinaryUncompressed: FormatRGBA8,
		BinaryBC:           FormatBC5,
		BinaryASTC:         FormatASTC6x6Normal,
	},
	PresetMetalness:        {BinaryUncompressed: FormatR8, BinaryBC: FormatBC1, BinaryASTC: FormatASTC4x4LDR},
	PresetRoughness:        {BinaryUncompressed: FormatR8, BinaryBC: FormatBC1, BinaryASTC: FormatASTC4x4LDR},
	PresetAmbientOcclusion: {BinaryUncompressed: FormatR8, BinaryBC: FormatBC1, BinaryASTC: FormatASTC4x4LDR},
	PresetGreyscale8:       {BinaryUncompressed: FormatR8, BinaryBC: FormatBC1, BinaryASTC: FormatASTC4x4LDR},
	PresetGreyscaleWithAlpha8: {
		BinaryUncompressed: FormatRG8,
		BinaryBC:           FormatBC3,
		BinaryASTC:         FormatASTC4x4Mask,
	},
	PresetEmissionColor: {
		BinaryUncompressed: FormatRGBA8,
		BinaryBC:           FormatBC1,
		BinaryASTC:         FormatASTC4x4LDR,
	},
	PresetEmissionFactor: {BinaryUncompressed: FormatR8, BinaryBC: FormatBC1, BinaryASTC: FormatASTC4x4LDR},
	PresetAlpha:          {BinaryUncompressed: FormatR8, BinaryBC: FormatBC1, BinaryASTC: FormatASTC4x4LDR},
	PresetDepth:          {BinaryUncompressed: FormatR8},
	PresetExplicit:       {BinaryUncompressed: FormatRGBA8},
	PresetEnvironmentCubemapDiffuseHDR: {
		BinaryUncompressed: FormatRGBA32F,
		BinaryASTC:         FormatASTC4x4HDR,
	},
	PresetEnvironmentCubemapSpecular: {
		BinaryUncompressed: FormatRGBA16F,
		BinaryBC:           FormatBC6H,
		BinaryASTC:         FormatASTC4x4HDR,
	},
	PresetBRDF: {
		BinaryUncompressed: FormatRG8,
		BinaryBC:           FormatBC1,
		BinaryASTC:         FormatASTC4x4LDR,
	},
}

// requiredSource maps a target format to the source pixel format its
// codec requires (SPEC_FULL.md §4.1: "ASTC requires RGBA8/F16/F32; BC6H
// requires RGBA16F").
func requiredSource(target PixelFormat) PixelFormat {
	switch target {
	case FormatBC6H:
		return FormatRGBA16F
	case FormatASTC4x4HDR:
		return FormatRGBA16F
	case FormatASTC4x4LDR, FormatASTC4x4Mask, FormatASTC6x6Normal:
		return FormatRGBA8
	case FormatBC1, FormatBC1Alpha, FormatBC3, FormatBC5:
		return FormatRGBA8
	default:
		return target
	}
}

// MipCount computes the block-size-aware mip count for one binary-type:
// ceil(log2(max(w,h))) - (log2(blockExtent) - 1), never below one block,
// per SPEC_FULL.md §4.1.
func MipCount(w, h int, target PixelFormat, generateMips bool) int {
	if !generateMips {
		return 1
	}
	bx, by := target.BlockExtent()
	blockExtent := bx
	if by > blockExtent {
		blockExtent = by
	}
	maxDim := w
	if h > maxDim {
		maxDim = h
	}
	if maxDim <= 0 {
		return 1
	}
	levels := int(math.Ceil(math.Log2(float64(maxDim)))) - (log2Int(blockExtent) - 1)
	if levels < 1 {
		levels = 1
	}
	// Never go smaller than one block: cap by how many halvings keep the
	// image at least blockExtent in both dimensions.
	maxLevelsByBlock := 1
	cw, ch := w, h
	for cw > blockExtent && ch > blockExtent {
		cw /= 2
		ch /= 2
		maxLevelsByBlock++
	}
	if levels > maxLevelsByBlock {
		levels = maxLevelsByBlock
	}
	return levels
}

func log2Int(n int) int {
	if n <= 1 {
		return 0
	}
	return int(math.Round(math.Log2(float64(n))))
}

// IsResolutionValid reports whether the top mip is divisible by the
// target format's block extent (SPEC_FULL.md §4.1 "Resolution validity").
func IsResolutionValid(w, h int, target PixelFormat) bool {
	bx, by := target.BlockExtent()
	return w%bx == 0 && h%by == 0
}

// Decide runs the Format Policy for a single preset against a platform
// set and source format, returning one Decision per emitted binary-type.
func Decide(preset Preset, platforms []config.Platform, sourceFormat PixelFormat, w, h int, generateMips bool) []Decision {
	row, ok := targetTable[preset]
	if !ok {
		return nil
	}
	var decisions []Decision
	for _, bt := range SelectBinaryTypes(platforms) {
		target, ok := row[bt]
		if !ok {
			continue // this preset has no binary-type entry for bt (e.g. depth has no BC/ASTC path)
		}
		req := requiredSource(target)
		decisions = append(decisions, Decision{
			BinaryType: bt,
			Target:     target,
			Mip: MipPolicy{
				Count:           MipCount(w, h, target, generateMips),
				GenerateMips:    generateMips,
				RequiredSource:  req,
				RequiredPreConv: req != sourceFormat,
			},
		})
	}
	return decisions
}
