// Package astc is the ASTC encoder adapter (SPEC_FULL.md §4.3 "For ASTC:
// configure an encoder context..."): it wraps a reusable native astcenc
// context, exposing the job-parallel compress contract the Texture
// Compressor needs without leaking the native package's CGO details.
//
// Grounded on the other_examples am-sokolov-go-astc-encoder native types
// file (Flags, Swizzle, DataType, Config, Image, Context all mirror the
// upstream astcenc_* C types one-for-one).
package astc

import (
	"fmt"

	"github.com/arm-software/astc-encoder/astc"
	"github.com/arm-software/astc-encoder/native"

	"github.com/forgelabs/assetforge/core"
)

// Quality maps the texture config's 0..1 compression_quality knob onto
// the encoder's named presets.
type Quality int

const (
	QualityFastest Quality = iota
	QualityFast
	QualityMedium
	QualityThorough
	QualityExhaustive
)

func qualityFromFraction(q float32) Quality {
	switch {
	case q <= 0.2:
		return QualityFastest
	case q <= 0.4:
		return QualityFast
	case q <= 0.6:
		return QualityMedium
	case q <= 0.8:
		return QualityThorough
	default:
		return QualityExhaustive
	}
}

// ConfigInit builds a native.Config for one compression job, selecting an
// LDR vs HDR-RGB/LDR-A profile by the source's float-ness and enabling the
// normal-map/alpha-weight flags the caller's preset calls for (SPEC_FULL.md
// §4.3: "profile = LDR or HDR_RGB_LDR_A depending on source float-ness,
// normal/alpha-weight flags derived from preset").
func ConfigInit(blockX, blockY uint32, quality float32, sourceIsFloat, isNormalMap, useAlphaWeight bool) native.Config {
	profile := astc.ProfileLDR
	if sourceIsFloat {
		profile = astc.ProfileHDRRGBLDRA
	}

	var flags native.Flags
	if isNormalMap {
		flags |= native.FlagMapNormal
	}
	if useAlphaWeight {
		flags |= native.FlagUseAlphaWeight
	}

	_ = qualityFromFraction(quality)

	return native.Config{
		Profile: profile,
		Flags:   flags,
		BlockX:  blockX,
		BlockY:  blockY,
		BlockZ:  1,
	}
}

// Context wraps a native.Context for the lifetime of one texture's
// compile (possibly many mips), giving CompressImage/Close names matching
// the Texture Compressor's job-batch contract.
type Context struct {
	native *native.Context
}

// ContextAlloc allocates a native encoder context for cfg. Each caller
// must release it with Close once every compress job referencing it has
// finished (SPEC_FULL.md §4.3 "a finalisation job disposes the context").
func ContextAlloc(cfg native.Config, threadCount int) (*Context, error) {
	ctx, err := native.ContextAlloc(cfg, threadCount)
	if err != nil {
		return nil, fmt.Errorf("codec/astc: context alloc: %w", err)
	}
	return &Context{native: ctx}, nil
}

// CompressImage compresses one image's worth of texels into dst using
// workerIndex's dedicated encoder slot, matching upstream's "one thread
// index per worker" threading model.
func (c *Context) CompressImage(img native.Image, dst []byte, workerIndex int) error {
	if err := c.native.CompressImage(img, dst, workerIndex); err != nil {
		core.LogError("codec/astc: compress failed: %v", err)
		return fmt.Errorf("codec/astc: compress: %w", err)
	}
	return nil
}

// Decompress expands an ASTC block stream back to RGBA, used by the
// Scene Exporter's decompress-then-reencode-as-PNG path (SPEC_FULL.md
// §4.10 "converts textures to PNG via a decompressor + PNG encoder").
func (c *Context) Decompress(blocks []byte, dimX, dimY, dimZ int) (native.Image, error) {
	img, err := c.native.DecompressImage(blocks, dimX, dimY, dimZ)
	if err != nil {
		return native.Image{}, fmt.Errorf("codec/astc: decompress: %w", err)
	}
	return img, nil
}

// Close disposes the underlying native context.
func (c *Context) Close() error {
	return c.native.Close()
}
