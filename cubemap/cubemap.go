// Package cubemap implements the Cubemap Processor (SPEC_FULL.md §4.5):
// given an HDR equirectangular panorama, it produces the raw cubemap, a
// Lambertian-prefiltered diffuse cubemap, a GGX-prefiltered specular
// cubemap with mips, and a standalone BRDF LUT — each handed to the
// Texture Pipeline (texture.Compile) with its own preset.
//
// Grounded on engine/renderer/vulkan's device/command-buffer/fence/
// barrier-based blit shape for the high-level Process flow, narrowed to
// the render.Backend interface so the math is testable without a GPU
// (render/nullbackend performs the equivalent work on the CPU).
package cubemap

import (
	"fmt"
	"math"

	"github.com/forgelabs/assetforge/codec/image"
	"github.com/forgelabs/assetforge/config"
	"github.com/forgelabs/assetforge/core"
	"github.com/forgelabs/assetforge/format"
	"github.com/forgelabs/assetforge/jobs"
	"github.com/forgelabs/assetforge/render"
	"github.com/forgelabs/assetforge/texture"
)

// Sizes the three output cubemaps use, per SPEC_FULL.md §4.5: raw is
// min(W,H)^2, diffuse is a fixed 32^2, specular is a fixed 256^2 with
// mips, and the BRDF LUT is a standalone 256^2 RG8 texture.
const (
	DiffuseFaceSize  = 32
	SpecularFaceSize = 256
	BRDFLUTSize      = 256
)

// Options carries the per-asset knobs the Cubemap Processor needs beyond
// the decoded panorama itself.
type Options struct {
	Platforms          []config.Platform
	IntensityFactor    float32 // from asset metadata, default 1.0
	InternalCompensation float32 // empirical factor SPEC_FULL.md §9 leaves as a config knob
	OutputDir          string
	AssetName          string
	SampleCount        int
}

// Result is the Cubemap Processor's output: three texture.Asset handles
// (raw, diffuse, specular) plus the BRDF LUT, each already queued for
// compilation via texture.Compile.
type Result struct {
	Raw      *texture.Asset
	Diffuse  *texture.Asset
	Specular *texture.Asset
	BRDFLUT  *texture.Asset
}

// DecodePanorama loads an HDR/EXR-style panorama and applies the
// intensity scaling SPEC_FULL.md §4.5 describes: "intensity_factor ×
// internal compensation factor; RGB clamped to [0,1] before cubemap
// generation."
func DecodePanorama(data []byte, opts Options) ([]float32, int, int, error) {
	decoded, err := image.DecodeN(data, image.FormatHDR)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("cubemap: decode panorama: %w", err)
	}
	if decoded.ChannelCount != 4 || decoded.BitDepth != 32 {
		return nil, 0, 0, fmt.Errorf("cubemap: panorama must decode to RGBA32F, got %d channels at %d bits", decoded.ChannelCount, decoded.BitDepth)
	}

	intensity := opts.IntensityFactor
	if intensity == 0 {
		intensity = 1.0
	}
	compensation := opts.InternalCompensation
	if compensation == 0 {
		compensation = 1.0
	}
	scale := intensity * compensation

	pixels := decodedToFloat32(decoded.Pixels)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i+0] = clamp01(pixels[i+0] * scale)
		pixels[i+1] = clamp01(pixels[i+1] * scale)
		pixels[i+2] = clamp01(pixels[i+2] * scale)
		// alpha passes through unscaled.
	}
	return pixels, decoded.Width, decoded.Height, nil
}

func decodedToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32frombytes(b[i*4 : i*4+4])
	}
	return out
}

func float32frombytes(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Process runs the full pipeline described in SPEC_FULL.md §4.5 steps
// 1-6: upload, render-to-cube, mip-generate, prefilter both
// distributions, read back, and hand each result to texture.Compile with
// its matching preset. texture.Compile only queues jobs on sched; Process
// runs sched to completion itself before returning, since a cubemap
// compile (unlike a scene compile) is a self-contained unit of work, not
// one branch of a larger session DAG — the caller needing to chain it
// into a bigger session should use its own Scheduler and Readback the
// faces directly instead.
func Process(backend render.Backend, sched *jobs.Scheduler, panorama []float32, panoW, panoH int, opts Options) (*Result, error) {
	panoHandle, err := backend.UploadPanorama(panorama, panoW, panoH)
	if err != nil {
		return nil, fmt.Errorf("%w: upload panorama: %v", core.ErrCodecFailure, err)
	}
	defer backend.Destroy(panoHandle)

	rawFaceSize := panoW
	if panoH < rawFaceSize {
		rawFaceSize = panoH
	}

	rawCube, err := backend.RenderPanoramaToCube(panoHandle, rawFaceSize)
	if err != nil {
		return nil, fmt.Errorf("cubemap: render panorama to cube: %w", err)
	}
	defer backend.Destroy(rawCube)

	result := &Result{}

	rawSlot, err := compileCubeFaces(backend, sched, rawCube, 1, format.PresetEnvironmentCubemapDiffuseHDR, opts, "raw")
	if err != nil {
		return nil, err
	}

	diffuseHandle, err := backend.Filter(rawCube, render.FilterParams{
		Distribution: render.DistributionLambertian,
		SampleCount:  sampleCountOrDefault(opts.SampleCount),
		Width:        DiffuseFaceSize,
		Height:       DiffuseFaceSize,
		Roughness:    1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("cubemap: lambertian filter: %w", err)
	}
	defer backend.Destroy(diffuseHandle)

	diffuseSlot, err := compileCubeFaces(backend, sched, diffuseHandle, 1, format.PresetEnvironmentCubemapDiffuseHDR, opts, "diffuse")
	if err != nil {
		return nil, err
	}

	specularMipCount := mipCountForSize(SpecularFaceSize)
	specularHandle, err := backend.RenderPanoramaToCube(panoHandle, SpecularFaceSize)
	if err != nil {
		return nil, fmt.Errorf("cubemap: render specular base: %w", err)
	}
	defer backend.Destroy(specularHandle)
	if err := backend.GenerateMips(specularHandle, specularMipCount); err != nil {
		return nil, fmt.Errorf("cubemap: generate specular mips: %w", err)
	}

	var specularFaces []render.MipFace
	for level := 0; level < specularMipCount; level++ {
		size := SpecularFaceSize >> uint(level)
		if size < 1 {
			size = 1
		}
		filtered, err := backend.Filter(specularHandle, render.FilterParams{
			Distribution: render.DistributionGGX,
			SampleCount:  sampleCountOrDefault(opts.SampleCount),
			MipLevel:     level,
			Width:        size,
			Height:       size,
			Roughness:    float32(level) / float32(specularMipCount-1+boolToInt(specularMipCount == 1)),
		})
		if err != nil {
			return nil, fmt.Errorf("cubemap: ggx filter mip %d: %w", level, err)
		}
		levelFaces, err := backend.Readback(filtered, 1)
		backend.Destroy(filtered)
		if err != nil {
			return nil, fmt.Errorf("cubemap: readback ggx mip %d: %w", level, err)
		}
		for _, f := range levelFaces {
			f.MipLevel = level
			specularFaces = append(specularFaces, f)
		}
	}

	specularSlot, err := compileFaces(sched, specularFaces, SpecularFaceSize, specularMipCount, format.PresetEnvironmentCubemapSpecular, opts, "specular")
	if err != nil {
		return nil, err
	}

	brdfSlot, err := generateBRDFLUT(sched, opts)
	if err != nil {
		return nil, err
	}

	if err := sched.Run(); err != nil {
		return nil, fmt.Errorf("cubemap: compile jobs: %w", err)
	}

	result.Raw = rawSlot.asset
	result.Diffuse = diffuseSlot.asset
	result.Specular = specularSlot.asset
	result.BRDFLUT = brdfSlot.asset

	return result, nil
}

// resultSlot is filled in place by a texture.Compile completion callback;
// Process reads it only after sched.Run() has returned.
type resultSlot struct {
	asset *texture.Asset
}

func sampleCountOrDefault(n int) int {
	if n <= 0 {
		return 64
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mipCountForSize returns the number of mip levels a full chain down to
// 1x1 requires for a power-of-two face size.
func mipCountForSize(size int) int {
	count := 1
	for size > 1 {
		size /= 2
		count++
	}
	return count
}

func compileCubeFaces(backend render.Backend, sched *jobs.Scheduler, handle render.Handle, mipCount int, preset format.Preset, opts Options, name string) (*resultSlot, error) {
	faces, err := backend.Readback(handle, mipCount)
	if err != nil {
		return nil, fmt.Errorf("cubemap: readback %s: %w", name, err)
	}
	size := faces[0].Width
	return compileFaces(sched, faces, size, mipCount, preset, opts, name)
}

// compileFaces flattens a readback face list (ordered mip-major,
// face-minor per render.Backend.Readback) into one interleaved RGBA32F
// buffer per SPEC_FULL.md §4.5 step 6 ("each of the three textures is
// then fed to §4.4") and queues its compile.
func compileFaces(sched *jobs.Scheduler, faces []render.MipFace, faceSize, mipCount int, preset format.Preset, opts Options, name string) (*resultSlot, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("cubemap: %s produced no faces", name)
	}

	var buf []byte
	for _, f := range faces {
		buf = append(buf, floatsToBytes(f.Pixels)...)
	}

	tex := texture.UncompressedTexture{
		Pixels:       buf,
		Width:        faceSize,
		Height:       faceSize,
		ChannelCount: 4,
		BitDepth:     32,
		ArraySize:    6,
		SourceFormat: format.FormatRGBA32F,
	}

	slot := &resultSlot{}
	_, err := texture.Compile(sched, tex, texture.CompileOptions{
		Platforms:    opts.Platforms,
		Preset:       preset,
		GenerateMips: mipCount > 1,
		OutputDir:    opts.OutputDir,
		AssetName:    opts.AssetName + "_" + name,
	}, func(result texture.CompileResult) {
		slot.asset = result.Asset
	})
	if err != nil {
		return nil, fmt.Errorf("cubemap: compile %s: %w", name, err)
	}
	return slot, nil
}

// generateBRDFLUT produces the standalone 256^2 RG8 BRDF integration
// texture SPEC_FULL.md §4.5 describes as "a standalone operation"
// independent of any one panorama — the split-sum approximation's
// analytic integral, evaluated on a (NdotV, roughness) grid.
func generateBRDFLUT(sched *jobs.Scheduler, opts Options) (*resultSlot, error) {
	pixels := make([]byte, BRDFLUTSize*BRDFLUTSize*2)
	for y := 0; y < BRDFLUTSize; y++ {
		roughness := (float32(y) + 0.5) / float32(BRDFLUTSize)
		for x := 0; x < BRDFLUTSize; x++ {
			nDotV := (float32(x) + 0.5) / float32(BRDFLUTSize)
			scale, bias := integrateBRDF(nDotV, roughness)
			o := (y*BRDFLUTSize + x) * 2
			pixels[o+0] = floatToByte(scale)
			pixels[o+1] = floatToByte(bias)
		}
	}

	tex := texture.UncompressedTexture{
		Pixels:       pixels,
		Width:        BRDFLUTSize,
		Height:       BRDFLUTSize,
		ChannelCount: 2,
		BitDepth:     8,
		ArraySize:    1,
		SourceFormat: format.FormatRG8,
	}

	slot := &resultSlot{}
	_, err := texture.Compile(sched, tex, texture.CompileOptions{
		Platforms: opts.Platforms,
		Preset:    format.PresetBRDF,
		OutputDir: opts.OutputDir,
		AssetName: opts.AssetName + "_brdf",
	}, func(result texture.CompileResult) {
		slot.asset = result.Asset
	})
	if err != nil {
		return nil, fmt.Errorf("cubemap: compile brdf lut: %w", err)
	}
	return slot, nil
}

func floatToByte(v float32) byte {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return byte(v*255 + 0.5)
}

func floatsToBytes(pixels []float32) []byte {
	out := make([]byte, len(pixels)*4)
	for i, v := range pixels {
		bits := math.Float32bits(v)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

// integrateBRDF evaluates the Karis (2014) mobile-friendly closed-form
// approximation of the split-sum specular BRDF integral — a fixed
// analytic polynomial fit to the full Monte-Carlo integral, not
// something any corpus library provides, so it's hand-rolled directly
// from the published formula rather than sampled at runtime.
func integrateBRDF(nDotV, roughness float32) (scale, bias float32) {
	c0x, c0y, c0z, c0w := float32(-1), float32(-0.0275), float32(-0.572), float32(0.022)
	c1x, c1y, c1z, c1w := float32(1), float32(0.0425), float32(1.04), float32(-0.04)

	rx := roughness*c0x + c1x
	ry := roughness*c0y + c1y
	rz := roughness*c0z + c1z
	rw := roughness*c0w + c1w

	a004 := minFloat32(rx*rx, float32(math.Exp2(float64(-9.28*nDotV))))*rx + ry
	scale = -1.04*a004 + rz
	bias = 1.04*a004 + rw
	return scale, bias
}

func minFloat32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
