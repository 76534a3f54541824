// Package render declares the renderer-backend boundary the Cubemap
// Processor (SPEC_FULL.md §4.5) drives: panorama upload, panorama-to-cube
// projection, mip generation, IBL distribution filtering, and readback.
// spec.md §1 treats the GPU renderer as an external collaborator out of
// scope for this core; Backend captures only the shape of that
// collaborator's API, grounded on the teacher's
// engine/renderer/backend.go RendererBackend interface (same
// capitalized-verb, opaque-handle style, narrowed to the cubemap domain).
package render

import "github.com/forgelabs/assetforge/math"

// Handle is an opaque renderer-owned resource reference (a GPU image,
// staging buffer, or framebuffer, depending on backend).
type Handle uint32

// Distribution selects which IBL prefilter kernel a filter pass applies
// (SPEC_FULL.md §4.5 step 3: "For each target distribution (GGX,
// Lambertian)").
type Distribution int

const (
	DistributionLambertian Distribution = iota
	DistributionGGX
)

// MipFace is one readback-staged mip level's one cube face, RGBA32F,
// row-major.
type MipFace struct {
	MipLevel int
	Face     int
	Width    int
	Height   int
	Pixels   []float32
}

// FilterParams mirrors the push-constant block spec.md §4.5 step 3
// describes: "{roughness = mip/maxMip, sampleCount, mipLevel, width,
// height, lodBias, distribution}".
type FilterParams struct {
	Roughness   float32
	SampleCount int
	MipLevel    int
	Width       int
	Height      int
	LODBias     float32
	Distribution Distribution
}

// Backend is the renderer collaborator the Cubemap Processor drives. A
// production backend would implement this over a real GPU device;
// render/nullbackend implements it entirely on the CPU for deterministic
// tests and headless compiles.
type Backend interface {
	// UploadPanorama uploads an RGBA32F equirectangular panorama
	// (TransferDst+Sampled per SPEC_FULL.md §4.5 step 1).
	UploadPanorama(pixels []float32, width, height int) (Handle, error)

	// RenderPanoramaToCube projects panorama into a 6-face cubemap of
	// faceSize x faceSize via a panorama-to-cube fragment pass.
	RenderPanoramaToCube(panorama Handle, faceSize int) (Handle, error)

	// GenerateMips down-samples cube into a full mip chain in place
	// (SPEC_FULL.md §4.5 step 2).
	GenerateMips(cube Handle, mipCount int) error

	// Filter renders one mip level of one distribution into a fresh
	// 6-face-attachment framebuffer (SPEC_FULL.md §4.5 step 3).
	Filter(source Handle, params FilterParams) (Handle, error)

	// Readback copies every mip x face of cube into host-visible memory
	// (SPEC_FULL.md §4.5 step 5).
	Readback(cube Handle, mipCount int) ([]MipFace, error)

	// Destroy releases a handle previously returned by this backend.
	Destroy(h Handle) error
}

// SampleDirection returns the world-space direction for a texel at (x, y)
// on cube face (0=+X,1=-X,2=+Y,3=-Y,4=+Z,5=-Z) of a faceSize x faceSize
// face — shared by every Backend implementation that needs to map cube
// texels back to directions for panorama sampling.
func SampleDirection(face, x, y, faceSize int) math.Vec3 {
	u := 2*(float32(x)+0.5)/float32(faceSize) - 1
	v := 2*(float32(y)+0.5)/float32(faceSize) - 1
	switch face {
	case 0:
		return math.NewVec3(1, -v, -u).Normalized()
	case 1:
		return math.NewVec3(-1, -v, u).Normalized()
	case 2:
		return math.NewVec3(u, 1, v).Normalized()
	case 3:
		return math.NewVec3(u, -1, -v).Normalized()
	case 4:
		return math.NewVec3(u, -v, 1).Normalized()
	default:
		return math.NewVec3(-u, -v, -1).Normalized()
	}
}

// EquirectUV converts a world-space direction into equirectangular (u, v)
// panorama texture coordinates.
func EquirectUV(dir math.Vec3) (float32, float32) {
	const invAtan2Pi = 0.1591549 // 1/(2*pi)
	const invAtanPi = 0.3183099  // 1/pi
	u := 0.5 + math.Atan2(dir.Z, dir.X)*invAtan2Pi
	v := 0.5 - math.Asin(dir.Y)*invAtanPi
	return u, v
}
