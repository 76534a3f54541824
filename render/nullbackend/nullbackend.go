// Package nullbackend is a CPU-only render.Backend: it performs the same
// panorama-to-cube projection and IBL prefiltering math a GPU backend
// would, without a device, so the Cubemap Processor (SPEC_FULL.md §4.5)
// is deterministically testable in a headless compile.
//
// Grounded on the teacher's engine/renderer/backend.go RendererBackend
// method set (Initialize/BeginFrame/EndFrame-style lifecycle) narrowed to
// cubemap rendering, with core.SlotTable (adapted from
// engine/core/identifier.go) standing in for the GPU resource handle
// table a real backend would own.
package nullbackend

import (
	"fmt"
	"math/rand/v2"

	"github.com/forgelabs/assetforge/core"
	kmath "github.com/forgelabs/assetforge/math"
	"github.com/forgelabs/assetforge/render"
)

type resourceKind int

const (
	kindPanorama resourceKind = iota
	kindCube
)

type panoramaResource struct {
	pixels        []float32
	width, height int
}

type cubeResource struct {
	faceSize int
	// mips[level][face] is a row-major RGBA32F face.
	mips [][6][]float32
}

// Backend implements render.Backend entirely on the CPU.
type Backend struct {
	slots *core.SlotTable
}

// New creates a fresh nullbackend.Backend.
func New() *Backend {
	return &Backend{slots: &core.SlotTable{}}
}

func (b *Backend) UploadPanorama(pixels []float32, width, height int) (render.Handle, error) {
	if len(pixels) != width*height*4 {
		return 0, fmt.Errorf("nullbackend: panorama pixel count mismatch")
	}
	id := b.slots.Acquire(&panoramaResource{pixels: pixels, width: width, height: height})
	return render.Handle(id), nil
}

func (b *Backend) resolve(h render.Handle) (interface{}, error) {
	owner := b.slots.Owner(uint32(h))
	if owner == nil {
		return nil, fmt.Errorf("nullbackend: unknown handle %d", h)
	}
	return owner, nil
}

func (b *Backend) RenderPanoramaToCube(panorama render.Handle, faceSize int) (render.Handle, error) {
	owner, err := b.resolve(panorama)
	if err != nil {
		return 0, err
	}
	pano, ok := owner.(*panoramaResource)
	if !ok {
		return 0, fmt.Errorf("nullbackend: handle %d is not a panorama", panorama)
	}

	face0 := make([]float32, faceSize*faceSize*4)
	faces := [6][]float32{}
	for f := 0; f < 6; f++ {
		faces[f] = make([]float32, faceSize*faceSize*4)
	}
	_ = face0

	for f := 0; f < 6; f++ {
		for y := 0; y < faceSize; y++ {
			for x := 0; x < faceSize; x++ {
				dir := render.SampleDirection(f, x, y, faceSize)
				r, g, bl, a := samplePanorama(pano, dir)
				o := (y*faceSize + x) * 4
				faces[f][o+0], faces[f][o+1], faces[f][o+2], faces[f][o+3] = r, g, bl, a
			}
		}
	}

	cube := &cubeResource{faceSize: faceSize, mips: [][6][]float32{faces}}
	id := b.slots.Acquire(cube)
	return render.Handle(id), nil
}

func (b *Backend) GenerateMips(cube render.Handle, mipCount int) error {
	owner, err := b.resolve(cube)
	if err != nil {
		return err
	}
	cr, ok := owner.(*cubeResource)
	if !ok {
		return fmt.Errorf("nullbackend: handle %d is not a cube", cube)
	}

	size := cr.faceSize
	for level := 1; level < mipCount && size > 1; level++ {
		prevSize := size
		size /= 2
		var faces [6][]float32
		for f := 0; f < 6; f++ {
			faces[f] = downsample(cr.mips[level-1][f], prevSize, size)
		}
		cr.mips = append(cr.mips, faces)
	}
	return nil
}

func (b *Backend) Filter(source render.Handle, params render.FilterParams) (render.Handle, error) {
	owner, err := b.resolve(source)
	if err != nil {
		return 0, err
	}
	cr, ok := owner.(*cubeResource)
	if !ok {
		return 0, fmt.Errorf("nullbackend: handle %d is not a cube", source)
	}

	size := params.Width
	if size == 0 {
		size = cr.faceSize
	}
	var faces [6][]float32
	for f := 0; f < 6; f++ {
		faces[f] = make([]float32, size*size*4)
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dir := render.SampleDirection(f, x, y, size)
				r, g, bl, a := filterSample(cr, dir, params)
				o := (y*size + x) * 4
				faces[f][o+0], faces[f][o+1], faces[f][o+2], faces[f][o+3] = r, g, bl, a
			}
		}
	}

	filtered := &cubeResource{faceSize: size, mips: [][6][]float32{faces}}
	id := b.slots.Acquire(filtered)
	return render.Handle(id), nil
}

func (b *Backend) Readback(cube render.Handle, mipCount int) ([]render.MipFace, error) {
	owner, err := b.resolve(cube)
	if err != nil {
		return nil, err
	}
	cr, ok := owner.(*cubeResource)
	if !ok {
		return nil, fmt.Errorf("nullbackend: handle %d is not a cube", cube)
	}

	var out []render.MipFace
	size := cr.faceSize
	for level := 0; level < len(cr.mips) && level < mipCount; level++ {
		for f := 0; f < 6; f++ {
			out = append(out, render.MipFace{
				MipLevel: level,
				Face:     f,
				Width:    size,
				Height:   size,
				Pixels:   cr.mips[level][f],
			})
		}
		size /= 2
		if size < 1 {
			size = 1
		}
	}
	return out, nil
}

func (b *Backend) Destroy(h render.Handle) error {
	return b.slots.Release(uint32(h))
}

func samplePanorama(p *panoramaResource, dir kmath.Vec3) (r, g, bl, a float32) {
	u, v := render.EquirectUV(dir)
	x := clampInt(int(u*float32(p.width)), p.width-1)
	y := clampInt(int(v*float32(p.height)), p.height-1)
	o := (y*p.width + x) * 4
	return p.pixels[o+0], p.pixels[o+1], p.pixels[o+2], p.pixels[o+3]
}

// filterSample jitters dir sampleCount times by a seeded pseudo-random
// offset drawn uniformly from a box whose side is 1 (Lambertian) or the
// roughness (GGX), and averages the base cubemap at the jittered
// directions — an approximation of the GPU fragment pass
// spec.md §4.5 step 3 describes, sufficient for a deterministic CPU path.
func filterSample(cr *cubeResource, dir kmath.Vec3, params render.FilterParams) (r, g, bl, a float32) {
	samples := params.SampleCount
	if samples <= 0 {
		samples = 16
	}
	var sr, sg, sb, sa float32
	rng := rand.New(rand.NewPCG(uint64(params.MipLevel)+1, uint64(params.SampleCount)+1))
	for i := 0; i < samples; i++ {
		jitterScale := params.Roughness
		if params.Distribution == render.DistributionLambertian {
			jitterScale = 1.0
		}
		jittered := jitterDirection(dir, jitterScale, rng)
		fr, fg, fb, fa := sampleCubeBaseLevel(cr, jittered)
		sr += fr
		sg += fg
		sb += fb
		sa += fa
	}
	n := float32(samples)
	return sr / n, sg / n, sb / n, sa / n
}

func jitterDirection(dir kmath.Vec3, scale float32, rng *rand.Rand) kmath.Vec3 {
	jitter := kmath.NewVec3(
		(rng.Float32()-0.5)*scale,
		(rng.Float32()-0.5)*scale,
		(rng.Float32()-0.5)*scale,
	)
	return dir.Add(jitter).Normalized()
}

func sampleCubeBaseLevel(cr *cubeResource, dir kmath.Vec3) (r, g, bl, a float32) {
	face, u, v := majorAxisUV(dir)
	size := cr.faceSize
	x := clampInt(int(u*float32(size)), size-1)
	y := clampInt(int(v*float32(size)), size-1)
	o := (y*size + x) * 4
	px := cr.mips[0][face]
	return px[o+0], px[o+1], px[o+2], px[o+3]
}

func majorAxisUV(dir kmath.Vec3) (face int, u, v float32) {
	ax, ay, az := absf(dir.X), absf(dir.Y), absf(dir.Z)
	switch {
	case ax >= ay && ax >= az:
		if dir.X > 0 {
			face = 0
			u, v = -dir.Z/ax, -dir.Y/ax
		} else {
			face = 1
			u, v = dir.Z/ax, -dir.Y/ax
		}
	case ay >= ax && ay >= az:
		if dir.Y > 0 {
			face = 2
			u, v = dir.X/ay, dir.Z/ay
		} else {
			face = 3
			u, v = dir.X/ay, -dir.Z/ay
		}
	default:
		if dir.Z > 0 {
			face = 4
			u, v = dir.X/az, -dir.Y/az
		} else {
			face = 5
			u, v = -dir.X/az, -dir.Y/az
		}
	}
	return face, (u + 1) / 2, (v + 1) / 2
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func downsample(src []float32, srcSize, dstSize int) []float32 {
	dst := make([]float32, dstSize*dstSize*4)
	ratio := srcSize / dstSize
	if ratio < 1 {
		ratio = 1
	}
	for y := 0; y < dstSize; y++ {
		for x := 0; x < dstSize; x++ {
			var r, g, b, a float32
			count := 0
			for sy := 0; sy < ratio; sy++ {
				for sx := 0; sx < ratio; sx++ {
					srcX := x*ratio + sx
					srcY := y*ratio + sy
					if srcX >= srcSize || srcY >= srcSize {
						continue
					}
					o := (srcY*srcSize + srcX) * 4
					r += src[o+0]
					g += src[o+1]
					b += src[o+2]
					a += src[o+3]
					count++
				}
			}
			n := float32(count)
			o := (y*dstSize + x) * 4
			dst[o+0], dst[o+1], dst[o+2], dst[o+3] = r/n, g/n, b/n, a/n
		}
	}
	return dst
}

func clampInt(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

var _ render.Backend = (*Backend)(nil)
