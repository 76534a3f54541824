package nullbackend

import (
	"testing"

	"github.com/forgelabs/assetforge/render"
	"github.com/stretchr/testify/require"
)

func flatPanorama(w, h int, r, g, b, a float32) []float32 {
	px := make([]float32, w*h*4)
	for i := 0; i < w*h; i++ {
		px[i*4+0], px[i*4+1], px[i*4+2], px[i*4+3] = r, g, b, a
	}
	return px
}

func TestRenderPanoramaToCubeProducesSixFaces(t *testing.T) {
	b := New()
	panoHandle, err := b.UploadPanorama(flatPanorama(8, 4, 0.5, 0.25, 0.1, 1), 8, 4)
	require.NoError(t, err)

	cubeHandle, err := b.RenderPanoramaToCube(panoHandle, 4)
	require.NoError(t, err)

	faces, err := b.Readback(cubeHandle, 1)
	require.NoError(t, err)
	require.Len(t, faces, 6)
	for _, f := range faces {
		require.Equal(t, 4, f.Width)
		require.Len(t, f.Pixels, 4*4*4)
	}
}

func TestFlatPanoramaProducesUniformCube(t *testing.T) {
	b := New()
	panoHandle, err := b.UploadPanorama(flatPanorama(16, 8, 0.2, 0.4, 0.6, 1), 16, 8)
	require.NoError(t, err)
	cubeHandle, err := b.RenderPanoramaToCube(panoHandle, 4)
	require.NoError(t, err)

	faces, err := b.Readback(cubeHandle, 1)
	require.NoError(t, err)
	for _, f := range faces {
		for i := 0; i < len(f.Pixels); i += 4 {
			require.InDelta(t, 0.2, f.Pixels[i+0], 0.01)
			require.InDelta(t, 0.4, f.Pixels[i+1], 0.01)
			require.InDelta(t, 0.6, f.Pixels[i+2], 0.01)
		}
	}
}

func TestGenerateMipsAddsLevels(t *testing.T) {
	b := New()
	panoHandle, _ := b.UploadPanorama(flatPanorama(16, 8, 1, 1, 1, 1), 16, 8)
	cubeHandle, _ := b.RenderPanoramaToCube(panoHandle, 8)

	require.NoError(t, b.GenerateMips(cubeHandle, 4))
	faces, err := b.Readback(cubeHandle, 4)
	require.NoError(t, err)
	require.Len(t, faces, 4*6)
}

func TestDestroyReleasesHandle(t *testing.T) {
	b := New()
	h, _ := b.UploadPanorama(flatPanorama(4, 2, 1, 1, 1, 1), 4, 2)
	require.NoError(t, b.Destroy(h))
	_, err := b.RenderPanoramaToCube(h, 2)
	require.Error(t, err)
}

var _ render.Backend = (*Backend)(nil)
