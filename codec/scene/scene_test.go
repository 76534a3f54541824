package scene

import (
	"testing"

	"github.com/forgelabs/assetforge/math"
	"github.com/stretchr/testify/require"
)

func TestEncodeProducesNonEmptyDocument(t *testing.T) {
	s := &Scene{
		Root: &Node{
			Name: "Root",
			Children: []*Node{
				{
					Name:        "Cube",
					Translation: math.Vec3{X: 1, Y: 2, Z: 3},
					Rotation:    math.NewQuatIdentity(),
					Scale:       math.Vec3{X: 1, Y: 1, Z: 1},
				},
			},
		},
	}

	out, err := Encode(s, "gltf", EncodeFlags{MetricScale: true})
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestMimeToExtension(t *testing.T) {
	require.Equal(t, "png", mimeToExtension("image/png"))
	require.Equal(t, "jpg", mimeToExtension("image/jpeg"))
	require.Equal(t, "webp", mimeToExtension("image/webp"))
}
