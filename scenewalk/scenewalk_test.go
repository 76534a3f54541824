package scenewalk

import (
	"path/filepath"
	"testing"

	"github.com/forgelabs/assetforge/assetdb"
	"github.com/forgelabs/assetforge/codec/scene"
	"github.com/forgelabs/assetforge/config"
	"github.com/forgelabs/assetforge/jobs"
	emath "github.com/forgelabs/assetforge/math"
	"github.com/stretchr/testify/require"
)

func oneTriangleMesh(name string) *scene.Mesh {
	return &scene.Mesh{
		Name: name,
		Primitives: []scene.MeshPrimitive{
			{
				Positions: []emath.Vec3{{X: 0}, {X: 1}, {X: 1, Y: 1}},
				Indices:   []uint32{0, 1, 2},
			},
		},
	}
}

func TestLightRadiusIntensityRoundTrip(t *testing.T) {
	radius := LightRadiusFromIntensity(4)
	require.InDelta(t, IntensityFromRadius(radius), 4, 1e-3)
}

func TestLightRadiusZeroForNonPositiveIntensity(t *testing.T) {
	require.Equal(t, float32(0), LightRadiusFromIntensity(0))
	require.Equal(t, float32(0), LightRadiusFromIntensity(-1))
}

func TestBrightestChannelColorNormalizes(t *testing.T) {
	c := brightestChannelColor(emath.Vec3{X: 1, Y: 2, Z: 4})
	require.Equal(t, float32(1), c.Z)
	require.InDelta(t, 0.25, c.X, 1e-6)
}

func TestWalkNodeMatchesLightBySourceName(t *testing.T) {
	s := &scene.Scene{
		Lights: []*scene.Light{{Name: "Lamp", Kind: scene.LightPoint, Color: emath.Vec3{X: 1, Y: 1, Z: 1}, Intensity: 9}},
	}
	sched := jobs.NewScheduler(1)
	cache := assetdb.New()
	info := New(s, sched, []config.Platform{config.PlatformLinux}, CompileFlags{}, cache, "/tmp/scene.gltf", "/tmp", func(CompileResult) {})

	node := &scene.Node{Name: "Lamp"}
	entry := info.WalkNode(node)

	require.NotNil(t, entry.Light)
	require.Empty(t, info.RemainingLights)
	require.InDelta(t, 9, IntensityFromRadius(entry.Light.Radius), 1e-3)
}

func TestWalkNodeMatchesCameraBySourceName(t *testing.T) {
	s := &scene.Scene{Cameras: []*scene.Camera{{Name: "Cam", FOV: 60, Near: 0.1, Far: 100}}}
	sched := jobs.NewScheduler(1)
	cache := assetdb.New()
	info := New(s, sched, nil, CompileFlags{}, cache, "/tmp/scene.gltf", "/tmp", func(CompileResult) {})

	entry := info.WalkNode(&scene.Node{Name: "Cam"})
	require.NotNil(t, entry.Camera)
	require.Empty(t, info.RemainingCameras)
}

func TestWalkMeshNodeDedupsSharedMeshAcrossNodes(t *testing.T) {
	mesh := oneTriangleMesh("Cube")
	idx := 0
	s := &scene.Scene{Meshes: []*scene.Mesh{mesh}}
	sched := jobs.NewScheduler(1)
	cache := assetdb.New()
	dir := t.TempDir()
	info := New(s, sched, []config.Platform{config.PlatformLinux}, CompileFlags{}, cache, filepath.Join(dir, "scene.gltf"), dir, func(CompileResult) {})

	entryA := info.WalkNode(&scene.Node{Name: "CubeA", MeshIndex: &idx})
	entryB := info.WalkNode(&scene.Node{Name: "CubeB", MeshIndex: &idx})

	require.Equal(t, entryA.SceneGUID, entryB.SceneGUID)
	require.Len(t, info.JobDependencies, 1)
}

func TestWalkMeshNodeQueuesFinalisationJob(t *testing.T) {
	mesh := oneTriangleMesh("Plane")
	idx := 0
	s := &scene.Scene{Meshes: []*scene.Mesh{mesh}}
	sched := jobs.NewScheduler(1)
	cache := assetdb.New()
	dir := t.TempDir()

	var results []CompileResult
	info := New(s, sched, []config.Platform{config.PlatformLinux}, CompileFlags{}, cache, filepath.Join(dir, "scene.gltf"), dir, func(r CompileResult) {
		results = append(results, r)
	})

	entry := info.WalkNode(&scene.Node{Name: "Plane", MeshIndex: &idx})
	require.NoError(t, sched.Run())

	require.Len(t, results, 1)
	require.True(t, results[0].Compiled)
	require.Equal(t, TagMeshPart, results[0].Tag)
	require.Equal(t, entry.SceneGUID, results[0].Entry.GUID)
}
