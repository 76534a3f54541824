package meshbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgelabs/assetforge/codec/scene"
	"github.com/forgelabs/assetforge/guid"
	"github.com/forgelabs/assetforge/hierarchy"
	"github.com/forgelabs/assetforge/jobs"
	emath "github.com/forgelabs/assetforge/math"
	"github.com/stretchr/testify/require"
)

func quadPrimitive() scene.MeshPrimitive {
	return scene.MeshPrimitive{
		Positions: []emath.Vec3{
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		},
		Normals: []emath.Vec3{
			{X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: 1},
		},
		Texcoords: []emath.Vec2{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestBuildComputesTriangleAndVertexCounts(t *testing.T) {
	obj := Build(quadPrimitive())
	require.Equal(t, 4, obj.VertexCount)
	require.Equal(t, 6, obj.TriangleIndexCount)
	require.Len(t, obj.Vertices, 4)
}

func TestBuildFlipsTexcoordV(t *testing.T) {
	obj := Build(quadPrimitive())
	require.Equal(t, float32(0), obj.Vertices[0].Position.Z)
	require.Equal(t, float32(1), obj.Vertices[0].Texcoord.Y)
	require.Equal(t, float32(0), obj.Vertices[2].Texcoord.Y)
}

func TestBuildDefaultsTangentWhenMissing(t *testing.T) {
	obj := Build(quadPrimitive())
	for _, v := range obj.Vertices {
		length := v.Tangent.X*v.Tangent.X + v.Tangent.Y*v.Tangent.Y + v.Tangent.Z*v.Tangent.Z
		require.InDelta(t, 1, length, 1e-4)
		require.Contains(t, []float32{-1, 1}, v.Tangent.W)
	}
}

func TestBuildDetectsVertexColorAlpha(t *testing.T) {
	prim := quadPrimitive()
	prim.VertexColors = []scene.VertexColorSlot{{
		Colors: []emath.Vec4{
			{X: 1, Y: 1, Z: 1, W: 1}, {X: 1, Y: 1, Z: 1, W: 0.5},
			{X: 1, Y: 1, Z: 1, W: 1}, {X: 1, Y: 1, Z: 1, W: 1},
		},
	}}
	obj := Build(prim)
	require.Len(t, obj.ColorSlots, 1)
	require.True(t, obj.ColorSlots[0].Used)
	require.True(t, obj.ColorSlots[0].HasAlpha)
}

func TestSortTrianglesByIndexSumOrdersAscending(t *testing.T) {
	indices := []uint32{5, 6, 7, 0, 1, 2}
	sortTrianglesByIndexSum(indices)
	require.Equal(t, []uint32{0, 1, 2, 5, 6, 7}, indices)
}

func TestComputeBoundsCoversAllVertices(t *testing.T) {
	obj := Build(quadPrimitive())
	require.Equal(t, float32(0), obj.Bounds.Min.X)
	require.Equal(t, float32(1), obj.Bounds.Max.X)
}

func TestWriteBinaryProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	obj := Build(quadPrimitive())
	path := filepath.Join(dir, "quad.stmesh")
	require.NoError(t, WriteBinary(path, obj))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestEnsureColliderHierarchyIsIdempotent(t *testing.T) {
	parent := &hierarchy.Entry{Name: "Root"}
	meshGUID := guid.New()
	materialGUID := guid.New()

	EnsureColliderHierarchy(parent, meshGUID, materialGUID)
	EnsureColliderHierarchy(parent, meshGUID, materialGUID)

	require.Equal(t, hierarchy.PhysicsStatic, parent.PhysicsType)
	require.Len(t, parent.Children, 1)
	require.Equal(t, "Mesh Collider", parent.Children[0].Name)
	require.Len(t, parent.Children[0].Children, 1)
	require.Equal(t, "Mesh", parent.Children[0].Children[0].Name)
	require.Equal(t, meshGUID, parent.Children[0].Children[0].StaticMesh.MeshGUID)
}

func TestCompileInvokesCallbackOnSuccess(t *testing.T) {
	dir := t.TempDir()
	sched := jobs.NewScheduler(1)

	var result CompileResult
	_, err := Compile(sched, quadPrimitive(), CompileOptions{
		OutputDir:  dir,
		SharedName: "quad",
		MeshGUID:   guid.New(),
	}, func(r CompileResult) { result = r })
	require.NoError(t, err)
	require.NoError(t, sched.Run())
	require.True(t, result.Compiled)
	require.FileExists(t, result.BinaryPath)
}
