package sceneexport

import (
	"testing"

	"github.com/forgelabs/assetforge/guid"
	"github.com/forgelabs/assetforge/hierarchy"
	"github.com/forgelabs/assetforge/jobs"
	emath "github.com/forgelabs/assetforge/math"
	"github.com/forgelabs/assetforge/meshbuild"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	entries map[guid.GUID]*hierarchy.Entry
	meshes  map[guid.GUID]*meshbuild.StaticObject
}

func (f *fakeLoader) LoadEntry(g guid.GUID) (*hierarchy.Entry, error) {
	return f.entries[g], nil
}

func (f *fakeLoader) LoadMeshBinary(meshGUID guid.GUID) (*meshbuild.StaticObject, error) {
	return f.meshes[meshGUID], nil
}

func (f *fakeLoader) LoadMaterialTextures(guid.GUID) (map[string]guid.GUID, error) {
	return map[string]guid.GUID{}, nil
}

func (f *fakeLoader) LoadCompiledTexture(guid.GUID) (CompiledTexture, error) {
	return CompiledTexture{}, nil
}

func triangleObject() *meshbuild.StaticObject {
	return &meshbuild.StaticObject{
		Vertices: []meshbuild.StaticVertex{
			{Position: emath.Vec3{X: 0}, Normal: emath.Vec3{Z: 1}, Tangent: emath.Vec4{X: 1, W: 1}},
			{Position: emath.Vec3{X: 1}, Normal: emath.Vec3{Z: 1}, Tangent: emath.Vec4{X: 1, W: 1}},
			{Position: emath.Vec3{Y: 1}, Normal: emath.Vec3{Z: 1}, Tangent: emath.Vec4{X: 1, W: 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func TestExportProducesBlobForSingleMeshScene(t *testing.T) {
	meshGUID := guid.New()
	materialGUID := guid.New()

	loader := &fakeLoader{
		entries: map[guid.GUID]*hierarchy.Entry{},
		meshes:  map[guid.GUID]*meshbuild.StaticObject{meshGUID: triangleObject()},
	}

	root := &hierarchy.Entry{
		GUID: guid.New(),
		Name: "scene",
		Kind: hierarchy.ComponentScene,
		Children: []*hierarchy.Entry{{
			Name:       "part0",
			Kind:       hierarchy.ComponentStaticMesh,
			StaticMesh: &hierarchy.StaticMesh{MeshGUID: meshGUID, MaterialInstanceGUID: materialGUID},
		}},
	}

	sched := jobs.NewScheduler(1)
	ex := New(loader, sched)

	var result Result
	_, err := ex.Export(root, ".glb", func(r Result) { result = r })
	require.NoError(t, err)
	require.NoError(t, sched.Run())

	require.True(t, result.Exported)
	require.NotEmpty(t, result.Blob)
}

func TestRegisterMeshDedupsByMeshAndMaterial(t *testing.T) {
	loader := &fakeLoader{entries: map[guid.GUID]*hierarchy.Entry{}, meshes: map[guid.GUID]*meshbuild.StaticObject{}}
	ex := New(loader, jobs.NewScheduler(1))

	meshGUID, materialGUID := guid.New(), guid.New()
	first := ex.registerMesh(meshGUID, materialGUID)
	second := ex.registerMesh(meshGUID, materialGUID)
	require.Equal(t, first, second)
	require.Len(t, ex.meshOrder, 1)
}

func TestInverseCorrectVec3UndoesForwardPermutation(t *testing.T) {
	v := emath.Vec3{X: 1, Y: 2, Z: 3}
	forward := emath.Vec3{X: v.X, Y: -v.Z, Z: v.Y}
	require.Equal(t, v, inverseCorrectVec3(forward))
}

func TestComposeTransformAppliesParentScaleAndRotation(t *testing.T) {
	parent := emath.Transform{Position: emath.Vec3{X: 1}, Rotation: emath.NewQuatIdentity(), Scale: emath.Vec3{X: 2, Y: 2, Z: 2}}
	local := emath.Transform{Position: emath.Vec3{X: 1}, Rotation: emath.NewQuatIdentity(), Scale: emath.NewVec3One()}
	world := composeTransform(parent, local)
	require.Equal(t, float32(3), world.Position.X) // 1 + 2*1
	require.Equal(t, float32(2), world.Scale.X)
}
