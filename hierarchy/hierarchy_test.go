package hierarchy

import (
	"testing"

	"github.com/forgelabs/assetforge/guid"
	"github.com/forgelabs/assetforge/math"
	"github.com/stretchr/testify/require"
)

func buildSampleTree() *Entry {
	meshGUID := guid.New()
	matGUID := guid.New()
	root := &Entry{
		GUID:         guid.New(),
		InstanceGUID: guid.New(),
		Name:         "Root",
		SourceName:   "Root",
		LocalTransform: math.Transform{
			Position: math.Vec3{X: 1, Y: 2, Z: 3},
			Rotation: math.NewQuatIdentity(),
			Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		},
		Kind: ComponentSimple,
		Children: []*Entry{
			{
				Name:         "Mesh Collider",
				InstanceGUID: guid.New(),
				Kind:         ComponentColliderMesh,
				Collider:     &Collider{Kind: ComponentColliderMesh, MeshGUID: meshGUID},
				Children: []*Entry{
					{
						Name:         "Mesh",
						InstanceGUID: guid.New(),
						Kind:         ComponentStaticMesh,
						StaticMesh:   &StaticMesh{MeshGUID: meshGUID, MaterialInstanceGUID: matGUID},
					},
				},
			},
		},
	}
	return root
}

func TestRoundTripPreservesStructureAndFields(t *testing.T) {
	root := buildSampleTree()
	ComputeDependencies(root)

	data, err := Serialize(root)
	require.NoError(t, err)

	back, err := Deserialize(data)
	require.NoError(t, err)

	require.Equal(t, root.GUID, back.GUID)
	require.Equal(t, root.InstanceGUID, back.InstanceGUID)
	require.Equal(t, root.LocalTransform.Position, back.LocalTransform.Position)
	require.Len(t, back.Children, 1)
	require.Equal(t, ComponentColliderMesh, back.Children[0].Kind)
	require.Len(t, back.Children[0].Children, 1)
	require.Equal(t, ComponentStaticMesh, back.Children[0].Children[0].Kind)
	require.Equal(t, root.Children[0].Children[0].StaticMesh.MeshGUID, back.Children[0].Children[0].StaticMesh.MeshGUID)
	require.Equal(t, root.Dependencies, back.Dependencies)
}

func TestComputeDependenciesExcludesRootGUID(t *testing.T) {
	root := buildSampleTree()
	meshGUID := root.Children[0].Collider.MeshGUID
	matGUID := root.Children[0].Children[0].StaticMesh.MaterialInstanceGUID

	deps := ComputeDependencies(root)

	require.Contains(t, deps, meshGUID)
	require.Contains(t, deps, matGUID)
	require.NotContains(t, deps, root.GUID)
}

func TestComputeDependenciesDeduplicates(t *testing.T) {
	shared := guid.New()
	root := &Entry{
		GUID: guid.New(),
		Children: []*Entry{
			{Kind: ComponentStaticMesh, StaticMesh: &StaticMesh{MeshGUID: shared}},
			{Kind: ComponentStaticMesh, StaticMesh: &StaticMesh{MeshGUID: shared}},
		},
	}
	deps := ComputeDependencies(root)
	require.Len(t, deps, 1)
	require.Equal(t, shared, deps[0])
}
