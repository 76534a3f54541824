package scenecompile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgelabs/assetforge/codec/scene"
	"github.com/forgelabs/assetforge/guid"
	"github.com/forgelabs/assetforge/hierarchy"
	"github.com/forgelabs/assetforge/jobs"
	"github.com/stretchr/testify/require"
)

func oneMeshScene() *scene.Scene {
	return &scene.Scene{
		Root:   &scene.Node{Name: "Root", Children: []*scene.Node{{Name: "Mesh"}}},
		Meshes: []*scene.Mesh{{Name: "Mesh", Primitives: []scene.MeshPrimitive{{}}}},
	}
}

func TestIsSimpleSceneAcceptsSingleMeshNoExtras(t *testing.T) {
	require.True(t, isSimpleScene(oneMeshScene()))
}

func TestIsSimpleSceneRejectsMultipleMeshes(t *testing.T) {
	s := oneMeshScene()
	s.Meshes = append(s.Meshes, &scene.Mesh{Name: "Other"})
	require.False(t, isSimpleScene(s))
}

func TestIsSimpleSceneRejectsWhenLightsPresent(t *testing.T) {
	s := oneMeshScene()
	s.Lights = []*scene.Light{{Name: "Sun"}}
	require.False(t, isSimpleScene(s))
}

func TestIsSimpleSceneRejectsDeepNodeGraph(t *testing.T) {
	s := oneMeshScene()
	s.Root.Children[0].Children = []*scene.Node{{Name: "Extra"}}
	require.False(t, isSimpleScene(s))
}

func TestCountNodesCountsWholeSubtree(t *testing.T) {
	root := &scene.Node{Children: []*scene.Node{{}, {Children: []*scene.Node{{}}}}}
	require.Equal(t, 4, countNodes(root))
}

func TestQueueFinishWritesMetadataAndInvokesCallback(t *testing.T) {
	sched := jobs.NewScheduler(1)
	dep := &jobs.Job{ID: "dep", Run: func() (jobs.Status, error) { return jobs.StatusComplete, nil }}
	require.NoError(t, sched.AddJob(dep))

	dir := t.TempDir()
	child := &hierarchy.Entry{
		InstanceGUID: guid.New(),
		Name:         "part0",
		Kind:         hierarchy.ComponentStaticMesh,
		StaticMesh:   &hierarchy.StaticMesh{MeshGUID: guid.New()},
	}

	var result Result
	var gotCallback bool
	_, err := queueFinish(sched, guid.New(), "thing", filepath.Join(dir, "thing.meta"), []*hierarchy.Entry{child}, []*jobs.Job{dep}, func(r Result) {
		gotCallback = true
		result = r
	})
	require.NoError(t, err)

	require.NoError(t, sched.Run())
	require.True(t, gotCallback)
	require.True(t, result.Compiled)

	data, err := os.ReadFile(filepath.Join(dir, "thing.meta"))
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
