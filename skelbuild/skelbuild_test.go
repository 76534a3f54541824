package skelbuild

import (
	"testing"

	"github.com/forgelabs/assetforge/codec/scene"
	emath "github.com/forgelabs/assetforge/math"
	"github.com/stretchr/testify/require"
)

func twoJointSkeleton() *scene.Node {
	return &scene.Node{
		Name:     "Root",
		Rotation: emath.Quaternion{W: 1},
		Scale:    emath.Vec3{X: 1, Y: 1, Z: 1},
		Children: []*scene.Node{
			{Name: "Child", Rotation: emath.Quaternion{W: 1}, Scale: emath.Vec3{X: 1, Y: 1, Z: 1}},
		},
	}
}

func TestBuildAssignsDFSPreOrderIndices(t *testing.T) {
	skel := Build(twoJointSkeleton(), nil, nil)
	require.Len(t, skel.Joints, 2)
	require.Equal(t, "Root", skel.Joints[0].Name)
	require.Equal(t, -1, skel.Joints[0].ParentIndex)
	require.Equal(t, "Child", skel.Joints[1].Name)
	require.Equal(t, 0, skel.Joints[1].ParentIndex)
}

func TestBuildAssignsDistinctGUIDsPerJoint(t *testing.T) {
	skel := Build(twoJointSkeleton(), nil, nil)
	require.NotEqual(t, skel.Joints[0].InstanceGUID, skel.Joints[1].InstanceGUID)
}

func TestPaddedJointCountRoundsUpToFour(t *testing.T) {
	require.Equal(t, 4, PaddedJointCount(1))
	require.Equal(t, 4, PaddedJointCount(4))
	require.Equal(t, 8, PaddedJointCount(5))
}

func TestPackBindPosePadsWithIdentity(t *testing.T) {
	skel := Build(twoJointSkeleton(), nil, nil)
	tracks := PackBindPose(skel)
	require.Len(t, tracks.Rotation.W, 4)
	require.Equal(t, float32(1), tracks.Rotation.W[2]) // padded identity quat.W
	require.Equal(t, float32(1), tracks.Scale.X[3])    // padded identity scale
}

func TestCopyRawVec3ZeroKeys(t *testing.T) {
	keys := CopyRawVec3(nil, emath.Vec3{X: 1})
	require.Equal(t, []Keyframe3{{Time: 0, Value: emath.Vec3{X: 1}}, {Time: 1, Value: emath.Vec3{X: 1}}}, keys)
}

func TestCopyRawVec3OneKey(t *testing.T) {
	keys := CopyRawVec3([]Keyframe3{{Time: 0.5, Value: emath.Vec3{X: 2}}}, emath.Vec3{})
	require.Len(t, keys, 2)
	require.Equal(t, float32(0), keys[0].Time)
	require.Equal(t, float32(1), keys[1].Time)
	require.Equal(t, emath.Vec3{X: 2}, keys[0].Value)
}

func TestCopyRawVec3PrependsAndAppendsBoundaryKeys(t *testing.T) {
	keys := CopyRawVec3([]Keyframe3{
		{Time: 0.25, Value: emath.Vec3{X: 1}},
		{Time: 0.75, Value: emath.Vec3{X: 2}},
	}, emath.Vec3{})
	require.Len(t, keys, 4)
	require.Equal(t, float32(0), keys[0].Time)
	require.Equal(t, float32(1), keys[3].Time)
}

func TestCopyRawVec3NoPaddingWhenBoundsAlreadyPresent(t *testing.T) {
	keys := CopyRawVec3([]Keyframe3{
		{Time: 0, Value: emath.Vec3{X: 1}},
		{Time: 1, Value: emath.Vec3{X: 2}},
	}, emath.Vec3{})
	require.Len(t, keys, 2)
}

func TestBuildAnimationFillsIdentityForUnmatchedJoints(t *testing.T) {
	skel := Build(twoJointSkeleton(), nil, nil)
	anim := &scene.Animation{Name: "Idle"}
	tracks := BuildAnimation(skel, anim)
	require.Len(t, tracks, 4) // padded to multiple of 4
	require.Len(t, tracks[0].Translations, 2)
	require.Equal(t, float32(0), tracks[0].Translations[0].Time)
}

func TestBuildAnimationMatchesChannelByName(t *testing.T) {
	skel := Build(twoJointSkeleton(), nil, nil)
	anim := &scene.Animation{
		Channels: []scene.AnimationChannel{{
			TargetName:   "Child",
			Translations: []scene.Keyframe3{{Time: 0.5, Value: emath.Vec3{X: 3}}},
		}},
	}
	tracks := BuildAnimation(skel, anim)
	require.Equal(t, emath.Vec3{X: 3}, tracks[1].Translations[0].Value)
}

func TestSortKeysOrdersByPreviousTimeThenTrack(t *testing.T) {
	tracks := []JointAnimationTrack{
		{Translations: []Keyframe3{{Time: 0}, {Time: 1}}},
		{Translations: []Keyframe3{{Time: 0}, {Time: 1}}},
	}
	order := SortKeys(tracks)
	require.Equal(t, 0, order[0].TrackIndex)
	require.Equal(t, 0, order[1].TrackIndex)
	require.Equal(t, 1, order[2].TrackIndex)
}

func TestBuildMeshSkinDropsLastWeightAndRemapsDense(t *testing.T) {
	root := twoJointSkeleton()
	skel := Build(root, nil, nil)
	nodes := []*scene.Node{root, root.Children[0]}
	skin := &scene.Skin{
		JointNodeIndices:    []int{1}, // only "Child" is used as a bone
		InverseBindMatrices: []emath.Mat4{{}},
	}
	jointIndices := [][4]uint16{{0, 0, 0, 0}}
	jointWeights := [][4]float32{{0.6, 0.4, 0, 0}}

	ms, err := BuildMeshSkin(skin, nodes, skel.JointIndexMap, jointIndices, jointWeights, 2)
	require.NoError(t, err)
	require.Len(t, ms.DenseJointRemap, 1)
	require.Equal(t, 1, ms.DenseJointRemap[0]) // "Child" is skeleton joint index 1
	require.Len(t, ms.VertexInfluences[0], 1)  // maxInfluence=2, last weight dropped
	require.Equal(t, 0, ms.VertexInfluences[0][0].JointIndex) // remapped to dense index 0
}
