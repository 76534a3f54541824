// Package skelbuild implements the Skeleton, MeshSkin, and Animation
// Builders (SPEC_FULL.md §4.8): DFS joint indexing with coordinate and
// root-rotation correction, bone-to-joint resolution for mesh skinning,
// and the generic (non-FBX) animation track copy with its exact
// key-boundary guarantees.
//
// Grounded on math/coordinate.go's CorrectTransform/CorrectRootRotation
// (the teacher's axis-correction idiom, generalized from mesh vertices to
// joint hierarchies) and codec/scene.go's Skin/Animation shapes.
package skelbuild

import (
	"fmt"
	"sort"

	"github.com/forgelabs/assetforge/codec/scene"
	"github.com/forgelabs/assetforge/guid"
	emath "github.com/forgelabs/assetforge/math"
)

// soaGroupSize is the SIMD-friendly lane width bind-pose and animation
// tracks are padded to (SPEC_FULL.md §4.8 "pad ... to the next multiple
// of 4").
const soaGroupSize = 4

var identityQuat = emath.Quaternion{X: 0, Y: 0, Z: 0, W: 1}
var identityScale = emath.Vec3{X: 1, Y: 1, Z: 1}

// Joint is one DFS-indexed skeleton joint.
type Joint struct {
	Name           string
	InstanceGUID   guid.GUID
	ParentIndex    int // -1 for the root
	LocalBindPose  emath.Transform
}

// Skeleton is the Skeleton Builder's output (SPEC_FULL.md §4.8 "Skeleton").
type Skeleton struct {
	Joints        []Joint
	JointIndexMap map[string]int // name -> index, carried forward for re-runs
}

// Build traverses root (the skeleton's armature node) in DFS pre-order,
// assigning index i++ to each joint and recording jointParent[] in the
// same order (-1 for root). existingGUIDs seeds instance GUIDs for
// joints the metadata already knows about; new joints get fresh GUIDs.
// existingJointMap is not read: indices always come from this traversal.
func Build(root *scene.Node, existingJointMap map[string]int, existingGUIDs map[string]guid.GUID) *Skeleton {
	skel := &Skeleton{JointIndexMap: make(map[string]int)}

	var walk func(node *scene.Node, parentIndex int)
	walk = func(node *scene.Node, parentIndex int) {
		index := len(skel.Joints)
		isRoot := parentIndex == -1

		rotation := emath.CorrectTransform(emath.Transform{Rotation: node.Rotation}).Rotation
		if isRoot {
			rotation = emath.CorrectRootRotation(node.Rotation)
		}

		jointGUID, ok := existingGUIDs[node.Name]
		if !ok {
			jointGUID = guid.New()
		}

		skel.Joints = append(skel.Joints, Joint{
			Name:         node.Name,
			InstanceGUID: jointGUID,
			ParentIndex:  parentIndex,
			LocalBindPose: emath.Transform{
				Position: emath.CorrectTransform(emath.Transform{Position: node.Translation}).Position,
				Rotation: rotation,
				Scale:    emath.CorrectTransform(emath.Transform{Scale: node.Scale}).Scale,
			},
		})
		skel.JointIndexMap[node.Name] = index

		for _, child := range node.Children {
			walk(child, index)
		}
	}
	walk(root, -1)

	return skel
}

// PaddedJointCount rounds jointCount up to the next multiple of
// soaGroupSize.
func PaddedJointCount(jointCount int) int {
	if jointCount%soaGroupSize == 0 {
		return jointCount
	}
	return (jointCount/soaGroupSize + 1) * soaGroupSize
}

// SoAFloat4Track is a structure-of-arrays float4 track: every value's X
// components stored contiguously, then every Y, Z, W (SPEC_FULL.md §4.8
// "Pack bind poses into SoA float4 tracks").
type SoAFloat4Track struct {
	X, Y, Z, W []float32
}

// PackVec3SoA packs values (padded with pad) into an SoA track of length
// PaddedJointCount(len(values)).
func PackVec3SoA(values []emath.Vec3, pad emath.Vec3) SoAFloat4Track {
	n := PaddedJointCount(len(values))
	track := SoAFloat4Track{X: make([]float32, n), Y: make([]float32, n), Z: make([]float32, n), W: make([]float32, n)}
	for i := 0; i < n; i++ {
		v := pad
		if i < len(values) {
			v = values[i]
		}
		track.X[i], track.Y[i], track.Z[i] = v.X, v.Y, v.Z
	}
	return track
}

// PackQuatSoA packs rotations (padded with identity) into an SoA track.
func PackQuatSoA(values []emath.Quaternion) SoAFloat4Track {
	n := PaddedJointCount(len(values))
	track := SoAFloat4Track{X: make([]float32, n), Y: make([]float32, n), Z: make([]float32, n), W: make([]float32, n)}
	for i := 0; i < n; i++ {
		q := identityQuat
		if i < len(values) {
			q = values[i]
		}
		track.X[i], track.Y[i], track.Z[i], track.W[i] = q.X, q.Y, q.Z, q.W
	}
	return track
}

// BindPoseTracks is the full SoA-packed bind pose the skeleton binary
// carries (SPEC_FULL.md §4.8 "translation.x4, rotation.x4, scale.x4").
type BindPoseTracks struct {
	Translation SoAFloat4Track
	Rotation    SoAFloat4Track
	Scale       SoAFloat4Track
}

// PackBindPose builds the padded SoA tracks for skel's joints.
func PackBindPose(skel *Skeleton) BindPoseTracks {
	translations := make([]emath.Vec3, len(skel.Joints))
	rotations := make([]emath.Quaternion, len(skel.Joints))
	scales := make([]emath.Vec3, len(skel.Joints))
	for i, j := range skel.Joints {
		translations[i] = j.LocalBindPose.Position
		rotations[i] = j.LocalBindPose.Rotation
		scales[i] = j.LocalBindPose.Scale
	}
	return BindPoseTracks{
		Translation: PackVec3SoA(translations, emath.Vec3{}),
		Rotation:    PackQuatSoA(rotations),
		Scale:       PackVec3SoA(scales, identityScale),
	}
}

// BoneInfluence is one sorted-and-padded joint influence on a vertex.
type BoneInfluence struct {
	JointIndex int
	Weight     float32
}

// MeshSkin is the MeshSkin Builder's output (SPEC_FULL.md §4.8
// "MeshSkin").
type MeshSkin struct {
	InstanceGUID        guid.GUID
	DenseJointRemap      []int // dense index -> original skeleton joint index
	InverseBindPoses     []emath.Mat4
	VertexInfluences     [][]BoneInfluence // one slice per vertex, padded to maxInfluence, last weight dropped
}

// BuildMeshSkin resolves each bone's skeleton joint index via
// jointIndexMap, places its corrected offset matrix into the joint's
// inverse-bind-pose slot, sorts+pads per-vertex influences, and remaps to
// a dense joint space (SPEC_FULL.md §4.8 "MeshSkin").
func BuildMeshSkin(skin *scene.Skin, nodes []*scene.Node, jointIndexMap map[string]int, jointIndices [][4]uint16, jointWeights [][4]float32, maxInfluence int) (*MeshSkin, error) {
	boneJointIndex := make([]int, len(skin.JointNodeIndices))
	offsetByJoint := make(map[int]emath.Mat4, len(skin.JointNodeIndices))
	for i, nodeIdx := range skin.JointNodeIndices {
		if nodeIdx < 0 || nodeIdx >= len(nodes) {
			return nil, fmt.Errorf("skelbuild: joint node index %d out of range", nodeIdx)
		}
		name := nodes[nodeIdx].Name
		jointIdx, ok := jointIndexMap[name]
		if !ok {
			return nil, fmt.Errorf("skelbuild: bone %q has no matching skeleton joint", name)
		}
		boneJointIndex[i] = jointIdx
		if i < len(skin.InverseBindMatrices) {
			offsetByJoint[jointIdx] = correctMat4Basis(skin.InverseBindMatrices[i])
		}
	}

	usedJoints := make(map[int]struct{})
	perVertex := make([][]BoneInfluence, len(jointIndices))
	for v := range jointIndices {
		var influences []BoneInfluence
		for lane := 0; lane < 4; lane++ {
			weight := jointWeights[v][lane]
			if weight <= 0 {
				continue
			}
			boneIdx := int(jointIndices[v][lane])
			if boneIdx >= len(boneJointIndex) {
				continue
			}
			jointIdx := boneJointIndex[boneIdx]
			usedJoints[jointIdx] = struct{}{}
			influences = append(influences, BoneInfluence{JointIndex: jointIdx, Weight: weight})
		}
		sort.Slice(influences, func(i, j int) bool { return influences[i].Weight > influences[j].Weight })
		if len(influences) > maxInfluence {
			influences = influences[:maxInfluence]
		}
		for len(influences) < maxInfluence {
			influences = append(influences, BoneInfluence{})
		}
		perVertex[v] = influences
	}

	denseRemap := make([]int, 0, len(usedJoints))
	for j := range usedJoints {
		denseRemap = append(denseRemap, j)
	}
	sort.Ints(denseRemap)
	denseIndexOf := make(map[int]int, len(denseRemap))
	for dense, original := range denseRemap {
		denseIndexOf[original] = dense
	}

	inverseBindPoses := make([]emath.Mat4, len(denseRemap))
	for dense, original := range denseRemap {
		inverseBindPoses[dense] = offsetByJoint[original]
	}

	for v := range perVertex {
		for lane := range perVertex[v] {
			if dense, ok := denseIndexOf[perVertex[v][lane].JointIndex]; ok {
				perVertex[v][lane].JointIndex = dense
			}
		}
		// Drop the last weight; runtime reconstructs it as 1 - sum(rest)
		// (SPEC_FULL.md §4.8 "Drop the last weight").
		if maxInfluence > 0 {
			perVertex[v] = perVertex[v][:len(perVertex[v])-1]
		}
	}

	return &MeshSkin{
		InstanceGUID:     guid.New(),
		DenseJointRemap:  denseRemap,
		InverseBindPoses: inverseBindPoses,
		VertexInfluences: perVertex,
	}, nil
}

// correctMat4Basis reorders the translation column of an inverse-bind
// matrix into the engine's {Right, -Up, Forward} basis, consistent with
// math.CorrectTransform's vector permutation (SPEC_FULL.md §4.8
// "corrected to engine basis").
func correctMat4Basis(m emath.Mat4) emath.Mat4 {
	corrected := m
	// Column-major 4x4: translation occupies elements 12,13,14.
	x, y, z := m.Data[12], m.Data[13], m.Data[14]
	corrected.Data[12], corrected.Data[13], corrected.Data[14] = x, -z, y
	return corrected
}

// Keyframe3/KeyframeQuat re-export the codec/scene key types so callers
// don't need to import both packages for animation plumbing.
type Keyframe3 = scene.Keyframe3
type KeyframeQuat = scene.KeyframeQuat

// JointAnimationTrack is one joint's copied translation/rotation/scale
// keys after CopyRaw's boundary-guarantee padding (SPEC_FULL.md §4.8
// "Animation").
type JointAnimationTrack struct {
	JointIndex   int
	Translations []Keyframe3
	Rotations    []KeyframeQuat
	Scales       []Keyframe3
}

// BuildAnimation implements the generic (non-FBX) animation fallback:
// for each skeleton joint, locate a matching channel by name equality and
// copy its keys via CopyRaw*, padding missing joints to identity at t=0
// and t=1 (SPEC_FULL.md §4.8 "Fallback generic path").
//
// There is no FBX SDK binding anywhere in the example corpus (FBX's C++
// SDK has no maintained pure-Go or cgo wrapper among the examples), so
// the FBX-preferred backend SPEC_FULL.md §4.8 describes is out of scope;
// this generic path is the only backend implemented, matching what every
// source (gltf-based) animation in this module actually needs.
func BuildAnimation(skel *Skeleton, anim *scene.Animation) []JointAnimationTrack {
	channelByName := make(map[string]*scene.AnimationChannel, len(anim.Channels))
	for i := range anim.Channels {
		channelByName[anim.Channels[i].TargetName] = &anim.Channels[i]
	}

	tracks := make([]JointAnimationTrack, PaddedJointCount(len(skel.Joints)))
	for i := range tracks {
		tracks[i].JointIndex = i
		if i >= len(skel.Joints) {
			tracks[i].Translations = identityTranslationKeys()
			tracks[i].Rotations = identityRotationKeys()
			tracks[i].Scales = identityScaleKeys()
			continue
		}
		channel, ok := channelByName[skel.Joints[i].Name]
		if !ok {
			tracks[i].Translations = identityTranslationKeys()
			tracks[i].Rotations = identityRotationKeys()
			tracks[i].Scales = identityScaleKeys()
			continue
		}
		tracks[i].Translations = CopyRawVec3(channel.Translations, emath.Vec3{})
		tracks[i].Rotations = CopyRawQuat(channel.Rotations)
		tracks[i].Scales = CopyRawVec3(channel.Scales, identityScale)
	}
	return tracks
}

func identityTranslationKeys() []Keyframe3 {
	return []Keyframe3{{Time: 0, Value: emath.Vec3{}}, {Time: 1, Value: emath.Vec3{}}}
}

func identityScaleKeys() []Keyframe3 {
	return []Keyframe3{{Time: 0, Value: identityScale}, {Time: 1, Value: identityScale}}
}

func identityRotationKeys() []KeyframeQuat {
	return []KeyframeQuat{{Time: 0, Value: identityQuat}, {Time: 1, Value: identityQuat}}
}

// CopyRawVec3 implements CopyRaw's exact key-boundary guarantees
// (SPEC_FULL.md §4.8) for a translation/scale channel.
func CopyRawVec3(keys []Keyframe3, identity emath.Vec3) []Keyframe3 {
	switch len(keys) {
	case 0:
		return []Keyframe3{{Time: 0, Value: identity}, {Time: 1, Value: identity}}
	case 1:
		return []Keyframe3{{Time: 0, Value: keys[0].Value}, {Time: 1, Value: keys[0].Value}}
	default:
		out := make([]Keyframe3, 0, len(keys)+2)
		if keys[0].Time != 0 {
			out = append(out, Keyframe3{Time: 0, Value: identity})
		}
		out = append(out, keys...)
		if keys[len(keys)-1].Time != 1 {
			out = append(out, Keyframe3{Time: 1, Value: identity})
		}
		return out
	}
}

// CopyRawQuat is CopyRawVec3's rotation-channel counterpart.
func CopyRawQuat(keys []KeyframeQuat) []KeyframeQuat {
	switch len(keys) {
	case 0:
		return []KeyframeQuat{{Time: 0, Value: identityQuat}, {Time: 1, Value: identityQuat}}
	case 1:
		return []KeyframeQuat{{Time: 0, Value: keys[0].Value}, {Time: 1, Value: keys[0].Value}}
	default:
		out := make([]KeyframeQuat, 0, len(keys)+2)
		if keys[0].Time != 0 {
			out = append(out, KeyframeQuat{Time: 0, Value: identityQuat})
		}
		out = append(out, keys...)
		if keys[len(keys)-1].Time != 1 {
			out = append(out, KeyframeQuat{Time: 1, Value: identityQuat})
		}
		return out
	}
}

// sortKey is one flattened (time, track) pair used by SortKeys.
type sortKey struct {
	previousTime float32
	trackIndex   int
	keyIndex     int
}

// SortKeys implements the final ordering guarantee (SPEC_FULL.md §4.8):
// "sort keys primarily by previous-key-time, secondarily by track index".
// It returns the (trackIndex, keyIndex) pairs for tracks' translation
// keys in final emission order; Rotations/Scales are sorted the same way
// by calling SortKeys again against their own key slices.
func SortKeys(tracks []JointAnimationTrack) []struct{ TrackIndex, KeyIndex int } {
	var entries []sortKey
	for trackIdx, t := range tracks {
		for keyIdx := range t.Translations {
			previous := float32(0)
			if keyIdx > 0 {
				previous = t.Translations[keyIdx-1].Time
			}
			entries = append(entries, sortKey{previousTime: previous, trackIndex: trackIdx, keyIndex: keyIdx})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].previousTime != entries[j].previousTime {
			return entries[i].previousTime < entries[j].previousTime
		}
		return entries[i].trackIndex < entries[j].trackIndex
	})
	out := make([]struct{ TrackIndex, KeyIndex int }, len(entries))
	for i, e := range entries {
		out[i] = struct{ TrackIndex, KeyIndex int }{TrackIndex: e.trackIndex, KeyIndex: e.keyIndex}
	}
	return out
}
