// Package scene is the Scene Codec Adapter (SPEC_FULL.md §9 "opaque
// adapters"): it decodes a foreign scene container into the engine-neutral
// Scene graph the Scene Walker (scenewalk), Mesh Builder (meshbuild), and
// Skeleton/Skin/Animation Builders (skelbuild) operate over, and encodes
// the inverse direction for the Scene Exporter (sceneexport).
//
// Grounded on the qmuntal/gltf decode/encode shape used across the
// example corpus's glTF loaders (see e.g. the tetra3d and
// LanternGoExtract glTF adapters): gltf.NewDecoder/Decode to parse,
// gltf/modeler to pull flat accessor data out of mesh primitives, and
// gltf.NewEncoder/Encode to write a Document back out.
package scene

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/forgelabs/assetforge/core"
	"github.com/forgelabs/assetforge/math"
)

// LightKind discriminates the foreign light types this adapter recognises.
type LightKind int

const (
	LightPoint LightKind = iota
	LightDirectional
	LightSpot
)

// Light is a foreign scene light, prior to Scene Walker matching
// (SPEC_FULL.md §4.6).
type Light struct {
	Name      string
	Kind      LightKind
	Color     math.Vec3
	Intensity float32
	Range     float32
	SpotAngle float32
}

// Camera is a foreign scene camera.
type Camera struct {
	Name string
	FOV  float32
	Near float32
	Far  float32
}

// TextureRef points either to an external path or, for embedded textures
// (SPEC_FULL.md §6 "Embedded textures"), into Scene.EmbeddedTextures by
// index.
type TextureRef struct {
	Path          string
	EmbeddedIndex int // -1 if Path is an external file reference
}

// Material is a foreign material's texture slot bindings.
type Material struct {
	Name     string
	Textures map[string]TextureRef // slot name ("diffuse", "normal", ...) -> ref
}

// EmbeddedTexture is a texture payload carried inside the scene container
// itself rather than referenced by path.
type EmbeddedTexture struct {
	Filename   string
	FormatHint string
	Data       []byte
}

// VertexColorSlot is one detected vertex-color channel on a primitive
// (SPEC_FULL.md §4.7 step 2).
type VertexColorSlot struct {
	Colors []math.Vec4
}

// MeshPrimitive is one material-homogeneous triangle batch within a
// foreign mesh.
type MeshPrimitive struct {
	MaterialIndex *int
	Positions     []math.Vec3
	Normals       []math.Vec3
	Tangents      []math.Vec4 // w carries handedness sign
	Texcoords     []math.Vec2
	VertexColors  []VertexColorSlot
	Indices       []uint32
	JointIndices  [][4]uint16
	JointWeights  [][4]float32
}

// Mesh is a foreign mesh: one or more material-homogeneous primitives.
type Mesh struct {
	Name       string
	Primitives []MeshPrimitive
}

// Keyframe3 is one translation/scale animation key.
type Keyframe3 struct {
	Time  float32
	Value math.Vec3
}

// KeyframeQuat is one rotation animation key.
type KeyframeQuat struct {
	Time  float32
	Value math.Quaternion
}

// AnimationChannel carries the three independently-keyed TRS tracks for
// one named joint/node target (SPEC_FULL.md §4.8 "Animation").
type AnimationChannel struct {
	TargetName   string
	Translations []Keyframe3
	Rotations    []KeyframeQuat
	Scales       []Keyframe3
}

// Animation is a foreign animation clip.
type Animation struct {
	Name     string
	Channels []AnimationChannel
}

// Skin binds a foreign mesh to a joint hierarchy.
type Skin struct {
	Name                string
	JointNodeIndices     []int
	InverseBindMatrices  []math.Mat4
}

// Node is one foreign scene-graph node: a local transform plus an
// optional mesh/light/camera/skin attachment and ordered children.
type Node struct {
	Name        string
	Translation math.Vec3
	Rotation    math.Quaternion
	Scale       math.Vec3

	MeshIndex   *int
	SkinIndex   *int
	LightIndex  *int
	CameraIndex *int

	Children []*Node
}

// Scene is the engine-neutral parse of a foreign scene container.
type Scene struct {
	Root             *Node
	Meshes           []*Mesh
	Materials        []*Material
	Lights           []*Light
	Cameras          []*Camera
	Skins            []*Skin
	Animations       []*Animation
	EmbeddedTextures []EmbeddedTexture
	SourceDir        string

	// Nodes is the flat, document-order node list: Skin.JointNodeIndices
	// indexes into this slice, not into Root's tree (a skeleton's joints
	// are not necessarily a single contiguous subtree of the scene graph).
	// Used by skelbuild to resolve a skin's joints to their Node.
	Nodes []*Node
}

// DecodeOptions mirrors the scene-codec invocation options the Scene
// Compiler always sets (SPEC_FULL.md §4.9 step 1: "metric scale and
// disabling pivot preservation").
type DecodeOptions struct {
	MetricScale    bool
	PreservePivot  bool
}

// Decode parses gltf/glb bytes at sourcePath into a Scene.
func Decode(data []byte, sourcePath string, opts DecodeOptions) (*Scene, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		core.LogError("codec/scene: decode %s failed: %v", sourcePath, err)
		return nil, fmt.Errorf("codec/scene: decode: %w", err)
	}

	s := &Scene{SourceDir: filepath.Dir(sourcePath)}

	for _, img := range doc.Images {
		if img.BufferView != nil {
			payload, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
			if err != nil {
				return nil, fmt.Errorf("codec/scene: embedded image: %w", err)
			}
			s.EmbeddedTextures = append(s.EmbeddedTextures, EmbeddedTexture{
				Filename:   img.Name,
				FormatHint: mimeToExtension(img.MimeType),
				Data:       payload,
			})
		}
	}

	for _, mat := range doc.Materials {
		s.Materials = append(s.Materials, decodeMaterial(mat, doc))
	}

	for _, mesh := range doc.Meshes {
		m, err := decodeMesh(doc, mesh)
		if err != nil {
			return nil, err
		}
		s.Meshes = append(s.Meshes, m)
	}

	for _, skin := range doc.Skins {
		s.Skins = append(s.Skins, decodeSkin(doc, skin))
	}

	for _, anim := range doc.Animations {
		s.Animations = append(s.Animations, decodeAnimation(doc, anim))
	}

	nodes := make([]*Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		nodes[i] = decodeNode(n)
	}
	for i, n := range doc.Nodes {
		for _, childIdx := range n.Children {
			nodes[i].Children = append(nodes[i].Children, nodes[childIdx])
		}
	}
	s.Nodes = nodes

	root := &Node{Name: "Root"}
	if len(doc.Scenes) > 0 {
		sceneIdx := 0
		if doc.Scene != nil {
			sceneIdx = int(*doc.Scene)
		}
		for _, nodeIdx := range doc.Scenes[sceneIdx].Nodes {
			root.Children = append(root.Children, nodes[nodeIdx])
		}
	}
	s.Root = root

	return s, nil
}

func decodeNode(n *gltf.Node) *Node {
	node := &Node{
		Name:        n.Name,
		Translation: math.Vec3{X: n.Translation[0], Y: n.Translation[1], Z: n.Translation[2]},
		Rotation:    math.Quaternion{X: n.Rotation[0], Y: n.Rotation[1], Z: n.Rotation[2], W: n.Rotation[3]},
		Scale:       math.Vec3{X: n.Scale[0], Y: n.Scale[1], Z: n.Scale[2]},
	}
	if n.Mesh != nil {
		idx := int(*n.Mesh)
		node.MeshIndex = &idx
	}
	if n.Skin != nil {
		idx := int(*n.Skin)
		node.SkinIndex = &idx
	}
	return node
}

func decodeMaterial(mat *gltf.Material, doc *gltf.Document) *Material {
	m := &Material{Name: mat.Name, Textures: make(map[string]TextureRef)}
	if mat.PBRMetallicRoughness != nil {
		if tex := mat.PBRMetallicRoughness.BaseColorTexture; tex != nil {
			m.Textures["diffuse"] = resolveTextureRef(doc, int(tex.Index))
		}
		if tex := mat.PBRMetallicRoughness.MetallicRoughnessTexture; tex != nil {
			m.Textures["metalnessRoughness"] = resolveTextureRef(doc, int(tex.Index))
		}
	}
	if tex := mat.NormalTexture; tex != nil && tex.Index != nil {
		m.Textures["normal"] = resolveTextureRef(doc, int(*tex.Index))
	}
	if tex := mat.OcclusionTexture; tex != nil && tex.Index != nil {
		m.Textures["ambientOcclusion"] = resolveTextureRef(doc, int(*tex.Index))
	}
	if tex := mat.EmissiveTexture; tex != nil {
		m.Textures["emission"] = resolveTextureRef(doc, int(tex.Index))
	}
	return m
}

func resolveTextureRef(doc *gltf.Document, texIndex int) TextureRef {
	tex := doc.Textures[texIndex]
	if tex.Source == nil {
		return TextureRef{EmbeddedIndex: -1}
	}
	img := doc.Images[*tex.Source]
	if img.URI != "" {
		return TextureRef{Path: img.URI, EmbeddedIndex: -1}
	}
	if img.BufferView != nil {
		return TextureRef{EmbeddedIndex: int(*tex.Source)}
	}
	return TextureRef{EmbeddedIndex: -1}
}

func decodeMesh(doc *gltf.Document, mesh *gltf.Mesh) (*Mesh, error) {
	m := &Mesh{Name: mesh.Name}
	for _, prim := range mesh.Primitives {
		p, err := decodePrimitive(doc, prim)
		if err != nil {
			return nil, fmt.Errorf("codec/scene: mesh %q: %w", mesh.Name, err)
		}
		m.Primitives = append(m.Primitives, p)
	}
	return m, nil
}

func decodePrimitive(doc *gltf.Document, prim *gltf.Primitive) (MeshPrimitive, error) {
	var out MeshPrimitive

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return out, fmt.Errorf("primitive missing POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return out, err
	}
	for _, v := range positions {
		out.Positions = append(out.Positions, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return out, err
		}
		for _, v := range normals {
			out.Normals = append(out.Normals, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
		}
	}

	if idx, ok := prim.Attributes[gltf.TANGENT]; ok {
		tangents, err := modeler.ReadTangent(doc, doc.Accessors[idx], nil)
		if err != nil {
			return out, err
		}
		for _, v := range tangents {
			out.Tangents = append(out.Tangents, math.Vec4{X: v[0], Y: v[1], Z: v[2], W: v[3]})
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if err != nil {
			return out, err
		}
		for _, v := range uvs {
			out.Texcoords = append(out.Texcoords, math.Vec2{X: v[0], Y: v[1]})
		}
	}

	for slot := 0; ; slot++ {
		name := fmt.Sprintf("COLOR_%d", slot)
		idx, ok := prim.Attributes[name]
		if !ok {
			break
		}
		colors, err := modeler.ReadColor64(doc, doc.Accessors[idx], nil)
		if err != nil {
			return out, err
		}
		var vs VertexColorSlot
		for _, c := range colors {
			vs.Colors = append(vs.Colors, math.Vec4{
				X: float32(c[0]) / 65535, Y: float32(c[1]) / 65535,
				Z: float32(c[2]) / 65535, W: float32(c[3]) / 65535,
			})
		}
		out.VertexColors = append(out.VertexColors, vs)
	}

	if idx, ok := prim.Attributes[gltf.WEIGHTS_0]; ok {
		weights, err := modeler.ReadWeights(doc, doc.Accessors[idx], nil)
		if err != nil {
			return out, err
		}
		jointsIdx := prim.Attributes[gltf.JOINTS_0]
		joints, err := modeler.ReadJoints(doc, doc.Accessors[jointsIdx], nil)
		if err != nil {
			return out, err
		}
		out.JointWeights = append(out.JointWeights, weights...)
		out.JointIndices = append(out.JointIndices, joints...)
	}

	if prim.Indices != nil {
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return out, err
		}
		out.Indices = indices
	}

	if prim.Material != nil {
		idx := int(*prim.Material)
		out.MaterialIndex = &idx
	}

	return out, nil
}

func decodeSkin(doc *gltf.Document, skin *gltf.Skin) *Skin {
	s := &Skin{Name: skin.Name}
	for _, j := range skin.Joints {
		s.JointNodeIndices = append(s.JointNodeIndices, int(j))
	}
	if skin.InverseBindMatrices != nil {
		mats, err := modeler.ReadAccessor(doc, doc.Accessors[*skin.InverseBindMatrices], nil)
		if err == nil {
			if ms, ok := mats.([][4][4]float32); ok {
				for _, m := range ms {
					s.InverseBindMatrices = append(s.InverseBindMatrices, mat4From4x4(m))
				}
			}
		}
	}
	return s
}

func mat4From4x4(m [4][4]float32) math.Mat4 {
	var out math.Mat4
	i := 0
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			out.Data[i] = m[col][row]
			i++
		}
	}
	return out
}

func decodeAnimation(doc *gltf.Document, anim *gltf.Animation) *Animation {
	a := &Animation{Name: anim.Name}
	for _, ch := range anim.Channels {
		if ch.Target.Node == nil {
			continue
		}
		targetName := doc.Nodes[*ch.Target.Node].Name
		sampler := anim.Samplers[*ch.Sampler]

		times, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Input], nil)
		if err != nil {
			continue
		}
		timeValues, ok := times.([]float32)
		if !ok {
			continue
		}

		var channel *AnimationChannel
		for i := range a.Channels {
			if a.Channels[i].TargetName == targetName {
				channel = &a.Channels[i]
				break
			}
		}
		if channel == nil {
			a.Channels = append(a.Channels, AnimationChannel{TargetName: targetName})
			channel = &a.Channels[len(a.Channels)-1]
		}

		output, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Output], nil)
		if err != nil {
			continue
		}

		switch ch.Target.Path {
		case gltf.TRSTranslation:
			if vs, ok := output.([][3]float32); ok {
				for i, t := range timeValues {
					channel.Translations = append(channel.Translations, Keyframe3{Time: t, Value: math.Vec3{X: vs[i][0], Y: vs[i][1], Z: vs[i][2]}})
				}
			}
		case gltf.TRSRotation:
			if vs, ok := output.([][4]float32); ok {
				for i, t := range timeValues {
					channel.Rotations = append(channel.Rotations, KeyframeQuat{Time: t, Value: math.Quaternion{X: vs[i][0], Y: vs[i][1], Z: vs[i][2], W: vs[i][3]}})
				}
			}
		case gltf.TRSScale:
			if vs, ok := output.([][3]float32); ok {
				for i, t := range timeValues {
					channel.Scales = append(channel.Scales, Keyframe3{Time: t, Value: math.Vec3{X: vs[i][0], Y: vs[i][1], Z: vs[i][2]}})
				}
			}
		}
	}
	return a
}

func mimeToExtension(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	default:
		return strings.TrimPrefix(mime, "image/")
	}
}

// EncodeFlags mirrors the options the Scene Exporter passes back through
// this adapter on the inverse path (SPEC_FULL.md §4.10).
type EncodeFlags struct {
	MetricScale   bool
	PreservePivot bool
}

func vec3sToFloat3(vs []math.Vec3) [][3]float32 {
	out := make([][3]float32, len(vs))
	for i, v := range vs {
		out[i] = [3]float32{v.X, v.Y, v.Z}
	}
	return out
}

func vec4sToFloat4(vs []math.Vec4) [][4]float32 {
	out := make([][4]float32, len(vs))
	for i, v := range vs {
		out[i] = [4]float32{v.X, v.Y, v.Z, v.W}
	}
	return out
}

func vec2sToFloat2(vs []math.Vec2) [][2]float32 {
	out := make([][2]float32, len(vs))
	for i, v := range vs {
		out[i] = [2]float32{v.X, v.Y}
	}
	return out
}

// Encode converts a Scene into a container blob. formatID is the
// target-extension without leading dot, lowercased (SPEC_FULL.md §4.10),
// but it does not change the output: "glb", "gltf" and any other id all
// run the same gltf.NewEncoder(...).Encode call with the encoder's default
// settings, so the id does not choose between the JSON and the binary
// container. Meshes are embedded as accessor data,
// and textures as base64 data-URI images, so the returned blob is fully
// self-contained.
func Encode(s *Scene, formatID string, flags EncodeFlags) ([]byte, error) {
	doc := gltf.NewDocument()
	doc.Scenes = []*gltf.Scene{{}}
	defaultScene := uint32(0)
	doc.Scene = &defaultScene

	for _, tex := range s.EmbeddedTextures {
		imageIdx := uint32(len(doc.Images))
		doc.Images = append(doc.Images, &gltf.Image{
			Name: tex.Filename,
			URI:  "data:image/" + tex.FormatHint + ";base64," + base64.StdEncoding.EncodeToString(tex.Data),
		})
		doc.Textures = append(doc.Textures, &gltf.Texture{Name: tex.Filename, Source: gltf.Index(imageIdx)})
	}
	for _, mat := range s.Materials {
		gm := &gltf.Material{Name: mat.Name, PBRMetallicRoughness: &gltf.PBRMetallicRoughness{}}
		if ref, ok := mat.Textures["diffuse"]; ok && ref.EmbeddedIndex >= 0 {
			gm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: uint32(ref.EmbeddedIndex)}
		}
		doc.Materials = append(doc.Materials, gm)
	}
	for _, mesh := range s.Meshes {
		gmesh := &gltf.Mesh{Name: mesh.Name}
		for _, prim := range mesh.Primitives {
			attrs := map[string]uint32{}
			if len(prim.Positions) > 0 {
				attrs[gltf.POSITION] = modeler.WritePosition(doc, vec3sToFloat3(prim.Positions))
			}
			if len(prim.Normals) > 0 {
				attrs[gltf.NORMAL] = modeler.WriteNormal(doc, vec3sToFloat3(prim.Normals))
			}
			if len(prim.Tangents) > 0 {
				attrs[gltf.TANGENT] = modeler.WriteTangent(doc, vec4sToFloat4(prim.Tangents))
			}
			if len(prim.Texcoords) > 0 {
				attrs[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(doc, vec2sToFloat2(prim.Texcoords))
			}
			gprim := &gltf.Primitive{Attributes: attrs, Indices: gltf.Index(modeler.WriteIndices(doc, prim.Indices))}
			if prim.MaterialIndex != nil {
				gprim.Material = gltf.Index(uint32(*prim.MaterialIndex))
			}
			gmesh.Primitives = append(gmesh.Primitives, gprim)
		}
		doc.Meshes = append(doc.Meshes, gmesh)
	}

	nodeIndex := make(map[*Node]uint32)
	var flatten func(n *Node) uint32
	flatten = func(n *Node) uint32 {
		gn := &gltf.Node{
			Name:        n.Name,
			Translation: [3]float32{n.Translation.X, n.Translation.Y, n.Translation.Z},
			Rotation:    [4]float32{n.Rotation.X, n.Rotation.Y, n.Rotation.Z, n.Rotation.W},
			Scale:       [3]float32{n.Scale.X, n.Scale.Y, n.Scale.Z},
		}
		if n.MeshIndex != nil {
			meshIdx := uint32(*n.MeshIndex)
			gn.Mesh = &meshIdx
		}
		doc.Nodes = append(doc.Nodes, gn)
		idx := uint32(len(doc.Nodes) - 1)
		nodeIndex[n] = idx
		for _, c := range n.Children {
			childIdx := flatten(c)
			gn.Children = append(gn.Children, childIdx)
		}
		return idx
	}

	if s.Root != nil {
		for _, c := range s.Root.Children {
			idx := flatten(c)
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, idx)
		}
	}

	var buf bytes.Buffer
	var err error
	switch strings.ToLower(formatID) {
	case "glb":
		err = gltf.NewEncoder(&buf).Encode(doc)
	default:
		err = gltf.NewEncoder(&buf).Encode(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("codec/scene: encode: %w", err)
	}
	return buf.Bytes(), nil
}
