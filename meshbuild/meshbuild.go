// Package meshbuild implements the Mesh Builder (SPEC_FULL.md §4.7):
// turning one foreign mesh primitive into a compact StaticObject binary
// plus the metadata mutation that wires a collider and static-mesh
// component onto its owning hierarchy entry.
//
// Grounded on engine/systems/texture.go's job-wrapped-compile shape (also
// the model for the texture package) and engine/resources/mesh.go's
// vertex/StaticObject naming.
package meshbuild

import (
	"encoding/binary"
	"fmt"
	stdmath "math"
	"os"
	"sort"

	"github.com/forgelabs/assetforge/codec/scene"
	"github.com/forgelabs/assetforge/core"
	"github.com/forgelabs/assetforge/guid"
	"github.com/forgelabs/assetforge/hierarchy"
	"github.com/forgelabs/assetforge/jobs"
	emath "github.com/forgelabs/assetforge/math"
)

// StaticMeshBinaryExtension is appended to the shared asset path to
// produce the binary mesh's on-disk name (SPEC_FULL.md §4.7 step 6).
const StaticMeshBinaryExtension = ".stmesh"

// StaticVertex is one post-build vertex: position already coordinate
// corrected, normal and tangent stored as full float vectors with the
// same correction (tangent.W carries handedness sign), UV flipped to
// (u, 1-v).
type StaticVertex struct {
	Position emath.Vec3
	Normal   emath.Vec3
	Tangent  emath.Vec4
	Texcoord emath.Vec2
}

// VertexColorDetection records whether a detected vertex-color slot is
// used at all and whether any of its entries carry alpha < 1
// (SPEC_FULL.md §4.7 step 2).
type VertexColorDetection struct {
	Used     bool
	HasAlpha bool
}

// StaticObject is the engine-neutral mesh the binary writer serializes
// (SPEC_FULL.md §3 "StaticObject").
type StaticObject struct {
	Vertices    []StaticVertex
	Indices     []uint32
	Bounds      emath.Extents3D
	ColorSlots  []VertexColorDetection
	TriangleIndexCount int
	VertexCount        int
}

// Build runs steps 1-5 of the Mesh Builder over one foreign primitive,
// applying coordinate correction to positions and normals.
func Build(prim scene.MeshPrimitive) *StaticObject {
	obj := &StaticObject{VertexCount: len(prim.Positions)}

	for slot, vc := range prim.VertexColors {
		_ = slot
		det := VertexColorDetection{Used: len(vc.Colors) > 0}
		for _, c := range vc.Colors {
			if c.W < 1 {
				det.HasAlpha = true
				break
			}
		}
		obj.ColorSlots = append(obj.ColorSlots, det)
	}

	hasTangents := len(prim.Tangents) == len(prim.Positions) && len(prim.Positions) > 0
	hasNormals := len(prim.Normals) == len(prim.Positions) && len(prim.Positions) > 0
	hasUVs := len(prim.Texcoords) == len(prim.Positions) && len(prim.Positions) > 0

	obj.Vertices = make([]StaticVertex, len(prim.Positions))
	for i, p := range prim.Positions {
		v := StaticVertex{Position: correctPosition(p)}

		var normal emath.Vec3
		if hasNormals {
			normal = correctDirection(prim.Normals[i])
		}
		v.Normal = normal

		if hasTangents {
			t := prim.Tangents[i]
			corrected := correctDirection(emath.Vec3{X: t.X, Y: t.Y, Z: t.Z})
			v.Tangent = emath.Vec4{X: corrected.X, Y: corrected.Y, Z: corrected.Z, W: t.W}
		} else {
			v.Tangent = fallbackTangent(normal)
		}

		if hasUVs {
			uv := prim.Texcoords[i]
			v.Texcoord = emath.Vec2{X: uv.X, Y: 1 - uv.Y}
		}

		obj.Vertices[i] = v
	}

	obj.Indices = append(obj.Indices, prim.Indices...)
	obj.TriangleIndexCount = 3 * (len(obj.Indices) / 3)

	sortTrianglesByIndexSum(obj.Indices)
	obj.Bounds = computeBounds(obj.Vertices)

	return obj
}

// fallbackTangent implements SPEC_FULL.md §4.7 step 3's "if bitangents
// are missing, default to (0,0,1)": with no source tangent data at all,
// derive an arbitrary tangent orthogonal to normal and sign it against
// the default bitangent (0,0,1).
func fallbackTangent(normal emath.Vec3) emath.Vec4 {
	reference := emath.Vec3{X: 1, Y: 0, Z: 0}
	if absf(normal.X) > 0.9 {
		reference = emath.Vec3{X: 0, Y: 1, Z: 0}
	}
	tangent := normalize3(cross3(normal, reference))
	defaultBitangent := emath.Vec3{X: 0, Y: 0, Z: 1}
	sign := float32(1)
	if dot3(cross3(normal, tangent), defaultBitangent) < 0 {
		sign = -1
	}
	return emath.Vec4{X: tangent.X, Y: tangent.Y, Z: tangent.Z, W: sign}
}

// correctDirection applies the same {Right, -Up, Forward} axis swap
// math.CorrectTransform uses for positions (SPEC_FULL.md §4.6), for the
// per-vertex normals and tangents Build handles directly rather than
// through a full Transform.
func correctDirection(v emath.Vec3) emath.Vec3 {
	return emath.Vec3{X: v.X, Y: -v.Z, Z: v.Y}
}

func correctPosition(v emath.Vec3) emath.Vec3 {
	return correctDirection(v)
}

func sortTrianglesByIndexSum(indices []uint32) {
	triCount := len(indices) / 3
	type tri struct {
		sum uint64
		a, b, c uint32
	}
	tris := make([]tri, triCount)
	for i := 0; i < triCount; i++ {
		a, b, c := indices[i*3], indices[i*3+1], indices[i*3+2]
		tris[i] = tri{sum: uint64(a) + uint64(b) + uint64(c), a: a, b: b, c: c}
	}
	sort.Slice(tris, func(i, j int) bool { return tris[i].sum < tris[j].sum })
	for i, t := range tris {
		indices[i*3], indices[i*3+1], indices[i*3+2] = t.a, t.b, t.c
	}
}

func computeBounds(vertices []StaticVertex) emath.Extents3D {
	if len(vertices) == 0 {
		return emath.Extents3D{}
	}
	min := vertices[0].Position
	max := vertices[0].Position
	for _, v := range vertices[1:] {
		min = minVec3(min, v.Position)
		max = maxVec3(max, v.Position)
	}
	return emath.Extents3D{Min: min, Max: max}
}

func minVec3(a, b emath.Vec3) emath.Vec3 {
	return emath.Vec3{X: minf(a.X, b.X), Y: minf(a.Y, b.Y), Z: minf(a.Z, b.Z)}
}

func maxVec3(a, b emath.Vec3) emath.Vec3 {
	return emath.Vec3{X: maxf(a.X, b.X), Y: maxf(a.Y, b.Y), Z: maxf(a.Z, b.Z)}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func absf(a float32) float32 {
	if a < 0 {
		return -a
	}
	return a
}

func cross3(a, b emath.Vec3) emath.Vec3 {
	return emath.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func dot3(a, b emath.Vec3) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func normalize3(v emath.Vec3) emath.Vec3 {
	length := float32(stdmath.Sqrt(float64(dot3(v, v))))
	if length == 0 {
		return v
	}
	return emath.Vec3{X: v.X / length, Y: v.Y / length, Z: v.Z / length}
}

// WriteBinary serializes obj to path in a flat little-endian layout:
// vertex count, vertices, index count, indices (SPEC_FULL.md §4.7 step 6,
// "write the binary mesh ... on failure, report but continue").
func WriteBinary(path string, obj *StaticObject) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(len(obj.Vertices))); err != nil {
		return err
	}
	for _, v := range obj.Vertices {
		fields := []float32{
			v.Position.X, v.Position.Y, v.Position.Z,
			v.Normal.X, v.Normal.Y, v.Normal.Z,
			v.Tangent.X, v.Tangent.Y, v.Tangent.Z, v.Tangent.W,
			v.Texcoord.X, v.Texcoord.Y,
		}
		if err := binary.Write(f, binary.LittleEndian, fields); err != nil {
			return err
		}
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(obj.Indices))); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, obj.Indices); err != nil {
		return err
	}
	return f.Sync()
}

// ReadBinary parses the flat layout WriteBinary produces, the counterpart
// the Scene Exporter's mesh-binary load uses on the export path
// (SPEC_FULL.md §4.10 "issues mesh-binary loads").
func ReadBinary(path string) (*StaticObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vertexCount uint32
	if err := binary.Read(f, binary.LittleEndian, &vertexCount); err != nil {
		return nil, err
	}
	vertices := make([]StaticVertex, vertexCount)
	for i := range vertices {
		var fields [12]float32
		if err := binary.Read(f, binary.LittleEndian, &fields); err != nil {
			return nil, err
		}
		vertices[i] = StaticVertex{
			Position: emath.Vec3{X: fields[0], Y: fields[1], Z: fields[2]},
			Normal:   emath.Vec3{X: fields[3], Y: fields[4], Z: fields[5]},
			Tangent:  emath.Vec4{X: fields[6], Y: fields[7], Z: fields[8], W: fields[9]},
			Texcoord: emath.Vec2{X: fields[10], Y: fields[11]},
		}
	}

	var indexCount uint32
	if err := binary.Read(f, binary.LittleEndian, &indexCount); err != nil {
		return nil, err
	}
	indices := make([]uint32, indexCount)
	if err := binary.Read(f, binary.LittleEndian, &indices); err != nil {
		return nil, err
	}

	return &StaticObject{Vertices: vertices, Indices: indices, Bounds: computeBounds(vertices)}, nil
}

// EnsureColliderHierarchy idempotently attaches the "Mesh Collider" child
// and its "Mesh" grandchild onto parent, per SPEC_FULL.md §4.7 step 7.
// Existing entries with the same Name are left untouched.
func EnsureColliderHierarchy(parent *hierarchy.Entry, meshGUID, materialGUID guid.GUID) {
	if parent.PhysicsType == hierarchy.PhysicsNone {
		parent.PhysicsType = hierarchy.PhysicsStatic
	}

	var colliderEntry *hierarchy.Entry
	for _, c := range parent.Children {
		if c.Name == "Mesh Collider" {
			colliderEntry = c
			break
		}
	}
	if colliderEntry == nil {
		colliderEntry = &hierarchy.Entry{
			InstanceGUID: guid.New(),
			Name:         "Mesh Collider",
			Kind:         hierarchy.ComponentColliderMesh,
			Collider:     &hierarchy.Collider{Kind: hierarchy.ComponentColliderMesh, MeshGUID: meshGUID},
		}
		parent.Children = append(parent.Children, colliderEntry)
	}

	for _, g := range colliderEntry.Children {
		if g.Name == "Mesh" {
			return
		}
	}
	colliderEntry.Children = append(colliderEntry.Children, &hierarchy.Entry{
		InstanceGUID: guid.New(),
		Name:         "Mesh",
		Kind:         hierarchy.ComponentStaticMesh,
		StaticMesh:   &hierarchy.StaticMesh{MeshGUID: meshGUID, MaterialInstanceGUID: materialGUID},
	})
}

// CompileOptions carries the destination path and identity the Compile
// job needs beyond the primitive itself.
type CompileOptions struct {
	OutputDir  string
	SharedName string // file stem shared by metadata and binary
	MeshGUID   guid.GUID
}

// CompileResult is delivered via the completion callback (SPEC_FULL.md
// §4.7 step 8).
type CompileResult struct {
	Object     *StaticObject
	BinaryPath string
	Compiled   bool
	Tag        string // "MeshPart" when emitted as part of a combined mesh scene
}

// Compile schedules the Mesh Builder's build-and-write as one job on
// sched, invoking callback once it finishes.
func Compile(sched *jobs.Scheduler, prim scene.MeshPrimitive, opts CompileOptions, callback func(CompileResult)) (*jobs.Job, error) {
	binaryPath := fmt.Sprintf("%s/%s%s", opts.OutputDir, opts.SharedName, StaticMeshBinaryExtension)
	jobID := fmt.Sprintf("meshbuild-%s", opts.MeshGUID)

	job := &jobs.Job{
		ID:       jobID,
		Priority: jobs.PriorityAssetCompilation,
		Run: func() (jobs.Status, error) {
			obj := Build(prim)
			if err := WriteBinary(binaryPath, obj); err != nil {
				core.LogError("meshbuild: write %s failed: %v", binaryPath, err)
				callback(CompileResult{Object: obj, Compiled: false})
				return jobs.StatusFailed, err
			}
			callback(CompileResult{Object: obj, BinaryPath: binaryPath, Compiled: true})
			return jobs.StatusComplete, nil
		},
	}
	if err := sched.AddJob(job); err != nil {
		return nil, err
	}
	return job, nil
}
