// Package hierarchy is the engine-neutral scene-serialization model
// (SPEC_FULL.md §3 "Hierarchy Entry"): a tagged-union tree of components,
// its JSON on-disk shape, and dependency-closure computation.
//
// Grounded on engine/renderer/metadata/resource.go's struct-plus-header
// JSON idiom and engine/resources/types.go's enum-plus-struct style.
package hierarchy

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/forgelabs/assetforge/guid"
	"github.com/forgelabs/assetforge/math"
)

// ComponentKind is the discriminant of the Hierarchy Entry's component
// tagged union (SPEC_FULL.md §3).
type ComponentKind int

const (
	ComponentSimple ComponentKind = iota
	ComponentPointLight
	ComponentDirectionalLight
	ComponentSpotLight
	ComponentCamera
	ComponentScene
	ComponentStaticMesh
	ComponentSkinnedMesh
	ComponentSkeletonMesh
	ComponentColliderBox
	ComponentColliderCapsule
	ComponentColliderSphere
	ComponentColliderInfinitePlane
	ComponentColliderMesh
)

// PhysicsType is the optional physics-body classification on an entry.
type PhysicsType int

const (
	PhysicsNone PhysicsType = iota
	PhysicsStatic
	PhysicsDynamic
	PhysicsKinematic
)

// Light carries the shared point/directional/spot light fields; which
// ones are meaningful depends on ComponentKind.
type Light struct {
	Color      math.Vec3
	Intensity  float32
	Radius     float32 // point/spot influence radius
	FOV        float32 // spot cone half-angle, degrees
	StageGUIDs []guid.GUID
}

// Camera holds perspective projection parameters.
type Camera struct {
	FOV  float32
	Near float32
	Far  float32
}

// StaticMesh references a mesh and its bound material instance.
type StaticMesh struct {
	MeshGUID             guid.GUID
	MaterialInstanceGUID guid.GUID
	StageGUIDs           []guid.GUID
}

// SkinnedMesh extends StaticMesh with skin and skeleton references.
type SkinnedMesh struct {
	StaticMesh
	MeshSkinGUID guid.GUID
	SkeletonGUID guid.GUID
}

// SkeletonMesh is a skeleton-bearing entry with an optional default
// animation controller.
type SkeletonMesh struct {
	SkeletonGUID        guid.GUID
	HasDefaultAnimation bool
	DefaultAnimationGUID guid.GUID
}

// Collider is the union of the five physics-collider shapes; only the
// fields relevant to Kind are populated.
type Collider struct {
	Kind                 ComponentKind
	HalfSize             math.Vec3 // Box
	Radius               float32   // Capsule, Sphere
	HalfHeight           float32   // Capsule
	MeshGUID             guid.GUID // Mesh collider
	PhysicalMaterialGUID guid.GUID
}

// Entry is one node of the Hierarchy tree (SPEC_FULL.md §3). Exactly one
// of the component-typed fields below is meaningful, selected by Kind;
// this mirrors the foreign visitor-style discriminated union as a Go sum
// type (SPEC_FULL.md §9 "Tagged component union").
type Entry struct {
	GUID           guid.GUID // root only
	InstanceGUID   guid.GUID
	Name           string
	SourceName     string
	LocalTransform math.Transform
	PhysicsType    PhysicsType

	Kind         ComponentKind
	Light        *Light
	Camera       *Camera
	SceneGUID    guid.GUID
	StaticMesh   *StaticMesh
	SkinnedMesh  *SkinnedMesh
	SkeletonMesh *SkeletonMesh
	Collider     *Collider

	Children []*Entry

	// Dependencies is populated on root entries only: the deduplicated
	// flat list of every referenced asset GUID in the subtree, excluding
	// the root's own GUID (SPEC_FULL.md §3 invariant i, §8 "Dependency
	// closure").
	Dependencies []guid.GUID
}

// wireEntry is the on-disk JSON shape (SPEC_FULL.md §6), decoupled from
// Entry's Go-native pointer-union representation so serialization stays
// stable independent of in-memory layout changes.
type wireEntry struct {
	GUID         string       `json:"guid,omitempty"`
	InstanceGUID string       `json:"instanceGuid"`
	Name         string       `json:"name"`
	SourceName   string       `json:"sourceName"`
	Transform    wireTransform `json:"transform"`
	PhysicsType  *PhysicsType `json:"physicsType,omitempty"`

	Kind         ComponentKind `json:"componentKind"`
	Light        *Light        `json:"light,omitempty"`
	Camera       *Camera       `json:"camera,omitempty"`
	SceneGUID    string        `json:"sceneGuid,omitempty"`
	StaticMesh   *StaticMesh   `json:"staticMesh,omitempty"`
	SkinnedMesh  *SkinnedMesh  `json:"skinnedMesh,omitempty"`
	SkeletonMesh *SkeletonMesh `json:"skeletonMesh,omitempty"`
	Collider     *Collider     `json:"collider,omitempty"`

	Children     []*wireEntry `json:"children,omitempty"`
	Dependencies []string     `json:"dependencies,omitempty"`
}

type wireTransform struct {
	Position math.Vec3       `json:"position"`
	Rotation math.Quaternion `json:"rotation"`
	Scale    math.Vec3       `json:"scale"`
}

// Serialize converts an Entry tree into its on-disk JSON metadata form.
func Serialize(e *Entry) ([]byte, error) {
	return json.MarshalIndent(toWire(e), "", "  ")
}

// Deserialize parses on-disk JSON metadata back into an Entry tree.
func Deserialize(data []byte) (*Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("hierarchy: deserialize: %w", err)
	}
	return fromWire(&w)
}

func toWire(e *Entry) *wireEntry {
	w := &wireEntry{
		InstanceGUID: e.InstanceGUID.String(),
		Name:         e.Name,
		SourceName:   e.SourceName,
		Transform: wireTransform{
			Position: e.LocalTransform.Position,
			Rotation: e.LocalTransform.Rotation,
			Scale:    e.LocalTransform.Scale,
		},
		Kind:         e.Kind,
		Light:        e.Light,
		Camera:       e.Camera,
		StaticMesh:   e.StaticMesh,
		SkinnedMesh:  e.SkinnedMesh,
		SkeletonMesh: e.SkeletonMesh,
		Collider:     e.Collider,
	}
	if !e.GUID.IsNil() {
		w.GUID = e.GUID.String()
	}
	if e.PhysicsType != PhysicsNone {
		pt := e.PhysicsType
		w.PhysicsType = &pt
	}
	if e.Kind == ComponentScene {
		w.SceneGUID = e.SceneGUID.String()
	}
	for _, d := range e.Dependencies {
		w.Dependencies = append(w.Dependencies, d.String())
	}
	for _, c := range e.Children {
		w.Children = append(w.Children, toWire(c))
	}
	return w
}

func fromWire(w *wireEntry) (*Entry, error) {
	e := &Entry{
		Name:       w.Name,
		SourceName: w.SourceName,
		LocalTransform: math.Transform{
			Position: w.Transform.Position,
			Rotation: w.Transform.Rotation,
			Scale:    w.Transform.Scale,
		},
		Kind:         w.Kind,
		Light:        w.Light,
		Camera:       w.Camera,
		StaticMesh:   w.StaticMesh,
		SkinnedMesh:  w.SkinnedMesh,
		SkeletonMesh: w.SkeletonMesh,
		Collider:     w.Collider,
	}
	if w.GUID != "" {
		g, err := guid.Parse(w.GUID)
		if err != nil {
			return nil, fmt.Errorf("hierarchy: bad guid: %w", err)
		}
		e.GUID = g
	}
	if w.InstanceGUID != "" {
		g, err := guid.Parse(w.InstanceGUID)
		if err != nil {
			return nil, fmt.Errorf("hierarchy: bad instanceGuid: %w", err)
		}
		e.InstanceGUID = g
	}
	if w.SceneGUID != "" {
		g, err := guid.Parse(w.SceneGUID)
		if err != nil {
			return nil, fmt.Errorf("hierarchy: bad sceneGuid: %w", err)
		}
		e.SceneGUID = g
	}
	if w.PhysicsType != nil {
		e.PhysicsType = *w.PhysicsType
	}
	for _, ds := range w.Dependencies {
		g, err := guid.Parse(ds)
		if err != nil {
			return nil, fmt.Errorf("hierarchy: bad dependency guid: %w", err)
		}
		e.Dependencies = append(e.Dependencies, g)
	}
	for _, cw := range w.Children {
		c, err := fromWire(cw)
		if err != nil {
			return nil, err
		}
		e.Children = append(e.Children, c)
	}
	return e, nil
}

// ComputeDependencies walks root's subtree and returns the deduplicated
// flat list of every referenced asset GUID, excluding root's own GUID
// (SPEC_FULL.md §3 invariant i, §8 "Dependency closure"). The result is
// also written into root.Dependencies.
func ComputeDependencies(root *Entry) []guid.GUID {
	seen := make(map[guid.GUID]struct{})
	var walk func(e *Entry)
	record := func(g guid.GUID) {
		if g.IsNil() || g == root.GUID {
			return
		}
		seen[g] = struct{}{}
	}
	walk = func(e *Entry) {
		if e.Kind == ComponentScene {
			record(e.SceneGUID)
		}
		if e.StaticMesh != nil {
			record(e.StaticMesh.MeshGUID)
			record(e.StaticMesh.MaterialInstanceGUID)
		}
		if e.SkinnedMesh != nil {
			record(e.SkinnedMesh.MeshGUID)
			record(e.SkinnedMesh.MaterialInstanceGUID)
			record(e.SkinnedMesh.MeshSkinGUID)
			record(e.SkinnedMesh.SkeletonGUID)
		}
		if e.SkeletonMesh != nil {
			record(e.SkeletonMesh.SkeletonGUID)
			if e.SkeletonMesh.HasDefaultAnimation {
				record(e.SkeletonMesh.DefaultAnimationGUID)
			}
		}
		if e.Collider != nil {
			record(e.Collider.MeshGUID)
			record(e.Collider.PhysicalMaterialGUID)
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(root)

	out := make([]guid.GUID, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	root.Dependencies = out
	return out
}
