// Package assetdb is the Asset Dependency Cache (SPEC_FULL.md §3 "Queued*
// Maps", §4.6, §5 "Ordering guarantees"): six first-lookup-wins memoisation
// tables, keyed by foreign-pointer identity, confined to a single compile
// session.
//
// Grounded on spec.md §3/§9 directly (no teacher analogue for cross-asset
// dedup); the map-plus-mutex idiom follows engine/assets/assets.go's
// loader registry.
package assetdb

import (
	"strconv"
	"sync"

	"github.com/forgelabs/assetforge/guid"
	"github.com/forgelabs/assetforge/jobs"
)

// MaterialEntry is the cached result of compiling one foreign material.
type MaterialEntry struct {
	MaterialInstanceGUID guid.GUID
	SaveJob              *jobs.Job
}

// TextureEntry is the cached result of compiling one texture path.
type TextureEntry struct {
	MetadataPath string
	CompileJob   *jobs.Job
}

// MeshEntry is the cached result of compiling one foreign mesh.
type MeshEntry struct {
	MeshName             string
	MetadataPath         string
	MeshGUID             guid.GUID
	MaterialGUID         guid.GUID
	SkinGUID             guid.GUID
	SkeletonGUID         guid.GUID
	DefaultAnimationGUID guid.GUID
	CompileJob           *jobs.Job
}

// SkeletonEntry is the cached result of building one skeleton from a
// foreign root node.
type SkeletonEntry struct {
	SkeletonGUID         guid.GUID
	DefaultAnimationGUID guid.GUID
	JointIndexMap        map[string]int
	CharCount            int
	JointCount           int
	BuildJob             *jobs.Job
}

// MeshSkinEntry is the cached result of building one mesh skin.
type MeshSkinEntry struct {
	MeshSkinGUID guid.GUID
	BuildJob     *jobs.Job
}

// CombinedMeshEntry tracks the scene GUID of an already-emitted combined
// multi-material mesh scene, keyed by the shared foreign mesh name.
type CombinedMeshEntry struct {
	SceneGUID guid.GUID
}

// Cache holds the six Queued* maps for one compile session (SPEC_FULL.md
// §5 "Shared resources": confined to a single orchestrator, mutated during
// walk, read by child jobs after capture by value). All lookups are
// first-lookup-wins: the first caller creates the entry, every subsequent
// caller for the same foreign pointer gets the same entry back.
type Cache struct {
	mu sync.Mutex

	materials   map[uintptr]*MaterialEntry
	textures    map[string]*TextureEntry
	meshes      map[uintptr]*MeshEntry
	skeletons   map[uintptr]*SkeletonEntry
	meshSkins   map[uintptr]*MeshSkinEntry
	combined    map[string]*CombinedMeshEntry
}

// New creates an empty Cache for one compile session.
func New() *Cache {
	return &Cache{
		materials: make(map[uintptr]*MaterialEntry),
		textures:  make(map[string]*TextureEntry),
		meshes:    make(map[uintptr]*MeshEntry),
		skeletons: make(map[uintptr]*SkeletonEntry),
		meshSkins: make(map[uintptr]*MeshSkinEntry),
		combined:  make(map[string]*CombinedMeshEntry),
	}
}

// LookupMaterial returns the cached entry for foreignMaterial, creating it
// via makeNew on first lookup. existed reports whether an entry already
// existed (false means makeNew's job must still be queued as a
// prerequisite).
func (c *Cache) LookupMaterial(foreignMaterial uintptr, makeNew func() *MaterialEntry) (entry *MaterialEntry, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.materials[foreignMaterial]; ok {
		return e, true
	}
	e := makeNew()
	c.materials[foreignMaterial] = e
	return e, false
}

// LookupTexture dedups by absolute resolved path (SPEC_FULL.md §4.6
// "Texture: absolute resolved path").
func (c *Cache) LookupTexture(resolvedPath string, makeNew func() *TextureEntry) (entry *TextureEntry, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.textures[resolvedPath]; ok {
		return e, true
	}
	e := makeNew()
	c.textures[resolvedPath] = e
	return e, false
}

// LookupMesh dedups by foreign mesh pointer identity.
func (c *Cache) LookupMesh(foreignMesh uintptr, makeNew func() *MeshEntry) (entry *MeshEntry, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.meshes[foreignMesh]; ok {
		return e, true
	}
	e := makeNew()
	c.meshes[foreignMesh] = e
	return e, false
}

// LookupSkeleton dedups by foreign root-node pointer identity.
func (c *Cache) LookupSkeleton(foreignRoot uintptr, makeNew func() *SkeletonEntry) (entry *SkeletonEntry, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.skeletons[foreignRoot]; ok {
		return e, true
	}
	e := makeNew()
	c.skeletons[foreignRoot] = e
	return e, false
}

// LookupMeshSkin dedups by foreign mesh pointer identity (a second,
// independent map from LookupMesh: a mesh may need both a mesh-compile
// entry and a mesh-skin-build entry, per SPEC_FULL.md §3).
func (c *Cache) LookupMeshSkin(foreignMesh uintptr, makeNew func() *MeshSkinEntry) (entry *MeshSkinEntry, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.meshSkins[foreignMesh]; ok {
		return e, true
	}
	e := makeNew()
	c.meshSkins[foreignMesh] = e
	return e, false
}

// LookupCombinedMeshScene dedups combined multi-material mesh scenes by
// shared foreign mesh name (SPEC_FULL.md §3 "mesh_name -> scene_guid").
func (c *Cache) LookupCombinedMeshScene(meshName string, makeNew func() *CombinedMeshEntry) (entry *CombinedMeshEntry, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.combined[meshName]; ok {
		return e, true
	}
	e := makeNew()
	c.combined[meshName] = e
	return e, false
}

// UniquePath appends "-N" starting at N=2 to candidatePath until it is not
// already claimed by a queued mesh metadata path (SPEC_FULL.md §4.6
// "Naming collision").
func (c *Cache) UniquePath(candidatePath string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	claimed := make(map[string]struct{}, len(c.meshes))
	for _, e := range c.meshes {
		claimed[e.MetadataPath] = struct{}{}
	}
	if _, taken := claimed[candidatePath]; !taken {
		return candidatePath
	}
	for n := 2; ; n++ {
		candidate := suffixed(candidatePath, n)
		if _, taken := claimed[candidate]; !taken {
			return candidate
		}
	}
}

func suffixed(path string, n int) string {
	return path + "-" + strconv.Itoa(n)
}
