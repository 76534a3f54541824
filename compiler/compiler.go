// Package compiler is the Asset Compiler Plugin Interface (SPEC_FULL.md
// §4.11): a file-extension-keyed registry over the concrete compilers
// (scenecompile+sceneexport for meshes/scenes, texture for images), each
// exposing a uniform (Compile, IsUpToDate, Export) boundary so a caller
// never needs to know which package actually does the work.
//
// Grounded on engine/assets/assets.go's extension/resource-type-keyed
// Loader registry (AssetManager.loaders, registerLoader), generalized from
// "load for runtime" to "compile from a tool source file."
package compiler

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/forgelabs/assetforge/config"
	"github.com/forgelabs/assetforge/jobs"
)

// Flags are the compile-time toggles threaded into every plugin
// (SPEC_FULL.md §4.9/§4.4 "GenerateMips", "ForceRebuild").
type Flags struct {
	GenerateMips bool
	ForceRebuild bool
}

// CompileResult is delivered once a plugin's Compile job finishes.
type CompileResult struct {
	MetadataPath string
	Compiled     bool
}

// ExportResult is delivered once a plugin's Export job finishes.
type ExportResult struct {
	Blob     []byte
	Exported bool
}

// Plugin is one file-extension's compiler (SPEC_FULL.md §4.11): "Each
// compiler exposes (Compile, IsUpToDate, Export) by file extension."
type Plugin interface {
	// Compile reads sourcePath, compiles it under rootDir, and returns the
	// job that produces CompileResult. The returned job and the jobs it
	// depends on are already added to sched; the caller only runs sched.
	Compile(sched *jobs.Scheduler, sourcePath, rootDir string, platforms []config.Platform, flags Flags, callback func(CompileResult)) (*jobs.Job, error)
	// IsUpToDate reports whether a previous compile of sourcePath under
	// rootDir is still current for platforms.
	IsUpToDate(sourcePath, rootDir string, platforms []config.Platform) bool
	// Export is the inverse of Compile: it loads the compiled asset at
	// metadataPath and converts it into targetExtension's foreign
	// container, or returns an error if this plugin has no export path.
	Export(sched *jobs.Scheduler, metadataPath, targetExtension string, callback func(ExportResult)) (*jobs.Job, error)
}

// Registry dispatches Compile/IsUpToDate/Export calls to the Plugin
// registered for a source file's extension.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty Registry; callers register plugins with
// Register, or use NewDefaultRegistry for the engine's built-in set.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// NewDefaultRegistry wires the Scene Compiler/Exporter and the Texture
// Pipeline behind the extensions SPEC_FULL.md's ingest pipelines accept.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	scene := &sceneCompilerPlugin{}
	for _, ext := range []string{"fbx", "gltf", "glb", "obj"} {
		r.Register(ext, scene)
	}
	tex := &textureCompilerPlugin{}
	for _, ext := range []string{"png", "jpg", "jpeg", "tga", "bmp", "tif", "tiff", "hdr"} {
		r.Register(ext, tex)
	}
	return r
}

// Register binds a Plugin to ext (leading dot optional, case-insensitive).
func (r *Registry) Register(ext string, p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[normalizeExt(ext)] = p
}

// Lookup returns the Plugin registered for ext, if any.
func (r *Registry) Lookup(ext string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[normalizeExt(ext)]
	return p, ok
}

// Compile dispatches to sourcePath's extension's Plugin.
func (r *Registry) Compile(sched *jobs.Scheduler, sourcePath, rootDir string, platforms []config.Platform, flags Flags, callback func(CompileResult)) (*jobs.Job, error) {
	p, ok := r.Lookup(filepath.Ext(sourcePath))
	if !ok {
		return nil, fmt.Errorf("compiler: no plugin registered for %s", sourcePath)
	}
	return p.Compile(sched, sourcePath, rootDir, platforms, flags, callback)
}

// IsUpToDate dispatches to sourcePath's extension's Plugin.
func (r *Registry) IsUpToDate(sourcePath, rootDir string, platforms []config.Platform) bool {
	p, ok := r.Lookup(filepath.Ext(sourcePath))
	if !ok {
		return false
	}
	return p.IsUpToDate(sourcePath, rootDir, platforms)
}

// Export dispatches to sourceExt's Plugin (the extension of the asset that
// was originally compiled, not targetExtension).
func (r *Registry) Export(sched *jobs.Scheduler, sourceExt, metadataPath, targetExtension string, callback func(ExportResult)) (*jobs.Job, error) {
	p, ok := r.Lookup(sourceExt)
	if !ok {
		return nil, fmt.Errorf("compiler: no plugin registered for extension %q", sourceExt)
	}
	return p.Export(sched, metadataPath, targetExtension, callback)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
