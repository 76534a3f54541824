package compiler

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgelabs/assetforge/config"
	"github.com/forgelabs/assetforge/guid"
	"github.com/forgelabs/assetforge/hierarchy"
	"github.com/forgelabs/assetforge/jobs"
	emath "github.com/forgelabs/assetforge/math"
	"github.com/forgelabs/assetforge/meshbuild"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	compiled bool
}

func (f *fakePlugin) Compile(sched *jobs.Scheduler, sourcePath, rootDir string, platforms []config.Platform, flags Flags, callback func(CompileResult)) (*jobs.Job, error) {
	job := &jobs.Job{ID: "fake-compile", Run: func() (jobs.Status, error) {
		callback(CompileResult{Compiled: true})
		return jobs.StatusComplete, nil
	}}
	_ = sched.AddJob(job)
	return job, nil
}

func (f *fakePlugin) IsUpToDate(sourcePath, rootDir string, platforms []config.Platform) bool {
	return f.compiled
}

func (f *fakePlugin) Export(sched *jobs.Scheduler, metadataPath, targetExtension string, callback func(ExportResult)) (*jobs.Job, error) {
	return nil, nil
}

func TestRegistryDispatchesByExtension(t *testing.T) {
	r := NewRegistry()
	p := &fakePlugin{}
	r.Register(".fake", p)

	got, ok := r.Lookup("fake")
	require.True(t, ok)
	require.Same(t, p, got)

	_, ok = r.Lookup(".unknown")
	require.False(t, ok)
}

func TestRegistryCompileErrorsForUnregisteredExtension(t *testing.T) {
	r := NewRegistry()
	sched := jobs.NewScheduler(1)
	_, err := r.Compile(sched, "thing.unknown", t.TempDir(), nil, Flags{}, func(CompileResult) {})
	require.Error(t, err)
}

func TestNewDefaultRegistryKnowsSceneAndTextureExtensions(t *testing.T) {
	r := NewDefaultRegistry()
	for _, ext := range []string{"fbx", "gltf", "glb", "obj"} {
		_, ok := r.Lookup(ext)
		require.True(t, ok, "expected plugin for %s", ext)
	}
	for _, ext := range []string{"png", "tga", "hdr"} {
		_, ok := r.Lookup(ext)
		require.True(t, ok, "expected plugin for %s", ext)
	}
	_, ok := r.Lookup("unknownext")
	require.False(t, ok)
}

func writeTestPNG(t *testing.T, path string) {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestTextureCompilerPluginCompilesAndReportsUpToDate(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "albedo.png")
	writeTestPNG(t, srcPath)

	r := NewDefaultRegistry()
	sched := jobs.NewScheduler(1)

	var result CompileResult
	_, err := r.Compile(sched, srcPath, dir, []config.Platform{config.PlatformLinux}, Flags{}, func(r CompileResult) {
		result = r
	})
	require.NoError(t, err)
	require.NoError(t, sched.Run())

	require.True(t, result.Compiled)
	require.FileExists(t, result.MetadataPath)
	require.True(t, r.IsUpToDate(srcPath, dir, []config.Platform{config.PlatformLinux}))
}

func TestTextureCompilerPluginHasNoExportPath(t *testing.T) {
	p := textureCompilerPlugin{}
	_, err := p.Export(jobs.NewScheduler(1), "thing.tmeta", "gltf", func(ExportResult) {})
	require.Error(t, err)
}

func TestDiskAssetLoaderResolvesMeshBinaryByIndexedName(t *testing.T) {
	dir := t.TempDir()
	obj := &meshbuild.StaticObject{
		Vertices: []meshbuild.StaticVertex{
			{Position: emath.Vec3{X: 0}, Normal: emath.Vec3{Z: 1}, Tangent: emath.Vec4{X: 1, W: 1}},
			{Position: emath.Vec3{X: 1}, Normal: emath.Vec3{Z: 1}, Tangent: emath.Vec4{X: 1, W: 1}},
			{Position: emath.Vec3{Y: 1}, Normal: emath.Vec3{Z: 1}, Tangent: emath.Vec4{X: 1, W: 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
	require.NoError(t, meshbuild.WriteBinary(filepath.Join(dir, "part0"+meshbuild.StaticMeshBinaryExtension), obj))

	meshGUID := guid.New()
	root := &hierarchy.Entry{
		GUID: guid.New(),
		Kind: hierarchy.ComponentScene,
		Children: []*hierarchy.Entry{{
			Name:       "part0",
			Kind:       hierarchy.ComponentStaticMesh,
			StaticMesh: &hierarchy.StaticMesh{MeshGUID: meshGUID},
		}},
	}

	loader := newDiskAssetLoader(&sceneCompilerPlugin{}, dir, root)
	got, err := loader.LoadMeshBinary(meshGUID)
	require.NoError(t, err)
	require.Len(t, got.Vertices, 3)
	require.Equal(t, []uint32{0, 1, 2}, got.Indices)
}

func TestDiskAssetLoaderLoadEntryPrefersRememberedPath(t *testing.T) {
	dir := t.TempDir()
	sceneGUID := guid.New()
	nested := &hierarchy.Entry{GUID: sceneGUID, Name: "nested", Kind: hierarchy.ComponentScene}

	data, err := hierarchy.Serialize(nested)
	require.NoError(t, err)
	metaPath := filepath.Join(dir, "wherever_i_put_it.meta")
	require.NoError(t, os.WriteFile(metaPath, data, 0o644))

	p := &sceneCompilerPlugin{metaPaths: map[guid.GUID]string{sceneGUID: metaPath}}
	loader := newDiskAssetLoader(p, dir, &hierarchy.Entry{GUID: guid.New(), Kind: hierarchy.ComponentScene})

	got, err := loader.LoadEntry(sceneGUID)
	require.NoError(t, err)
	require.Equal(t, sceneGUID, got.GUID)
}
