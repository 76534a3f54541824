package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgelabs/assetforge/codec/image"
	"github.com/forgelabs/assetforge/config"
	"github.com/forgelabs/assetforge/format"
	"github.com/forgelabs/assetforge/jobs"
	"github.com/forgelabs/assetforge/texture"
)

// textureCompilerPlugin is the Plugin backing the Texture Pipeline
// (SPEC_FULL.md §4.4) behind the raster image extensions. It has no
// foreign Export path: textures aren't re-exported to an external
// container the way meshes/scenes are (SPEC_FULL.md §4.11 "Export is the
// inverse of Compile for mesh and full-scene exports" — textures are
// excluded by that wording).
type textureCompilerPlugin struct{}

func (textureCompilerPlugin) Compile(sched *jobs.Scheduler, sourcePath, rootDir string, platforms []config.Platform, flags Flags, callback func(CompileResult)) (*jobs.Job, error) {
	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("compiler: read %s: %w", sourcePath, err)
	}
	sourceFormat, err := imageSourceFormat(sourcePath)
	if err != nil {
		return nil, err
	}
	decoded, err := image.DecodeN(raw, sourceFormat)
	if err != nil {
		return nil, fmt.Errorf("compiler: decode %s: %w", sourcePath, err)
	}

	assetName := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	metadataPath := filepath.Join(rootDir, assetName+".tmeta")

	tex := texture.UncompressedTexture{
		Pixels:       decoded.Pixels,
		Width:        decoded.Width,
		Height:       decoded.Height,
		ChannelCount: decoded.ChannelCount,
		BitDepth:     decoded.BitDepth,
		ArraySize:    1,
		SourceFormat: format.FormatRGBA8,
	}

	job, err := texture.Compile(sched, tex, texture.CompileOptions{
		Platforms:    platforms,
		GenerateMips: flags.GenerateMips,
		ASTCQuality:  1.0,
		BCQuality:    1.0,
		OutputDir:    rootDir,
		AssetName:    assetName,
	}, func(r texture.CompileResult) {
		compiled := r.Compiled
		if compiled {
			data, err := texture.Serialize(r.Asset)
			if err != nil || os.WriteFile(metadataPath, data, 0o644) != nil {
				compiled = false
			}
		}
		callback(CompileResult{MetadataPath: metadataPath, Compiled: compiled})
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (textureCompilerPlugin) IsUpToDate(sourcePath, rootDir string, platforms []config.Platform) bool {
	assetName := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	metadataPath := filepath.Join(rootDir, assetName+".tmeta")

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return false
	}
	asset, err := texture.Deserialize(data)
	if err != nil {
		return false
	}
	for _, p := range platforms {
		if !texture.IsUpToDate(p, asset, sourcePath) {
			return false
		}
	}
	return true
}

func (textureCompilerPlugin) Export(sched *jobs.Scheduler, metadataPath, targetExtension string, callback func(ExportResult)) (*jobs.Job, error) {
	return nil, fmt.Errorf("compiler: texture plugin has no export path for %s", targetExtension)
}

func imageSourceFormat(path string) (image.SourceFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return image.FormatPNG, nil
	case "jpg", "jpeg":
		return image.FormatJPEG, nil
	case "bmp":
		return image.FormatBMP, nil
	case "tif", "tiff":
		return image.FormatTIFF, nil
	case "hdr":
		return image.FormatHDR, nil
	default:
		return image.FormatAuto, fmt.Errorf("compiler: unrecognised image extension %s", path)
	}
}
