// Package config parses the Asset Compilation Core's compiler
// configuration from TOML, following the teacher's go-toml/v2 loader
// style (engine/assets/loaders/shader.go).
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Platform identifies a target platform a texture may be compiled for.
// The set of binary-types a texture emits is the union across its target
// platforms (SPEC_FULL.md §4.1).
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformMacOS   Platform = "macos"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// SupportsPerBlockBC reports whether the platform's BC encoder library
// exposes per-block parallel calls (SPEC_FULL.md §4.3) rather than
// requiring a single-shot whole-image convert.
func (p Platform) SupportsPerBlockBC() bool {
	switch p {
	case PlatformWindows, PlatformLinux, PlatformMacOS:
		return true
	default:
		return false
	}
}

// CompilerConfig is the root configuration object for one compiler
// process: worker pool sizing, default quality knobs, and directory
// layout (SPEC_FULL.md §6 "Persisted directory layout").
type CompilerConfig struct {
	Workers int `toml:"workers"`

	Texture TextureConfig `toml:"texture"`
	Paths   PathsConfig   `toml:"paths"`
}

type TextureConfig struct {
	ASTCQuality float32 `toml:"astc_quality"`
	BCQuality   float32 `toml:"bc_quality"`
	// EXRIntensityFactor is the empirical scaling applied to HDR panorama
	// RGB values before cubemap generation (SPEC_FULL.md §4.5, §9 Open
	// Questions — kept as a config knob rather than a hardcoded literal).
	EXRIntensityFactor float32 `toml:"exr_intensity_factor"`
	GenerateMipsByDefault bool `toml:"generate_mips_by_default"`
}

type PathsConfig struct {
	AssetRootDir string `toml:"asset_root_dir"`
}

// Default returns zero-config defaults sufficient to run the core
// unconfigured, matching the spirit of the teacher's NewXSystemConfig
// default constructors (engine/systems/manager.go).
func Default() CompilerConfig {
	return CompilerConfig{
		Workers: 0, // 0 means "use runtime.NumCPU()"; resolved by jobs.NewScheduler.
		Texture: TextureConfig{
			ASTCQuality:           1.0,
			BCQuality:             1.0,
			EXRIntensityFactor:    3.0,
			GenerateMipsByDefault: true,
		},
		Paths: PathsConfig{
			AssetRootDir: ".",
		},
	}
}

// Load reads and parses a CompilerConfig from a TOML file at path, filling
// in Default() for any field the file doesn't set.
func Load(path string) (CompilerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CompilerConfig{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return CompilerConfig{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}
