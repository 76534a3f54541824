package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, float32(3.0), cfg.Texture.EXRIntensityFactor)
	require.True(t, cfg.Texture.GenerateMipsByDefault)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assetc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers = 4

[texture]
astc_quality = 0.5
exr_intensity_factor = 2.0

[paths]
asset_root_dir = "/assets"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, float32(0.5), cfg.Texture.ASTCQuality)
	require.Equal(t, float32(2.0), cfg.Texture.EXRIntensityFactor)
	require.Equal(t, "/assets", cfg.Paths.AssetRootDir)
	require.Equal(t, float32(1.0), cfg.Texture.BCQuality, "unset fields keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path.toml")
	require.Error(t, err)
}

func TestPlatformSupportsPerBlockBC(t *testing.T) {
	require.True(t, PlatformWindows.SupportsPerBlockBC())
	require.False(t, PlatformIOS.SupportsPerBlockBC())
}
