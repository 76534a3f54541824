package texture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgelabs/assetforge/config"
	"github.com/forgelabs/assetforge/format"
	"github.com/forgelabs/assetforge/guid"
	"github.com/stretchr/testify/require"
)

func makeRGBA(w, h int, r, g, b, a byte) []byte {
	px := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		px[i*4+0], px[i*4+1], px[i*4+2], px[i*4+3] = r, g, b, a
	}
	return px
}

func TestClassifyPresetPicksDiffuseForOpaqueRGBA(t *testing.T) {
	tex := UncompressedTexture{
		Pixels:       makeRGBA(4, 4, 200, 100, 50, 255),
		Width:        4,
		Height:       4,
		ChannelCount: 4,
		SourceFormat: format.FormatRGBA8,
	}
	require.Equal(t, format.PresetDiffuse, classifyPreset(tex))
}

func TestClassifyPresetPicksAlphaMaskForBinaryAlpha(t *testing.T) {
	px := makeRGBA(4, 4, 200, 100, 50, 255)
	px[3] = 0 // first pixel fully transparent, rest opaque: binary mask
	tex := UncompressedTexture{
		Pixels:       px,
		Width:        4,
		Height:       4,
		ChannelCount: 4,
		SourceFormat: format.FormatRGBA8,
	}
	require.Equal(t, format.PresetDiffuseWithAlphaMask, classifyPreset(tex))
}

func TestClassifyPresetPicksCubemapForArraySixSource(t *testing.T) {
	tex := UncompressedTexture{ArraySize: 6}
	require.Equal(t, format.PresetEnvironmentCubemapDiffuseHDR, classifyPreset(tex))
}

func TestIsUpToDateFalseWhenBinaryMissing(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.png")
	require.NoError(t, os.WriteFile(srcPath, []byte("x"), 0o644))

	asset := &Asset{Binaries: map[format.BinaryType]*BinaryAsset{}}
	require.False(t, IsUpToDate(config.PlatformLinux, asset, srcPath))
}

func TestIsUpToDateFalseWhenBinaryOlderThanSource(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "out.raw.tex")
	require.NoError(t, os.WriteFile(binPath, []byte("stale"), 0o644))
	oldTime := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(binPath, oldTime, oldTime))

	srcPath := filepath.Join(dir, "src.png")
	require.NoError(t, os.WriteFile(srcPath, []byte("fresh"), 0o644))

	asset := &Asset{Binaries: map[format.BinaryType]*BinaryAsset{
		format.BinaryUncompressed: {BinaryPath: binPath},
	}}
	require.False(t, IsUpToDate(config.PlatformLinux, asset, srcPath))
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	asset := &Asset{
		GUID:      guid.New(),
		TypeGUID:  guid.New(),
		Preset:    format.PresetDiffuse,
		Width:     64,
		Height:    64,
		ArraySize: 1,
		Binaries: map[format.BinaryType]*BinaryAsset{
			format.BinaryUncompressed: {Format: format.FormatRGBA8, BinaryPath: "out.raw.tex"},
		},
	}

	data, err := Serialize(asset)
	require.NoError(t, err)

	roundTrip, err := Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, asset.GUID, roundTrip.GUID)
	require.Equal(t, asset.Width, roundTrip.Width)
	require.Equal(t, "out.raw.tex", roundTrip.Binaries[format.BinaryUncompressed].BinaryPath)
}

func TestIsUpToDateTrueWhenAllBinariesFresh(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.png")
	require.NoError(t, os.WriteFile(srcPath, []byte("src"), 0o644))

	binaryTypes := format.SelectBinaryTypes([]config.Platform{config.PlatformLinux})
	asset := &Asset{Binaries: map[format.BinaryType]*BinaryAsset{}}
	for i, bt := range binaryTypes {
		binPath := filepath.Join(dir, "out.tex")
		binPath = binPath + string(rune('0'+i))
		require.NoError(t, os.WriteFile(binPath, []byte("fresh-binary"), 0o644))
		asset.Binaries[bt] = &BinaryAsset{BinaryPath: binPath}
	}

	require.True(t, IsUpToDate(config.PlatformLinux, asset, srcPath))
}

func TestMipDimensionNeverGoesBelowOne(t *testing.T) {
	require.Equal(t, 1, mipDimension(4, 10))
	require.Equal(t, 2, mipDimension(4, 1))
	require.Equal(t, 4, mipDimension(4, 0))
}

func TestCompileProducesBinariesForUncompressedAndBC(t *testing.T) {
	dir := t.TempDir()
	tex := UncompressedTexture{
		Pixels:       makeRGBA(8, 8, 10, 20, 30, 255),
		Width:        8,
		Height:       8,
		ChannelCount: 4,
		SourceFormat: format.FormatRGBA8,
	}
	opts := CompileOptions{
		Platforms: []config.Platform{config.PlatformLinux},
		Preset:    format.PresetDiffuse,
		OutputDir: dir,
		AssetName: "test_texture",
	}

	bin, err := compileBinaryType(tex, format.Decision{
		BinaryType: format.BinaryUncompressed,
		Target:     format.FormatRGBA8,
		Mip:        format.MipPolicy{Count: 1},
	}, opts, opts.ExistingGUID, format.BinaryUncompressed)
	require.NoError(t, err)
	require.FileExists(t, bin.BinaryPath)
	require.Len(t, bin.MipOffsets, 1)

	binBC, err := compileBinaryType(tex, format.Decision{
		BinaryType: format.BinaryBC,
		Target:     format.FormatBC1,
		Mip:        format.MipPolicy{Count: 1},
	}, opts, opts.ExistingGUID, format.BinaryBC)
	require.NoError(t, err)
	require.FileExists(t, binBC.BinaryPath)
}

func TestCompileBinaryTypeRejectsUnalignedResolution(t *testing.T) {
	dir := t.TempDir()
	tex := UncompressedTexture{
		Pixels:       makeRGBA(6, 6, 1, 2, 3, 255),
		Width:        6,
		Height:       6,
		ChannelCount: 4,
	}
	opts := CompileOptions{OutputDir: dir, AssetName: "unaligned"}
	_, err := compileBinaryType(tex, format.Decision{
		BinaryType: format.BinaryBC,
		Target:     format.FormatBC1,
		Mip:        format.MipPolicy{Count: 1},
	}, opts, opts.ExistingGUID, format.BinaryBC)
	require.Error(t, err)
}
