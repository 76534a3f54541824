package format

import (
	"testing"

	"github.com/forgelabs/assetforge/config"
	"github.com/stretchr/testify/require"
)

func TestSelectBinaryTypesUnion(t *testing.T) {
	types := SelectBinaryTypes([]config.Platform{config.PlatformIOS, config.PlatformWindows})
	require.Contains(t, types, BinaryUncompressed)
	require.Contains(t, types, BinaryASTC)
	require.Contains(t, types, BinaryBC, "windows supports per-block BC so the union must include it")
}

func TestSelectBinaryTypesIOSOnlyHasNoBC(t *testing.T) {
	types := SelectBinaryTypes([]config.Platform{config.PlatformIOS})
	require.NotContains(t, types, BinaryBC)
}

func TestMipCountNeverBelowOneBlock(t *testing.T) {
	count := MipCount(4, 4, FormatASTC4x4LDR, true)
	require.Equal(t, 1, count)
}

func TestMipCountPowerOfTwo(t *testing.T) {
	// 256x256 with 4x4 blocks: ceil(log2(256)) - (log2(4)-1) = 8 - 1 = 7
	count := MipCount(256, 256, FormatASTC4x4LDR, true)
	require.Equal(t, 7, count)
}

func TestMipCountDisabledIsOne(t *testing.T) {
	require.Equal(t, 1, MipCount(256, 256, FormatASTC4x4LDR, false))
}

func TestIsResolutionValid(t *testing.T) {
	require.True(t, IsResolutionValid(64, 64, FormatASTC4x4LDR))
	require.False(t, IsResolutionValid(63, 64, FormatASTC4x4LDR))
}

func TestDecideDiffuseWithAlphaMask(t *testing.T) {
	decisions := Decide(PresetDiffuseWithAlphaMask, []config.Platform{config.PlatformWindows, config.PlatformIOS}, FormatRGBA8, 64, 64, true)
	require.NotEmpty(t, decisions)
	for _, d := range decisions {
		if d.BinaryType == BinaryASTC {
			require.Equal(t, FormatASTC4x4Mask, d.Target)
		}
		if d.BinaryType == BinaryBC {
			require.Equal(t, FormatBC1Alpha, d.Target)
		}
	}
}

func TestDecideUnknownPresetReturnsNil(t *testing.T) {
	require.Nil(t, Decide(PresetUnknown, []config.Platform{config.PlatformWindows}, FormatRGBA8, 4, 4, true))
}
