package astc

import (
	"testing"

	"github.com/arm-software/astc-encoder/astc"
	"github.com/arm-software/astc-encoder/native"
	"github.com/stretchr/testify/require"
)

func TestConfigInitPicksHDRProfileForFloatSource(t *testing.T) {
	cfg := ConfigInit(4, 4, 0.5, true, false, false)
	require.Equal(t, astc.ProfileHDRRGBLDRA, cfg.Profile)
}

func TestConfigInitPicksLDRProfileForByteSource(t *testing.T) {
	cfg := ConfigInit(4, 4, 0.5, false, false, false)
	require.Equal(t, astc.ProfileLDR, cfg.Profile)
}

func TestConfigInitSetsNormalMapFlag(t *testing.T) {
	cfg := ConfigInit(6, 6, 0.9, false, true, false)
	require.NotZero(t, cfg.Flags&native.FlagMapNormal)
}

func TestConfigInitSetsAlphaWeightFlag(t *testing.T) {
	cfg := ConfigInit(4, 4, 0.9, false, false, true)
	require.NotZero(t, cfg.Flags&native.FlagUseAlphaWeight)
}

func TestQualityFromFractionBuckets(t *testing.T) {
	require.Equal(t, QualityFastest, qualityFromFraction(0))
	require.Equal(t, QualityExhaustive, qualityFromFraction(1))
}
