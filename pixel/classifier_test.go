package pixel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rgba(values ...byte) []byte { return values }

func TestClassifyAllOpaqueIsNone(t *testing.T) {
	img := Image{
		Pixels:            rgba(10, 20, 30, 255, 40, 50, 60, 255),
		ChannelCount:      4,
		AlphaChannelIndex: 3,
		MaxValue:          255,
	}
	require.Equal(t, None, Classify(img))
}

func TestClassifyBinaryAlphaIsMask(t *testing.T) {
	img := Image{
		Pixels:            rgba(10, 20, 30, 255, 40, 50, 60, 0),
		ChannelCount:      4,
		AlphaChannelIndex: 3,
		MaxValue:          255,
	}
	require.Equal(t, Mask, Classify(img))
}

func TestClassifyPartialAlphaIsTransparency(t *testing.T) {
	img := Image{
		Pixels:            rgba(10, 20, 30, 128, 40, 50, 60, 255),
		ChannelCount:      4,
		AlphaChannelIndex: 3,
		MaxValue:          255,
	}
	require.Equal(t, Transparency, Classify(img))
}

func TestClassifyNoAlphaChannelIsNone(t *testing.T) {
	img := Image{
		Pixels:            rgba(10, 20, 30, 40, 50, 60),
		ChannelCount:      3,
		AlphaChannelIndex: -1,
		MaxValue:          255,
	}
	require.Equal(t, None, Classify(img))
}

func TestClassifyTotality(t *testing.T) {
	// Every RGBA source must classify to exactly one of the three states;
	// spot-check that Mask requires NOT all-opaque.
	allZero := Image{
		Pixels:            rgba(1, 2, 3, 0, 4, 5, 6, 0),
		ChannelCount:      4,
		AlphaChannelIndex: 3,
		MaxValue:          255,
	}
	require.Equal(t, Mask, Classify(allZero))
}
