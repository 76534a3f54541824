package guid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsNotNil(t *testing.T) {
	g := New()
	require.False(t, g.IsNil())
}

func TestParseRoundTrip(t *testing.T) {
	g := New()
	parsed, err := Parse(g.String())
	require.NoError(t, err)
	require.Equal(t, g, parsed)
}

func TestJSONRoundTrip(t *testing.T) {
	type holder struct {
		GUID GUID `json:"guid"`
	}
	h := holder{GUID: New()}
	data, err := json.Marshal(h)
	require.NoError(t, err)

	var out holder
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, h.GUID, out.GUID)
}

func TestJSONEmptyStringIsNil(t *testing.T) {
	var g GUID
	require.NoError(t, json.Unmarshal([]byte(`""`), &g))
	require.True(t, g.IsNil())
}

func TestNilGUID(t *testing.T) {
	require.True(t, Nil.IsNil())
}
