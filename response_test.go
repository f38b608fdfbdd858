package ircache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLookupResponse(t *testing.T) {
	p1, _, _, _ := ParsePrefix("10.0.0.0/8", nil)
	p2, _, _, _ := ParsePrefix("192.0.2.0/24", nil)

	resp := ToLookupResponse(Result{
		V4:            []PrefixV4{p1, p2},
		VisitedMacros: []string{"AS-Y"},
	})

	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.0/24"}, resp.Prefixes)
	assert.Equal(t, []string{"AS-Y"}, resp.Macros)
	assert.Equal(t, 2, resp.PrefixCount)
}

func TestLookupResponseJSONRoundTrip(t *testing.T) {
	resp := LookupResponse{
		Prefixes:    []string{"10.0.0.0/8"},
		Macros:      []string{"AS-Y"},
		PrefixCount: 1,
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded LookupResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, resp, decoded)
}

func TestDumpResponseMarshal(t *testing.T) {
	resp := DumpResponse{
		Registries: map[string]RegistryDump{
			"ripe": {
				Serial: 42,
				Macros: map[string][]string{"AS-FOO": {"AS1"}},
				V4:     map[string][]string{"1": {"10.0.0.0/8"}},
				V6:     map[string][]string{},
			},
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "registries")
}
