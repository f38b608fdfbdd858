package ircache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrefixV4Canonicalizes(t *testing.T) {
	var events []Event
	v4, _, family, err := ParsePrefix("192.0.2.5/24", func(e Event) { events = append(events, e) })
	require.NoError(t, err)
	assert.Equal(t, V4, family)
	assert.Equal(t, "192.0.2.0/24", v4.String())
	require.Len(t, events, 1)
	assert.Equal(t, KindNonCanonicalPrefix, events[0].Err.Kind)
}

func TestParsePrefixV6Canonicalizes(t *testing.T) {
	_, v6, family, err := ParsePrefix("2001:db8:1234::/32", nil)
	require.NoError(t, err)
	assert.Equal(t, V6, family)
	assert.Equal(t, "2001:db8::/32", v6.String())
}

func TestParsePrefixAlreadyCanonicalNoEvent(t *testing.T) {
	var events []Event
	_, _, _, err := ParsePrefix("10.0.0.0/8", func(e Event) { events = append(events, e) })
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParsePrefixRoundTrip(t *testing.T) {
	v4, _, _, err := ParsePrefix("203.0.113.0/24", nil)
	require.NoError(t, err)
	v4b, _, _, err := ParsePrefix(v4.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, v4, v4b)

	_, v6, _, err := ParsePrefix("2001:db8::/48", nil)
	require.NoError(t, err)
	_, v6b, _, err := ParsePrefix(v6.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, v6, v6b)
}

func TestParsePrefixInvalid(t *testing.T) {
	_, _, _, err := ParsePrefix("not-an-address/24", nil)
	assert.Error(t, err)

	_, _, _, err = ParsePrefix("10.0.0.0/99", nil)
	assert.Error(t, err)
}

func TestRepairV4(t *testing.T) {
	v4, _, _, _ := ParsePrefix("192.0.2.0/24", nil)
	v4[3] = 5 // corrupt a host byte out from under the canonical form
	repaired, canonical := RepairV4(v4)
	assert.False(t, canonical)
	assert.Equal(t, "192.0.2.0/24", repaired.String())
}
