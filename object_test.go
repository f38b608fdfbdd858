package ircache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectRoute(t *testing.T) {
	obj := ParseObject([]string{
		"route: 10.0.0.0/8",
		"descr: test route",
		"origin: AS1",
	}, nil)

	require.NotNil(t, obj.V4)
	assert.Nil(t, obj.Macro)
	assert.Nil(t, obj.V6)
	assert.Equal(t, ASN(1), obj.V4.Origin)
	assert.Equal(t, "10.0.0.0/8", obj.V4.Prefix.String())
}

func TestParseObjectRoute6(t *testing.T) {
	obj := ParseObject([]string{
		"route6: 2001:db8::/32",
		"origin: AS2",
	}, nil)

	require.NotNil(t, obj.V6)
	assert.Equal(t, ASN(2), obj.V6.Origin)
	assert.Equal(t, "2001:db8::/32", obj.V6.Prefix.String())
}

func TestParseObjectMacro(t *testing.T) {
	obj := ParseObject([]string{
		"as-set: as-foo",
		"members: AS1, as-bar, AS2",
	}, nil)

	require.NotNil(t, obj.Macro)
	assert.Equal(t, "AS-FOO", obj.Macro.Name)
	assert.Equal(t, []string{"AS1", "AS-BAR", "AS2"}, obj.Macro.Members)
}

func TestParseObjectMacroMultipleMembersLines(t *testing.T) {
	obj := ParseObject([]string{
		"as-set: AS-FOO",
		"members: AS1",
		"members: AS2, AS3",
	}, nil)

	require.NotNil(t, obj.Macro)
	assert.Equal(t, []string{"AS1", "AS2", "AS3"}, obj.Macro.Members)
}

func TestParseObjectContinuationLine(t *testing.T) {
	obj := ParseObject([]string{
		"route: 10.0.0.0/8",
		"descr: a long",
		" description that wraps",
		"origin: AS1",
	}, nil)

	require.NotNil(t, obj.V4)
	assert.Equal(t, ASN(1), obj.V4.Origin)
}

func TestParseObjectIgnoresOtherTypes(t *testing.T) {
	obj := ParseObject([]string{
		"person: Jane Doe",
		"nic-hdl: JD1-RIPE",
	}, nil)

	assert.Nil(t, obj.Macro)
	assert.Nil(t, obj.V4)
	assert.Nil(t, obj.V6)
}

func TestParseObjectRouteWithoutOriginIsIgnored(t *testing.T) {
	obj := ParseObject([]string{
		"route: 10.0.0.0/8",
	}, nil)

	assert.Nil(t, obj.V4)
}

func TestParseObjectCommentStripped(t *testing.T) {
	obj := ParseObject([]string{
		"route: 10.0.0.0/8 # comment",
		"origin: AS1 # comment",
	}, nil)

	require.NotNil(t, obj.V4)
	assert.Equal(t, "10.0.0.0/8", obj.V4.Prefix.String())
	assert.Equal(t, ASN(1), obj.V4.Origin)
}

func TestParseObjectEmpty(t *testing.T) {
	obj := ParseObject(nil, nil)
	assert.Nil(t, obj.Macro)
	assert.Nil(t, obj.V4)
	assert.Nil(t, obj.V6)
}
