package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformPath_PassthroughWhenEmpty(t *testing.T) {
	got, err := TransformPath("/fhir/Patient/1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "/fhir/Patient/1", got)
}

func TestTransformPath_FallbackWhenEmptyExpr(t *testing.T) {
	got, err := TransformPath("/fhir/Patient/1", "", "/static")
	require.NoError(t, err)
	assert.Equal(t, "/static", got)
}

func TestTransformPath_SingleSubstitution(t *testing.T) {
	got, err := TransformPath("/fhir/fhir/Patient", "s/fhir/openhim", "")
	require.NoError(t, err)
	assert.Equal(t, "/openhim/fhir/Patient", got)
}

func TestTransformPath_GlobalFlag(t *testing.T) {
	got, err := TransformPath("/fhir/fhir/Patient", "s/fhir/openhim/g", "")
	require.NoError(t, err)
	assert.Equal(t, "/openhim/openhim/Patient", got)
}

func TestTransformPath_EscapedSlashInPattern(t *testing.T) {
	got, err := TransformPath("/a/b/c", `s/\/a\/b/\/x`, "")
	require.NoError(t, err)
	assert.Equal(t, "/x/c", got)
}

func TestTransformPath_MalformedExpression(t *testing.T) {
	_, err := TransformPath("/a", "s/only-one-segment", "")
	assert.Error(t, err)
}

func TestTransformPath_InvalidRegexp(t *testing.T) {
	_, err := TransformPath("/a", "s/[/b", "")
	assert.Error(t, err)
}
