package router

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestOptions_HTTPRoute(t *testing.T) {
	rc := &RequestContext{
		Method:      "GET",
		QueryString: "a=1",
		Headers:     Headers{"Host": "inbound", "Authorization": "Bearer xyz", "X-Custom": "v"},
	}
	route := &Route{Name: "primary", Type: RouteTypeHTTP, Host: "downstream", Port: 8080}
	ks := &KeystoreData{Key: []byte("key"), Cert: CertEntry{Data: []byte("cert")}}

	opts, err := BuildRequestOptions(rc, route, ks, "/fhir/Patient", nil)
	require.NoError(t, err)

	assert.Equal(t, "downstream", opts.Hostname)
	assert.Equal(t, 8080, opts.Port)
	assert.Equal(t, "/fhir/Patient?a=1", opts.Path)
	assert.True(t, opts.RejectUnauthorized)
	assert.Equal(t, []byte("key"), opts.Key)
	assert.Equal(t, []byte("cert"), opts.Cert)

	_, hasHost := opts.Headers.Get("host")
	assert.False(t, hasHost)
	_, hasAuth := opts.Headers.Get("authorization")
	assert.False(t, hasAuth)
	custom, ok := opts.Headers.Get("X-Custom")
	require.True(t, ok)
	assert.Equal(t, "v", custom)
}

func TestBuildRequestOptions_ForwardsAuthHeaderWhenConfigured(t *testing.T) {
	rc := &RequestContext{Headers: Headers{"Authorization": "Bearer xyz"}}
	route := &Route{Name: "primary", Type: RouteTypeHTTP, Host: "downstream", ForwardAuthHeader: true}

	opts, err := BuildRequestOptions(rc, route, nil, "/a", nil)
	require.NoError(t, err)

	auth, ok := opts.Headers.Get("authorization")
	require.True(t, ok)
	assert.Equal(t, "Bearer xyz", auth)
}

func TestBuildRequestOptions_BasicAuthEncoded(t *testing.T) {
	rc := &RequestContext{Headers: Headers{}}
	route := &Route{Name: "primary", Type: RouteTypeHTTP, Host: "downstream", Username: "bob", Password: "secret"}

	opts, err := BuildRequestOptions(rc, route, nil, "/a", nil)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(opts.Auth)
	require.NoError(t, err)
	assert.Equal(t, "bob:secret", string(decoded))
}

func TestBuildRequestOptions_CertLookupFromKeystore(t *testing.T) {
	rc := &RequestContext{Headers: Headers{}}
	route := &Route{Name: "primary", Type: RouteTypeHTTP, Host: "downstream", Cert: "my-ca"}
	ks := &KeystoreData{CA: map[string]CertEntry{"my-ca": {Data: []byte("ca-bytes")}}}

	opts, err := BuildRequestOptions(rc, route, ks, "/a", nil)
	require.NoError(t, err)

	assert.Equal(t, []byte("ca-bytes"), opts.CA)
}

func TestBuildRequestOptions_BusRoute(t *testing.T) {
	rc := &RequestContext{Headers: Headers{}}
	route := &Route{Name: "audit", Type: RouteTypeBus, Topic: "audit-topic"}
	brokers := []string{"broker-1:9092"}

	opts, err := BuildRequestOptions(rc, route, nil, "/a", brokers)
	require.NoError(t, err)

	assert.Equal(t, "audit-topic", opts.Topic)
	assert.Equal(t, brokers, opts.Brokers)
	assert.Empty(t, opts.Hostname)
}

func TestBuildRequestOptions_NoQueryStringLeavesPathBare(t *testing.T) {
	rc := &RequestContext{Headers: Headers{}}
	route := &Route{Name: "primary", Type: RouteTypeHTTP, Host: "downstream"}

	opts, err := BuildRequestOptions(rc, route, nil, "/a/b", nil)
	require.NoError(t, err)

	assert.Equal(t, "/a/b", opts.Path)
}
