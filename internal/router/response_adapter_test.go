package router

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhie/txrouter/internal/logger"
)

func TestResponseAdapter_Plain(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}
	resp := &Response{
		Status: 200,
		Body:   []byte("ok"),
		Headers: Headers{
			"Content-Type":   "text/plain",
			"Content-Length": "2",
			"X-Custom":       "value",
		},
	}

	adapter.Apply(rc, resp, "")

	require.NotNil(t, rc.Response)
	assert.Equal(t, 200, rc.Response.Status)
	assert.Equal(t, "ok", string(rc.Response.Body))
	ct, ok := rc.Response.Headers.Get("Content-Type")
	require.True(t, ok)
	assert.Equal(t, "text/plain", ct)
	_, hasLength := rc.Response.Headers.Get("Content-Length")
	assert.False(t, hasLength)
	custom, ok := rc.Response.Headers.Get("X-Custom")
	require.True(t, ok)
	assert.Equal(t, "value", custom)
}

func TestResponseAdapter_PropagatesInboundTransactionID(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}
	resp := &Response{Status: 200, Headers: Headers{}}

	adapter.Apply(rc, resp, "tx-123")

	got, ok := rc.Response.Headers.Get(transactionIDHeader)
	require.True(t, ok)
	assert.Equal(t, "tx-123", got)
}

func TestResponseAdapter_RedirectOnLocationWith3xx(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}
	resp := &Response{Status: 302, Headers: Headers{"Location": "/elsewhere"}}

	adapter.Apply(rc, resp, "")

	assert.True(t, rc.Response.Redirect)
	loc, _ := rc.Response.Headers.Get("Location")
	assert.Equal(t, "/elsewhere", loc)
}

func TestResponseAdapter_LocationWithoutRedirectStatus(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}
	resp := &Response{Status: 200, Headers: Headers{"Location": "/elsewhere"}}

	adapter.Apply(rc, resp, "")

	assert.False(t, rc.Response.Redirect)
}

func TestResponseAdapter_ParsesSetCookie(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}
	resp := &Response{Status: 200, Headers: Headers{
		"Set-Cookie": "session=abc123; Path=/; Secure; HttpOnly",
	}}

	adapter.Apply(rc, resp, "")

	require.Len(t, rc.Cookies, 1)
	cookie := rc.Cookies[0]
	assert.Equal(t, "session", cookie.Name)
	assert.Equal(t, "abc123", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.Secure)
}

func TestResponseAdapter_ParsesSetCookieExpires(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}
	resp := &Response{Status: 200, Headers: Headers{
		"Set-Cookie": "session=abc123; Expires=Wed, 21 Oct 2026 07:28:00 GMT",
	}}

	adapter.Apply(rc, resp, "")

	require.Len(t, rc.Cookies, 1)
	cookie := rc.Cookies[0]
	require.NotNil(t, cookie.Expires)
	assert.Equal(t, time.Date(2026, time.October, 21, 7, 28, 0, 0, time.UTC), cookie.Expires.UTC())
}

func TestResponseAdapter_MediatorFramedResponse(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}

	body, err := json.Marshal(map[string]interface{}{
		"x-mediator-urn": "urn:mediator:test",
		"response": map[string]interface{}{
			"status":  "201",
			"body":    "created",
			"headers": map[string]string{"Content-Type": "text/plain"},
		},
	})
	require.NoError(t, err)

	resp := &Response{
		Status:    200,
		Body:      body,
		Timestamp: time.Now(),
		Headers:   Headers{"Content-Type": mediatorContentType},
	}

	adapter.Apply(rc, resp, "")

	require.NotNil(t, rc.MediatorResponse)
	assert.Equal(t, "urn:mediator:test", rc.MediatorResponse.MediatorURN)
	require.NotNil(t, rc.Response)
	assert.Equal(t, 201, rc.Response.Status)
	assert.Equal(t, "created", string(rc.Response.Body))
}

func TestResponseAdapter_MediatorFramedErrorTriggersAutoRetry(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}

	body, err := json.Marshal(map[string]interface{}{
		"error":    map[string]string{"message": "downstream failed"},
		"response": map[string]interface{}{"status": "500", "body": ""},
	})
	require.NoError(t, err)

	resp := &Response{Status: 200, Body: body, Headers: Headers{"Content-Type": mediatorContentType}}

	adapter.Apply(rc, resp, "")

	require.Error(t, rc.Err)
	assert.True(t, rc.AutoRetry)
}

func TestResponseAdapter_MalformedMediatorBodyFallsBackToPlain(t *testing.T) {
	adapter := NewResponseAdapter(logger.NopLogger())
	rc := &RequestContext{}
	resp := &Response{
		Status:  200,
		Body:    []byte("not json"),
		Headers: Headers{"Content-Type": mediatorContentType},
	}

	adapter.Apply(rc, resp, "")

	assert.Nil(t, rc.MediatorResponse)
	require.NotNil(t, rc.Response)
	assert.Equal(t, "not json", string(rc.Response.Body))
}
