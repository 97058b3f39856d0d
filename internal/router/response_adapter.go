package router

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/openhie/txrouter/internal/logger"
)

const mediatorContentType = "application/json+openhim"
const transactionIDHeader = "X-OpenHIM-TransactionID"

// ResponseAdapter translates a downstream response into the context's
// outbound response. It is applied only to the primary route.
type ResponseAdapter struct {
	logger logger.Logger
}

func NewResponseAdapter(log logger.Logger) *ResponseAdapter {
	return &ResponseAdapter{logger: log}
}

// Apply adapts resp onto rc, handling the mediator-framed response
// extension when the content type matches.
func (a *ResponseAdapter) Apply(rc *RequestContext, resp *Response, inboundTransactionID string) {
	if contentType, ok := resp.Headers.Get("content-type"); ok && containsMediatorContentType(contentType) {
		a.applyMediatorFramed(rc, resp, inboundTransactionID)
		return
	}
	a.applyPlain(rc, resp, inboundTransactionID)
}

// containsMediatorContentType is the substring discriminator shared by
// the primary response adapter and the secondary-route recorder.
func containsMediatorContentType(contentType string) bool {
	return strings.Contains(contentType, mediatorContentType)
}

// parseMediatorResponse parses a mediator-framed body, reporting ok=false
// on malformed JSON so callers can fall back to treating it as plain.
func parseMediatorResponse(body []byte) (MediatorResponse, bool) {
	var mr MediatorResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return MediatorResponse{}, false
	}
	return mr, true
}

func (a *ResponseAdapter) applyMediatorFramed(rc *RequestContext, resp *Response, inboundTransactionID string) {
	mr, ok := parseMediatorResponse(resp.Body)
	if !ok {
		if a.logger != nil {
			a.logger.Errorw("failed to parse mediator-framed response", "status", resp.Status)
		}
		a.applyPlain(rc, resp, inboundTransactionID)
		return
	}

	rc.MediatorResponse = &mr
	if mr.Error != nil {
		rc.Err = &RouteError{Message: mr.Error.Message}
		rc.AutoRetry = true
	}

	status, ok := resolveStatus(mr.Response.Status)
	if !ok {
		if a.logger != nil {
			a.logger.Warnw("non-numeric mediator response status, using status 0", "status", mr.Response.Status)
		}
	}

	headers := make(Headers, len(mr.Response.Headers))
	for k, v := range mr.Response.Headers {
		headers[k] = v
	}

	embedded := &Response{
		Status:    status,
		Headers:   headers,
		Body:      []byte(mr.Response.Body),
		Timestamp: resp.Timestamp,
	}
	a.applyPlain(rc, embedded, inboundTransactionID)
}

func (a *ResponseAdapter) applyPlain(rc *RequestContext, resp *Response, inboundTransactionID string) {
	out := &Response{
		Status:    resp.Status,
		Body:      resp.Body,
		Timestamp: resp.Timestamp,
		Headers:   Headers{},
	}

	if inboundTransactionID != "" {
		resp.Headers[transactionIDHeader] = inboundTransactionID
	}

	for key, value := range resp.Headers {
		lower := strings.ToLower(key)
		switch lower {
		case "set-cookie":
			rc.Cookies = append(rc.Cookies, parseSetCookie(value)...)
		case "location":
			// A 3xx location is a redirect instruction for the outer
			// framework; outside that range it is just an ordinary
			// header being relayed, but both cases surface identically
			// on this record (the outer framework decides how to act
			// on status+Location together).
			out.Headers["Location"] = value
			out.Redirect = resp.Status >= 300 && resp.Status < 400
		case "content-type":
			out.Headers["Content-Type"] = value
		case "content-length", "content-encoding", "transfer-encoding":
			// re-derived by the outer framework; dropped here.
		default:
			out.Headers[key] = value
		}
	}

	rc.Response = out
}

// resolveStatus mirrors the source's isNaN(response.status) quirk:
// a numeric string is parsed and used; anything else yields (0, false)
// so the caller can log it and decide how to surface it,
// rather than silently coercing to the parsed (possibly garbage) value.
func resolveStatus(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// parseSetCookie extracts the reserved cookie options, shared across
// every remaining name/value pair in the string, each emitted as its
// own Cookie. Unknown options are never option overrides.
func parseSetCookie(raw string) []Cookie {
	parts := strings.Split(raw, ";")
	opts := Cookie{}
	var names []string
	var values []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var key, value string
		if idx := strings.Index(part, "="); idx >= 0 {
			key = part[:idx]
			value = part[idx+1:]
		} else {
			key = part
		}
		lowerKey := strings.ToLower(key)

		switch lowerKey {
		case "max-age":
			if n, err := strconv.Atoi(value); err == nil {
				opts.MaxAge = &n
			}
		case "expires":
			if t, err := http.ParseTime(value); err == nil {
				opts.Expires = &t
			}
		case "path":
			opts.Path = value
		case "domain":
			opts.Domain = value
		case "secure":
			opts.Secure = true
		case "signed":
			opts.Signed = true
		case "overwrite":
			opts.Overwrite = value == "true"
		case "httponly":
			opts.HTTPOnly = value
		default:
			names = append(names, key)
			values = append(values, value)
		}
	}

	cookies := make([]Cookie, len(names))
	for i := range names {
		c := opts
		c.Name = names[i]
		c.Value = values[i]
		cookies[i] = c
	}
	return cookies
}
