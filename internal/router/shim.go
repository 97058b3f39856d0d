package router

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// OuterShim is the thin seam between an inbound framework request and
// the dispatch engine: it rejects disallowed methods before any I/O and
// otherwise hands the request straight to Dispatch.
type OuterShim struct {
	engine *DispatchEngine
}

func NewOuterShim(engine *DispatchEngine) *OuterShim {
	return &OuterShim{engine: engine}
}

// Route is the route(ctx, next) entry point: next is invoked exactly
// once, either immediately after a 405 is set or once Dispatch's done
// callback fires.
func (s *OuterShim) Route(ctx context.Context, rc *RequestContext, next func()) {
	channel := rc.AuthorisedChannel
	if !isMethodAllowed(rc.Method, channel) {
		rc.Response = &Response{
			Status:    405,
			Headers:   Headers{},
			Body:      []byte(methodNotAllowedBody(rc.Method, channel)),
			Timestamp: time.Now(),
		}
		next()
		return
	}

	if channel != nil {
		for _, r := range channel.Enabled() {
			if r.Timeout <= 0 {
				r.Timeout = channel.Timeout
			}
		}
	}

	s.engine.Dispatch(ctx, rc, func(error) {
		next()
	})
}

// Middleware is the middleware(ctx, next) entry point: it calls Route,
// waits for it to return, then calls next. Route returns only once
// Dispatch has finished wave B and finalization, so next runs after the
// secondaries have settled, not as soon as the primary response is applied.
func (s *OuterShim) Middleware(ctx context.Context, rc *RequestContext, next func()) {
	done := make(chan struct{})
	s.Route(ctx, rc, func() { close(done) })
	<-done
	next()
}

// isMethodAllowed is permissive by default: an empty method, or a
// channel with no configured method list, always passes.
func isMethodAllowed(method string, channel *Channel) bool {
	if method == "" {
		return true
	}
	if channel == nil || len(channel.Methods) == 0 {
		return true
	}
	upper := strings.ToUpper(method)
	for _, m := range channel.Methods {
		if strings.ToUpper(m) == upper {
			return true
		}
	}
	return false
}

func methodNotAllowedBody(method string, channel *Channel) string {
	allowed := ""
	if channel != nil {
		allowed = strings.Join(channel.Methods, ", ")
	}
	return fmt.Sprintf("Request with method %s is not allowed. Only %s methods are allowed", method, allowed)
}
