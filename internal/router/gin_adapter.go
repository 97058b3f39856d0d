package router

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openhie/txrouter/internal/logger"
)

// ChannelMatcher resolves the channel governing an inbound request,
// keeping this package free of a dependency on whatever admin-API
// cache implements the lookup.
type ChannelMatcher func(method, path string) (*Channel, bool)

// NewGinHandler adapts an inbound gin request into a RequestContext,
// runs it through the shim, and writes back whatever response the
// dispatch settled on. Requests matching no configured channel never
// reach the shim.
func NewGinHandler(shim *OuterShim, match ChannelMatcher, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		channel, ok := match(c.Request.Method, c.Request.URL.Path)
		if !ok {
			c.String(http.StatusNotFound, "No channel configured for %s %s", c.Request.Method, c.Request.URL.Path)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, "failed to read request body")
			return
		}

		headers := make(Headers, len(c.Request.Header))
		for k := range c.Request.Header {
			headers[k] = c.Request.Header.Get(k)
		}

		transactionID := c.GetHeader("X-Transaction-ID")
		if transactionID == "" {
			transactionID = uuid.NewString()
		}

		rc := &RequestContext{
			TransactionID:     transactionID,
			RequestTimestamp:  time.Now(),
			Method:            c.Request.Method,
			Path:              c.Request.URL.Path,
			QueryString:       c.Request.URL.RawQuery,
			Headers:           headers,
			Body:              body,
			AuthorisedChannel: channel,
		}

		shim.Middleware(c.Request.Context(), rc, func() {})

		writeResponse(c, rc, log)
	}
}

func writeResponse(c *gin.Context, rc *RequestContext, log logger.Logger) {
	resp := rc.Response
	if resp == nil {
		c.Status(http.StatusBadGateway)
		return
	}

	for _, cookie := range rc.Cookies {
		httpCookie := &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HTTPOnly == "true",
		}
		if cookie.MaxAge != nil {
			httpCookie.MaxAge = *cookie.MaxAge
		}
		if cookie.Expires != nil {
			httpCookie.Expires = *cookie.Expires
		}
		http.SetCookie(c.Writer, httpCookie)
	}

	for k, v := range resp.Headers {
		c.Header(k, v)
	}

	if log != nil {
		log.DebugwCtx(context.Background(), "Dispatch settled",
			"transaction_id", rc.TransactionID,
			"status", resp.Status,
			"channel", rc.channelName(),
		)
	}

	contentType, _ := resp.Headers.Get("Content-Type")
	c.Data(resp.Status, contentType, resp.Body)
}
