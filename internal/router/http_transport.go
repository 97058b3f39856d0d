package router

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openhie/txrouter/internal/logger"
	"github.com/openhie/txrouter/pkg/circuitbreaker"
)

var charsetPattern = regexp.MustCompile(`(?i)charset=([^;,\r\n]+)`)

// HTTPTransportAdapter issues one outbound HTTP/HTTPS request per call,
// decompresses the body, and renders a structured Response. It never
// branches on route.Type beyond being the http-tagged member of the
// {http, bus} transport sum.
type HTTPTransportAdapter struct {
	logger         logger.Logger
	defaultTimeout time.Duration
	breakers       map[string]*circuitbreaker.Wrapper
	mu             sync.Mutex
}

func NewHTTPTransportAdapter(log logger.Logger, defaultTimeout time.Duration) *HTTPTransportAdapter {
	return &HTTPTransportAdapter{
		logger:         log,
		defaultTimeout: defaultTimeout,
		breakers:       make(map[string]*circuitbreaker.Wrapper),
	}
}

// breakerFor returns (creating if needed) a per-route circuit breaker,
// keyed by route name so each downstream route has its own breaker.
// Safe for the concurrent per-route goroutines of a dispatch.
func (a *HTTPTransportAdapter) breakerFor(route *Route) *circuitbreaker.Wrapper {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cb, ok := a.breakers[route.Name]; ok {
		return cb
	}
	cb := circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("route:" + route.Name))
	a.breakers[route.Name] = cb
	return cb
}

func (a *HTTPTransportAdapter) Send(ctx context.Context, route *Route, opts *RequestOptions, body []byte) (*Response, error) {
	cb := a.breakerFor(route)
	result, err := cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return a.send(ctx, route, opts, body)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

func (a *HTTPTransportAdapter) send(ctx context.Context, route *Route, opts *RequestOptions, body []byte) (*Response, error) {
	timeout := route.Timeout
	if timeout <= 0 {
		timeout = a.defaultTimeout
	}

	client, err := a.clientFor(route, opts, timeout)
	if err != nil {
		return nil, NewTransportError(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scheme := "http"
	if route.Secured {
		scheme = "https"
	}
	url := scheme + "://" + opts.Hostname
	if opts.Port != 0 {
		url = url + ":" + strconv.Itoa(opts.Port)
	}
	url = url + opts.Path

	var reader io.Reader
	if opts.Method == http.MethodPost || opts.Method == http.MethodPut {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, opts.Method, url, reader)
	if err != nil {
		return nil, NewTransportError(err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.Auth != "" {
		req.Header.Set("Authorization", "Basic "+opts.Auth)
	}

	resp, err := client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeoutFor(timeout.Milliseconds())
		}
		return nil, NewTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(err)
	}

	decoded, err := decodeBody(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, NewTransportError(err)
	}

	headers := make(Headers, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &Response{
		Status:    resp.StatusCode,
		Headers:   headers,
		Body:      renderCharset(decoded, resp.Header.Get("Content-Type")),
		Timestamp: time.Now(),
	}, nil
}

func (a *HTTPTransportAdapter) clientFor(route *Route, opts *RequestOptions, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{}
	if route.Secured {
		tlsCfg := &tls.Config{InsecureSkipVerify: !opts.RejectUnauthorized}
		if len(opts.Key) > 0 && len(opts.Cert) > 0 {
			cert, err := tls.X509KeyPair(opts.Cert, opts.Key)
			if err != nil {
				return nil, err
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}
		if len(opts.CA) > 0 {
			pool := x509.NewCertPool()
			pool.AppendCertsFromPEM(opts.CA)
			tlsCfg.RootCAs = pool
		}
		transport.TLSClientConfig = tlsCfg
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// decodeBody streams gzip/deflate decompression; any other encoding is
// returned as-is (raw body chunks concatenated, which io.ReadAll already
// did for us).
func decodeBody(raw []byte, contentEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(bytes.NewReader(raw))
		defer r.Close()
		return io.ReadAll(r)
	default:
		return raw, nil
	}
}

// renderCharset reads the charset declared in the content type,
// defaulting to utf-8. No charset is transcoded: the body is returned
// unchanged whatever the declared charset, so a non-utf-8 body reaches
// callers as its raw bytes.
func renderCharset(body []byte, contentType string) []byte {
	m := charsetPattern.FindStringSubmatch(contentType)
	if m == nil {
		return body
	}
	charset := strings.ToLower(strings.TrimSpace(m[1]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return body
	}
	return body
}
