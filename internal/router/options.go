package router

import (
	"encoding/base64"
	"fmt"
)

// RequestOptions is the outbound descriptor produced for one route
// dispatch, independent of transport.
type RequestOptions struct {
	Method  string
	Path    string
	Headers Headers

	// HTTP-only.
	Hostname           string
	Port               int
	RejectUnauthorized bool
	Key                []byte
	Cert               []byte
	CA                 []byte
	Auth               string

	// Bus-only.
	Brokers []string
	Topic   string
}

// BuildRequestOptions composes the per-route outbound descriptor from
// the inbound context, the route, the keystore, and the already
// path-transformed effective path.
func BuildRequestOptions(ctx *RequestContext, route *Route, ks *KeystoreData, effectivePath string, kafkaBrokers []string) (*RequestOptions, error) {
	headers := ctx.Headers.Clone()
	headers.Del("host")
	if !route.ForwardAuthHeader {
		headers.Del("authorization")
	}

	path := effectivePath
	if ctx.QueryString != "" {
		path = path + "?" + ctx.QueryString
	}

	opts := &RequestOptions{
		Method:  ctx.Method,
		Path:    path,
		Headers: headers,
	}

	switch route.EffectiveType() {
	case RouteTypeBus:
		opts.Brokers = kafkaBrokers
		opts.Topic = route.Topic
	default:
		opts.Hostname = route.Host
		opts.Port = route.Port
		opts.RejectUnauthorized = true
		if ks != nil {
			opts.Key = ks.Key
			opts.Cert = ks.Cert.Data
		}
		if route.Cert != "" && ks != nil {
			if ca, ok := ks.CA[route.Cert]; ok {
				opts.CA = ca.Data
			}
		}
		if route.Username != "" && route.Password != "" {
			creds := fmt.Sprintf("%s:%s", route.Username, route.Password)
			opts.Auth = base64.StdEncoding.EncodeToString([]byte(creds))
		}
	}

	return opts, nil
}
