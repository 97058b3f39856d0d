package channelstore

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/openhie/txrouter/internal/logger"
	"github.com/openhie/txrouter/internal/management"
	"github.com/openhie/txrouter/internal/router"
	"github.com/openhie/txrouter/pkg/metrics"
)

// compiledChannel pairs a channel's matching regexp with the runtime
// router.Channel built from it, so Match avoids recompiling on every
// request.
type compiledChannel struct {
	pattern *regexp.Regexp
	channel *router.Channel
}

// Store is the in-memory channel cache the dispatch process consults
// per request. It is populated from the admin API's Mongo-backed
// channel repository and refreshed either on restart or when a
// channel_updated event arrives on the config-update topic.
type Store struct {
	repo           management.Repository
	defaultTimeout time.Duration
	logger         logger.Logger

	mu       sync.RWMutex
	channels []compiledChannel
}

func NewStore(repo management.Repository, defaultTimeout time.Duration, log logger.Logger) *Store {
	return &Store{repo: repo, defaultTimeout: defaultTimeout, logger: log}
}

// ReloadChannels satisfies internal/config_handler.ConfigReloader.
func (s *Store) ReloadChannels(ctx context.Context) error {
	return s.Load(ctx)
}

func (s *Store) Load(ctx context.Context) error {
	docs, err := s.repo.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to load channels: %w", err)
	}

	compiled := make([]compiledChannel, 0, len(docs))
	for _, doc := range docs {
		pattern, err := regexp.Compile(doc.URLPattern)
		if err != nil {
			if s.logger != nil {
				s.logger.WarnwCtx(ctx, "Skipping channel with invalid url_pattern", "channel", doc.Name, "error", err)
			}
			continue
		}

		compiled = append(compiled, compiledChannel{
			pattern: pattern,
			channel: toRouterChannel(doc, s.defaultTimeout),
		})
	}

	s.mu.Lock()
	s.channels = compiled
	s.mu.Unlock()

	metrics.SetActiveChannels(len(compiled))

	return nil
}

// Match returns the first configured channel whose URL pattern matches
// path and, when the channel declares a method allow-list, whose
// methods include method.
func (s *Store) Match(method, path string) (*router.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cc := range s.channels {
		if !cc.pattern.MatchString(path) {
			continue
		}
		if len(cc.channel.Methods) > 0 && !containsMethod(cc.channel.Methods, method) {
			continue
		}
		return cc.channel, true
	}
	return nil, false
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

func toRouterChannel(doc management.Channel, defaultTimeout time.Duration) *router.Channel {
	timeout := defaultTimeout
	if doc.TimeoutMs > 0 {
		timeout = time.Duration(doc.TimeoutMs) * time.Millisecond
	}

	routes := make([]*router.Route, len(doc.Routes))
	for i, rc := range doc.Routes {
		routeTimeout := timeout
		if rc.TimeoutMs > 0 {
			routeTimeout = time.Duration(rc.TimeoutMs) * time.Millisecond
		}

		routes[i] = &router.Route{
			Name:                rc.Name,
			Status:              router.RouteStatus(rc.Status),
			Primary:             rc.Primary,
			Type:                router.RouteType(rc.Type),
			Host:                rc.Host,
			Port:                rc.Port,
			Secured:             rc.Secured,
			Path:                rc.Path,
			PathTransform:       rc.PathTransform,
			Topic:               rc.Topic,
			ClientID:            rc.ClientID,
			Timeout:             routeTimeout,
			Cert:                rc.Cert,
			Username:            rc.Username,
			Password:            rc.Password,
			ForwardAuthHeader:   rc.ForwardAuthHeader,
			WaitPrimaryResponse: rc.WaitPrimaryResponse,
			StatusCodesCheck:    rc.StatusCodesCheck,
		}
	}

	return &router.Channel{
		ID:         doc.ID,
		Name:       doc.Name,
		Routes:     routes,
		Methods:    doc.Methods,
		Timeout:    timeout,
		URLPattern: doc.URLPattern,
	}
}
