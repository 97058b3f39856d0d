package management

import (
	"fmt"
	"regexp"

	"github.com/openhie/txrouter/internal/router"
)

var validRouteTypes = map[string]bool{
	"":     true,
	"http": true,
	"bus":  true,
}

var validRouteStatuses = map[string]bool{
	"":         true,
	"enabled":  true,
	"disabled": true,
}

func ValidateCreateChannel(req CreateChannelRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.URLPattern == "" {
		return fmt.Errorf("url_pattern is required")
	}
	if _, err := regexp.Compile(req.URLPattern); err != nil {
		return fmt.Errorf("invalid url_pattern: %w", err)
	}
	if len(req.Routes) == 0 {
		return fmt.Errorf("at least one route is required")
	}
	if req.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must be non-negative")
	}
	return validateRoutes(req.Routes)
}

func ValidateUpdateChannel(req UpdateChannelRequest) error {
	if req.URLPattern != nil {
		if *req.URLPattern == "" {
			return fmt.Errorf("url_pattern cannot be empty")
		}
		if _, err := regexp.Compile(*req.URLPattern); err != nil {
			return fmt.Errorf("invalid url_pattern: %w", err)
		}
	}
	if req.TimeoutMs != nil && *req.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must be non-negative")
	}
	if req.Routes != nil {
		if len(*req.Routes) == 0 {
			return fmt.Errorf("at least one route is required")
		}
		if err := validateRoutes(*req.Routes); err != nil {
			return err
		}
	}
	return nil
}

func validateRoutes(routes []RouteConfig) error {
	primaries := 0
	names := make(map[string]bool, len(routes))

	for i, r := range routes {
		if r.Name == "" {
			return fmt.Errorf("route[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("route[%d]: duplicate route name %q", i, r.Name)
		}
		names[r.Name] = true

		if !validRouteTypes[r.Type] {
			return fmt.Errorf("route[%d]: invalid type %q, allowed: http, bus", i, r.Type)
		}
		if !validRouteStatuses[r.Status] {
			return fmt.Errorf("route[%d]: invalid status %q, allowed: enabled, disabled", i, r.Status)
		}

		if r.Type == "bus" {
			if r.Topic == "" {
				return fmt.Errorf("route[%d]: topic is required for bus routes", i)
			}
		} else if r.Host == "" {
			return fmt.Errorf("route[%d]: host is required for http routes", i)
		}

		if r.PathTransform != "" {
			if _, err := router.TransformPath("/", r.PathTransform, ""); err != nil {
				return fmt.Errorf("route[%d]: invalid path_transform: %w", i, err)
			}
		}

		if r.Primary && (r.Status == "disabled") {
			return fmt.Errorf("route[%d]: a disabled route cannot be primary", i)
		}

		if r.Primary {
			primaries++
		}
	}

	if primaries > 1 {
		return fmt.Errorf("at most one route may be marked primary, found %d", primaries)
	}

	return nil
}
