package router

import (
	"fmt"
	"net/http"

	"github.com/openhie/txrouter/pkg/errors"
)

// The dispatch error taxonomy, expressed as named sentinels over the
// shared errors.Error type so HandleError/ToErrorResponse work the same
// way here as everywhere else in the service.
var (
	ErrConfigBase = errors.NewError("ROUTER_CONFIG_ERROR", "invalid channel or route configuration", http.StatusInternalServerError).AsFatal()

	ErrKeystoreBase = errors.NewError("ROUTER_KEYSTORE_ERROR", "failed to acquire keystore", http.StatusInternalServerError).AsFatal()

	ErrTransportBase = errors.NewError("ROUTER_TRANSPORT_ERROR", "downstream transport failed", http.StatusBadGateway).AsRetryable()

	ErrTimeoutBase = errors.NewError("ROUTER_TIMEOUT_ERROR", "downstream request timed out", http.StatusGatewayTimeout).AsRetryable()

	ErrPersistenceBase = errors.NewError("ROUTER_PERSISTENCE_ERROR", "failed to persist orchestration record", http.StatusInternalServerError).AsRetryable()

	ErrEventBase = errors.NewError("ROUTER_EVENT_ERROR", "failed to save route events", http.StatusInternalServerError).AsRetryable()

	ErrMediatorBase = errors.NewError("ROUTER_MEDIATOR_ERROR", "mediator-framed response reported an error", http.StatusBadGateway).AsFatal()
)

// ErrMultiplePrimary is the specific ConfigError the preflight check
// surfaces when more than one enabled route claims to be primary.
func ErrMultiplePrimary(channelName string) error {
	return ErrConfigBase.WithDetail("message", fmt.Sprintf("multiple primary routes configured for channel %q", channelName))
}

// ErrMalformedPathTransform is the ConfigError for a pathTransform
// expression with fewer than two segments.
func ErrMalformedPathTransform(expr string) error {
	return ErrConfigBase.WithDetail("message", fmt.Sprintf("malformed path transform expression: %q", expr))
}

// ErrTimeoutFor builds the standard timeout message.
func ErrTimeoutFor(ms int64) error {
	return ErrTimeoutBase.WithDetail("message", fmt.Sprintf("Request took longer than %dms", ms))
}

// NewTransportError wraps a raw transport failure (network, TLS, bus
// publish) as a TransportError.
func NewTransportError(cause error) error {
	return errors.Wrap(cause, ErrTransportBase)
}

// toRouteError renders any error into the taxonomy's {message, stack?}
// shape used on orchestration and secondary-route records.
func toRouteError(err error) *RouteError {
	if err == nil {
		return nil
	}
	return &RouteError{Message: err.Error()}
}
