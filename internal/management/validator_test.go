package management

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRoute(name string) RouteConfig {
	return RouteConfig{Name: name, Type: "http", Host: "localhost", Primary: true}
}

func TestValidateCreateChannel_RequiresNameAndPattern(t *testing.T) {
	err := ValidateCreateChannel(CreateChannelRequest{})
	assert.ErrorContains(t, err, "name is required")

	err = ValidateCreateChannel(CreateChannelRequest{Name: "fhir"})
	assert.ErrorContains(t, err, "url_pattern is required")
}

func TestValidateCreateChannel_RejectsInvalidURLPattern(t *testing.T) {
	err := ValidateCreateChannel(CreateChannelRequest{
		Name:       "fhir",
		URLPattern: "[",
		Routes:     []RouteConfig{validRoute("primary")},
	})
	assert.ErrorContains(t, err, "invalid url_pattern")
}

func TestValidateCreateChannel_RequiresAtLeastOneRoute(t *testing.T) {
	err := ValidateCreateChannel(CreateChannelRequest{Name: "fhir", URLPattern: "^/fhir"})
	assert.ErrorContains(t, err, "at least one route is required")
}

func TestValidateCreateChannel_Valid(t *testing.T) {
	err := ValidateCreateChannel(CreateChannelRequest{
		Name:       "fhir",
		URLPattern: "^/fhir",
		Routes:     []RouteConfig{validRoute("primary")},
	})
	assert.NoError(t, err)
}

func TestValidateRoutes_DuplicateNames(t *testing.T) {
	err := validateRoutes([]RouteConfig{validRoute("a"), {Name: "a", Type: "http", Host: "h"}})
	assert.ErrorContains(t, err, "duplicate route name")
}

func TestValidateRoutes_MoreThanOnePrimary(t *testing.T) {
	r1 := validRoute("a")
	r2 := validRoute("b")
	err := validateRoutes([]RouteConfig{r1, r2})
	assert.ErrorContains(t, err, "at most one route may be marked primary")
}

func TestValidateRoutes_DisabledPrimaryRejected(t *testing.T) {
	r := validRoute("a")
	r.Status = "disabled"
	err := validateRoutes([]RouteConfig{r})
	assert.ErrorContains(t, err, "cannot be primary")
}

func TestValidateRoutes_BusRequiresTopic(t *testing.T) {
	err := validateRoutes([]RouteConfig{{Name: "a", Type: "bus"}})
	assert.ErrorContains(t, err, "topic is required")
}

func TestValidateRoutes_HTTPRequiresHost(t *testing.T) {
	err := validateRoutes([]RouteConfig{{Name: "a", Type: "http"}})
	assert.ErrorContains(t, err, "host is required")
}

func TestValidateRoutes_InvalidType(t *testing.T) {
	err := validateRoutes([]RouteConfig{{Name: "a", Type: "grpc", Host: "h"}})
	assert.ErrorContains(t, err, "invalid type")
}

func TestValidateRoutes_InvalidPathTransform(t *testing.T) {
	r := validRoute("a")
	r.PathTransform = "not-an-expression"
	err := validateRoutes([]RouteConfig{r})
	assert.ErrorContains(t, err, "invalid path_transform")
}

func TestValidateUpdateChannel_EmptyURLPatternRejected(t *testing.T) {
	empty := ""
	err := ValidateUpdateChannel(UpdateChannelRequest{URLPattern: &empty})
	assert.ErrorContains(t, err, "url_pattern cannot be empty")
}

func TestValidateUpdateChannel_NilFieldsPassThrough(t *testing.T) {
	err := ValidateUpdateChannel(UpdateChannelRequest{})
	assert.NoError(t, err)
}

func TestValidateUpdateChannel_NegativeTimeout(t *testing.T) {
	neg := -1
	err := ValidateUpdateChannel(UpdateChannelRequest{TimeoutMs: &neg})
	assert.ErrorContains(t, err, "timeout_ms must be non-negative")
}
