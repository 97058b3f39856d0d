package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhie/txrouter/internal/logger"
)

type fakeKeystore struct{}

func (fakeKeystore) GetKeystore(ctx context.Context) (*KeystoreData, error) {
	return &KeystoreData{}, nil
}

type fakePersistence struct {
	mu              sync.Mutex
	stored          []SecondaryRouteRecord
	finalizedStatus int
}

func (f *fakePersistence) StoreNonPrimaryResponse(ctx context.Context, transactionID string, record SecondaryRouteRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, record)
	return nil
}

func (f *fakePersistence) SetFinalStatus(ctx context.Context, rc *RequestContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rc.Response != nil {
		f.finalizedStatus = rc.Response.Status
	}
	return nil
}

type fakeEvents struct {
	mu    sync.Mutex
	saved []Event
}

func (f *fakeEvents) CreateSecondaryRouteEvents(ctx context.Context, transactionID string, requestTimestamp time.Time, channel *Channel, routes []SecondaryRouteRecord, attempt int) ([]Event, error) {
	events := make([]Event, len(routes))
	for i, r := range routes {
		events[i] = Event{TransactionID: transactionID, RequestTimestamp: requestTimestamp, Attempt: attempt, Route: r}
	}
	return events, nil
}

func (f *fakeEvents) SaveEvents(ctx context.Context, events []Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, events...)
	return nil
}

func routeToServer(t *testing.T, srv *httptest.Server, name string, primary bool) *Route {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return &Route{
		Name:    name,
		Type:    RouteTypeHTTP,
		Status:  RouteStatusEnabled,
		Primary: primary,
		Host:    u.Hostname(),
		Port:    port,
		Timeout: 2 * time.Second,
	}
}

func newTestEngine(persistence Persistence, events Events) *DispatchEngine {
	log := logger.NopLogger()
	httpTransport := NewHTTPTransportAdapter(log, 2*time.Second)
	busTransport := NewBusTransportAdapter(nil, nil)
	responseAdapter := NewResponseAdapter(log)
	return NewDispatchEngine(httpTransport, busTransport, responseAdapter, fakeKeystore{}, persistence, events, log)
}

func TestDispatch_PrimaryResponseBecomesClientResponse(t *testing.T) {
	primarySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("primary-body"))
	}))
	defer primarySrv.Close()

	channel := &Channel{Name: "fhir", Timeout: 2 * time.Second, Routes: []*Route{
		routeToServer(t, primarySrv, "primary", true),
	}}

	persistence := &fakePersistence{}
	events := &fakeEvents{}
	engine := newTestEngine(persistence, events)

	rc := &RequestContext{
		TransactionID:     "tx-1",
		RequestTimestamp:  time.Now(),
		Method:            http.MethodGet,
		Path:              "/fhir/Patient",
		Headers:           Headers{},
		AuthorisedChannel: channel,
	}

	done := make(chan error, 1)
	engine.Dispatch(context.Background(), rc, func(err error) { done <- err })
	require.NoError(t, <-done)

	require.NotNil(t, rc.Response)
	assert.Equal(t, http.StatusCreated, rc.Response.Status)
	assert.Equal(t, "primary-body", string(rc.Response.Body))
	require.Len(t, rc.Orchestrations, 1)
	assert.Equal(t, "primary", rc.Orchestrations[0].Name)
}

func TestDispatch_SecondaryDoesNotAffectClientResponse(t *testing.T) {
	primarySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer primarySrv.Close()

	var secondaryHit sync.WaitGroup
	secondaryHit.Add(1)
	secondarySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer secondaryHit.Done()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer secondarySrv.Close()

	channel := &Channel{Name: "fhir", Timeout: 2 * time.Second, Routes: []*Route{
		routeToServer(t, primarySrv, "primary", true),
		routeToServer(t, secondarySrv, "audit", false),
	}}

	persistence := &fakePersistence{}
	events := &fakeEvents{}
	engine := newTestEngine(persistence, events)

	rc := &RequestContext{
		TransactionID:     "tx-2",
		RequestTimestamp:  time.Now(),
		Method:            http.MethodGet,
		Path:              "/fhir/Patient",
		Headers:           Headers{},
		AuthorisedChannel: channel,
	}

	done := make(chan error, 1)
	engine.Dispatch(context.Background(), rc, func(err error) { done <- err })
	require.NoError(t, <-done)

	assert.Equal(t, http.StatusOK, rc.Response.Status)

	secondaryHit.Wait()
	persistence.mu.Lock()
	assert.Len(t, persistence.stored, 1)
	persistence.mu.Unlock()
}

func TestDispatch_WaveBWaitsForPrimaryAndChecksStatus(t *testing.T) {
	primarySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer primarySrv.Close()

	gatedHit := make(chan struct{}, 1)
	gatedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatedHit <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer gatedSrv.Close()

	gated := routeToServer(t, gatedSrv, "wave-b", false)
	gated.WaitPrimaryResponse = true
	gated.StatusCodesCheck = "2*"

	channel := &Channel{Name: "fhir", Timeout: 2 * time.Second, Routes: []*Route{
		routeToServer(t, primarySrv, "primary", true),
		gated,
	}}

	persistence := &fakePersistence{}
	events := &fakeEvents{}
	engine := newTestEngine(persistence, events)

	rc := &RequestContext{
		TransactionID:     "tx-3",
		RequestTimestamp:  time.Now(),
		Method:            http.MethodGet,
		Path:              "/fhir/Patient",
		Headers:           Headers{},
		AuthorisedChannel: channel,
	}

	done := make(chan error, 1)
	engine.Dispatch(context.Background(), rc, func(err error) { done <- err })
	require.NoError(t, <-done)

	select {
	case <-gatedHit:
	case <-time.After(2 * time.Second):
		t.Fatal("gated wave-B route was never dispatched")
	}
}

func TestDispatch_MultiplePrimariesRejected(t *testing.T) {
	channel := &Channel{Name: "fhir", Routes: []*Route{
		{Name: "a", Type: RouteTypeHTTP, Primary: true, Status: RouteStatusEnabled, Host: "localhost"},
		{Name: "b", Type: RouteTypeHTTP, Primary: true, Status: RouteStatusEnabled, Host: "localhost"},
	}}

	engine := newTestEngine(&fakePersistence{}, &fakeEvents{})
	rc := &RequestContext{TransactionID: "tx-4", Headers: Headers{}, AuthorisedChannel: channel}

	done := make(chan error, 1)
	engine.Dispatch(context.Background(), rc, func(err error) { done <- err })
	assert.Error(t, <-done)
}
