package router

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/openhie/txrouter/internal/logger"
)

// DispatchEngine fans an inbound request out to a channel's routes. One
// goroutine per route carries out the transport call; every mutation of
// rc.Orchestrations and rc.Routes happens back on the goroutine that
// called Dispatch, never from within a transport callback.
type DispatchEngine struct {
	http            *HTTPTransportAdapter
	bus             *BusTransportAdapter
	responseAdapter *ResponseAdapter
	keystore        Keystore
	persistence     Persistence
	events          Events
	logger          logger.Logger
}

func NewDispatchEngine(httpTransport *HTTPTransportAdapter, busTransport *BusTransportAdapter, responseAdapter *ResponseAdapter, keystore Keystore, persistence Persistence, events Events, log logger.Logger) *DispatchEngine {
	return &DispatchEngine{
		http:            httpTransport,
		bus:             busTransport,
		responseAdapter: responseAdapter,
		keystore:        keystore,
		persistence:     persistence,
		events:          events,
		logger:          log,
	}
}

// routeOutcome is what a transport goroutine hands back to the
// dispatcher goroutine for recording.
type routeOutcome struct {
	route *Route
	req   OrchestrationRequest
	resp  *Response
	err   error
}

// Dispatch runs the full preflight/wave-A/wave-B/finalize pipeline for
// one transaction and invokes done exactly once, as soon as the primary
// route's response has been applied to rc — not when secondaries finish.
func (e *DispatchEngine) Dispatch(ctx context.Context, rc *RequestContext, done func(error)) {
	channel := rc.AuthorisedChannel

	enabled := channel.Enabled()

	var primaries []*Route
	for _, r := range enabled {
		if r.Primary {
			primaries = append(primaries, r)
		}
	}
	if len(primaries) > 1 {
		done(ErrMultiplePrimary(channel.Name))
		return
	}
	var primary *Route
	if len(primaries) == 1 {
		primary = primaries[0]
		rc.PrimaryRoute = primary
	}

	for _, r := range enabled {
		if r.Timeout <= 0 {
			r.Timeout = channel.Timeout
		}
	}

	ks, err := e.keystore.GetKeystore(ctx)
	if err != nil {
		done(err)
		return
	}

	var waveA, waveB []*Route
	for _, r := range enabled {
		if r == primary {
			continue
		}
		if r.WaitPrimaryResponse {
			waveB = append(waveB, r)
		} else {
			waveA = append(waveA, r)
		}
	}

	e.runWaveA(ctx, rc, ks, primary, waveA, done)

	status := 0
	if rc.Response != nil {
		status = rc.Response.Status
	}

	var gated []*Route
	for _, r := range waveB {
		if matches(r.StatusCodesCheck, status) {
			gated = append(gated, r)
		}
	}
	e.runSecondaryBatch(ctx, rc, ks, gated)

	e.finalize(ctx, rc)
}

// runWaveA starts the primary and every non-waiting secondary
// concurrently. The primary's settlement calls done as soon as it is
// known, independent of its wave-A siblings; the call does not return
// until every wave-A attempt (primary included) has settled, since
// wave B must not start before wave A has fully joined.
func (e *DispatchEngine) runWaveA(ctx context.Context, rc *RequestContext, ks *KeystoreData, primary *Route, secondaries []*Route, done func(error)) {
	secondaryCh := make(chan routeOutcome, len(secondaries))
	var eg errgroup.Group
	for _, r := range secondaries {
		route := r
		eg.Go(func() error {
			req, resp, err := e.attempt(ctx, rc, route, ks)
			secondaryCh <- routeOutcome{route: route, req: req, resp: resp, err: err}
			return nil
		})
	}
	go func() {
		eg.Wait()
		close(secondaryCh)
	}()

	var primaryCh chan routeOutcome
	if primary != nil {
		primaryCh = make(chan routeOutcome, 1)
		go func(route *Route) {
			req, resp, err := e.attempt(ctx, rc, route, ks)
			primaryCh <- routeOutcome{route: route, req: req, resp: resp, err: err}
		}(primary)
	} else {
		done(nil)
	}

	drain := secondaryCh
	for drain != nil || primaryCh != nil {
		select {
		case oc, ok := <-drain:
			if !ok {
				drain = nil
				continue
			}
			e.recordSecondary(ctx, rc, oc)
		case oc := <-primaryCh:
			e.settlePrimary(rc, oc)
			done(rc.Err)
			primaryCh = nil
		}
	}
}

// settlePrimary applies the response adapter on success, or synthesizes
// a 500 when the primary's own transport call failed, and always
// appends the orchestration record.
func (e *DispatchEngine) settlePrimary(rc *RequestContext, oc routeOutcome) {
	recordOrchestration(rc, oc.route, oc.req, oc.resp, oc.err)

	if oc.err != nil {
		rc.Err = oc.err
		rc.AutoRetry = true
		rc.Response = &Response{
			Status:    500,
			Headers:   Headers{},
			Body:      []byte("An internal server error occurred"),
			Timestamp: oc.req.Timestamp,
		}
		return
	}

	inboundTransactionID, _ := rc.Headers.Get(transactionIDHeader)
	e.responseAdapter.Apply(rc, oc.resp, inboundTransactionID)
}

// runSecondaryBatch dispatches a set of non-primary routes concurrently
// and blocks until every one has recorded and persisted.
func (e *DispatchEngine) runSecondaryBatch(ctx context.Context, rc *RequestContext, ks *KeystoreData, routes []*Route) {
	if len(routes) == 0 {
		return
	}
	ch := make(chan routeOutcome, len(routes))
	var eg errgroup.Group
	for _, r := range routes {
		route := r
		eg.Go(func() error {
			req, resp, err := e.attempt(ctx, rc, route, ks)
			ch <- routeOutcome{route: route, req: req, resp: resp, err: err}
			return nil
		})
	}
	eg.Wait()
	close(ch)

	for oc := range ch {
		e.recordSecondary(ctx, rc, oc)
	}
}

// recordSecondary builds and appends a secondary-route record, then
// persists it. Persistence errors are logged, never surfaced.
func (e *DispatchEngine) recordSecondary(ctx context.Context, rc *RequestContext, oc routeOutcome) {
	record := buildSecondaryRecord(oc.route, oc.req, oc.resp, oc.err)
	rc.Routes = append(rc.Routes, record)

	if err := e.persistence.StoreNonPrimaryResponse(ctx, rc.TransactionID, record); err != nil {
		e.logger.Errorw("failed to persist secondary route record",
			"error", err,
			"route", oc.route.Name,
			"transaction_id", rc.TransactionID,
		)
	}
}

// attempt carries out one route's transport call, in isolation from
// rc's shared collections: it never reads or writes rc.Orchestrations
// or rc.Routes.
func (e *DispatchEngine) attempt(ctx context.Context, rc *RequestContext, route *Route, ks *KeystoreData) (OrchestrationRequest, *Response, error) {
	effectivePath, err := TransformPath(rc.Path, route.PathTransform, route.Path)
	if err != nil {
		return buildOrchestrationRequest(rc.Method, rc.Path, rc.Headers, rc.Body), nil, err
	}

	switch route.EffectiveType() {
	case RouteTypeBus:
		req := buildOrchestrationRequest(rc.Method, effectivePath, rc.Headers, rc.Body)
		resp, err := e.bus.Send(ctx, rc.AuthorisedChannel, route, rc)
		return req, resp, err
	default:
		opts, err := BuildRequestOptions(rc, route, ks, effectivePath, nil)
		if err != nil {
			return buildOrchestrationRequest(rc.Method, effectivePath, rc.Headers, rc.Body), nil, err
		}
		req := buildOrchestrationRequest(rc.Method, effectivePath, opts.Headers, rc.Body)
		req.Host = route.Host
		req.Port = route.Port
		resp, err := e.http.Send(ctx, route, opts, rc.Body)
		return req, resp, err
	}
}

func (e *DispatchEngine) finalize(ctx context.Context, rc *RequestContext) {
	if err := e.persistence.SetFinalStatus(ctx, rc); err != nil {
		e.logger.Errorw("failed to set final transaction status",
			"error", err,
			"transaction_id", rc.TransactionID,
		)
		return
	}

	events, err := e.events.CreateSecondaryRouteEvents(ctx, rc.TransactionID, rc.RequestTimestamp, rc.AuthorisedChannel, rc.Routes, rc.CurrentAttempt)
	if err != nil {
		e.logger.Errorw("failed to build secondary route events",
			"error", err,
			"transaction_id", rc.TransactionID,
		)
		return
	}

	if err := e.events.SaveEvents(ctx, events); err != nil {
		e.logger.Errorw("failed to save secondary route events",
			"error", err,
			"transaction_id", rc.TransactionID,
		)
	}
}

// matches implements the wave-B gating predicate: an absent check
// passes unconditionally, otherwise any comma-separated token either
// equals the status exactly or is a one-digit wildcard like "2*" whose
// leading digit matches the status's leading digit.
func matches(statusCodesCheck string, status int) bool {
	if statusCodesCheck == "" {
		return true
	}
	statusStr := strconv.Itoa(status)
	if statusStr == "" {
		return false
	}
	firstDigit := statusStr[0]

	for _, token := range strings.Split(statusCodesCheck, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if token == statusStr {
			return true
		}
		if strings.Contains(token, "*") && token[0] == firstDigit {
			return true
		}
	}
	return false
}
