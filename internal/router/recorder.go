package router

import "time"

// recordOrchestration appends an attempt trace for the primary route.
// Orchestration entries exist only for route.Primary == true; callers
// must not invoke this for a secondary route.
func recordOrchestration(rc *RequestContext, route *Route, req OrchestrationRequest, resp *Response, err error) {
	rc.Orchestrations = append(rc.Orchestrations, OrchestrationRecord{
		Name:     route.Name,
		Request:  req,
		Response: resp,
		Error:    toRouteError(err),
	})
}

// buildSecondaryRecord renders one non-primary route's settled attempt
// into the audit shape, lifting mediator-framed fields when present.
func buildSecondaryRecord(route *Route, req OrchestrationRequest, resp *Response, err error) SecondaryRouteRecord {
	rec := SecondaryRouteRecord{
		Name: route.Name,
	}

	if err != nil {
		rec.Error = toRouteError(err)
		return rec
	}

	rec.Request = &req
	rec.Response = resp

	if resp == nil {
		return rec
	}

	contentType, ok := resp.Headers.Get("content-type")
	if !ok || !containsMediatorContentType(contentType) {
		return rec
	}

	mr, ok := parseMediatorResponse(resp.Body)
	if !ok {
		return rec
	}

	rec.MediatorURN = mr.MediatorURN
	rec.Orchestrations = mr.Orchestrations
	rec.Properties = mr.Properties
	rec.Metrics = mr.Metrics

	status, _ := resolveStatus(mr.Response.Status)
	headers := make(Headers, len(mr.Response.Headers))
	for k, v := range mr.Response.Headers {
		headers[k] = v
	}
	rec.Response = &Response{
		Status:    status,
		Headers:   headers,
		Body:      []byte(mr.Response.Body),
		Timestamp: resp.Timestamp,
	}

	return rec
}

func buildOrchestrationRequest(method, path string, headers Headers, body []byte) OrchestrationRequest {
	return OrchestrationRequest{
		Path:      path,
		Headers:   headers,
		Method:    method,
		Body:      body,
		Timestamp: time.Now(),
	}
}
