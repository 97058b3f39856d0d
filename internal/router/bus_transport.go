package router

import (
	"context"
	"encoding/json"
	"time"
)

// busEnvelope is the wire shape published to the topic. Field order and
// names are part of the contract in SPEC_FULL.md §4.4.
type busEnvelope struct {
	Method  string  `json:"method"`
	Path    string  `json:"path"`
	Pattern string  `json:"pattern"`
	Headers Headers `json:"headers"`
	Body    string  `json:"body"`
}

// BusTransportAdapter publishes a serialized envelope to a topic via a
// producer obtained from the producer-pool collaborator. There is no
// response correlation: a successful publish is always reported as a
// 200, even when the broker's ack reflects a partial failure, per the
// recorded open-question decision in DESIGN.md.
type BusTransportAdapter struct {
	pool    ProducerPool
	brokers []string
}

func NewBusTransportAdapter(pool ProducerPool, brokers []string) *BusTransportAdapter {
	return &BusTransportAdapter{pool: pool, brokers: brokers}
}

func (a *BusTransportAdapter) Send(ctx context.Context, channel *Channel, route *Route, rc *RequestContext) (*Response, error) {
	producer, err := a.pool.GetProducer(ctx, channel.Name, route.ClientID, route.Timeout)
	if err != nil {
		return nil, NewTransportError(err)
	}

	body := ""
	if len(rc.Body) > 0 {
		body = string(rc.Body)
	}

	path := rc.Path
	if rc.QueryString != "" {
		path = path + "?" + rc.QueryString
	}

	envelope := busEnvelope{
		Method:  rc.Method,
		Path:    path,
		Pattern: channel.URLPattern,
		Headers: rc.Headers,
		Body:    body,
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return nil, NewTransportError(err)
	}

	ack, err := producer.Send(ctx, route.Topic, value)
	if err != nil {
		return nil, NewTransportError(err)
	}

	ackBody, _ := json.Marshal(map[string]interface{}{
		"partition": ack.Partition,
		"offset":    ack.Offset,
	})

	return &Response{
		Status:    200,
		Headers:   Headers{},
		Body:      ackBody,
		Timestamp: time.Now(),
	}, nil
}
