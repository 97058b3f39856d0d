package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	ack Ack
	err error
	got struct {
		topic string
		value []byte
	}
}

func (f *fakeProducer) Send(ctx context.Context, topic string, value []byte) (Ack, error) {
	f.got.topic = topic
	f.got.value = value
	return f.ack, f.err
}

type fakeProducerPool struct {
	producer Producer
	err      error
	gotKey   struct {
		channelName string
		clientID    string
		timeout     time.Duration
	}
}

func (f *fakeProducerPool) GetProducer(ctx context.Context, channelName, clientID string, timeout time.Duration) (Producer, error) {
	f.gotKey.channelName = channelName
	f.gotKey.clientID = clientID
	f.gotKey.timeout = timeout
	if f.err != nil {
		return nil, f.err
	}
	return f.producer, nil
}

func TestBusTransportAdapter_PublishesEnvelope(t *testing.T) {
	producer := &fakeProducer{ack: Ack{Partition: 2, Offset: 42}}
	pool := &fakeProducerPool{producer: producer}
	adapter := NewBusTransportAdapter(pool, []string{"broker:9092"})

	channel := &Channel{Name: "fhir", URLPattern: "^/fhir"}
	route := &Route{Name: "audit", Topic: "audit-topic", ClientID: "client-1", Timeout: 5 * time.Second}
	rc := &RequestContext{Method: "POST", Path: "/fhir/Patient", Headers: Headers{"X-Test": "1"}, Body: []byte(`{"a":1}`)}

	resp, err := adapter.Send(context.Background(), channel, route, rc)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)

	assert.Equal(t, "fhir", pool.gotKey.channelName)
	assert.Equal(t, "client-1", pool.gotKey.clientID)
	assert.Equal(t, "audit-topic", producer.got.topic)

	var envelope busEnvelope
	require.NoError(t, json.Unmarshal(producer.got.value, &envelope))
	assert.Equal(t, "POST", envelope.Method)
	assert.Equal(t, "/fhir/Patient", envelope.Path)
	assert.Equal(t, "^/fhir", envelope.Pattern)
	assert.Equal(t, `{"a":1}`, envelope.Body)

	var ackBody map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body, &ackBody))
	assert.EqualValues(t, 2, ackBody["partition"])
	assert.EqualValues(t, 42, ackBody["offset"])
}

func TestBusTransportAdapter_PathIncludesQueryString(t *testing.T) {
	producer := &fakeProducer{}
	pool := &fakeProducerPool{producer: producer}
	adapter := NewBusTransportAdapter(pool, nil)

	rc := &RequestContext{Method: "GET", Path: "/fhir/Patient", QueryString: "_id=1&_count=10", Headers: Headers{}}
	_, err := adapter.Send(context.Background(), &Channel{Name: "fhir"}, &Route{Topic: "t"}, rc)
	require.NoError(t, err)

	var envelope busEnvelope
	require.NoError(t, json.Unmarshal(producer.got.value, &envelope))
	assert.Equal(t, "/fhir/Patient?_id=1&_count=10", envelope.Path)
}

func TestBusTransportAdapter_EmptyBodySerializedAsEmptyString(t *testing.T) {
	producer := &fakeProducer{}
	pool := &fakeProducerPool{producer: producer}
	adapter := NewBusTransportAdapter(pool, nil)

	rc := &RequestContext{Method: "GET", Path: "/fhir", Headers: Headers{}}
	_, err := adapter.Send(context.Background(), &Channel{Name: "fhir"}, &Route{Topic: "t"}, rc)
	require.NoError(t, err)

	var envelope busEnvelope
	require.NoError(t, json.Unmarshal(producer.got.value, &envelope))
	assert.Equal(t, "", envelope.Body)
}

func TestBusTransportAdapter_ProducerPoolErrorWrapsAsTransportError(t *testing.T) {
	pool := &fakeProducerPool{err: errors.New("pool exhausted")}
	adapter := NewBusTransportAdapter(pool, nil)

	_, err := adapter.Send(context.Background(), &Channel{Name: "fhir"}, &Route{Topic: "t"}, &RequestContext{Headers: Headers{}})
	require.Error(t, err)
}

func TestBusTransportAdapter_SendErrorWrapsAsTransportError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("publish failed")}
	pool := &fakeProducerPool{producer: producer}
	adapter := NewBusTransportAdapter(pool, nil)

	_, err := adapter.Send(context.Background(), &Channel{Name: "fhir"}, &Route{Topic: "t"}, &RequestContext{Headers: Headers{}})
	require.Error(t, err)
}
