package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubProducer struct {
	written map[string][]kafka.Message
	err     error
}

func (p *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	if p.written == nil {
		p.written = make(map[string][]kafka.Message)
	}
	p.written[topic] = append(p.written[topic], msgs...)
	return nil
}

type stubRegistry struct {
	calls int
	id    int
	err   error
}

func (r *stubRegistry) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	return r.id, nil
}

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(42, []byte(`{"a":1}`))

	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, `{"a":1}`, string(frame[5:]))
}

func TestDeliverFramesRoutesAndCachesSchemas(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 9}
	d := &Dispatcher{producer: producer, registry: registry}

	messages := []Message{
		{
			EventID:       1,
			RealmID:       "run-realm-v1",
			EventType:     "moment.recorded",
			Topic:         "moment_events",
			SchemaSubject: "moment_events-value",
			PartitionKey:  "user-1",
			Payload:       []byte(`{"moment_id":"m1"}`),
		},
		{
			EventID:       2,
			RealmID:       "run-realm-v1",
			EventType:     "territory.claimed",
			Topic:         "territory_events",
			SchemaSubject: "territory_events-value",
			PartitionKey:  "user-1",
			Payload:       []byte(`{"territory_id":"t1"}`),
		},
		{
			EventID:       3,
			RealmID:       "run-realm-v1",
			EventType:     "moment.recorded",
			Topic:         "moment_events",
			SchemaSubject: "moment_events-value",
			PartitionKey:  "user-2",
			Payload:       []byte(`{"moment_id":"m2"}`),
		},
	}

	require.NoError(t, d.deliver(context.Background(), messages))

	require.Len(t, producer.written["moment_events"], 2)
	require.Len(t, producer.written["territory_events"], 1)
	// One registry round trip per subject, the rest served from cache.
	require.Equal(t, 2, registry.calls)

	record := producer.written["moment_events"][0]
	require.Equal(t, []byte("user-1"), record.Key)
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(9), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, `{"moment_id":"m1"}`, string(record.Value[5:]))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "moment.recorded", headers["event_type"])
	require.Equal(t, "run-realm-v1", headers["realm_id"])
	require.Equal(t, "moment_events-value", headers["schema_subject"])
}

func TestDeliverUnknownEventType(t *testing.T) {
	d := &Dispatcher{producer: &stubProducer{}, registry: &stubRegistry{}}

	err := d.deliver(context.Background(), []Message{{EventType: "feed.refreshed", Topic: "feed_events"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "feed.refreshed")
}

func TestDeliverPropagatesRegistryError(t *testing.T) {
	registry := &stubRegistry{err: errors.New("registry down")}
	d := &Dispatcher{producer: &stubProducer{}, registry: registry}

	err := d.deliver(context.Background(), []Message{{
		EventType:     "moment.recorded",
		Topic:         "moment_events",
		SchemaSubject: "moment_events-value",
		Payload:       []byte(`{}`),
	}})
	require.ErrorContains(t, err, "registry down")
}

func TestDeliverPropagatesProducerError(t *testing.T) {
	producer := &stubProducer{err: errors.New("broker unreachable")}
	d := &Dispatcher{producer: producer, registry: &stubRegistry{id: 1}}

	err := d.deliver(context.Background(), []Message{{
		EventType:     "moment.recorded",
		Topic:         "moment_events",
		SchemaSubject: "moment_events-value",
		Payload:       []byte(`{}`),
	}})
	require.ErrorContains(t, err, "broker unreachable")
}

func TestDeliveryCountersRegistered(t *testing.T) {
	var metric dto.Metric
	require.NoError(t, deliveredCounter.Write(&metric))
	require.NotNil(t, metric.Counter)
	require.NoError(t, failedCounter.Write(&metric))
	require.NotNil(t, metric.Counter)
}
