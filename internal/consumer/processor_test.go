package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	messages  []kafka.Message
	committed []kafka.Message
	commitErr error
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *stubReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	handled []Message
	err     error
}

func (h *stubHandler) Handle(ctx context.Context, msg Message) error {
	h.handled = append(h.handled, msg)
	return h.err
}

func wireMessage(topic, eventType, realmID string, schemaID uint32, payload interface{}) kafka.Message {
	body, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	value := make([]byte, 5, 5+len(body))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	value = append(value, body...)
	return kafka.Message{
		Topic: topic,
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "realm_id", Value: []byte(realmID)},
			{Key: "schema_subject", Value: []byte(topic + "-value")},
		},
	}
}

func runUntilDrained(t *testing.T, p *Processor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestProcessorDecodesAndCommits(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		wireMessage("moment_events", "moment.recorded", "run-realm-v1", 7, map[string]string{"moment_id": "m1"}),
	}}
	handler := &stubHandler{}

	runUntilDrained(t, NewProcessor(reader, handler, WithLogger(quietLogger())))

	require.Len(t, handler.handled, 1)
	msg := handler.handled[0]
	require.Equal(t, "moment.recorded", msg.EventType)
	require.Equal(t, "run-realm-v1", msg.RealmID)
	require.Equal(t, "moment_events-value", msg.SchemaSubject)
	require.Equal(t, 7, msg.SchemaID)
	require.JSONEq(t, `{"moment_id":"m1"}`, string(msg.Payload))
	require.Len(t, reader.committed, 1)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		{Topic: "moment_events", Value: []byte{0x00, 0x01}},
	}}
	handler := &stubHandler{}

	runUntilDrained(t, NewProcessor(reader, handler, WithLogger(quietLogger())))

	require.Empty(t, handler.handled)
	require.Len(t, reader.committed, 1)
}

func TestProcessorCommitsMessagesWithBadMagicByte(t *testing.T) {
	msg := wireMessage("moment_events", "moment.recorded", "run-realm-v1", 1, map[string]string{"moment_id": "m1"})
	msg.Value[0] = 0x42
	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{}

	runUntilDrained(t, NewProcessor(reader, handler, WithLogger(quietLogger())))

	require.Empty(t, handler.handled)
	require.Len(t, reader.committed, 1)
}

func TestProcessorCommitsMessagesMissingEventType(t *testing.T) {
	msg := wireMessage("moment_events", "moment.recorded", "run-realm-v1", 1, map[string]string{})
	msg.Headers = nil
	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{}

	runUntilDrained(t, NewProcessor(reader, handler, WithLogger(quietLogger())))

	require.Empty(t, handler.handled)
	require.Len(t, reader.committed, 1)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		wireMessage("moment_events", "moment.recorded", "run-realm-v1", 1, map[string]string{"moment_id": "m1"}),
	}}
	handler := &stubHandler{err: errors.New("projection unavailable")}

	runUntilDrained(t, NewProcessor(reader, handler, WithLogger(quietLogger())))

	require.Len(t, handler.handled, 1)
	require.Empty(t, reader.committed)
}

func TestProcessorStopsOnContextCancel(t *testing.T) {
	reader := &stubReader{}
	handler := &stubHandler{}
	p := NewProcessor(reader, handler, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
