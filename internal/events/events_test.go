package events

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/order"
)

// --- Mock implementations ---

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.msgs = append(m.msgs, msgs...)
	return m.err
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type mockChannel struct {
	sent []published
}

func (m *mockChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	m.sent = append(m.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (m *mockChannel) Close() error { return nil }

// --- Helpers ---

func testEvent() order.Event {
	return order.Event{
		Type:       order.EventStatusChanged,
		OrderID:    uuid.New(),
		Number:     "ORD-1760000000000-ABCDEFGH",
		UserID:     uuid.New(),
		Status:     order.StatusShipped,
		PrevStatus: order.StatusProcessing,
		Total:      decimal.RequireFromString("123.00"),
		OccurredAt: time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC),
	}
}

// --- Tests ---

func TestEncodeDecode(t *testing.T) {
	e := testEvent()

	data := Encode(e)
	assert.Contains(t, string(data), `"type":"order.status_changed"`)
	assert.Contains(t, string(data), `"totalAmount":"123.00"`)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.OrderID, got.OrderID)
	assert.Equal(t, e.Number, got.Number)
	assert.Equal(t, e.UserID, got.UserID)
	assert.Equal(t, e.Status, got.Status)
	assert.Equal(t, e.PrevStatus, got.PrevStatus)
	assert.True(t, e.Total.Equal(got.Total))
	assert.True(t, e.OccurredAt.Equal(got.OccurredAt))
}

func TestEncode_OmitsEmptyPrevStatus(t *testing.T) {
	e := testEvent()
	e.Type = order.EventCreated
	e.PrevStatus = ""
	assert.NotContains(t, string(Encode(e)), "previousStatus")
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	got, err := Decode([]byte(`{"type":"order.created","extra":{"nested":[1,2]},"orderNumber":"ORD-1-X"}`))
	require.NoError(t, err)
	assert.Equal(t, order.EventCreated, got.Type)
	assert.Equal(t, "ORD-1-X", got.Number)

	_, err = Decode([]byte(`{"orderId":"not-a-uuid"}`))
	require.Error(t, err)
}

func TestKafkaPublisher(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}
	e := testEvent()

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, e.OrderID.String(), string(w.msgs[0].Key))
	assert.Equal(t, Encode(e), w.msgs[0].Value)

	w.err = errors.New("leader not available")
	require.Error(t, p.Publish(context.Background(), e))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_FlushesPromptly(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "storefront.orders")
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "storefront.orders", kw.Topic)
	assert.LessOrEqual(t, kw.BatchTimeout, 10*time.Millisecond)
	assert.Positive(t, kw.BatchTimeout)
	require.NoError(t, p.Close())
}

func TestAMQPPublisher(t *testing.T) {
	ch := &mockChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "storefront.orders"}
	e := testEvent()

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "storefront.orders", ch.sent[0].exchange)
	assert.Equal(t, string(order.EventStatusChanged), ch.sent[0].key)
	assert.Equal(t, amqp.Persistent, ch.sent[0].msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.sent[0].msg.ContentType)

	require.NoError(t, p.Close())
}

func TestNew(t *testing.T) {
	p, err := New(Config{Driver: DriverNone})
	require.NoError(t, err)
	assert.IsType(t, Discard{}, p)

	p, err = New(Config{Driver: DriverKafka, Brokers: []string{"localhost:9092"}, Topic: "orders"})
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)

	_, err = New(Config{Driver: DriverKafka})
	require.Error(t, err)

	_, err = New(Config{Driver: "carrier-pigeon"})
	require.Error(t, err)
}
