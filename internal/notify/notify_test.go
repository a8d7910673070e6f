package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confesapp/backend/internal/domain"
)

func sampleBooking() (domain.Booking, domain.Band) {
	band := domain.Band{
		ID:       uuid.MustParse("00000000-0000-0000-0000-0000000000b1"),
		PriestID: "p1",
		Location: "chapel",
	}
	booking := domain.Booking{
		ID:            uuid.MustParse("00000000-0000-0000-0000-0000000000c1"),
		FaithfulID:    "f1",
		BandID:        band.ID,
		ScheduledTime: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	return booking, band
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPPublisher_BookingCreated(t *testing.T) {
	ch := &fakeChannel{}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &AMQPPublisher{ch: ch, exchange: "confessions", now: func() time.Time { return now }}

	booking, band := sampleBooking()
	require.NoError(t, p.BookingCreated(context.Background(), booking, band))

	assert.Equal(t, "confessions", ch.exchange)
	assert.Equal(t, EventBookingCreated, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var ev BookingEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &ev))
	assert.Equal(t, EventBookingCreated, ev.Type)
	assert.Equal(t, booking.ID.String(), ev.BookingID)
	assert.Equal(t, "p1", ev.PriestID)
	assert.True(t, ev.OccurredAt.Equal(now))

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	booking, band := sampleBooking()
	require.NoError(t, n.BookingCancelled(context.Background(), booking, band))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, EventBookingCancelled, line["type"])
	assert.Equal(t, "f1", line["faithful_id"])
	assert.Equal(t, "notify.log", line["component"])
}
