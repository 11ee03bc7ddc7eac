package kafka

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, discardLogger())
	assert.NotNil(t, p)
	assert.NoError(t, p.Close())
}

func TestDecodeTicketEvent(t *testing.T) {
	event := TicketEvent{
		Type:             EventTicketRefunded,
		TicketID:         9,
		ConfirmationCode: "AB12CD34",
		Email:            "user@example.com",
		RefundCents:      1500000,
		OccurredAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	decoded, ok := DecodeTicketEvent(data, discardLogger())
	assert.True(t, ok)
	assert.Equal(t, event, decoded)

	_, ok = DecodeTicketEvent([]byte("not json"), discardLogger())
	assert.False(t, ok)
}
