package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testAlert() weather.Alert {
	start := time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)
	return weather.Alert{
		ID:          7,
		CityID:      42,
		Type:        weather.AlertThunderstorm,
		Severity:    weather.SeverityHigh,
		Title:       "Storms",
		Description: "Severe thunderstorms expected",
		StartTime:   start,
		IsActive:    true,
		CreatedAt:   start,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAlertMessage(t *testing.T) {
	msg, err := alertMessage(testAlert())
	require.NoError(t, err)

	assert.Equal(t, []byte("42"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventAlertCreated), msg.Headers[0].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "alert.created", body["event"])
	assert.Equal(t, float64(7), body["id"])
	assert.Equal(t, "thunderstorm", body["type"])
	assert.Contains(t, body, "end_time")
	assert.Nil(t, body["end_time"])
}

func TestPublisher_PublishAlert(t *testing.T) {
	w := &fakeWriter{}
	metrics := observability.NewMetricsForTesting()
	p := newPublisher(w, metrics, discard())

	require.NoError(t, p.PublishAlert(context.Background(), testAlert()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AlertEvents.WithLabelValues("published")))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_WriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	metrics := observability.NewMetricsForTesting()
	p := newPublisher(w, metrics, discard())

	err := p.PublishAlert(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AlertEvents.WithLabelValues("failed")))
}

func TestPublisher_OutlivesCanceledRequest(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, nil, discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.PublishAlert(ctx, testAlert()))
	assert.Len(t, w.msgs, 1)
}

func TestNop(t *testing.T) {
	var pub weather.AlertPublisher = Nop{}
	assert.NoError(t, pub.PublishAlert(context.Background(), testAlert()))
}
