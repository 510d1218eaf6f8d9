package eventlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesStructuredLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	logger.Log(Event{
		TS:         ts,
		Plate:      "MH20EE7598",
		CameraID:   "camera2",
		OldStatus:  "ENTERED",
		NewStatus:  "MOVING",
		Reason:     "MOVED",
		Detections: 2,
		PathLen:    2,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "MH20EE7598", line["plate"])
	assert.Equal(t, "camera2", line["camera_id"])
	assert.Equal(t, "ENTERED", line["old_status"])
	assert.Equal(t, "MOVING", line["new_status"])
	assert.Equal(t, "MOVED", line["reason"])
	assert.Equal(t, float64(2), line["detections"])
	assert.Equal(t, float64(2), line["path_len"])
	assert.Equal(t, ts.Format(time.RFC3339Nano), line["ts"])
}

func TestLogFillsTimestamp(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.Log(Event{Plate: "KA01AB1234", Reason: "ENTRY_SUCCESS"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	parsed, err := time.Parse(time.RFC3339Nano, line["ts"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, time.Second)
}

func TestNilAndNoopLoggerSafe(t *testing.T) {
	t.Parallel()

	var nilLogger *Logger
	nilLogger.Log(Event{Plate: "MH20EE7598"})
	assert.NoError(t, nilLogger.Close())

	noop := &Logger{}
	noop.Log(Event{Plate: "MH20EE7598"})
	assert.NoError(t, noop.Close())
}
