package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validSettings returns a settings struct that passes validation, for tests
// to break one field at a time.
func validSettings() *Settings {
	s := &Settings{}
	s.Redis = RedisSettings{
		Host:             "localhost",
		Port:             6379,
		DB:               0,
		ConnectTimeout:   5 * time.Second,
		OperationTimeout: 5 * time.Second,
	}
	s.Tracker = TrackerSettings{
		WindowSeconds:    30,
		EntryCamera:      "camera1",
		DedupWindow:      500 * time.Millisecond,
		ArchiveRetention: 12 * time.Hour,
		MaxTxRetries:     5,
	}
	s.Expiry = ExpirySettings{
		KeyspaceNotifications: true,
		PollInterval:          2 * time.Second,
	}
	s.EventBus = EventBusSettings{
		BufferSize: 100,
		Workers:    2,
	}
	s.Output.SQLite.Path = "platewatch.db"
	return s
}

func TestValidateSettingsOK(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{
			name:    "empty redis host",
			mutate:  func(s *Settings) { s.Redis.Host = "" },
			wantMsg: "redis.host",
		},
		{
			name:    "bad redis port",
			mutate:  func(s *Settings) { s.Redis.Port = 70000 },
			wantMsg: "redis.port",
		},
		{
			name:    "zero window",
			mutate:  func(s *Settings) { s.Tracker.WindowSeconds = 0 },
			wantMsg: "tracker.windowseconds",
		},
		{
			name:    "empty entry camera",
			mutate:  func(s *Settings) { s.Tracker.EntryCamera = "" },
			wantMsg: "tracker.entrycamera",
		},
		{
			name:    "negative dedup window",
			mutate:  func(s *Settings) { s.Tracker.DedupWindow = -time.Second },
			wantMsg: "tracker.dedupwindow",
		},
		{
			name:    "zero retry cap",
			mutate:  func(s *Settings) { s.Tracker.MaxTxRetries = 0 },
			wantMsg: "tracker.maxtxretries",
		},
		{
			name:    "zero poll interval",
			mutate:  func(s *Settings) { s.Expiry.PollInterval = 0 },
			wantMsg: "expiry.pollinterval",
		},
		{
			name: "both outputs enabled",
			mutate: func(s *Settings) {
				s.Output.SQLite.Enabled = true
				s.Output.MySQL.Enabled = true
				s.Output.MySQL.Host = "localhost"
				s.Output.MySQL.Database = "platewatch"
			},
			wantMsg: "must not both be enabled",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidationErrorCollectsAll(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Redis.Host = ""
	s.Tracker.EntryCamera = ""

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestRedisAddr(t *testing.T) {
	t.Parallel()

	r := RedisSettings{Host: "10.0.0.5", Port: 6380}
	assert.Equal(t, "10.0.0.5:6380", r.Addr())
}

func TestTrackerWindow(t *testing.T) {
	t.Parallel()

	tr := TrackerSettings{WindowSeconds: 30}
	assert.Equal(t, 30*time.Second, tr.Window())
}
