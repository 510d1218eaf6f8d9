package conf

import (
	"fmt"
	"strings"
)

// ValidateSettings checks the loaded settings for values the service cannot
// run with. It collects all problems instead of stopping at the first one.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validateRedisSettings(&settings.Redis, &ve)
	validateTrackerSettings(&settings.Tracker, &ve)
	validateExpirySettings(&settings.Expiry, &ve)
	validateEventBusSettings(&settings.EventBus, &ve)
	validateOutputSettings(&settings.Output, &ve)

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// ValidationError holds field-level validation failures.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(ve.Errors, "; "))
}

func (ve *ValidationError) addf(format string, args ...any) {
	ve.Errors = append(ve.Errors, fmt.Sprintf(format, args...))
}

func validateRedisSettings(s *RedisSettings, ve *ValidationError) {
	if s.Host == "" {
		ve.addf("redis.host must not be empty")
	}
	if s.Port <= 0 || s.Port > 65535 {
		ve.addf("redis.port must be between 1 and 65535, got %d", s.Port)
	}
	if s.DB < 0 {
		ve.addf("redis.db must not be negative, got %d", s.DB)
	}
	if s.ConnectTimeout <= 0 {
		ve.addf("redis.connecttimeout must be positive")
	}
	if s.OperationTimeout <= 0 {
		ve.addf("redis.operationtimeout must be positive")
	}
}

func validateTrackerSettings(s *TrackerSettings, ve *ValidationError) {
	if s.WindowSeconds <= 0 {
		ve.addf("tracker.windowseconds must be positive, got %d", s.WindowSeconds)
	}
	if s.EntryCamera == "" {
		ve.addf("tracker.entrycamera must not be empty")
	}
	if s.DedupWindow < 0 {
		ve.addf("tracker.dedupwindow must not be negative")
	}
	if s.ArchiveRetention <= 0 {
		ve.addf("tracker.archiveretention must be positive")
	}
	if s.MaxTxRetries <= 0 {
		ve.addf("tracker.maxtxretries must be positive, got %d", s.MaxTxRetries)
	}
}

func validateExpirySettings(s *ExpirySettings, ve *ValidationError) {
	if s.PollInterval <= 0 {
		ve.addf("expiry.pollinterval must be positive")
	}
}

func validateEventBusSettings(s *EventBusSettings, ve *ValidationError) {
	if s.BufferSize <= 0 {
		ve.addf("eventbus.buffersize must be positive, got %d", s.BufferSize)
	}
	if s.Workers <= 0 {
		ve.addf("eventbus.workers must be positive, got %d", s.Workers)
	}
}

func validateOutputSettings(s *OutputSettings, ve *ValidationError) {
	if s.SQLite.Enabled && s.MySQL.Enabled {
		ve.addf("output.sqlite and output.mysql must not both be enabled")
	}
	if s.SQLite.Enabled && s.SQLite.Path == "" {
		ve.addf("output.sqlite.path must not be empty when sqlite output is enabled")
	}
	if s.MySQL.Enabled {
		if s.MySQL.Host == "" {
			ve.addf("output.mysql.host must not be empty when mysql output is enabled")
		}
		if s.MySQL.Database == "" {
			ve.addf("output.mysql.database must not be empty when mysql output is enabled")
		}
	}
}
