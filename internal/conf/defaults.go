package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "PlateWatch")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/platewatch.log")
	viper.SetDefault("main.log.maxsizemb", 10)
	viper.SetDefault("main.log.maxbackups", 5)
	viper.SetDefault("main.log.maxagedays", 28)
	viper.SetDefault("main.eventlog.enabled", true)
	viper.SetDefault("main.eventlog.path", "logs/vehicle_events.log")
	viper.SetDefault("main.eventlog.maxsizemb", 10)
	viper.SetDefault("main.eventlog.maxbackups", 5)
	viper.SetDefault("main.eventlog.maxagedays", 28)

	// Shared state store
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.connecttimeout", 5*time.Second)
	viper.SetDefault("redis.operationtimeout", 5*time.Second)

	// Tracker core
	viper.SetDefault("tracker.windowseconds", 30)
	viper.SetDefault("tracker.entrycamera", "camera1")
	viper.SetDefault("tracker.dedupwindow", 500*time.Millisecond)
	viper.SetDefault("tracker.archiveretention", 12*time.Hour)
	viper.SetDefault("tracker.maxtxretries", 5)

	// Timer expiry subsystem
	viper.SetDefault("expiry.keyspacenotifications", true)
	viper.SetDefault("expiry.pollinterval", 2*time.Second)

	// Action event bus
	viper.SetDefault("eventbus.buffersize", 10000)
	viper.SetDefault("eventbus.workers", 4)

	// Durable session history, disabled by default
	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "platewatch.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "platewatch")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)
	viper.SetDefault("output.mysql.database", "platewatch")

	// Detection ingest HTTP API
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", "0.0.0.0:8080")

	// Prometheus telemetry endpoint
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")
}
