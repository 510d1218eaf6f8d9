// Package conf defines the application settings struct and functions to load
// settings from the configuration file, environment and command line flags.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig holds settings for a rotating log file output.
type LogConfig struct {
	Enabled    bool   // true to enable this log output
	Path       string // path to log file
	MaxSizeMB  int    // rotate log file after this size
	MaxBackups int    // number of rotated files to keep
	MaxAgeDays int    // days to keep rotated files
}

// RedisSettings holds the connection settings for the shared state store.
type RedisSettings struct {
	Host             string        // redis server host
	Port             int           // redis server port
	DB               int           // redis database number
	Password         string        // redis password, empty for none
	ConnectTimeout   time.Duration // dial timeout
	OperationTimeout time.Duration // per round-trip read/write timeout
}

// Addr returns the host:port address for the Redis client.
func (r *RedisSettings) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TrackerSettings holds the tracking window and state machine parameters.
type TrackerSettings struct {
	WindowSeconds    int           // sliding tracking window, restarts on every accepted sighting
	EntryCamera      string        // camera id treated as the single ingress/egress point
	DedupWindow      time.Duration // same-camera detections closer than this are duplicates
	ArchiveRetention time.Duration // retention of archived sessions in the state store
	MaxTxRetries     int           // optimistic transaction retry cap
}

// Window returns the tracking window as a duration.
func (t *TrackerSettings) Window() time.Duration {
	return time.Duration(t.WindowSeconds) * time.Second
}

// ExpirySettings holds the timer expiry subsystem parameters.
type ExpirySettings struct {
	KeyspaceNotifications bool          // subscribe to redis expired-key events
	PollInterval          time.Duration // fallback poll loop interval
}

// OutputSettings holds optional durable session history outputs.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // true to mirror finalized sessions to SQLite
		Path    string // path to SQLite database
	}
	MySQL struct {
		Enabled  bool   // true to mirror finalized sessions to MySQL
		Username string // MySQL username
		Password string // MySQL password
		Host     string // MySQL server host
		Port     int    // MySQL server port
		Database string // MySQL database name
	}
}

// WebServerSettings holds the detection ingest HTTP API settings.
type WebServerSettings struct {
	Enabled bool   // true to serve the HTTP API
	Listen  string // listen address, e.g. 0.0.0.0:8080
}

// TelemetrySettings holds the Prometheus endpoint settings.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus telemetry endpoint
	Listen  string // listen address and port of telemetry endpoint
}

// EventBusSettings holds the action event bus parameters.
type EventBusSettings struct {
	BufferSize int // buffered channel capacity
	Workers    int // consumer worker goroutines
}

// Settings is the root application configuration.
type Settings struct {
	Debug bool // true to enable debug level logging

	Main struct {
		Name     string    // node name, included in logs
		Log      LogConfig // application log file
		EventLog LogConfig // structured tracking event audit log
	}

	Redis     RedisSettings
	Tracker   TrackerSettings
	Expiry    ExpirySettings
	EventBus  EventBusSettings
	Output    OutputSettings
	WebServer WebServerSettings
	Telemetry TelemetrySettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("platewatch")
	viper.AutomaticEnv()

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file, run on defaults and environment
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the config file search paths in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "platewatch"))
	}
	paths = append(paths, "/etc/platewatch")

	return paths, nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
