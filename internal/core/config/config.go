package config

import (
	"fmt"
	"time"

	redisclient "github.com/vietddude/lifeline/internal/infra/redis"
	"github.com/vietddude/lifeline/internal/infra/storage/postgres"
	"github.com/vietddude/lifeline/internal/recovery"
)

// Duration parses YAML values like "10s" or "5m". yaml.v2 cannot decode
// those into time.Duration directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Backend  BackendConfig      `yaml:"backend"`
	Session  SessionConfig      `yaml:"session"`
	Recorder RecorderConfig     `yaml:"recorder"`
	Recovery RecoveryConfig     `yaml:"recovery"`
	Storage  StorageConfig      `yaml:"storage"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds the health/metrics listener settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC health surface
}

// BackendConfig holds the auth backend settings.
type BackendConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	// Skew is subtracted from the token expiry so the session refreshes
	// slightly before the server would reject it.
	Skew Duration `yaml:"skew"`
}

// RecoveryConfig holds the restart controller thresholds.
type RecoveryConfig struct {
	Window       Duration `yaml:"window"`
	Threshold    int      `yaml:"threshold"`
	Cooldown     Duration `yaml:"cooldown"`
	MaxAttempts  int      `yaml:"max_attempts"`
	ConfirmAfter Duration `yaml:"confirm_after"`
}

// Controller converts the parsed thresholds into the controller's own
// config type. Zero values pick up the controller defaults.
func (c RecoveryConfig) Controller() recovery.Config {
	return recovery.Config{
		Window:       time.Duration(c.Window),
		Threshold:    c.Threshold,
		Cooldown:     time.Duration(c.Cooldown),
		MaxAttempts:  c.MaxAttempts,
		ConfirmAfter: time.Duration(c.ConfirmAfter),
	}
}

// RecorderConfig holds error recorder settings.
type RecorderConfig struct {
	Capacity int `yaml:"capacity"`
	// SinkURL is an optional remote collector for error records.
	SinkURL string `yaml:"sink_url"`
	// Pattern lists are configuration on purpose: the heuristics are
	// tunable without a code change. Empty lists mean defaults.
	CriticalPatterns  []string `yaml:"critical_patterns"`
	IgnorablePatterns []string `yaml:"ignorable_patterns"`
}

// StorageConfig selects the durable key-value backend. Redis wins when
// both are configured; an empty config falls back to in-memory.
type StorageConfig struct {
	// FilePath is the JSON state file for file-backed storage.
	FilePath string `yaml:"file_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
