package config

import (
	"fmt"
	"time"
)

// Default timeouts used when a tier does not specify one (§6).
const (
	DefaultPollInterval = 10 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
	DefaultLockTimeout  = 30 * time.Minute
)

// Duration wraps time.Duration so it can be written as "30s", "5m", etc. in
// TOML instead of a raw nanosecond integer.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
