// internal/workers/registration/check-fulfillment-status/config.go
package checkfulfillmentstatus

import (
	"time"

	"registration-workflow/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{Timeout: 10 * time.Second}
}

// FromWorkerConfig takes the job timeout from the worker section.
func FromWorkerConfig(wc config.WorkerConfig) *Config {
	cfg := DefaultConfig()
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	return cfg
}
