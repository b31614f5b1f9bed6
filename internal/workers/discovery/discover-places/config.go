// internal/workers/discovery/discover-places/config.go
package discoverplaces

import "time"

type Config struct {
	// Timeout bounds one job. Discovery has its own tighter deadline inside.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 20 * time.Second,
	}
}
