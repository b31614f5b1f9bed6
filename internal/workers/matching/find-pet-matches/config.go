// internal/workers/matching/find-pet-matches/config.go
package findpetmatches

import "time"

type Config struct {
	Timeout time.Duration
	// PoolLimit caps how many opposite-kind reports are loaded from the record source.
	PoolLimit int
	// MaxResults caps the returned matches when the job does not set a limit.
	MaxResults int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    10 * time.Second,
		PoolLimit:  500,
		MaxResults: 25,
	}
}
