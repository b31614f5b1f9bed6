// internal/workers/matching/calculate-pet-match-score/config.go
package calculatepetmatchscore

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}
