// internal/api/applications/review-application/config.go
package reviewapplication

import "time"

type Config struct {
	Timeout       time.Duration
	NotifyTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       10 * time.Second,
		NotifyTimeout: 10 * time.Second,
	}
}
