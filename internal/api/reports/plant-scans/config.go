// internal/api/reports/plant-scans/config.go
package plantscans

import "time"

type Config struct {
	Timeout      time.Duration
	Index        string
	DefaultLimit int
	MaxLimit     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		Index:        "plant-scans",
		DefaultLimit: 20,
		MaxLimit:     100,
	}
}
