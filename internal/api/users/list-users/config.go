// internal/api/users/list-users/config.go
package listusers

import "time"

type Config struct {
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		DefaultLimit: 50,
		MaxLimit:     200,
	}
}
