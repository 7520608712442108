// internal/api/presence/heartbeat/models.go
package heartbeat

import "time"

type Output struct {
	Success   bool      `json:"success"`
	UID       string    `json:"uid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type OnlineOutput struct {
	Online []string `json:"online"`
	Count  int      `json:"count"`
}
