// internal/common/push/client.go
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kalikascan-admin/internal/common/config"
	commonhttp "kalikascan-admin/internal/common/http"
)

// Client talks to the indie push provider. A push is addressed by the
// recipient's subscriber id, which for this app is the user's uid.
type Client struct {
	baseURL    string
	appID      int
	appToken   string
	httpClient *commonhttp.Client
}

type indieRequest struct {
	SubID    string `json:"subID"`
	AppID    int    `json:"appId"`
	AppToken string `json:"appToken"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	PushData string `json:"pushData,omitempty"`
}

func NewClient(cfg config.NotificationConfig) *Client {
	timeout := time.Duration(cfg.Push.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.Push.BaseURL, "/"),
		appID:      cfg.Push.AppID,
		appToken:   cfg.Push.AppToken,
		httpClient: commonhttp.NewClient(timeout),
	}
}

// SendIndie sends one push to a single subscriber. data is serialized into
// the provider's pushData string field.
func (c *Client) SendIndie(ctx context.Context, subID, title, message string, data map[string]string) error {
	if subID == "" {
		return fmt.Errorf("push: empty subscriber id")
	}

	body := indieRequest{
		SubID:    subID,
		AppID:    c.appID,
		AppToken: c.appToken,
		Title:    title,
		Message:  message,
	}
	if len(data) > 0 {
		dataJSON, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("push: marshal pushData: %w", err)
		}
		body.PushData = string(dataJSON)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("push: marshal request: %w", err)
	}

	url := c.baseURL + "/api/indie/notification"
	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push: provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
