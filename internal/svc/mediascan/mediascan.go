package mediascan

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client triggers a library rescan on an external media server after
// the library contents change. Callers treat the scan as best-effort;
// failures only surface in logs.
type Client struct {
	client   *http.Client
	scanURL  string
	apiToken string
}

func NewClient(scanURL, apiToken string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		scanURL:  scanURL,
		apiToken: apiToken,
	}
}

// TriggerScan asks the media server to rescan its library.
func (c *Client) TriggerScan(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scanURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiToken != "" {
		req.Header.Set("X-Api-Token", c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("url: %s, status: %d", c.scanURL, resp.StatusCode)
	}

	return nil
}
