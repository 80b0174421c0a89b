package catalog

import (
	"context"

	"github.com/aferrazza/tunecrate/internal/telemetry"
)

// InstrumentedClient wraps a Client with telemetry.
type InstrumentedClient struct {
	client     Client
	telemetry  *telemetry.Telemetry
	clientType string
}

// NewInstrumentedClient creates a new instrumented catalog client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry, clientType string) *InstrumentedClient {
	return &InstrumentedClient{
		client:     client,
		telemetry:  tel,
		clientType: clientType,
	}
}

// Search searches the catalog with telemetry.
func (c *InstrumentedClient) Search(ctx context.Context, query string, limit int) ([]TrackCandidate, error) {
	var result []TrackCandidate

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "search", func(ctx context.Context) error {
		result, err = c.client.Search(ctx, query, limit)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// Fetch fetches a track with telemetry.
func (c *InstrumentedClient) Fetch(ctx context.Context, externalID string, onProgress ProgressFunc) (*FetchResult, error) {
	var result *FetchResult

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "fetch", func(ctx context.Context) error {
		result, err = c.client.Fetch(ctx, externalID, onProgress)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// Enumerate expands a playlist with telemetry.
func (c *InstrumentedClient) Enumerate(ctx context.Context, playlistURL string) ([]TrackCandidate, error) {
	var result []TrackCandidate

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "enumerate", func(ctx context.Context) error {
		result, err = c.client.Enumerate(ctx, playlistURL)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
