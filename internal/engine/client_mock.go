package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/you/go-flight-aggregator/internal/providers"
)

// ClientMock is a scriptable provider adapter for tests.
type ClientMock struct {
	name      string
	raw       providers.RawResponse
	err       error
	delay     time.Duration
	callCount *int32
}

func (c *ClientMock) Name() string { return c.name }

func (c *ClientMock) Search(ctx context.Context, _ string, _ providers.SearchRequest) (providers.RawResponse, error) {
	if c.callCount != nil {
		atomic.AddInt32(c.callCount, 1)
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return providers.RawResponse{}, ctx.Err()
		}
	}
	if c.err != nil {
		return providers.RawResponse{}, c.err
	}
	return c.raw, nil
}
