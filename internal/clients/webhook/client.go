package webhook

import (
	"context"
	"time"

	"busrelay/internal/httpclient"
	"busrelay/internal/logging"
)

// Client posts JSON documents to a single configured URL.
type Client struct {
	http   *httpclient.Client
	logger logging.Logger
}

func New(url string, timeout time.Duration, logger logging.Logger, opts ...httpclient.Option) (*Client, error) {
	httpCli, err := httpclient.New(url, timeout, logger.With("component", "webhook_http"), opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:   httpCli,
		logger: logger,
	}, nil
}

// Deliver posts body to the webhook. Any response body is ignored.
func (c *Client) Deliver(ctx context.Context, body any) error {
	return c.http.PostJSON(ctx, "", body, nil)
}
