// Package heartbeat pings an external monitoring URL after each completed
// watch cycle so a dead process is noticed from outside.
package heartbeat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Pinger issues the outbound liveness GET. A Pinger with an empty URL is
// disabled and every Ping is a no-op.
type Pinger struct {
	url        string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewPinger creates a Pinger for url. Pass an empty url to disable pinging.
func NewPinger(url string, timeout time.Duration, log zerolog.Logger) *Pinger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Pinger{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 2,
		retryDelay: 500 * time.Millisecond,
		log:        log,
	}
}

// Enabled reports whether a ping URL is configured.
func (p *Pinger) Enabled() bool {
	return p.url != ""
}

// Ping performs the liveness GET with retry on transport errors and 5xx
// responses. A 4xx response means the URL itself is wrong and is returned
// without retrying.
func (p *Pinger) Ping(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	var lastErr error

	for i := 0; i < p.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * p.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
		if err != nil {
			return err
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("ping rejected: %d", resp.StatusCode)
		}

		p.log.Debug().Str("url", p.url).Msg("heartbeat delivered")
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
