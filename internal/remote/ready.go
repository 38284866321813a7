package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultReadyTimeout  = 2 * time.Minute
	defaultProbeInterval = 500 * time.Millisecond
)

// WaitReady polls the upstream health endpoint with exponential backoff until
// it answers or the deadline passes. This is the only place the gateway
// retries anything: mutations are never retried.
func WaitReady(ctx context.Context, baseURL string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}

	probe := &http.Client{Timeout: 5 * time.Second}
	endpoint := baseURL + "/health"

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultProbeInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := probeOnce(ctx, probe, endpoint); err != nil {
			slog.Debug("Upstream not ready yet", "endpoint", endpoint, "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(timeout))
	if err != nil {
		return fmt.Errorf("upstream %s not ready after %s: %w", baseURL, timeout, err)
	}

	slog.Info("Upstream ready", "endpoint", endpoint, "attempts", attempt)
	return nil
}

// Probe performs a single health check against the upstream, without retry.
// The readiness endpoint uses this so its answer reflects the upstream now.
func Probe(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	return probeOnce(ctx, client, baseURL+"/health")
}

func probeOnce(ctx context.Context, client *http.Client, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		// A malformed URL will never become healthy.
		return backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}
