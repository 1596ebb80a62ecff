// Package smoke runs the example image and checks that it serves.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bootci/internal/config"
)

var (
	// ErrSmokeFailed wraps every failure of the smoke step itself, as
	// opposed to engine errors while setting it up.
	ErrSmokeFailed = errors.New("smoke test failed")

	// ErrNotReady is returned when the container never answered HTTP.
	ErrNotReady = errors.New("container not ready")
)

// maxBody caps how much of a response is read for Contains matching.
const maxBody = 1 << 20

// WaitOptions tunes WaitReady.
type WaitOptions struct {
	// Grace is slept before the first request.
	Grace time.Duration
	// Timeout bounds the poll that follows Grace.
	Timeout time.Duration
	// Alive, when set, runs before every attempt; an error ends the wait
	// immediately (e.g. the container exited).
	Alive func(context.Context) error

	Client *http.Client
}

// NewClient returns the client smoke requests use. Compression is left to
// the caller so Accept-Encoding and Content-Encoding reach checks untouched.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{DisableCompression: true},
	}
}

// WaitReady sleeps opts.Grace, then polls url with exponential backoff until
// a response below 500 arrives or opts.Timeout elapses. A 5xx usually means a
// proxy in front of an app that is still starting, so it is retried; 4xx
// counts as ready and is left for the checks to judge.
func WaitReady(ctx context.Context, url string, opts WaitOptions) error {
	if opts.Grace > 0 {
		t := time.NewTimer(opts.Grace)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	client := opts.Client
	if client == nil {
		client = NewClient(5 * time.Second)
	}

	pollCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = opts.Timeout

	attempts := 0
	op := func() error {
		attempts++
		if opts.Alive != nil {
			if err := opts.Alive(pollCtx); err != nil {
				return backoff.Permanent(err)
			}
		}
		req, err := http.NewRequestWithContext(pollCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, pollCtx)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrNotReady, url, attempts, err)
	}
	return nil
}

// CheckHTTP issues GET baseURL+check.Path and verifies the response.
// Status 0 accepts any 2xx. Headers match when the response value contains
// the wanted value, so "text/css" matches "text/css; charset=utf-8"; an empty
// wanted value requires the header to be absent.
func CheckHTTP(ctx context.Context, client *http.Client, baseURL string, check config.Check) error {
	if client == nil {
		client = NewClient(10 * time.Second)
	}
	url := JoinURL(baseURL, check.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	for k, v := range check.RequestHeaders {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("GET %s: read body: %w", url, err)
	}

	switch {
	case check.Status != 0 && resp.StatusCode != check.Status:
		return fmt.Errorf("GET %s: status %d, want %d", url, resp.StatusCode, check.Status)
	case check.Status == 0 && (resp.StatusCode < 200 || resp.StatusCode > 299):
		return fmt.Errorf("GET %s: status %d, want 2xx", url, resp.StatusCode)
	}

	if check.Contains != "" && !strings.Contains(string(body), check.Contains) {
		return fmt.Errorf("GET %s: body does not contain %q (got %q)", url, check.Contains, snippet(body))
	}

	for _, k := range slices.Sorted(maps.Keys(check.Headers)) {
		want := check.Headers[k]
		got := resp.Header.Get(k)
		switch {
		case want == "" && len(resp.Header.Values(k)) > 0:
			return fmt.Errorf("GET %s: header %s = %q, want absent", url, k, got)
		case want != "" && !strings.Contains(got, want):
			return fmt.Errorf("GET %s: header %s = %q, want %q", url, k, got, want)
		}
	}
	return nil
}

// JoinURL appends path to base without doubling the slash.
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func snippet(b []byte) string {
	const n = 200
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
