// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the arXiv client and the
// PDF fetcher.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryBaseDelay is the first backoff wait after a throttled response; it
// doubles on each further attempt. arXiv asks clients to space requests by
// three seconds. Tests override this to avoid real sleeps.
var RetryBaseDelay = 3 * time.Second

// MaxRetryAfter caps a server-supplied Retry-After wait.
var MaxRetryAfter = 60 * time.Second

const defaultMaxRetries = 3

// Throttled reports whether status asks the client to back off and retry.
func Throttled(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// DoWithRetry executes req and retries throttled responses (429 and 503)
// up to maxRetries times. The wait honours a Retry-After header given in
// seconds, otherwise it is RetryBaseDelay doubled per attempt.
//
// When maxRetries is 0 the default (3) is used. Throttled response bodies
// are drained and closed before waiting. If ctx is cancelled during a wait
// the function returns ctx.Err(). After exhausting retries the last
// throttled response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if !Throttled(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryDelay(resp.Header.Get("Retry-After"), attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryDelay(retryAfter string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		return min(time.Duration(secs)*time.Second, MaxRetryAfter)
	}
	return RetryBaseDelay << attempt
}
