package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newFastClient returns a client with retries enabled and sleeping disabled,
// so backoff paths run without slowing the suite down.
func newFastClient(maxRetries int) *Client {
	c := NewClient(Config{
		MaxRetries:     maxRetries,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	c.sleep = func(time.Duration) {}
	return c
}

// countingServer serves the dataset payload after failing the first
// failures requests with status.
func countingServer(t *testing.T, failures int32, status int, payload string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= failures {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

/*
TestNewClient_Defaults pins the zero-config behavior: a bounded timeout (an
unbounded download would hang a nightly run), no retries, and positive
backoff bounds. The TLS knob must land on the default transport.
*/
func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})

	if c.httpClient.Timeout <= 0 {
		t.Fatalf("default timeout = %v, want > 0", c.httpClient.Timeout)
	}
	if c.maxRetries != 0 {
		t.Fatalf("default maxRetries = %d, want 0", c.maxRetries)
	}
	if c.initialBackoff <= 0 || c.maxBackoff <= 0 {
		t.Fatalf("default backoff = %v/%v, want both > 0", c.initialBackoff, c.maxBackoff)
	}

	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport is %T, want *http.Transport", c.httpClient.Transport)
	}
	if tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("InsecureSkipVerify not applied to default transport")
	}
}

/*
TestGet_RetryBehavior covers the attempt accounting for the download path:
a healthy server is hit once, a flapping one is retried until it recovers,
and 4xx responses come straight back without burning retries.
*/
func TestGet_RetryBehavior(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		failures    int32
		failStatus  int
		maxRetries  int
		wantStatus  int
		wantErr     bool
		wantAttempt int32
	}{
		{
			name:        "healthy server, one attempt",
			failures:    0,
			maxRetries:  3,
			wantStatus:  http.StatusOK,
			wantAttempt: 1,
		},
		{
			name:        "two 500s then recovery",
			failures:    2,
			failStatus:  http.StatusInternalServerError,
			maxRetries:  3,
			wantStatus:  http.StatusOK,
			wantAttempt: 3,
		},
		{
			name:        "persistent 503 exhausts retries",
			failures:    10,
			failStatus:  http.StatusServiceUnavailable,
			maxRetries:  2,
			wantErr:     true,
			wantAttempt: 3, // initial + 2 retries
		},
		{
			name:        "404 is not retried",
			failures:    10,
			failStatus:  http.StatusNotFound,
			maxRetries:  5,
			wantStatus:  http.StatusNotFound,
			wantAttempt: 1,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv, hits := countingServer(t, tc.failures, tc.failStatus, "Invoice,StockCode\n")
			c := newFastClient(tc.maxRetries)

			resp, err := c.Get(context.Background(), srv.URL, nil)
			if tc.wantErr {
				if err == nil {
					resp.Body.Close()
					t.Fatal("expected error after exhausting retries")
				}
			} else {
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				defer resp.Body.Close()
				if resp.StatusCode != tc.wantStatus {
					t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
				}
			}
			if got := atomic.LoadInt32(hits); got != tc.wantAttempt {
				t.Fatalf("server saw %d attempts, want %d", got, tc.wantAttempt)
			}
		})
	}
}

/*
TestGet_BackoffInvoked makes sure the sleep hook actually fires between
retries; without it a flapping dataset host would be hammered back to back.
*/
func TestGet_BackoffInvoked(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t, 1, http.StatusBadGateway, "ok")
	c := newFastClient(2)

	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if len(sleeps) != 1 {
		t.Fatalf("sleep invoked %d times, want 1", len(sleeps))
	}
}

// TestBackoffDuration checks the doubling sequence and the clamp.
func TestBackoffDuration(t *testing.T) {
	t.Parallel()

	const initial = 250 * time.Millisecond
	const max = 2 * time.Second

	want := []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		2 * time.Second, // clamped
	}
	for attempt, w := range want {
		if got := backoffDuration(initial, attempt, max); got != w {
			t.Errorf("backoffDuration(attempt=%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestIsRetryableStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{429, 500, 502, 503} {
		if !isRetryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 301, 400, 403, 404} {
		if isRetryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

/*
TestCustomTransport: a caller-supplied transport is used verbatim; the
config's TLS shortcut must not be layered on top of it.
*/
func TestCustomTransport(t *testing.T) {
	t.Parallel()

	custom := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: false},
	}
	c := NewClient(Config{
		Transport:          custom,
		InsecureSkipVerify: true,
	})

	if c.httpClient.Transport != custom {
		t.Fatalf("custom transport was replaced")
	}
	if custom.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("InsecureSkipVerify leaked onto the custom transport")
	}
}

// TestSleepWithContext_Canceled: cancellation cuts the wait short.
func TestSleepWithContext_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepWithContext(ctx, time.Sleep, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleepWithContext waited despite canceled context")
	}
}

func BenchmarkBackoffDuration(b *testing.B) {
	for i := 0; i < b.N; i++ {
		backoffDuration(100*time.Millisecond, i%8, time.Second)
	}
}
