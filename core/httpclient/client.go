// Package httpclient builds the tuned HTTP clients used for Telegram and the flight data APIs.
package httpclient

import (
	"io"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/aviabot/core/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 5 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryBackoff      = 2 * time.Second
)

// Options tune a client. Zero values fall back to the Telegram defaults.
type Options struct {
	// Timeout bounds the whole request including body read.
	Timeout time.Duration
	// ResponseHeaderTimeout bounds waiting for response headers.
	ResponseHeaderTimeout time.Duration
	// Retries is the number of extra attempts after a transient failure; 0 disables retries.
	Retries int
	Backoff time.Duration
}

// Telegram returns options used for Bot API calls: three retries on transient failures.
func Telegram() Options {
	return Options{Retries: 3}
}

// New returns an HTTP client built from opts.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultClientTimeout
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = defaultResponseTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultRetryBackoff
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Retries > 0 {
		transport = &retryTransport{
			base:       transport,
			maxRetries: opts.Retries,
			backoff:    opts.Backoff,
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	var (
		lastResp *http.Response
		lastErr  error
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			}
		}

		resp, err := base.RoundTrip(currReq)
		lastResp, lastErr = resp, err
		retry := false
		switch {
		case err != nil:
			retry = netutil.ShouldRetry(err)
		case netutil.ShouldRetryStatus(resp.StatusCode):
			retry = true
		}
		if !retry || attempt == attempts || !replayable(req) {
			break
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastResp = nil
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}
