package providers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/you/go-flight-aggregator/internal/token"
)

// transport is the call skeleton every adapter shares: bounded timeout, status
// classification, and the one permitted 401 → refresh → retry. Adapters supply
// only request building and response parsing.
type transport struct {
	provider string
	client   *http.Client
	timeout  time.Duration
	tokens   *token.Manager
}

func newTransport(provider string, timeout time.Duration, tokens *token.Manager) *transport {
	return &transport{
		provider: provider,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		tokens:   tokens,
	}
}

// do issues the request built by build and returns the response body.
// A 401 invalidates the cached token, refreshes through the Manager, and
// retries exactly once with the fresh token; a second 401 fails hard.
func (t *transport) do(ctx context.Context, tok string, build func(tok string) (*http.Request, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, retry, err := t.doOnce(ctx, tok, build)
	if !retry {
		return body, err
	}

	t.tokens.Invalidate(t.provider)
	fresh, err := t.tokens.GetValidToken(ctx, t.provider)
	if err != nil {
		return nil, err
	}
	body, retry, err = t.doOnce(ctx, fresh, build)
	if retry {
		return nil, &token.AuthError{Provider: t.provider, Message: "token rejected after refresh"}
	}
	return body, err
}

func (t *transport) doOnce(ctx context.Context, tok string, build func(tok string) (*http.Request, error)) (body []byte, authExpired bool, err error) {
	req, err := build(tok)
	if err != nil {
		return nil, false, err
	}
	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return nil, true, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, false, ErrRateLimited
	case resp.StatusCode >= 300:
		io.Copy(io.Discard, resp.Body)
		return nil, false, &StatusError{Provider: t.provider, Code: resp.StatusCode, Message: resp.Status}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return b, false, nil
}
