package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Refresh this long before the provider-reported expiry so an in-flight
// request never rides a token that dies mid-call.
const tokenExpiryMargin = 30 * time.Second

// TokenCache lazily acquires and caches the gateway bearer token. The mutex
// covers the whole check-then-refresh sequence, so concurrent callers that
// find the token stale produce exactly one exchange; the losers reuse the
// winner's result.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	exchange func(ctx context.Context) (string, time.Duration, error)
}

func NewTokenCache(exchange func(ctx context.Context) (string, time.Duration, error)) *TokenCache {
	return &TokenCache{exchange: exchange}
}

func (tc *TokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.token != "" && time.Now().Add(tokenExpiryMargin).Before(tc.expiresAt) {
		return tc.token, nil
	}

	token, ttl, err := tc.exchange(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenAcquisitionFailed, err)
	}

	tc.token = token
	tc.expiresAt = time.Now().Add(ttl)
	log.Info().Time("expires_at", tc.expiresAt).Msg("refreshed gateway access token")

	return tc.token, nil
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

func (c *Client) exchangeToken(ctx context.Context) (string, time.Duration, error) {
	u := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", c.cfg.BaseURL)

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %v", err)
	}
	r.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	rsp, err := c.http.Do(r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to exec request: %v", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}(rsp.Body)

	if rsp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(rsp.Body)
		return "", 0, fmt.Errorf("gateway returned a non-OK status code %d: %s", rsp.StatusCode, string(body))
	}

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read response body: %v", err)
	}

	var res tokenResponse
	if err = json.Unmarshal(body, &res); err != nil {
		return "", 0, fmt.Errorf("failed to unmarshal response body: %v", err)
	}
	if res.AccessToken == "" {
		return "", 0, fmt.Errorf("gateway returned no access token")
	}

	ttlSecs, err := res.ExpiresIn.Int64()
	if err != nil || ttlSecs <= 0 {
		// Daraja reports 3599 as a string; fall back to that if missing.
		ttlSecs = 3599
	}

	return res.AccessToken, time.Duration(ttlSecs) * time.Second, nil
}
