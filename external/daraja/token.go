package daraja

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// refreshSkew refreshes the token this long before the gateway's reported
// expiry, absorbing clock skew and requests already in flight.
const refreshSkew = 2 * time.Minute

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"` // Daraja reports seconds as a string
}

// TokenCache caches the short-lived bearer credential for the gateway.
// It performs the Basic-auth exchange itself; retry on failure is the
// transport's job, not ours.
type TokenCache struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	client         *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

func NewTokenCache(baseURL, consumerKey, consumerSecret string) *TokenCache {
	return &TokenCache{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		client:         &http.Client{Timeout: 5 * time.Second},
		now:            time.Now,
	}
}

// GetToken returns the cached token while it is still fresh, otherwise
// exchanges credentials for a new one.
func (t *TokenCache) GetToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.expiresAt) {
		return t.token, nil
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		t.baseURL+"/oauth/v1/generate?grant_type=client_credentials",
		nil,
	)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(t.consumerKey, t.consumerSecret)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Status: resp.StatusCode}
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	ttl := parseTTL(out.ExpiresIn)

	t.token = out.AccessToken
	t.expiresAt = t.now().Add(ttl - refreshSkew)
	return t.token, nil
}

func parseTTL(s string) time.Duration {
	d, err := time.ParseDuration(s + "s")
	if err != nil || d <= 0 {
		return time.Hour // Daraja's documented default
	}
	return d
}
