package daraja

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, calls *int32, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		require.Equal(t, http.MethodPost, r.Method, "the credential exchange is a POST")

		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "token endpoint requires basic auth")
		require.Equal(t, "key", user)
		require.Equal(t, "secret", pass)

		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
		}
	}))
}

func TestTokenCache_ReusesTokenWithinTTL(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls, http.StatusOK)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "key", "secret")

	tok1, err := tc.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok1)

	tok2, err := tc.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, tok1, tok2)

	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "second call within TTL must not hit the gateway")
}

func TestTokenCache_RefreshesInsideSkewWindow(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls, http.StatusOK)
	defer srv.Close()

	now := time.Now()
	tc := NewTokenCache(srv.URL, "key", "secret")
	tc.now = func() time.Time { return now }

	_, err := tc.GetToken(context.Background())
	require.NoError(t, err)

	// 3599s TTL minus the 120s skew: expiry at +3479s. Step past it.
	now = now.Add(3480 * time.Second)

	_, err = tc.GetToken(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls), "a call inside the skew window must refresh")
}

func TestTokenCache_AuthErrorOnNonSuccess(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls, http.StatusUnauthorized)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "key", "secret")

	_, err := tc.GetToken(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusUnauthorized, authErr.Status)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "the cache itself never retries")
}
