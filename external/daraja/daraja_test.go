package daraja

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newGatewayServer(t *testing.T, pushCalls *int, lastPush *stkPushRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
	})

	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		*pushCalls++
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(lastPush))
		w.Write([]byte(`{"CheckoutRequestID":"ws_CO_1","MerchantRequestID":"mr_1","ResponseCode":"0"}`))
	})

	mux.HandleFunc("/mpesa/c2b/v1/registerurl", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ConversationID":"c1","ResponseCode":"0"}`))
	})

	return httptest.NewServer(mux)
}

func newTestClient(baseURL string) *Client {
	c := NewClient(baseURL, "key", "secret", "174379", "passkey", "https://hub.example.com/callback")
	c.transport.backoffBase = time.Millisecond
	return c
}

func TestInitiateSTKPush_BuildsRequestAndReturnsCorrelationIDs(t *testing.T) {
	var pushCalls int
	var lastPush stkPushRequest
	srv := newGatewayServer(t, &pushCalls, &lastPush)
	defer srv.Close()

	c := newTestClient(srv.URL)
	fixed := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	checkout, merchant, err := c.InitiateSTKPush(context.Background(), 1500, "254712345678", "SUB-7-x", "Pro plan")
	require.NoError(t, err)
	require.Equal(t, "ws_CO_1", checkout)
	require.Equal(t, "mr_1", merchant)
	require.Equal(t, 1, pushCalls)

	require.Equal(t, "174379", lastPush.BusinessShortCode)
	require.Equal(t, "CustomerPayBillOnline", lastPush.TransactionType)
	require.EqualValues(t, 1500, lastPush.Amount)
	require.Equal(t, "254712345678", lastPush.PartyA)
	require.Equal(t, "254712345678", lastPush.PhoneNumber)
	require.Equal(t, "174379", lastPush.PartyB)
	require.Equal(t, "https://hub.example.com/callback", lastPush.CallBackURL)
	require.Equal(t, "20260314150926", lastPush.Timestamp)

	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20260314150926"))
	require.Equal(t, wantPassword, lastPush.Password)
}

func TestInitiateSTKPush_RejectsBadPhoneWithoutNetworkCall(t *testing.T) {
	var pushCalls int
	var lastPush stkPushRequest
	srv := newGatewayServer(t, &pushCalls, &lastPush)
	defer srv.Close()

	c := newTestClient(srv.URL)

	for _, phone := range []string{
		"0712345678",    // local format, caller should have normalized
		"25471234567",   // 10 digits after prefix missing one
		"2547123456789", // too long
		"+254712345678", // '+' must already be stripped
	} {
		_, _, err := c.InitiateSTKPush(context.Background(), 100, phone, "ref", "desc")

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "phone %q", phone)
	}

	_, _, err := c.InitiateSTKPush(context.Background(), 0, "254712345678", "ref", "desc")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr, "non-positive amount")

	require.Zero(t, pushCalls, "validation failures never reach the gateway")
}

func TestRegisterCallbackURLs(t *testing.T) {
	var pushCalls int
	var lastPush stkPushRequest
	srv := newGatewayServer(t, &pushCalls, &lastPush)
	defer srv.Close()

	c := newTestClient(srv.URL)

	err := c.RegisterCallbackURLs(context.Background(), "https://hub.example.com/confirm", "https://hub.example.com/validate")
	require.NoError(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{}}}`)

	// hex hmac-sha256 of body with "topsecret"
	require.False(t, VerifySignature(body, "deadbeef", "topsecret"))
	require.False(t, VerifySignature(body, "", "topsecret"))

	sig := signBody(body, "topsecret")
	require.True(t, VerifySignature(body, sig, "topsecret"))
	require.False(t, VerifySignature(append(body, ' '), sig, "topsecret"))
}
