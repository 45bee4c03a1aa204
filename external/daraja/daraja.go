package daraja

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"regexp"
	"time"
)

var phonePattern = regexp.MustCompile(`^254\d{9}$`)

// Client issues STK-push and C2B registration requests against the Daraja
// gateway. Callers normalize phone numbers first (see services.NormalizePhone);
// the client only validates the canonical form.
type Client struct {
	baseURL     string
	shortCode   string
	passKey     string
	callbackURL string

	tokens    *TokenCache
	transport *Transport

	now func() time.Time
}

func NewClient(baseURL, consumerKey, consumerSecret, shortCode, passKey, callbackURL string) *Client {
	breaker := NewCircuitBreaker()
	return &Client{
		baseURL:     baseURL,
		shortCode:   shortCode,
		passKey:     passKey,
		callbackURL: callbackURL,
		tokens:      NewTokenCache(baseURL, consumerKey, consumerSecret),
		transport:   NewTransport(breaker),
		now:         time.Now,
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// InitiateSTKPush prompts the payer's phone for authorization and returns the
// gateway's correlation identifiers. The outcome arrives later via webhook.
func (c *Client) InitiateSTKPush(ctx context.Context, amount int64, phoneNumber, accountReference, description string) (checkoutRequestID, merchantRequestID string, err error) {
	if amount <= 0 {
		return "", "", &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !phonePattern.MatchString(phoneNumber) {
		return "", "", &ValidationError{Field: "phone", Reason: "must match 254XXXXXXXXX"}
	}

	timestamp := c.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passKey + timestamp))

	body, err := json.Marshal(stkPushRequest{
		BusinessShortCode: c.shortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phoneNumber,
		PartyB:            c.shortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       c.callbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   description,
	})
	if err != nil {
		return "", "", err
	}

	out, err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", body)
	if err != nil {
		return "", "", err
	}

	var resp stkPushResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", "", err
	}
	return resp.CheckoutRequestID, resp.MerchantRequestID, nil
}

type registerURLRequest struct {
	ShortCode       string `json:"ShortCode"`
	ResponseType    string `json:"ResponseType"`
	ConfirmationURL string `json:"ConfirmationURL"`
	ValidationURL   string `json:"ValidationURL"`
}

// RegisterCallbackURLs performs the one-shot C2B registration of the
// confirmation and validation endpoints with the gateway.
func (c *Client) RegisterCallbackURLs(ctx context.Context, confirmationURL, validationURL string) error {
	body, err := json.Marshal(registerURLRequest{
		ShortCode:       c.shortCode,
		ResponseType:    "Completed",
		ConfirmationURL: confirmationURL,
		ValidationURL:   validationURL,
	})
	if err != nil {
		return err
	}

	_, err = c.post(ctx, "/mpesa/c2b/v1/registerurl", body)
	return err
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.transport.Execute(ctx, http.MethodPost, c.baseURL+path, body, func(ctx context.Context) (map[string]string, error) {
		token, err := c.tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		}, nil
	})
}
