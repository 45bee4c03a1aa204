package model

import (
	"encoding/json"
	"time"
)

// CallbackRecord is the raw reconciliation record of one gateway webhook,
// keyed by checkout request. Redeliveries upsert into the same row.
type CallbackRecord struct {
	CheckoutRequestID string    `db:"checkoutrequestid" json:"checkout_request_id"`
	MerchantRequestID string    `db:"merchantrequestid" json:"merchant_request_id"`
	ResultCode        int       `db:"resultcode" json:"result_code"`
	ResultDesc        string    `db:"resultdesc" json:"result_desc"`
	Amount            int64     `db:"amount" json:"amount"`
	ReceiptNumber     string    `db:"receiptnumber" json:"receipt_number"`
	PhoneNumber       string    `db:"phonenumber" json:"phone_number"`
	TransactionDate   string    `db:"transactiondate" json:"transaction_date"`
	RawPayload        []byte    `db:"rawpayload" json:"-"`
	ReceivedAt        time.Time `db:"receivedat" json:"received_at"`
}

// The gateway wraps the callback in Body.stkCallback with metadata as a list
// of name/value items whose value types vary (numbers, strings).
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
			MerchantRequestID string `json:"MerchantRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// StkCallback is the decoded webhook. Metadata items are optional on the
// wire; Has* flags tell best-effort recording apart from a genuine zero.
type StkCallback struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string

	Amount          int64
	HasAmount       bool
	ReceiptNumber   string
	HasReceipt      bool
	PhoneNumber     string
	TransactionDate string
}

// DecodeStkCallback parses the nested envelope, tolerating missing or
// reordered metadata items.
func DecodeStkCallback(raw []byte) (*StkCallback, error) {
	var env stkCallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	sc := env.Body.StkCallback
	out := &StkCallback{
		CheckoutRequestID: sc.CheckoutRequestID,
		MerchantRequestID: sc.MerchantRequestID,
		ResultCode:        sc.ResultCode,
		ResultDesc:        sc.ResultDesc,
	}

	if sc.CallbackMetadata == nil {
		return out, nil
	}

	for _, item := range sc.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			// the gateway sends whole shillings as a JSON number
			var v float64
			if err := json.Unmarshal(item.Value, &v); err == nil {
				out.Amount = int64(v)
				out.HasAmount = true
			}
		case "MpesaReceiptNumber":
			var v string
			if err := json.Unmarshal(item.Value, &v); err == nil && v != "" {
				out.ReceiptNumber = v
				out.HasReceipt = true
			}
		case "PhoneNumber":
			// sometimes a number, sometimes a string
			var s string
			if err := json.Unmarshal(item.Value, &s); err == nil {
				out.PhoneNumber = s
			} else {
				var n json.Number
				if err := json.Unmarshal(item.Value, &n); err == nil {
					out.PhoneNumber = n.String()
				}
			}
		case "TransactionDate":
			var n json.Number
			if err := json.Unmarshal(item.Value, &n); err == nil {
				out.TransactionDate = n.String()
			} else {
				var s string
				if err := json.Unmarshal(item.Value, &s); err == nil {
					out.TransactionDate = s
				}
			}
		}
	}
	return out, nil
}
