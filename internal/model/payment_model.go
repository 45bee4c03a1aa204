package model

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// MaxRetries bounds how many times a failed payment may be re-driven.
const MaxRetries = 3

type Payment struct {
	PaymentID         string            `db:"paymentid" json:"payment_id"`
	PayerID           int64             `db:"payerid" json:"payer_id"`
	OrgID             int64             `db:"orgid" json:"org_id"`
	Amount            int64             `db:"amount" json:"amount"`
	Provider          string            `db:"provider" json:"provider"`
	Status            PaymentStatus     `db:"status" json:"status"`
	PhoneEncrypted    string            `db:"phoneencrypted" json:"-"` // never JSON-encode
	CheckoutRequestID string            `db:"checkoutrequestid" json:"checkout_request_id"`
	MerchantRequestID string            `db:"merchantrequestid" json:"merchant_request_id"`
	ReceiptNumber     *string           `db:"receiptnumber" json:"receipt_number,omitempty"`
	RetryCount        int               `db:"retrycount" json:"retry_count"`
	ErrorMessage      *string           `db:"errormessage" json:"error_message,omitempty"`
	Metadata          map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt         time.Time         `db:"createdat" json:"created_at"`
	UpdatedAt         time.Time         `db:"updatedat" json:"updated_at"`
}

// IsTerminal reports whether the status frees the payer to start another
// payment. FAILED and CANCELLED rows only re-enter the flow through an
// explicit retry or never.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentFailed || s == PaymentCancelled
}

// CanRetry reports whether the payment is eligible for another push attempt.
func (p *Payment) CanRetry() bool {
	return p.Status == PaymentFailed && p.RetryCount < MaxRetries
}
