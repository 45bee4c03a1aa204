package services

import (
	"context"
	"time"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/model"
)

// The services depend on these narrow contracts instead of the concrete pgx
// repositories so tests can run against in-memory fakes.

type PaymentLedger interface {
	CreatePending(ctx context.Context, payerID, orgID, amount int64, phoneEncrypted, checkoutRequestID, merchantRequestID string, metadata map[string]string) (*model.Payment, error)
	GetByID(ctx context.Context, paymentID string) (*model.Payment, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Payment, error)
	GetActiveByPayer(ctx context.Context, payerID int64) (*model.Payment, error)
	ListByPayer(ctx context.Context, payerID int64) ([]model.Payment, error)
	MarkCompleted(ctx context.Context, checkoutRequestID, receiptNumber string) (bool, error)
	MarkFailed(ctx context.Context, checkoutRequestID, errorMessage string) (bool, error)
	ResetToPending(ctx context.Context, paymentID, checkoutRequestID, merchantRequestID string) (bool, error)
	Cancel(ctx context.Context, paymentID string) (bool, error)
	CountCompletedSince(ctx context.Context, orgID int64, since time.Time) (int, error)
}

type CallbackStore interface {
	Upsert(ctx context.Context, rec *model.CallbackRecord) error
}

type PlanStore interface {
	GetByID(ctx context.Context, planID int64) (*model.Plan, error)
	GetByAmount(ctx context.Context, amount int64) (*model.Plan, error)
	GetPaymentLimitForOrg(ctx context.Context, orgID int64) (*int, error)
}

type OrganizationStore interface {
	GetByID(ctx context.Context, orgID int64) (*model.Organization, error)
	UpgradePlan(ctx context.Context, orgID, planID int64) error
}

// Gateway is the outbound side of the Daraja client.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, amount int64, phoneNumber, accountReference, description string) (checkoutRequestID, merchantRequestID string, err error)
	RegisterCallbackURLs(ctx context.Context, confirmationURL, validationURL string) error
}
