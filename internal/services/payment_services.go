package services

import (
	"context"
	"fmt"
	"time"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/model"

	"github.com/google/uuid"
)

type PaymentService struct {
	Ledger  PaymentLedger
	Plans   PlanStore
	Gateway Gateway
	Cipher  *PhoneCipher

	ConfirmationURL string
	ValidationURL   string

	now func() time.Time
}

func NewPaymentService(
	ledger PaymentLedger,
	plans PlanStore,
	gateway Gateway,
	cipher *PhoneCipher,
	confirmationURL string,
	validationURL string,
) *PaymentService {
	return &PaymentService{
		Ledger:          ledger,
		Plans:           plans,
		Gateway:         gateway,
		Cipher:          cipher,
		ConfirmationURL: confirmationURL,
		ValidationURL:   validationURL,
		now:             time.Now,
	}
}

// InitiatePayment runs the guards in order (quota, then one-active-payment),
// prompts the payer's phone, and only then writes the pending ledger row.
// The gateway is never contacted when a guard rejects.
func (s *PaymentService) InitiatePayment(
	ctx context.Context,
	payerID int64,
	orgID int64,
	amount int64,
	phone string,
	planID int64,
	description string,
) (*model.Payment, error) {

	phone = NormalizePhone(phone)

	if err := s.enforceUsage(ctx, orgID); err != nil {
		return nil, err
	}

	existing, err := s.Ledger.GetActiveByPayer(ctx, payerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrActivePaymentExists
	}

	accountRef := fmt.Sprintf("SUB-%d-%s", payerID, uuid.NewString())

	checkoutID, merchantID, err := s.Gateway.InitiateSTKPush(ctx, amount, phone, accountRef, description)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.Cipher.Encrypt(phone)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"plan_id":           fmt.Sprintf("%d", planID),
		"account_reference": accountRef,
		"description":       description,
	}

	return s.Ledger.CreatePending(ctx, payerID, orgID, amount, encrypted, checkoutID, merchantID, metadata)
}

// GetUsage reports completed payments for the org in the current calendar
// month against the plan limit.
func (s *PaymentService) GetUsage(ctx context.Context, orgID int64) (*model.Usage, error) {
	limit, err := s.Plans.GetPaymentLimitForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	start := monthStart(s.now())
	used, err := s.Ledger.CountCompletedSince(ctx, orgID, start)
	if err != nil {
		return nil, err
	}

	return &model.Usage{
		OrgID:     orgID,
		Used:      used,
		Limit:     limit,
		PeriodISO: start.Format("2006-01"),
	}, nil
}

// RetryPayment re-drives a failed payment through the gateway. A retry slot
// is consumed only when the re-submission succeeds; a failed push leaves the
// record FAILED with its count untouched.
func (s *PaymentService) RetryPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	p, err := s.Ledger.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	if !p.CanRetry() {
		return nil, ErrRetryExhausted
	}

	phone, err := s.Cipher.Decrypt(p.PhoneEncrypted)
	if err != nil {
		return nil, err
	}

	checkoutID, merchantID, err := s.Gateway.InitiateSTKPush(
		ctx,
		p.Amount,
		phone,
		p.Metadata["account_reference"],
		p.Metadata["description"],
	)
	if err != nil {
		return nil, err
	}

	applied, err := s.Ledger.ResetToPending(ctx, paymentID, checkoutID, merchantID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// a concurrent retry or cancel got there first
		return nil, ErrRetryExhausted
	}

	return s.Ledger.GetByID(ctx, paymentID)
}

// CancelPayment is the administrative any-state cancel.
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID string) error {
	applied, err := s.Ledger.Cancel(ctx, paymentID)
	if err != nil {
		return err
	}
	if !applied {
		return ErrPaymentNotFound
	}
	return nil
}

// GetPaymentForPayer is the payer-facing lookup. A payment belonging to
// another payer reads as not found so ids cannot be probed across accounts.
func (s *PaymentService) GetPaymentForPayer(ctx context.Context, paymentID string, payerID int64) (*model.Payment, error) {
	p, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != payerID {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

// RetryPaymentForPayer applies the same ownership check before re-driving.
func (s *PaymentService) RetryPaymentForPayer(ctx context.Context, paymentID string, payerID int64) (*model.Payment, error) {
	if _, err := s.GetPaymentForPayer(ctx, paymentID, payerID); err != nil {
		return nil, err
	}
	return s.RetryPayment(ctx, paymentID)
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	p, err := s.Ledger.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, payerID int64) ([]model.Payment, error) {
	return s.Ledger.ListByPayer(ctx, payerID)
}

// RegisterCallbackURLs performs the one-shot C2B registration.
func (s *PaymentService) RegisterCallbackURLs(ctx context.Context) error {
	return s.Gateway.RegisterCallbackURLs(ctx, s.ConfirmationURL, s.ValidationURL)
}

func (s *PaymentService) enforceUsage(ctx context.Context, orgID int64) error {
	limit, err := s.Plans.GetPaymentLimitForOrg(ctx, orgID)
	if err != nil {
		return err
	}
	if limit == nil {
		return nil // unlimited plan
	}

	used, err := s.Ledger.CountCompletedSince(ctx, orgID, monthStart(s.now()))
	if err != nil {
		return err
	}
	if used >= *limit {
		return ErrLimitExceeded
	}
	return nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
