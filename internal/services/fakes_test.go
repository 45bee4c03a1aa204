package services_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/model"
)

// memLedger reproduces the repository's conditional-update semantics in
// memory, including the applied-bool discipline the services rely on.
type memLedger struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
	nextID   int
}

func newMemLedger() *memLedger {
	return &memLedger{payments: map[string]*model.Payment{}}
}

func (l *memLedger) put(p *model.Payment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payments[p.PaymentID] = p
}

func (l *memLedger) CreatePending(_ context.Context, payerID, orgID, amount int64, phoneEncrypted, checkoutRequestID, merchantRequestID string, metadata map[string]string) (*model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	p := &model.Payment{
		PaymentID:         fmt.Sprintf("pay-%d", l.nextID),
		PayerID:           payerID,
		OrgID:             orgID,
		Amount:            amount,
		Provider:          "mpesa",
		Status:            model.PaymentPending,
		PhoneEncrypted:    phoneEncrypted,
		CheckoutRequestID: checkoutRequestID,
		MerchantRequestID: merchantRequestID,
		Metadata:          metadata,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	l.payments[p.PaymentID] = p
	return p, nil
}

func (l *memLedger) GetByID(_ context.Context, paymentID string) (*model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.payments[paymentID], nil
}

func (l *memLedger) GetByCheckoutRequestID(_ context.Context, checkoutRequestID string) (*model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.payments {
		if p.CheckoutRequestID == checkoutRequestID {
			return p, nil
		}
	}
	return nil, nil
}

func (l *memLedger) GetActiveByPayer(_ context.Context, payerID int64) (*model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.payments {
		if p.PayerID == payerID && !p.Status.IsTerminal() {
			return p, nil
		}
	}
	return nil, nil
}

func (l *memLedger) ListByPayer(_ context.Context, payerID int64) ([]model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Payment
	for _, p := range l.payments {
		if p.PayerID == payerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (l *memLedger) MarkCompleted(_ context.Context, checkoutRequestID, receiptNumber string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.payments {
		if p.CheckoutRequestID == checkoutRequestID && p.Status == model.PaymentPending {
			p.Status = model.PaymentCompleted
			p.ReceiptNumber = &receiptNumber
			p.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) MarkFailed(_ context.Context, checkoutRequestID, errorMessage string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.payments {
		if p.CheckoutRequestID == checkoutRequestID && p.Status == model.PaymentPending {
			p.Status = model.PaymentFailed
			p.ErrorMessage = &errorMessage
			p.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) ResetToPending(_ context.Context, paymentID, checkoutRequestID, merchantRequestID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[paymentID]
	if !ok || p.Status != model.PaymentFailed || p.RetryCount >= model.MaxRetries {
		return false, nil
	}
	p.Status = model.PaymentPending
	p.RetryCount++
	p.CheckoutRequestID = checkoutRequestID
	p.MerchantRequestID = merchantRequestID
	p.ErrorMessage = nil
	p.UpdatedAt = time.Now()
	return true, nil
}

func (l *memLedger) Cancel(_ context.Context, paymentID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[paymentID]
	if !ok || p.Status == model.PaymentCancelled {
		return false, nil
	}
	p.Status = model.PaymentCancelled
	p.UpdatedAt = time.Now()
	return true, nil
}

func (l *memLedger) CountCompletedSince(_ context.Context, orgID int64, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.payments {
		if p.OrgID == orgID && p.Status == model.PaymentCompleted && !p.UpdatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeGateway struct {
	pushCalls  int
	lastPhone  string
	lastAmount int64
	pushFn     func() (string, string, error)

	registerCalls int
	registerErr   error
}

func (g *fakeGateway) InitiateSTKPush(_ context.Context, amount int64, phoneNumber, accountReference, description string) (string, string, error) {
	g.pushCalls++
	g.lastPhone = phoneNumber
	g.lastAmount = amount
	if g.pushFn != nil {
		return g.pushFn()
	}
	return fmt.Sprintf("ws_CO_%d", g.pushCalls), fmt.Sprintf("mr_%d", g.pushCalls), nil
}

func (g *fakeGateway) RegisterCallbackURLs(_ context.Context, confirmationURL, validationURL string) error {
	g.registerCalls++
	return g.registerErr
}

type fakePlans struct {
	limit    *int
	limitErr error
	byID     map[int64]*model.Plan
	byAmount map[int64]*model.Plan
}

func (f *fakePlans) GetByID(_ context.Context, planID int64) (*model.Plan, error) {
	return f.byID[planID], nil
}

func (f *fakePlans) GetByAmount(_ context.Context, amount int64) (*model.Plan, error) {
	return f.byAmount[amount], nil
}

func (f *fakePlans) GetPaymentLimitForOrg(_ context.Context, orgID int64) (*int, error) {
	return f.limit, f.limitErr
}

type upgrade struct {
	orgID  int64
	planID int64
}

type fakeOrgs struct {
	planID     int64 // the org's current plan
	upgradeErr error // next UpgradePlan fails with this, then clears
	upgrades   []upgrade
}

func (f *fakeOrgs) GetByID(_ context.Context, orgID int64) (*model.Organization, error) {
	return &model.Organization{OrgID: orgID, PlanID: f.planID}, nil
}

func (f *fakeOrgs) UpgradePlan(_ context.Context, orgID, planID int64) error {
	if f.upgradeErr != nil {
		err := f.upgradeErr
		f.upgradeErr = nil
		return err
	}
	f.upgrades = append(f.upgrades, upgrade{orgID: orgID, planID: planID})
	f.planID = planID
	return nil
}

type memCallbacks struct {
	records map[string]*model.CallbackRecord
	writes  int
}

func newMemCallbacks() *memCallbacks {
	return &memCallbacks{records: map[string]*model.CallbackRecord{}}
}

func (m *memCallbacks) Upsert(_ context.Context, rec *model.CallbackRecord) error {
	m.writes++
	m.records[rec.CheckoutRequestID] = rec
	return nil
}
