package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/external/daraja"
	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/config"
	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/model"
)

// CallbackService reconciles asynchronous gateway webhooks against the
// payment ledger. Every step is idempotent, so the gateway redelivering a
// callback is harmless.
type CallbackService struct {
	Ledger    PaymentLedger
	Callbacks CallbackStore
	Plans     PlanStore
	Orgs      OrganizationStore

	WebhookSecret  string
	MetadataPolicy config.MetadataPolicy
}

func NewCallbackService(
	ledger PaymentLedger,
	callbacks CallbackStore,
	plans PlanStore,
	orgs OrganizationStore,
	webhookSecret string,
	policy config.MetadataPolicy,
) *CallbackService {
	return &CallbackService{
		Ledger:         ledger,
		Callbacks:      callbacks,
		Plans:          plans,
		Orgs:           orgs,
		WebhookSecret:  webhookSecret,
		MetadataPolicy: policy,
	}
}

// HandleCallback verifies, records, and applies one webhook delivery.
// Signature verification happens before any parsing.
func (s *CallbackService) HandleCallback(ctx context.Context, raw []byte, signature string) error {
	if !daraja.VerifySignature(raw, signature, s.WebhookSecret) {
		return ErrInvalidSignature
	}

	cb, err := model.DecodeStkCallback(raw)
	if err != nil {
		return fmt.Errorf("decode callback: %w", err)
	}
	if cb.CheckoutRequestID == "" {
		return fmt.Errorf("callback missing CheckoutRequestID")
	}

	if s.MetadataPolicy == config.MetadataStrict && cb.ResultCode == 0 {
		if !cb.HasAmount || !cb.HasReceipt {
			return ErrIncompleteCallback
		}
	}

	if err := s.Callbacks.Upsert(ctx, &model.CallbackRecord{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Amount:            cb.Amount,
		ReceiptNumber:     cb.ReceiptNumber,
		PhoneNumber:       cb.PhoneNumber,
		TransactionDate:   cb.TransactionDate,
		RawPayload:        raw,
	}); err != nil {
		return err
	}

	if cb.ResultCode != 0 {
		desc := cb.ResultDesc
		if desc == "" {
			desc = fmt.Sprintf("gateway result code %d", cb.ResultCode)
		}
		_, err := s.Ledger.MarkFailed(ctx, cb.CheckoutRequestID, desc)
		return err
	}

	if _, err := s.Ledger.MarkCompleted(ctx, cb.CheckoutRequestID, cb.ReceiptNumber); err != nil {
		return err
	}

	// The upgrade is re-derived from the completed row on every delivery, so
	// a redelivered callback repairs an upgrade a crashed handler lost.
	return s.ensurePlanUpgrade(ctx, cb.CheckoutRequestID)
}

// ensurePlanUpgrade moves the payer's organization onto the plan the
// completed payment paid for. Idempotent: an org already on the target plan
// is left alone, so redeliveries do not upgrade twice.
func (s *CallbackService) ensurePlanUpgrade(ctx context.Context, checkoutRequestID string) error {
	p, err := s.Ledger.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return err
	}
	if p == nil {
		return nil // callback for a payment we never issued; recorded, nothing to upgrade
	}
	if p.Status != model.PaymentCompleted {
		return nil
	}

	plan, err := s.resolvePlan(ctx, p)
	if err != nil {
		return err
	}
	if plan == nil {
		log.Printf("callback %s: no plan matches amount %d, skipping upgrade", checkoutRequestID, p.Amount)
		return nil
	}

	org, err := s.Orgs.GetByID(ctx, p.OrgID)
	if err != nil {
		return err
	}
	if org == nil {
		log.Printf("callback %s: organization %d not found, skipping upgrade", checkoutRequestID, p.OrgID)
		return nil
	}
	if org.PlanID == plan.PlanID {
		return nil // already upgraded by an earlier delivery
	}

	if err := s.Orgs.UpgradePlan(ctx, p.OrgID, plan.PlanID); err != nil {
		return err
	}
	log.Printf("org %d upgraded to plan %d (payment %s)", p.OrgID, plan.PlanID, p.PaymentID)
	return nil
}

// resolvePlan prefers the plan id stamped into the payment metadata at
// initiation and falls back to matching by amount.
func (s *CallbackService) resolvePlan(ctx context.Context, p *model.Payment) (*model.Plan, error) {
	if raw, ok := p.Metadata["plan_id"]; ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			plan, err := s.Plans.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if plan != nil {
				return plan, nil
			}
		}
	}
	return s.Plans.GetByAmount(ctx, p.Amount)
}
