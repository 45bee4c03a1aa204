package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	DB *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

const paymentColumns = `
	paymentid, payerid, orgid, amount, provider, status, phoneencrypted,
	checkoutrequestid, merchantrequestid, receiptnumber, retrycount,
	errormessage, metadata, createdat, updatedat
`

func (r *PaymentRepository) CreatePending(
	ctx context.Context,
	payerID int64,
	orgID int64,
	amount int64,
	phoneEncrypted string,
	checkoutRequestID string,
	merchantRequestID string,
	metadata map[string]string,
) (*model.Payment, error) {

	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	paymentID := uuid.NewString()

	q := `
		INSERT INTO payments
			(paymentid, payerid, orgid, amount, provider, status, phoneencrypted,
			 checkoutrequestid, merchantrequestid, retrycount, metadata, createdat, updatedat)
		VALUES
			($1, $2, $3, $4, 'mpesa', 'PENDING', $5, $6, $7, 0, $8, NOW(), NOW())
	`
	if _, err := r.DB.Exec(
		ctx, q,
		paymentID, payerID, orgID, amount, phoneEncrypted,
		checkoutRequestID, merchantRequestID, meta,
	); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, paymentID)
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE paymentid=$1`
	return r.scanOne(r.DB.QueryRow(ctx, q, paymentID))
}

// GetActiveByPayer returns the payer's non-terminal payment, or nil.
// This query backs the one-active-payment-per-payer rule.
func (r *PaymentRepository) GetActiveByPayer(ctx context.Context, payerID int64) (*model.Payment, error) {
	q := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE payerid=$1 AND status NOT IN ('FAILED','CANCELLED')
		LIMIT 1
	`
	return r.scanOne(r.DB.QueryRow(ctx, q, payerID))
}

func (r *PaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE checkoutrequestid=$1`
	return r.scanOne(r.DB.QueryRow(ctx, q, checkoutRequestID))
}

func (r *PaymentRepository) ListByPayer(ctx context.Context, payerID int64) ([]model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payerid=$1 ORDER BY createdat DESC`
	rows, err := r.DB.Query(ctx, q, payerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// MarkCompleted is the webhook side of the state machine. The status guard in
// the WHERE clause makes it safe under racing redeliveries: only one of them
// sees a row change. Returns whether a row was actually updated.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, checkoutRequestID, receiptNumber string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE payments
		SET status='COMPLETED',
		    receiptnumber=$2,
		    errormessage=NULL,
		    updatedat=NOW()
		WHERE checkoutrequestid=$1 AND status='PENDING'
	`, checkoutRequestID, receiptNumber)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, checkoutRequestID, errorMessage string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE payments
		SET status='FAILED',
		    errormessage=$2,
		    updatedat=NOW()
		WHERE checkoutrequestid=$1 AND status='PENDING'
	`, checkoutRequestID, errorMessage)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResetToPending re-arms a failed payment with fresh correlation ids. The
// guard enforces both the FAILED-only edge and the retry bound in one
// statement, so concurrent retries cannot overshoot the bound.
func (r *PaymentRepository) ResetToPending(ctx context.Context, paymentID, checkoutRequestID, merchantRequestID string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE payments
		SET status='PENDING',
		    retrycount=retrycount+1,
		    checkoutrequestid=$2,
		    merchantrequestid=$3,
		    errormessage=NULL,
		    updatedat=NOW()
		WHERE paymentid=$1 AND status='FAILED' AND retrycount < $4
	`, paymentID, checkoutRequestID, merchantRequestID, model.MaxRetries)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Cancel is administrative; any non-cancelled payment may be cancelled.
func (r *PaymentRepository) Cancel(ctx context.Context, paymentID string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE payments
		SET status='CANCELLED', updatedat=NOW()
		WHERE paymentid=$1 AND status <> 'CANCELLED'
	`, paymentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepository) CountCompletedSince(ctx context.Context, orgID int64, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM payments
		WHERE orgid=$1 AND status='COMPLETED' AND updatedat >= $2
	`, orgID, since).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PaymentRepository) scanOne(row pgx.Row) (*model.Payment, error) {
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	var meta []byte

	if err := row.Scan(
		&p.PaymentID,
		&p.PayerID,
		&p.OrgID,
		&p.Amount,
		&p.Provider,
		&p.Status,
		&p.PhoneEncrypted,
		&p.CheckoutRequestID,
		&p.MerchantRequestID,
		&p.ReceiptNumber,
		&p.RetryCount,
		&p.ErrorMessage,
		&meta,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
