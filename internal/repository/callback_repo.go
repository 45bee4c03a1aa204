package repository

import (
	"context"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CallbackRepository struct {
	DB *pgxpool.Pool
}

func NewCallbackRepository(db *pgxpool.Pool) *CallbackRepository {
	return &CallbackRepository{DB: db}
}

// Upsert stores the raw reconciliation record. The gateway redelivers
// callbacks, so the write must land in the same row every time.
func (r *CallbackRepository) Upsert(ctx context.Context, rec *model.CallbackRecord) error {
	q := `
		INSERT INTO callback_records
			(checkoutrequestid, merchantrequestid, resultcode, resultdesc,
			 amount, receiptnumber, phonenumber, transactiondate, rawpayload, receivedat)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (checkoutrequestid) DO UPDATE SET
			merchantrequestid = EXCLUDED.merchantrequestid,
			resultcode        = EXCLUDED.resultcode,
			resultdesc        = EXCLUDED.resultdesc,
			amount            = EXCLUDED.amount,
			receiptnumber     = EXCLUDED.receiptnumber,
			phonenumber       = EXCLUDED.phonenumber,
			transactiondate   = EXCLUDED.transactiondate,
			rawpayload        = EXCLUDED.rawpayload
	`
	_, err := r.DB.Exec(
		ctx, q,
		rec.CheckoutRequestID, rec.MerchantRequestID, rec.ResultCode, rec.ResultDesc,
		rec.Amount, rec.ReceiptNumber, rec.PhoneNumber, rec.TransactionDate, rec.RawPayload,
	)
	return err
}
