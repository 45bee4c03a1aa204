package repository

import (
	"context"
	"errors"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlanRepository struct {
	DB *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{DB: db}
}

func (r *PlanRepository) GetByID(ctx context.Context, planID int64) (*model.Plan, error) {
	q := `SELECT planid, name, amount, paymentlimit, createdat FROM plans WHERE planid=$1`
	return r.scanOne(ctx, q, planID)
}

// GetByAmount resolves which plan a completed payment pays for. The
// reconciler uses this to decide the upgrade target.
func (r *PlanRepository) GetByAmount(ctx context.Context, amount int64) (*model.Plan, error) {
	q := `SELECT planid, name, amount, paymentlimit, createdat FROM plans WHERE amount=$1`
	return r.scanOne(ctx, q, amount)
}

// GetPaymentLimitForOrg returns the org's active plan "Payments" limit,
// nil meaning the plan is unlimited.
func (r *PlanRepository) GetPaymentLimitForOrg(ctx context.Context, orgID int64) (*int, error) {
	var limit *int
	err := r.DB.QueryRow(ctx, `
		SELECT p.paymentlimit
		FROM organizations o
		JOIN plans p ON p.planid = o.planid
		WHERE o.orgid = $1
	`, orgID).Scan(&limit)
	if err != nil {
		return nil, err
	}
	return limit, nil
}

func (r *PlanRepository) scanOne(ctx context.Context, q string, arg any) (*model.Plan, error) {
	var p model.Plan
	err := r.DB.QueryRow(ctx, q, arg).Scan(&p.PlanID, &p.Name, &p.Amount, &p.PaymentLimit, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
