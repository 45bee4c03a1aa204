package repository

import (
	"context"
	"errors"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrganizationRepository struct {
	DB *pgxpool.Pool
}

func NewOrganizationRepository(db *pgxpool.Pool) *OrganizationRepository {
	return &OrganizationRepository{DB: db}
}

func (r *OrganizationRepository) GetByID(ctx context.Context, orgID int64) (*model.Organization, error) {
	var o model.Organization
	err := r.DB.QueryRow(ctx,
		`SELECT orgid, name, planid, createdat FROM organizations WHERE orgid=$1`,
		orgID,
	).Scan(&o.OrgID, &o.Name, &o.PlanID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// UpgradePlan moves the org onto the plan a completed payment paid for.
func (r *OrganizationRepository) UpgradePlan(ctx context.Context, orgID, planID int64) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE organizations SET planid=$2 WHERE orgid=$1`,
		orgID, planID,
	)
	return err
}
