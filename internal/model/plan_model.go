package model

import "time"

// Plan is a billing tier. Amount is what an upgrade to the plan costs in the
// smallest currency unit; PaymentLimit is the monthly "Payments" feature
// limit, nil meaning unlimited.
type Plan struct {
	PlanID       int64      `db:"planid" json:"plan_id"`
	Name         string     `db:"name" json:"name"`
	Amount       int64      `db:"amount" json:"amount"`
	PaymentLimit *int       `db:"paymentlimit" json:"payment_limit,omitempty"`
	CreatedAt    *time.Time `db:"createdat" json:"created_at,omitempty"`
}

type Organization struct {
	OrgID     int64      `db:"orgid" json:"org_id"`
	Name      string     `db:"name" json:"name"`
	PlanID    int64      `db:"planid" json:"plan_id"`
	CreatedAt *time.Time `db:"createdat" json:"created_at,omitempty"`
}

// Usage is what GetUsage reports to callers: completed payments this
// calendar month against the plan limit (nil limit = unlimited).
type Usage struct {
	OrgID     int64  `json:"org_id"`
	Used      int    `json:"used"`
	Limit     *int   `json:"limit,omitempty"`
	PeriodISO string `json:"period"`
}
