package bills

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SortField names the orderable report columns.
type SortField string

const (
	SortCreatedAt    SortField = "created_at"
	SortBillTotal    SortField = "bill_total"
	SortPaidTotal    SortField = "paid_total"
	SortDueTotal     SortField = "due_total"
	SortArtistAmount SortField = "artist_amount"
	SortShopAmount   SortField = "shop_amount"
)

var sortColumns = map[SortField]string{
	SortCreatedAt:    "b.created_at",
	SortBillTotal:    "b.bill_total",
	SortPaidTotal:    "paid_total",
	SortDueTotal:     "due_total",
	SortArtistAmount: "artist_amount",
	SortShopAmount:   "shop_amount",
}

// ListQuery filters the flattened bill report.
type ListQuery struct {
	BranchID *uuid.UUID
	ArtistID *uuid.UUID
	Status   *enums.BillStatus
	BillType *enums.BillType
	From     *time.Time
	To       *time.Time
	MinTotal *int64
	MaxTotal *int64
	Sort     SortField
	Desc     bool
	Limit    int
	Offset   int
}

// scope restricts a report to what an actor may see.
type scope struct {
	all      bool
	artistID *uuid.UUID
	branchID *uuid.UUID
}

// ReportQuery is a ListQuery with the actor scope applied.
type ReportQuery struct {
	ListQuery
	scope scope
}

// ReportRow is the flattened per-bill view handed to reporting collaborators.
type ReportRow struct {
	ID           uuid.UUID        `json:"id" gorm:"column:id"`
	CreatedAt    time.Time        `json:"created_at" gorm:"column:created_at"`
	BranchID     uuid.UUID        `json:"branch_id" gorm:"column:branch_id"`
	CustomerID   *uuid.UUID       `json:"customer_id,omitempty" gorm:"column:customer_id"`
	CustomerName *string          `json:"customer_name,omitempty" gorm:"column:customer_name"`
	ArtistID     *uuid.UUID       `json:"artist_id,omitempty" gorm:"column:artist_id"`
	BillType     enums.BillType   `json:"bill_type" gorm:"column:bill_type"`
	Status       enums.BillStatus `json:"status" gorm:"column:status"`
	Currency     string           `json:"currency" gorm:"column:currency"`
	BillTotal    int64            `json:"bill_total" gorm:"column:bill_total"`
	PaidTotal    int64            `json:"paid_total" gorm:"column:paid_total"`
	DueTotal     int64            `json:"due_total" gorm:"column:due_total"`
	ArtistAmount int64            `json:"artist_amount" gorm:"column:artist_amount"`
	ShopAmount   int64            `json:"shop_amount" gorm:"column:shop_amount"`
}

func (q ListQuery) normalized() (ListQuery, error) {
	if q.Sort == "" {
		q.Sort = SortCreatedAt
		q.Desc = true
	}
	if _, ok := sortColumns[q.Sort]; !ok {
		return q, fmt.Errorf("unsupported sort %q", q.Sort)
	}
	if q.Status != nil && !q.Status.IsValid() {
		return q, fmt.Errorf("invalid status %q", *q.Status)
	}
	if q.BillType != nil && !q.BillType.IsValid() {
		return q, fmt.Errorf("invalid bill type %q", *q.BillType)
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return q, fmt.Errorf("date range is inverted")
	}
	if q.MinTotal != nil && q.MaxTotal != nil && *q.MaxTotal < *q.MinTotal {
		return q, fmt.Errorf("amount range is inverted")
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q, nil
}

const paymentTotals = `(SELECT bill_id, SUM(amount) AS paid_total FROM payments GROUP BY bill_id) AS p`

const allocationTotals = `(SELECT pay.bill_id,
	SUM(CASE WHEN pa.target = 'ARTIST' THEN pa.amount ELSE 0 END) AS artist_amount,
	SUM(CASE WHEN pa.target = 'SHOP' THEN pa.amount ELSE 0 END) AS shop_amount
	FROM payment_allocations pa JOIN payments pay ON pay.id = pa.payment_id
	GROUP BY pay.bill_id) AS a`

const reportColumns = `b.id, b.created_at, b.branch_id, b.customer_id, m.name AS customer_name,
	b.artist_id, b.bill_type, b.status, b.currency, b.bill_total,
	COALESCE(p.paid_total, 0) AS paid_total,
	CASE WHEN b.bill_total - COALESCE(p.paid_total, 0) > 0 THEN b.bill_total - COALESCE(p.paid_total, 0) ELSE 0 END AS due_total,
	COALESCE(a.artist_amount, 0) AS artist_amount,
	COALESCE(a.shop_amount, 0) AS shop_amount`

func (r *repository) Report(ctx context.Context, q ReportQuery) ([]ReportRow, error) {
	query := r.db.WithContext(ctx).
		Table("bills AS b").
		Select(reportColumns).
		Joins("LEFT JOIN members m ON m.id = b.customer_id").
		Joins("LEFT JOIN " + paymentTotals + " ON p.bill_id = b.id").
		Joins("LEFT JOIN " + allocationTotals + " ON a.bill_id = b.id")

	switch {
	case q.scope.all:
	case q.scope.artistID != nil:
		query = query.Where("(b.artist_id = ? OR (b.bill_type IN ? AND b.created_by = ?))",
			*q.scope.artistID, storedValueTypes(), *q.scope.artistID)
	case q.scope.branchID != nil:
		query = query.Where("b.branch_id = ?", *q.scope.branchID)
	default:
		return nil, nil
	}

	if q.BranchID != nil {
		query = query.Where("b.branch_id = ?", *q.BranchID)
	}
	if q.ArtistID != nil {
		query = query.Where("b.artist_id = ?", *q.ArtistID)
	}
	if q.Status != nil {
		query = query.Where("b.status = ?", *q.Status)
	}
	if q.BillType != nil {
		query = query.Where("b.bill_type = ?", *q.BillType)
	}
	if q.From != nil {
		query = query.Where("b.created_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("b.created_at < ?", *q.To)
	}
	if q.MinTotal != nil {
		query = query.Where("b.bill_total >= ?", *q.MinTotal)
	}
	if q.MaxTotal != nil {
		query = query.Where("b.bill_total <= ?", *q.MaxTotal)
	}

	direction := "ASC"
	if q.Desc {
		direction = "DESC"
	}
	var rows []ReportRow
	err := query.
		Order(sortColumns[q.Sort] + " " + direction).
		Order("b.id " + direction).
		Limit(q.Limit).
		Offset(q.Offset).
		Scan(&rows).Error
	return rows, err
}

func storedValueTypes() []enums.BillType {
	return []enums.BillType{enums.BillTypeStoredValueTopup, enums.BillTypeStoredValueRefund}
}
