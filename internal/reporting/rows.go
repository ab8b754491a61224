package reporting

import (
	"time"

	"github.com/angelmondragon/inkledger-backend/internal/bills"
)

type billRow struct {
	BillID       string    `bigquery:"bill_id"`
	CreatedAt    time.Time `bigquery:"created_at"`
	BranchID     string    `bigquery:"branch_id"`
	CustomerID   *string   `bigquery:"customer_id"`
	CustomerName *string   `bigquery:"customer_name"`
	ArtistID     *string   `bigquery:"artist_id"`
	BillType     string    `bigquery:"bill_type"`
	Status       string    `bigquery:"status"`
	Currency     string    `bigquery:"currency"`
	BillTotal    int64     `bigquery:"bill_total"`
	PaidTotal    int64     `bigquery:"paid_total"`
	DueTotal     int64     `bigquery:"due_total"`
	ArtistAmount int64     `bigquery:"artist_amount"`
	ShopAmount   int64     `bigquery:"shop_amount"`
	ExportedAt   time.Time `bigquery:"exported_at"`
}

func newBillRow(r bills.ReportRow, exportedAt time.Time) billRow {
	row := billRow{
		BillID:       r.ID.String(),
		CreatedAt:    r.CreatedAt.UTC(),
		BranchID:     r.BranchID.String(),
		CustomerName: r.CustomerName,
		BillType:     string(r.BillType),
		Status:       string(r.Status),
		Currency:     r.Currency,
		BillTotal:    r.BillTotal,
		PaidTotal:    r.PaidTotal,
		DueTotal:     r.DueTotal,
		ArtistAmount: r.ArtistAmount,
		ShopAmount:   r.ShopAmount,
		ExportedAt:   exportedAt,
	}
	if r.CustomerID != nil {
		id := r.CustomerID.String()
		row.CustomerID = &id
	}
	if r.ArtistID != nil {
		id := r.ArtistID.String()
		row.ArtistID = &id
	}
	return row
}
