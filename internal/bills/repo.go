package bills

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/inkledger-backend/internal/allocation"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// Repository persists bills and everything hanging off them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateBill(ctx context.Context, bill *models.Bill) error
	SaveBill(ctx context.Context, bill *models.Bill) error
	// FindBill locks the row on Postgres when called inside a transaction.
	FindBill(ctx context.Context, id uuid.UUID) (*models.Bill, error)
	FindBillByAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.Bill, error)
	DeleteBill(ctx context.Context, id uuid.UUID) error
	ListBillIDs(ctx context.Context, filter BatchFilter, after uuid.UUID, limit int) ([]uuid.UUID, error)

	ListItems(ctx context.Context, billID uuid.UUID) ([]models.BillItem, error)
	CreateItems(ctx context.Context, items []models.BillItem) error
	SaveItem(ctx context.Context, item *models.BillItem) error
	DeleteItems(ctx context.Context, ids []uuid.UUID) error
	DeleteItemsByBill(ctx context.Context, billID uuid.UUID) error

	ListPayments(ctx context.Context, billID uuid.UUID) ([]models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	SavePayment(ctx context.Context, payment *models.Payment) error
	DeletePayments(ctx context.Context, ids []uuid.UUID) error
	DetachRefundReferences(ctx context.Context, paymentIDs []uuid.UUID) error

	ListAllocations(ctx context.Context, paymentIDs []uuid.UUID) ([]models.PaymentAllocation, error)
	ReplaceAllocations(ctx context.Context, paymentID uuid.UUID, split allocation.Split) error
	DeleteAllocations(ctx context.Context, paymentIDs []uuid.UUID) error

	FindMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	Report(ctx context.Context, q ReportQuery) ([]ReportRow, error)
}

// BatchFilter narrows the bills visited by maintenance jobs.
type BatchFilter struct {
	AppointmentOnly bool
	SkipVoid        bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bills repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBill(ctx context.Context, bill *models.Bill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

func (r *repository) SaveBill(ctx context.Context, bill *models.Bill) error {
	return r.db.WithContext(ctx).Save(bill).Error
}

func (r *repository) FindBill(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	var bill models.Bill
	query := r.db.WithContext(ctx)
	if query.Dialector != nil && query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Where("id = ?", id).First(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repository) FindBillByAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.Bill, error) {
	var bill models.Bill
	if err := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).First(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repository) DeleteBill(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Bill{}).Error
}

func (r *repository) ListBillIDs(ctx context.Context, filter BatchFilter, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.Bill{})
	if filter.AppointmentOnly {
		query = query.Where("appointment_id IS NOT NULL")
	}
	if filter.SkipVoid {
		query = query.Where("status <> ?", enums.BillStatusVoid)
	}
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var ids []uuid.UUID
	err := query.Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) ListItems(ctx context.Context, billID uuid.UUID) ([]models.BillItem, error) {
	var items []models.BillItem
	err := r.db.WithContext(ctx).
		Where("bill_id = ?", billID).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) CreateItems(ctx context.Context, items []models.BillItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) SaveItem(ctx context.Context, item *models.BillItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) DeleteItems(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.BillItem{}).Error
}

func (r *repository) DeleteItemsByBill(ctx context.Context, billID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("bill_id = ?", billID).Delete(&models.BillItem{}).Error
}

func (r *repository) ListPayments(ctx context.Context, billID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("bill_id = ?", billID).
		Order("paid_at ASC").
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) SavePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) DeletePayments(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Payment{}).Error
}

func (r *repository) DetachRefundReferences(ctx context.Context, paymentIDs []uuid.UUID) error {
	if len(paymentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("refund_of_payment_id IN ?", paymentIDs).
		Update("refund_of_payment_id", nil).Error
}

func (r *repository) ListAllocations(ctx context.Context, paymentIDs []uuid.UUID) ([]models.PaymentAllocation, error) {
	if len(paymentIDs) == 0 {
		return nil, nil
	}
	var rows []models.PaymentAllocation
	err := r.db.WithContext(ctx).Where("payment_id IN ?", paymentIDs).Find(&rows).Error
	return rows, err
}

func (r *repository) ReplaceAllocations(ctx context.Context, paymentID uuid.UUID, split allocation.Split) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("payment_id = ?", paymentID).Delete(&models.PaymentAllocation{}).Error; err != nil {
		return err
	}
	rows := []models.PaymentAllocation{
		{PaymentID: paymentID, Target: enums.AllocationTargetArtist, Amount: split.Artist},
		{PaymentID: paymentID, Target: enums.AllocationTargetShop, Amount: split.Shop},
	}
	return db.Create(&rows).Error
}

func (r *repository) DeleteAllocations(ctx context.Context, paymentIDs []uuid.UUID) error {
	if len(paymentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("payment_id IN ?", paymentIDs).Delete(&models.PaymentAllocation{}).Error
}

func (r *repository) FindMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}
