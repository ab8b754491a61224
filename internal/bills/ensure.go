package bills

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/internal/appointments"
	"github.com/angelmondragon/inkledger-backend/internal/cart"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	dbpkg "github.com/angelmondragon/inkledger-backend/pkg/db"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

const appointmentBillIndex = "ux_bills_appointment_id"

// EnsureForAppointment returns the appointment's bill, creating it from the
// cart snapshot on first use. An existing bill whose total no longer matches
// the cart is rebuilt in place. VOID bills, and bills whose appointment has no
// cart and only the service price to go on, are returned untouched.
func (s *service) EnsureForAppointment(ctx context.Context, actor auth.Actor, appointmentID uuid.UUID) (detail *Detail, err error) {
	defer func() { s.observe("ensure_for_appointment", err) }()

	if appointmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment id required")
	}

	var outcome string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		snap, err := s.appointments.Snapshot(ctx, tx, appointmentID)
		if err != nil {
			return err
		}

		existing, err := repo.FindBillByAppointment(ctx, appointmentID)
		switch {
		case err == nil:
			if err := Authorize(actor, existing); err != nil {
				return err
			}
			st, err := s.loadState(ctx, repo, existing)
			if err != nil {
				return err
			}
			if existing.IsVoid() || snap.Source == appointments.SourceService || existing.BillTotal == snap.Cart.BillTotal {
				outcome = "reused"
				detail = st.detail()
				return nil
			}
			if err := s.rebuild(ctx, tx, actor, st, snap.Cart.Lines); err != nil {
				return err
			}
			outcome = "rebuilt"
			detail = st.detail()
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment bill")
		}

		bill := s.billFromSnapshot(actor, snap)
		if err := Authorize(actor, bill); err != nil {
			return err
		}
		st, err := s.createBill(ctx, tx, actor, bill, snap.Cart.Lines)
		if err != nil {
			return err
		}
		outcome = "created"
		detail = st.detail()
		return nil
	})
	if err != nil && dbpkg.IsUniqueViolation(err, appointmentBillIndex) {
		// Another request created the bill first.
		return s.readAppointmentBill(ctx, actor, appointmentID)
	}
	if err != nil {
		return nil, err
	}
	s.logDone(ctx, actor, "ensured", detail.Bill.ID, map[string]any{
		"appointment_id": appointmentID.String(),
		"outcome":        outcome,
	})
	return detail, nil
}

func (s *service) readAppointmentBill(ctx context.Context, actor auth.Actor, appointmentID uuid.UUID) (*Detail, error) {
	bill, err := s.repo.FindBillByAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bill not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment bill")
	}
	if err := Authorize(actor, bill); err != nil {
		return nil, err
	}
	st, err := s.loadState(ctx, s.repo, bill)
	if err != nil {
		return nil, err
	}
	return st.detail(), nil
}

func (s *service) billFromSnapshot(actor auth.Actor, snap *appointments.Snapshot) *models.Bill {
	appointmentID := snap.AppointmentID
	return &models.Bill{
		BranchID:      snap.BranchID,
		AppointmentID: &appointmentID,
		CustomerID:    snap.CustomerID,
		ArtistID:      snap.ArtistID,
		CreatedBy:     actor.ID,
		BillType:      enums.BillTypeAppointment,
		Currency:      s.currency,
	}
}

// createBill persists a new bill with its lines and emits bill_created.
func (s *service) createBill(ctx context.Context, tx *gorm.DB, actor auth.Actor, bill *models.Bill, lines []cart.Line) (*billState, error) {
	repo := s.repo.WithTx(tx)
	totals := cart.Summarize(lines)
	bill.ListTotal = totals.ListTotal
	bill.DiscountTotal = totals.DiscountTotal
	bill.BillTotal = totals.BillTotal
	if bill.Currency == "" {
		bill.Currency = s.currency
	}
	bill.Status = statusFor(bill, 0)

	if err := repo.CreateBill(ctx, bill); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bill")
	}
	items := itemsFromLines(bill.ID, lines)
	if err := repo.CreateItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bill items")
	}
	st := &billState{bill: bill, items: items}
	if err := s.emitBill(ctx, tx, actor, enums.EventBillCreated, st); err != nil {
		return nil, err
	}
	return st, nil
}

// rebuild replaces the lines of st with lines and recomputes totals and status
// from the payments already on the bill.
func (s *service) rebuild(ctx context.Context, tx *gorm.DB, actor auth.Actor, st *billState, lines []cart.Line) error {
	repo := s.repo.WithTx(tx)
	if err := repo.DeleteItemsByBill(ctx, st.bill.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear bill items")
	}
	items := itemsFromLines(st.bill.ID, lines)
	if err := repo.CreateItems(ctx, items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bill items")
	}
	st.items = items

	totals := cart.Summarize(lines)
	st.bill.ListTotal = totals.ListTotal
	st.bill.DiscountTotal = totals.DiscountTotal
	st.bill.BillTotal = totals.BillTotal
	settled := refreshStatus(st)
	if err := s.saveBill(ctx, repo, st.bill); err != nil {
		return err
	}
	if err := s.emitBill(ctx, tx, actor, enums.EventBillRebuilt, st); err != nil {
		return err
	}
	if settled {
		return s.emitSettled(ctx, tx, actor, st)
	}
	return nil
}

func itemsFromLines(billID uuid.UUID, lines []cart.Line) []models.BillItem {
	items := make([]models.BillItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, models.BillItem{
			BillID:             billID,
			ServiceID:          line.ServiceID,
			NameSnapshot:       line.Name,
			BasePriceSnapshot:  line.BasePrice,
			FinalPriceSnapshot: line.FinalPrice,
			VariantsSnapshot:   line.Variants,
			SortOrder:          i,
		})
	}
	return items
}
