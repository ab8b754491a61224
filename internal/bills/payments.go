package bills

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/outbox/payloads"
)

func (s *service) RecordPayment(ctx context.Context, actor auth.Actor, input RecordPaymentInput) (detail *Detail, err error) {
	defer func() { s.observe("record_payment", err) }()

	if input.Amount == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must not be zero")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bill, err := s.loadBill(ctx, repo, input.BillID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, bill); err != nil {
			return err
		}
		if bill.IsVoid() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bill is void").
				WithDetails(map[string]any{"billId": bill.ID.String()})
		}
		st, err := s.loadState(ctx, repo, bill)
		if err != nil {
			return err
		}
		if input.RefundOfPaymentID != nil && !hasPayment(st.payments, *input.RefundOfPaymentID) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refunded payment does not belong to this bill")
		}

		payment := models.Payment{
			BillID:            bill.ID,
			Amount:            input.Amount,
			Method:            input.Method,
			PaidAt:            s.paidAt(input.PaidAt),
			RecordedBy:        actor.ID,
			Notes:             trimmed(input.Notes),
			RefundOfPaymentID: input.RefundOfPaymentID,
		}
		if err := s.postPayment(ctx, tx, actor, st, &payment); err != nil {
			return err
		}
		detail = st.detail()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logDone(ctx, actor, "payment_recorded", input.BillID, map[string]any{
		"amount": input.Amount,
		"method": input.Method,
		"status": detail.Bill.Status,
	})
	return detail, nil
}

// postPayment is the single path that adds a payment to a bill: wallet first,
// then the payment row, its allocation and the bill status.
func (s *service) postPayment(ctx context.Context, tx *gorm.DB, actor auth.Actor, st *billState, payment *models.Payment) error {
	repo := s.repo.WithTx(tx)
	if err := validateWalletUse(st.bill, payment.Method); err != nil {
		return err
	}
	if m, ok := walletMovement(st.bill, *payment, payment.RecordedBy); ok {
		if _, err := s.wallet.Apply(ctx, tx, m); err != nil {
			return err
		}
	}

	if err := repo.CreatePayment(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	st.payments = append(st.payments, *payment)

	rule, err := s.rules.Resolve(ctx, tx, st.bill.ArtistID)
	if err != nil {
		return err
	}
	split, err := s.allocate(ctx, repo, st, rule, *payment)
	if err != nil {
		return err
	}

	settled := refreshStatus(st)
	if err := s.saveBill(ctx, repo, st.bill); err != nil {
		return err
	}

	if err := s.emit(ctx, tx, actor, enums.EventBillPaymentRecorded, enums.AggregateBill, st.bill.ID, payloads.PaymentRecordedEvent{
		BillID:       st.bill.ID,
		PaymentID:    payment.ID,
		Amount:       payment.Amount,
		Method:       payment.Method,
		PaidAt:       payment.PaidAt,
		ArtistAmount: split.Artist,
		ShopAmount:   split.Shop,
		Status:       st.bill.Status,
	}); err != nil {
		return err
	}
	if settled {
		return s.emitSettled(ctx, tx, actor, st)
	}
	return nil
}

func hasPayment(payments []models.Payment, id uuid.UUID) bool {
	for _, p := range payments {
		if p.ID == id {
			return true
		}
	}
	return false
}
