package bills

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/outbox/payloads"
)

// Void moves a bill to its terminal VOID state. Payments, allocations and the
// wallet are left as they are. Voiding a VOID bill returns it unchanged.
func (s *service) Void(ctx context.Context, actor auth.Actor, billID uuid.UUID, reason string) (detail *Detail, err error) {
	defer func() { s.observe("void", err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "void reason required")
	}

	changed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bill, err := s.loadBill(ctx, repo, billID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, bill); err != nil {
			return err
		}
		st, err := s.loadState(ctx, repo, bill)
		if err != nil {
			return err
		}
		if bill.IsVoid() {
			detail = st.detail()
			return nil
		}

		now := s.now()
		voidedBy := actor.ID
		bill.Status = enums.BillStatusVoid
		bill.VoidedAt = &now
		bill.VoidedBy = &voidedBy
		bill.VoidReason = &reason
		if err := s.saveBill(ctx, repo, bill); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, actor, enums.EventBillVoided, enums.AggregateBill, bill.ID, payloads.BillVoidedEvent{
			BillID:   bill.ID,
			BranchID: bill.BranchID,
			Reason:   reason,
			VoidedAt: now,
		}); err != nil {
			return err
		}
		changed = true
		detail = st.detail()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logDone(ctx, actor, "voided", billID, map[string]any{"reason": reason})
	}
	return detail, nil
}

// DeleteHard removes a bill and every row hanging off it after undoing its
// wallet effect. Reversals that find no ledger entry are compensated rather
// than failing the delete.
func (s *service) DeleteHard(ctx context.Context, actor auth.Actor, billID uuid.UUID, reason string) (result *DeleteResult, err error) {
	defer func() { s.observe("delete_hard", err) }()

	if err := requireBoss(actor, "hard delete"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delete reason required")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bill, err := s.loadBill(ctx, repo, billID)
		if err != nil {
			return err
		}
		st, err := s.loadState(ctx, repo, bill)
		if err != nil {
			return err
		}

		outcomes, err := s.reverseWallet(ctx, tx, actor, bill, st.payments)
		if err != nil {
			return err
		}

		ids := st.paymentIDs()
		if err := repo.DetachRefundReferences(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach refund references")
		}
		if err := repo.DeleteAllocations(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete allocations")
		}
		if err := repo.DeletePayments(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payments")
		}
		if err := repo.DeleteItemsByBill(ctx, bill.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete bill items")
		}
		if err := repo.DeleteBill(ctx, bill.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete bill")
		}

		reversed, compensated := countOutcomes(outcomes)
		if err := s.emit(ctx, tx, actor, enums.EventBillDeleted, enums.AggregateBill, bill.ID, payloads.BillDeletedEvent{
			BillID:       bill.ID,
			BranchID:     bill.BranchID,
			BillType:     bill.BillType,
			BillTotal:    bill.BillTotal,
			PaidTotal:    st.paidTotal(),
			Reason:       reason,
			Reversed:     reversed,
			Compensated:  compensated,
			PaymentCount: len(st.payments),
		}); err != nil {
			return err
		}
		result = &DeleteResult{BillID: bill.ID, Reversals: outcomes}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordReversals(result.Reversals)
	reversed, compensated := countOutcomes(result.Reversals)
	s.logDone(ctx, actor, "deleted", billID, map[string]any{
		"reason":      reason,
		"reversed":    reversed,
		"compensated": compensated,
	})
	return result, nil
}

func countOutcomes(outcomes []wallet.ReversalOutcome) (reversed, compensated int) {
	for _, o := range outcomes {
		switch o.(type) {
		case wallet.Reversed:
			reversed++
		case wallet.Compensated:
			compensated++
		}
	}
	return reversed, compensated
}

func (s *service) recordReversals(outcomes []wallet.ReversalOutcome) {
	for _, o := range outcomes {
		s.metrics.IncReversal(o.Outcome())
	}
}
