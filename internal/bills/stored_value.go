package bills

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/internal/cart"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

const (
	topupLineName  = "stored value top-up"
	refundLineName = "stored value refund"
)

// CreateStoredValueTopup sells wallet credit to a member. The bill is
// attributed to the member's primary artist so the split rule applies.
func (s *service) CreateStoredValueTopup(ctx context.Context, actor auth.Actor, input TopupInput) (detail *Detail, err error) {
	defer func() { s.observe("stored_value_topup", err) }()

	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top-up amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.Method.IsWalletDebit() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stored value cannot pay for a top-up")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		member, err := s.loadMember(ctx, repo, input.MemberID)
		if err != nil {
			return err
		}
		if member.PrimaryArtistID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "member has no primary artist").
				WithDetails(map[string]any{"memberId": member.ID.String()})
		}

		bill := s.storedValueBill(actor, member, enums.BillTypeStoredValueTopup, input.Notes)
		artist := *member.PrimaryArtistID
		bill.ArtistID = &artist
		if err := Authorize(actor, bill); err != nil {
			return err
		}
		payment := models.Payment{
			Amount:     input.Amount,
			Method:     input.Method,
			PaidAt:     s.paidAt(input.PaidAt),
			RecordedBy: actor.ID,
			Notes:      trimmed(input.Notes),
		}
		detail, err = s.constructBill(ctx, tx, actor, bill, singleLine(topupLineName, input.Amount), &payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logDone(ctx, actor, "topup_created", detail.Bill.ID, map[string]any{
		"member_id": input.MemberID.String(),
		"amount":    input.Amount,
	})
	return detail, nil
}

// RefundToStoredValue credits a member's wallet through a refund bill that
// carries no artist, so its allocation stays 0/0.
func (s *service) RefundToStoredValue(ctx context.Context, actor auth.Actor, input RefundInput) (detail *Detail, err error) {
	defer func() { s.observe("stored_value_refund", err) }()

	if err := requireBoss(actor, "stored value refund"); err != nil {
		return nil, err
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		member, err := s.loadMember(ctx, repo, input.MemberID)
		if err != nil {
			return err
		}
		if input.SourceBillID != nil {
			source, err := repo.FindBill(ctx, *input.SourceBillID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "source bill not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source bill")
			}
			if source.CustomerID == nil || *source.CustomerID != member.ID {
				return pkgerrors.New(pkgerrors.CodeValidation, "source bill belongs to another customer")
			}
		}

		bill := s.storedValueBill(actor, member, enums.BillTypeStoredValueRefund, input.Notes)
		bill.SourceBillID = input.SourceBillID
		payment := models.Payment{
			Amount:     input.Amount,
			Method:     enums.PaymentMethodOther,
			PaidAt:     s.now(),
			RecordedBy: actor.ID,
			Notes:      trimmed(input.Notes),
		}
		detail, err = s.constructBill(ctx, tx, actor, bill, singleLine(refundLineName, input.Amount), &payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logDone(ctx, actor, "refund_created", detail.Bill.ID, map[string]any{
		"member_id": input.MemberID.String(),
		"amount":    input.Amount,
	})
	return detail, nil
}

// CreateManualBill records a walk-in or other sale that has no appointment.
func (s *service) CreateManualBill(ctx context.Context, actor auth.Actor, input ManualBillInput) (detail *Detail, err error) {
	defer func() { s.observe("manual_bill", err) }()

	line, payment, err := s.validateManual(actor, input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.CustomerID != nil {
			if _, err := s.loadMember(ctx, repo, *input.CustomerID); err != nil {
				return err
			}
		}
		bill := &models.Bill{
			BranchID:   input.BranchID,
			CustomerID: input.CustomerID,
			ArtistID:   input.ArtistID,
			CreatedBy:  actor.ID,
			BillType:   input.BillType,
			Currency:   s.currency,
			Notes:      trimmed(input.Notes),
		}
		if input.Currency != nil && strings.TrimSpace(*input.Currency) != "" {
			bill.Currency = strings.TrimSpace(*input.Currency)
		}
		if err := Authorize(actor, bill); err != nil {
			return err
		}
		detail, err = s.constructBill(ctx, tx, actor, bill, []cart.Line{line}, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logDone(ctx, actor, "manual_created", detail.Bill.ID, map[string]any{
		"bill_type": input.BillType,
		"paid":      payment != nil,
	})
	return detail, nil
}

func (s *service) validateManual(actor auth.Actor, input ManualBillInput) (cart.Line, *models.Payment, error) {
	if input.BillType != enums.BillTypeWalkIn && input.BillType != enums.BillTypeOther {
		return cart.Line{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "manual bills must be WALK_IN or OTHER")
	}
	if input.BranchID == uuid.Nil {
		return cart.Line{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
	}
	final := input.Item.BasePrice
	if input.Item.FinalPrice != nil {
		final = *input.Item.FinalPrice
	}
	if err := validateLine(input.Item.Name, input.Item.BasePrice, final); err != nil {
		return cart.Line{}, nil, err
	}
	line := cart.Line{
		ServiceID:  input.Item.ServiceID,
		Name:       strings.TrimSpace(input.Item.Name),
		BasePrice:  input.Item.BasePrice,
		FinalPrice: final,
		Variants:   input.Item.Variants,
	}
	if input.Payment == nil {
		return line, nil, nil
	}
	if input.Payment.Amount == 0 {
		return cart.Line{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must not be zero")
	}
	if !input.Payment.Method.IsValid() {
		return cart.Line{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	return line, &models.Payment{
		Amount:     input.Payment.Amount,
		Method:     input.Payment.Method,
		PaidAt:     s.paidAt(input.Payment.PaidAt),
		RecordedBy: actor.ID,
		Notes:      trimmed(input.Payment.Notes),
	}, nil
}

func (s *service) storedValueBill(actor auth.Actor, member *models.Member, billType enums.BillType, notes *string) *models.Bill {
	customer := member.ID
	return &models.Bill{
		BranchID:   member.BranchID,
		CustomerID: &customer,
		CreatedBy:  actor.ID,
		BillType:   billType,
		Currency:   s.currency,
		Notes:      trimmed(notes),
	}
}

// constructBill creates bill with lines and, when given, posts its first
// payment through the same path RecordPayment uses.
func (s *service) constructBill(ctx context.Context, tx *gorm.DB, actor auth.Actor, bill *models.Bill, lines []cart.Line, payment *models.Payment) (*Detail, error) {
	if payment != nil {
		if err := validateWalletUse(bill, payment.Method); err != nil {
			return nil, err
		}
	}
	st, err := s.createBill(ctx, tx, actor, bill, lines)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		payment.BillID = bill.ID
		if err := s.postPayment(ctx, tx, actor, st, payment); err != nil {
			return nil, err
		}
	}
	return st.detail(), nil
}

func singleLine(name string, amount int64) []cart.Line {
	return []cart.Line{{Name: name, BasePrice: amount, FinalPrice: amount}}
}
