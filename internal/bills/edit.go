package bills

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/internal/allocation"
	"github.com/angelmondragon/inkledger-backend/internal/cart"
	"github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

// FullEdit rewrites a bill in place. The wallet effect of the persisted
// payments is reversed, the bill is mutated, and the wallet effect of the
// resulting payments is applied, all in one transaction. Balances move by the
// net of the two, so an edit is only refused for the balance it leaves behind.
func (s *service) FullEdit(ctx context.Context, actor auth.Actor, input FullEditInput) (detail *Detail, err error) {
	defer func() { s.observe("full_edit", err) }()

	if err := requireBoss(actor, "full edit"); err != nil {
		return nil, err
	}
	if err := validateEdit(input); err != nil {
		return nil, err
	}

	var outcomes []wallet.ReversalOutcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bill, err := s.loadBill(ctx, repo, input.BillID)
		if err != nil {
			return err
		}
		st, err := s.loadState(ctx, repo, bill)
		if err != nil {
			return err
		}
		if st.bill.IsVoid() && !confirmsVoid(input) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bill is void").
				WithDetails(map[string]any{"billId": st.bill.ID.String()})
		}
		if err := checkEditReferences(st, input); err != nil {
			return err
		}

		next := *st.bill
		if err := s.patchHeader(ctx, repo, actor, &next, input.Header); err != nil {
			return err
		}
		for _, method := range finalMethods(st, input) {
			if err := validateWalletUse(&next, method); err != nil {
				return err
			}
		}

		// The old effect is captured before the mutation and settled together
		// with the new one below.
		reversals := walletReversals(actor, st.bill, st.payments)

		wasSettled := st.bill.Status == enums.BillStatusSettled
		*st.bill = next

		if input.Items != nil {
			if err := s.reconcileItems(ctx, repo, st, input.Items); err != nil {
				return err
			}
		}
		explicit := map[uuid.UUID]allocation.Split{}
		changed := map[uuid.UUID]bool{}
		if input.Payments != nil {
			if err := s.reconcilePayments(ctx, repo, actor, st, input.Payments, explicit, changed); err != nil {
				return err
			}
		}

		totals := cart.Summarize(linesOf(st.items))
		st.bill.ListTotal = totals.ListTotal
		st.bill.DiscountTotal = totals.DiscountTotal
		st.bill.BillTotal = totals.BillTotal

		rule, err := s.rules.Resolve(ctx, tx, st.bill.ArtistID)
		if err != nil {
			return err
		}
		if err := s.settleAllocations(ctx, repo, st, rule, explicit, changed, input.RecomputeAllocations); err != nil {
			return err
		}

		st.bill.Status = statusFor(st.bill, st.paidTotal())
		outcomes, err = s.rewriteWallet(ctx, tx, actor, reversals, st.bill, st.payments)
		if err != nil {
			return err
		}
		if err := s.saveBill(ctx, repo, st.bill); err != nil {
			return err
		}
		if err := s.emitBill(ctx, tx, actor, enums.EventBillEdited, st); err != nil {
			return err
		}
		if !wasSettled && st.bill.Status == enums.BillStatusSettled {
			if err := s.emitSettled(ctx, tx, actor, st); err != nil {
				return err
			}
		}
		detail = st.detail()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordReversals(outcomes)
	s.logDone(ctx, actor, "edited", input.BillID, map[string]any{
		"reversals": len(outcomes),
		"status":    detail.Bill.Status,
	})
	return detail, nil
}

func validateEdit(input FullEditInput) error {
	if input.BillID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bill id required")
	}
	if h := input.Header; h != nil {
		if h.BillType != nil && !h.BillType.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid bill type")
		}
		if h.Currency != nil && strings.TrimSpace(*h.Currency) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "currency must not be empty")
		}
		if h.Status != nil && *h.Status != enums.BillStatusVoid {
			return pkgerrors.New(pkgerrors.CodeValidation, "only VOID may be set explicitly; other statuses follow payments")
		}
		if h.ClearArtist && h.ArtistID != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "artist cannot be set and cleared at once")
		}
	}

	seen := map[uuid.UUID]bool{}
	for _, item := range input.Items {
		if err := validateLine(item.Name, item.BasePrice, item.FinalPrice); err != nil {
			return err
		}
		if item.ID != nil {
			if seen[*item.ID] {
				return pkgerrors.New(pkgerrors.CodeValidation, "duplicate item id")
			}
			seen[*item.ID] = true
		}
	}
	for _, p := range input.Payments {
		if p.Amount == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must not be zero")
		}
		if !p.Method.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
		}
		if p.Allocation != nil && !p.Method.IsWalletDebit() {
			if err := validateSplit(p.Amount, *p.Allocation); err != nil {
				return err
			}
		}
		if p.ID != nil {
			if seen[*p.ID] {
				return pkgerrors.New(pkgerrors.CodeValidation, "duplicate payment id")
			}
			seen[*p.ID] = true
		}
	}
	return nil
}

// validateSplit requires an explicit split to sum to the amount with both
// buckets carrying the amount's sign.
func validateSplit(amount int64, split allocation.Split) error {
	details := map[string]any{"amount": amount, "artist": split.Artist, "shop": split.Shop}
	if split.Total() != amount {
		return pkgerrors.New(pkgerrors.CodeValidation, "allocation must sum to the payment amount").WithDetails(details)
	}
	if (amount > 0 && (split.Artist < 0 || split.Shop < 0)) || (amount < 0 && (split.Artist > 0 || split.Shop > 0)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "allocation buckets must follow the payment sign").WithDetails(details)
	}
	return nil
}

// confirmsVoid reports whether an edit does nothing beyond restating VOID.
func confirmsVoid(input FullEditInput) bool {
	if input.Items != nil || input.Payments != nil || input.RecomputeAllocations {
		return false
	}
	h := input.Header
	if h == nil {
		return true
	}
	if h.CustomerID != nil || h.ArtistID != nil || h.ClearArtist || h.BillType != nil || h.Currency != nil || h.Notes != nil {
		return false
	}
	return h.Status == nil || *h.Status == enums.BillStatusVoid
}

func validateLine(name string, base, final int64) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}
	if base < 0 || final < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "item prices must not be negative")
	}
	if final > base {
		return pkgerrors.New(pkgerrors.CodeValidation, "malformed discount: final price exceeds base price").
			WithDetails(map[string]any{"basePrice": base, "finalPrice": final})
	}
	return nil
}

// checkEditReferences rejects ids that do not belong to the bill.
func checkEditReferences(st *billState, input FullEditInput) error {
	items := map[uuid.UUID]bool{}
	for _, item := range st.items {
		items[item.ID] = true
	}
	for _, item := range input.Items {
		if item.ID != nil && !items[*item.ID] {
			return pkgerrors.New(pkgerrors.CodeValidation, "item does not belong to this bill").
				WithDetails(map[string]any{"itemId": item.ID.String()})
		}
	}

	if input.Payments == nil {
		return nil
	}
	payments := map[uuid.UUID]bool{}
	for _, p := range st.payments {
		payments[p.ID] = true
	}
	kept := map[uuid.UUID]bool{}
	for _, p := range input.Payments {
		if p.ID == nil {
			continue
		}
		if !payments[*p.ID] {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment does not belong to this bill").
				WithDetails(map[string]any{"paymentId": p.ID.String()})
		}
		kept[*p.ID] = true
	}
	for _, p := range input.Payments {
		if p.RefundOfPaymentID == nil {
			continue
		}
		if !kept[*p.RefundOfPaymentID] || (p.ID != nil && *p.ID == *p.RefundOfPaymentID) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund must reference another kept payment of this bill")
		}
	}
	return nil
}

func (s *service) patchHeader(ctx context.Context, repo Repository, actor auth.Actor, bill *models.Bill, h *HeaderPatch) error {
	if h == nil {
		return nil
	}
	if h.CustomerID != nil {
		if _, err := s.loadMember(ctx, repo, *h.CustomerID); err != nil {
			return err
		}
		customer := *h.CustomerID
		bill.CustomerID = &customer
	}
	if h.ClearArtist {
		bill.ArtistID = nil
	}
	if h.ArtistID != nil {
		artist := *h.ArtistID
		bill.ArtistID = &artist
	}
	if h.BillType != nil {
		bill.BillType = *h.BillType
	}
	if h.Currency != nil {
		bill.Currency = strings.TrimSpace(*h.Currency)
	}
	if h.Notes != nil {
		bill.Notes = trimmed(h.Notes)
	}
	if h.Status != nil && !bill.IsVoid() {
		reason := trimmed(h.VoidReason)
		if reason == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "void reason required")
		}
		now := s.now()
		voidedBy := actor.ID
		bill.Status = enums.BillStatusVoid
		bill.VoidedAt = &now
		bill.VoidedBy = &voidedBy
		bill.VoidReason = reason
	}
	return nil
}

func finalMethods(st *billState, input FullEditInput) []enums.PaymentMethod {
	var methods []enums.PaymentMethod
	if input.Payments == nil {
		for _, p := range st.payments {
			methods = append(methods, p.Method)
		}
		return methods
	}
	for _, p := range input.Payments {
		methods = append(methods, p.Method)
	}
	return methods
}

func (s *service) reconcileItems(ctx context.Context, repo Repository, st *billState, edits []ItemEdit) error {
	current := make(map[uuid.UUID]models.BillItem, len(st.items))
	for _, item := range st.items {
		current[item.ID] = item
	}

	next := make([]models.BillItem, 0, len(edits))
	var created []models.BillItem
	kept := map[uuid.UUID]bool{}
	for i, edit := range edits {
		item := models.BillItem{BillID: st.bill.ID}
		if edit.ID != nil {
			item = current[*edit.ID]
			kept[item.ID] = true
		}
		item.ServiceID = edit.ServiceID
		item.NameSnapshot = strings.TrimSpace(edit.Name)
		item.BasePriceSnapshot = edit.BasePrice
		item.FinalPriceSnapshot = edit.FinalPrice
		item.VariantsSnapshot = edit.Variants
		item.SortOrder = i
		if edit.ID == nil {
			created = append(created, item)
			continue
		}
		if err := repo.SaveItem(ctx, &item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bill item")
		}
		next = append(next, item)
	}

	var removed []uuid.UUID
	for _, item := range st.items {
		if !kept[item.ID] {
			removed = append(removed, item.ID)
		}
	}
	if err := repo.DeleteItems(ctx, removed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete bill items")
	}
	if err := repo.CreateItems(ctx, created); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bill items")
	}
	next = append(next, created...)
	sortItems(next)
	st.items = next
	return nil
}

// reconcilePayments makes the bill's payments match edits. explicit collects
// caller supplied allocations and changed marks payments whose allocation can
// no longer be kept as is.
func (s *service) reconcilePayments(ctx context.Context, repo Repository, actor auth.Actor, st *billState, edits []PaymentEdit, explicit map[uuid.UUID]allocation.Split, changed map[uuid.UUID]bool) error {
	current := make(map[uuid.UUID]models.Payment, len(st.payments))
	for _, p := range st.payments {
		current[p.ID] = p
	}
	kept := map[uuid.UUID]bool{}
	for _, edit := range edits {
		if edit.ID != nil {
			kept[*edit.ID] = true
		}
	}
	var removed []uuid.UUID
	for _, p := range st.payments {
		if !kept[p.ID] {
			removed = append(removed, p.ID)
		}
	}
	if err := repo.DetachRefundReferences(ctx, removed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach refund references")
	}
	if err := repo.DeleteAllocations(ctx, removed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete allocations")
	}
	if err := repo.DeletePayments(ctx, removed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payments")
	}
	for _, id := range removed {
		delete(st.allocations, id)
	}

	next := make([]models.Payment, 0, len(edits))
	for _, edit := range edits {
		var p models.Payment
		if edit.ID != nil {
			p = current[*edit.ID]
			if p.Amount != edit.Amount || p.Method != edit.Method {
				changed[p.ID] = true
			}
			if edit.PaidAt != nil && !edit.PaidAt.IsZero() {
				p.PaidAt = *edit.PaidAt
			}
		} else {
			p = models.Payment{BillID: st.bill.ID, RecordedBy: actor.ID, PaidAt: s.paidAt(edit.PaidAt)}
		}
		p.Amount = edit.Amount
		p.Method = edit.Method
		p.Notes = trimmed(edit.Notes)
		p.RefundOfPaymentID = edit.RefundOfPaymentID

		if edit.ID == nil {
			if err := repo.CreatePayment(ctx, &p); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
			changed[p.ID] = true
		} else if err := repo.SavePayment(ctx, &p); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if edit.Allocation != nil {
			explicit[p.ID] = *edit.Allocation
		}
		next = append(next, p)
	}
	st.payments = next
	return nil
}

// settleAllocations gives every payment its final split: wallet payments are
// forced to 0/0, explicit splits are stored as given, and the rest are either
// kept or recomputed in payment order.
func (s *service) settleAllocations(ctx context.Context, repo Repository, st *billState, rule *splitrules.Rule, explicit map[uuid.UUID]allocation.Split, changed map[uuid.UUID]bool, recompute bool) error {
	previous := st.allocations
	st.allocations = make(map[uuid.UUID]allocation.Split, len(st.payments))
	var running allocation.Split
	for _, p := range orderedPayments(st.payments) {
		prev, hadPrev := previous[p.ID]
		var split allocation.Split
		switch {
		case p.Method.IsWalletDebit():
			split = allocation.Split{}
		case hasKey(explicit, p.ID):
			split = explicit[p.ID]
		case recompute || changed[p.ID] || !hadPrev:
			split = allocation.Compute(allocation.Input{
				Amount:    p.Amount,
				Method:    p.Method,
				Rule:      rule,
				BillTotal: st.bill.BillTotal,
				Allocated: running,
			})
		default:
			split = prev
		}
		if err := s.storeAllocation(ctx, repo, st, p.ID, split); err != nil {
			return err
		}
		running = running.Add(split)
	}
	return nil
}

func hasKey(m map[uuid.UUID]allocation.Split, id uuid.UUID) bool {
	_, ok := m[id]
	return ok
}

func linesOf(items []models.BillItem) []cart.Line {
	lines := make([]cart.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, cart.Line{
			ServiceID:  item.ServiceID,
			Name:       item.NameSnapshot,
			BasePrice:  item.BasePriceSnapshot,
			FinalPrice: item.FinalPriceSnapshot,
			Variants:   item.VariantsSnapshot,
		})
	}
	return lines
}

func sortItems(items []models.BillItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })
}
