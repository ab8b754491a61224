package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
	"github.com/angelmondragon/inkledger-backend/pkg/metrics"
	"github.com/angelmondragon/inkledger-backend/pkg/pagination"
)

// DefaultMatchWindow bounds how far a ledger entry may sit from its payment
// time and still be treated as that payment's entry.
const DefaultMatchWindow = 10 * time.Minute

// Summary is the wallet read model shown next to a member.
type Summary struct {
	MemberID   uuid.UUID `json:"member_id"`
	Balance    int64     `json:"balance"`
	TotalSpent int64     `json:"total_spent"`
}

// EntryView is the API shape of a ledger entry.
type EntryView struct {
	ID         uuid.UUID             `json:"id"`
	Type       enums.WalletEntryType `json:"type"`
	Amount     int64                 `json:"amount"`
	OperatorID uuid.UUID             `json:"operator_id"`
	BillID     *uuid.UUID            `json:"bill_id,omitempty"`
	Note       *string               `json:"note,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// EntryPage is one page of a member's ledger.
type EntryPage struct {
	Entries    []EntryView `json:"entries"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

func newEntryView(e models.WalletLedgerEntry) EntryView {
	return EntryView{
		ID:         e.ID,
		Type:       e.Type,
		Amount:     e.Amount,
		OperatorID: e.OperatorID,
		BillID:     e.BillID,
		Note:       e.Note,
		OccurredAt: e.OccurredAt,
	}
}

// Ledger keeps member balances and the wallet ledger in step. Apply and Reverse
// must run inside the caller's transaction.
type Ledger struct {
	repo    Repository
	window  time.Duration
	logg    *logger.Logger
	metrics *metrics.BillingMetrics
}

// NewLedger builds a Ledger. A non-positive window falls back to DefaultMatchWindow.
func NewLedger(repo Repository, window time.Duration, logg *logger.Logger, m *metrics.BillingMetrics) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if window <= 0 {
		window = DefaultMatchWindow
	}
	return &Ledger{repo: repo, window: window, logg: logg, metrics: m}, nil
}

// Apply moves the balance and writes exactly one ledger entry. Debits that
// would leave a negative balance fail with CodeInsufficient before any write;
// credits are unconditional.
func (l *Ledger) Apply(ctx context.Context, tx *gorm.DB, m Movement) (*models.WalletLedgerEntry, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if m.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet movement amount must be positive")
	}
	repo := l.repo.WithTx(tx)
	if err := l.adjust(ctx, repo, m.MemberID, m.BalanceDelta, m.SpentDelta); err != nil {
		return nil, err
	}

	entry := newEntry(m)
	if err := repo.InsertEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wallet ledger entry")
	}
	return entry, nil
}

// Reverse undoes a movement previously applied for a payment. The balance is
// moved back first, then the matching ledger entry is deleted. When no entry
// matches, an offsetting entry is written instead; reversal never fails for
// lack of a match. operators lists who may have written the original entry,
// with the current actor last.
func (l *Ledger) Reverse(ctx context.Context, tx *gorm.DB, m Movement, operators []uuid.UUID) (ReversalOutcome, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	repo := l.repo.WithTx(tx)
	inverse := m.Effect.Inverse()
	if err := l.adjust(ctx, repo, m.MemberID, inverse.BalanceDelta, inverse.SpentDelta); err != nil {
		return nil, err
	}
	return l.unwind(ctx, repo, m, operators)
}

// Reversal is a movement to undo together with the operators that may have
// written its ledger entry.
type Reversal struct {
	Movement  Movement
	Operators []uuid.UUID
}

// Rewrite replaces the wallet effect of reversals with that of applies in one
// step. Ledger entries are unwound and written in order, but each member's
// balance moves once by the net amount, so the floor only rejects a rewrite
// that leaves a balance negative. Outcomes line up with reversals.
func (l *Ledger) Rewrite(ctx context.Context, tx *gorm.DB, reversals []Reversal, applies []Movement) ([]ReversalOutcome, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	repo := l.repo.WithTx(tx)

	type delta struct{ balance, spent int64 }
	net := map[uuid.UUID]*delta{}
	var order []uuid.UUID
	add := func(memberID uuid.UUID, e Effect) {
		d, ok := net[memberID]
		if !ok {
			d = &delta{}
			net[memberID] = d
			order = append(order, memberID)
		}
		d.balance += e.BalanceDelta
		d.spent += e.SpentDelta
	}

	outcomes := make([]ReversalOutcome, 0, len(reversals))
	for _, r := range reversals {
		outcome, err := l.unwind(ctx, repo, r.Movement, r.Operators)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
		add(r.Movement.MemberID, r.Movement.Effect.Inverse())
	}
	for _, m := range applies {
		if m.Amount <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet movement amount must be positive")
		}
		if err := repo.InsertEntry(ctx, newEntry(m)); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wallet ledger entry")
		}
		add(m.MemberID, m.Effect)
	}

	for _, memberID := range order {
		d := net[memberID]
		if d.balance == 0 && d.spent == 0 {
			continue
		}
		if err := l.adjust(ctx, repo, memberID, d.balance, d.spent); err != nil {
			return nil, err
		}
	}
	return outcomes, nil
}

// unwind removes the ledger trace of m: the closest matching entry is
// deleted, or an offsetting entry is written when none matches.
func (l *Ledger) unwind(ctx context.Context, repo Repository, m Movement, operators []uuid.UUID) (ReversalOutcome, error) {
	inverse := m.Effect.Inverse()
	at := occurredAt(m.OccurredAt)
	candidates, err := repo.FindCandidates(ctx, CandidateQuery{
		MemberID:  m.MemberID,
		EntryType: m.EntryType,
		Amount:    m.Amount,
		Operators: dedupe(operators),
		From:      at.Add(-l.window),
		To:        at.Add(l.window),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search wallet ledger")
	}

	if match := closest(candidates, at); match != nil {
		if err := repo.DeleteEntry(ctx, match.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete wallet ledger entry")
		}
		l.metrics.IncReversal(OutcomeReversed)
		return Reversed{LedgerEntryID: match.ID}, nil
	}

	entry := &models.WalletLedgerEntry{
		MemberID:   m.MemberID,
		Type:       inverse.EntryType,
		Amount:     m.Amount,
		OperatorID: actingOperator(operators),
		BillID:     m.BillID,
		Note:       compensationNote(m),
		OccurredAt: time.Now(),
	}
	if err := repo.InsertEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert compensating ledger entry")
	}
	l.metrics.IncReversal(OutcomeCompensated)
	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"member_id":  m.MemberID.String(),
			"entry_type": inverse.EntryType,
			"amount":     m.Amount,
		})
		l.logg.Warn(logCtx, "wallet ledger entry not matched; wrote compensating entry")
	}
	return Compensated{EntryType: inverse.EntryType, Amount: m.Amount, LedgerEntryID: entry.ID}, nil
}

// Summary returns the member's balance and stored-value consumption.
func (l *Ledger) Summary(ctx context.Context, memberID uuid.UUID) (*Summary, error) {
	member, err := l.repo.FindMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return &Summary{MemberID: member.ID, Balance: member.StoredValueBalance, TotalSpent: member.TotalSpent}, nil
}

// Entries lists the member's ledger, newest first, one cursor page at a time.
func (l *Ledger) Entries(ctx context.Context, memberID uuid.UUID, params pagination.Params) (*EntryPage, error) {
	if _, err := l.Summary(ctx, memberID); err != nil {
		return nil, err
	}
	cursor, err := pagination.Decode(params.Cursor, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := l.repo.ListEntries(ctx, memberID, cursor, params.FetchLimit())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet ledger")
	}

	rows, next := pagination.Trim(rows, params, memberID, func(e models.WalletLedgerEntry) (time.Time, uuid.UUID) {
		return e.OccurredAt, e.ID
	})
	page := &EntryPage{Entries: make([]EntryView, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		page.Entries = append(page.Entries, newEntryView(row))
	}
	return page, nil
}

func (l *Ledger) adjust(ctx context.Context, repo Repository, memberID uuid.UUID, balanceDelta, spentDelta int64) error {
	ok, err := repo.AdjustBalance(ctx, memberID, balanceDelta, spentDelta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}
	if ok {
		return nil
	}
	member, err := repo.FindMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stored value").
		WithDetails(map[string]any{"balance": member.StoredValueBalance, "required": -balanceDelta})
}

func newEntry(m Movement) *models.WalletLedgerEntry {
	return &models.WalletLedgerEntry{
		MemberID:   m.MemberID,
		Type:       m.EntryType,
		Amount:     m.Amount,
		OperatorID: m.OperatorID,
		BillID:     m.BillID,
		Note:       m.Note,
		OccurredAt: occurredAt(m.OccurredAt),
	}
}

func closest(candidates []models.WalletLedgerEntry, at time.Time) *models.WalletLedgerEntry {
	var best *models.WalletLedgerEntry
	var bestDiff time.Duration
	for i := range candidates {
		diff := candidates[i].OccurredAt.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best = &candidates[i]
			bestDiff = diff
		}
	}
	return best
}

func occurredAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// actingOperator returns the current actor, which callers pass last.
func actingOperator(ids []uuid.UUID) uuid.UUID {
	if len(ids) == 0 {
		return uuid.Nil
	}
	return ids[len(ids)-1]
}

func compensationNote(m Movement) *string {
	note := fmt.Sprintf("compensates %s of %d", m.EntryType, m.Amount)
	return &note
}
