package bills

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/internal/allocation"
	"github.com/angelmondragon/inkledger-backend/internal/appointments"
	"github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
	"github.com/angelmondragon/inkledger-backend/pkg/metrics"
	"github.com/angelmondragon/inkledger-backend/pkg/outbox"
	"github.com/angelmondragon/inkledger-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type splitResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, artistID *uuid.UUID) (*splitrules.Rule, error)
}

type walletLedger interface {
	Apply(ctx context.Context, tx *gorm.DB, m wallet.Movement) (*models.WalletLedgerEntry, error)
	Reverse(ctx context.Context, tx *gorm.DB, m wallet.Movement, operators []uuid.UUID) (wallet.ReversalOutcome, error)
	Rewrite(ctx context.Context, tx *gorm.DB, reversals []wallet.Reversal, applies []wallet.Movement) ([]wallet.ReversalOutcome, error)
}

type snapshotReader interface {
	Snapshot(ctx context.Context, tx *gorm.DB, appointmentID uuid.UUID) (*appointments.Snapshot, error)
}

// Service is the bill lifecycle manager. Every mutation runs in one
// transaction and is the only path that touches wallets or allocations.
type Service interface {
	EnsureForAppointment(ctx context.Context, actor auth.Actor, appointmentID uuid.UUID) (*Detail, error)
	RecordPayment(ctx context.Context, actor auth.Actor, input RecordPaymentInput) (*Detail, error)
	FullEdit(ctx context.Context, actor auth.Actor, input FullEditInput) (*Detail, error)
	Void(ctx context.Context, actor auth.Actor, billID uuid.UUID, reason string) (*Detail, error)
	DeleteHard(ctx context.Context, actor auth.Actor, billID uuid.UUID, reason string) (*DeleteResult, error)
	CreateStoredValueTopup(ctx context.Context, actor auth.Actor, input TopupInput) (*Detail, error)
	RefundToStoredValue(ctx context.Context, actor auth.Actor, input RefundInput) (*Detail, error)
	CreateManualBill(ctx context.Context, actor auth.Actor, input ManualBillInput) (*Detail, error)
	Get(ctx context.Context, actor auth.Actor, billID uuid.UUID) (*Detail, error)
	List(ctx context.Context, actor auth.Actor, query ListQuery) ([]ReportRow, error)
	RebuildAll(ctx context.Context) (*BatchReport, error)
	RecomputeAllAllocations(ctx context.Context) (*BatchReport, error)
}

// ServiceParams wires the bill service.
type ServiceParams struct {
	Repository      Repository
	Tx              txRunner
	Outbox          outboxPublisher
	SplitRules      splitResolver
	Wallet          walletLedger
	Appointments    snapshotReader
	Logger          *logger.Logger
	Metrics         *metrics.BillingMetrics
	BatchMetrics    *metrics.BatchJobMetrics
	DefaultCurrency string
	Now             func() time.Time
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	rules        splitResolver
	wallet       walletLedger
	appointments snapshotReader
	logg         *logger.Logger
	metrics      *metrics.BillingMetrics
	batchMetrics *metrics.BatchJobMetrics
	currency     string
	now          func() time.Time
}

// NewService validates the dependencies and builds the bill service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("bills repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.SplitRules == nil {
		return nil, fmt.Errorf("split rule resolver required")
	}
	if params.Wallet == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if params.Appointments == nil {
		return nil, fmt.Errorf("appointment reader required")
	}
	currency := strings.TrimSpace(params.DefaultCurrency)
	if currency == "" {
		return nil, fmt.Errorf("default currency required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:         params.Repository,
		tx:           params.Tx,
		outbox:       params.Outbox,
		rules:        params.SplitRules,
		wallet:       params.Wallet,
		appointments: params.Appointments,
		logg:         params.Logger,
		metrics:      params.Metrics,
		batchMetrics: params.BatchMetrics,
		currency:     currency,
		now:          now,
	}, nil
}

// billState is a bill with every row that hangs off it, as read in one transaction.
type billState struct {
	bill        *models.Bill
	items       []models.BillItem
	payments    []models.Payment
	allocations map[uuid.UUID]allocation.Split
}

func (st *billState) paidTotal() int64 {
	var sum int64
	for _, p := range st.payments {
		sum += p.Amount
	}
	return sum
}

func (st *billState) allocated() allocation.Split {
	var sum allocation.Split
	for _, split := range st.allocations {
		sum = sum.Add(split)
	}
	return sum
}

func (st *billState) paymentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(st.payments))
	for _, p := range st.payments {
		ids = append(ids, p.ID)
	}
	return ids
}

func (st *billState) detail() *Detail {
	d := &Detail{
		Bill:     newBillView(st.bill),
		Items:    make([]ItemView, 0, len(st.items)),
		Payments: make([]PaymentView, 0, len(st.payments)),
	}
	for _, item := range st.items {
		d.Items = append(d.Items, newItemView(item))
	}
	for _, p := range st.payments {
		split := st.allocations[p.ID]
		d.Payments = append(d.Payments, newPaymentView(p, split))
		d.Summary.ArtistAmount += split.Artist
		d.Summary.ShopAmount += split.Shop
	}
	d.Summary.PaidTotal = st.paidTotal()
	d.Summary.DueTotal = max(st.bill.BillTotal-d.Summary.PaidTotal, 0)
	return d
}

func (s *service) loadBill(ctx context.Context, repo Repository, billID uuid.UUID) (*models.Bill, error) {
	if billID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill id required")
	}
	bill, err := repo.FindBill(ctx, billID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bill not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bill")
	}
	return bill, nil
}

func (s *service) loadState(ctx context.Context, repo Repository, bill *models.Bill) (*billState, error) {
	items, err := repo.ListItems(ctx, bill.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bill items")
	}
	payments, err := repo.ListPayments(ctx, bill.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	st := &billState{bill: bill, items: items, payments: payments}
	if err := s.reloadAllocations(ctx, repo, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *service) reloadAllocations(ctx context.Context, repo Repository, st *billState) error {
	rows, err := repo.ListAllocations(ctx, st.paymentIDs())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocations")
	}
	st.allocations = make(map[uuid.UUID]allocation.Split, len(st.payments))
	for _, row := range rows {
		split := st.allocations[row.PaymentID]
		switch row.Target {
		case enums.AllocationTargetArtist:
			split.Artist += row.Amount
		case enums.AllocationTargetShop:
			split.Shop += row.Amount
		}
		st.allocations[row.PaymentID] = split
	}
	return nil
}

func (s *service) loadMember(ctx context.Context, repo Repository, memberID uuid.UUID) (*models.Member, error) {
	member, err := repo.FindMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return member, nil
}

// statusFor derives the bill status from its payments. VOID is terminal.
func statusFor(bill *models.Bill, paid int64) enums.BillStatus {
	if bill.IsVoid() {
		return enums.BillStatusVoid
	}
	if paid >= bill.BillTotal {
		return enums.BillStatusSettled
	}
	return enums.BillStatusOpen
}

// refreshStatus recomputes the status and reports whether the bill just settled.
func refreshStatus(st *billState) bool {
	before := st.bill.Status
	st.bill.Status = statusFor(st.bill, st.paidTotal())
	return before != enums.BillStatusSettled && st.bill.Status == enums.BillStatusSettled
}

// allocate computes and stores the split for payment p given what the bill
// already carries, then records it in the state.
func (s *service) allocate(ctx context.Context, repo Repository, st *billState, rule *splitrules.Rule, p models.Payment) (allocation.Split, error) {
	already := st.allocated()
	if prev, ok := st.allocations[p.ID]; ok {
		already = allocation.Split{Artist: already.Artist - prev.Artist, Shop: already.Shop - prev.Shop}
	}
	split := allocation.Compute(allocation.Input{
		Amount:    p.Amount,
		Method:    p.Method,
		Rule:      rule,
		BillTotal: st.bill.BillTotal,
		Allocated: already,
	})
	if err := s.storeAllocation(ctx, repo, st, p.ID, split); err != nil {
		return allocation.Split{}, err
	}
	return split, nil
}

func (s *service) storeAllocation(ctx context.Context, repo Repository, st *billState, paymentID uuid.UUID, split allocation.Split) error {
	if err := repo.ReplaceAllocations(ctx, paymentID, split); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store allocation")
	}
	if st.allocations == nil {
		st.allocations = make(map[uuid.UUID]allocation.Split)
	}
	st.allocations[paymentID] = split
	return nil
}

// reallocateAll recomputes every payment of the bill in payment order.
func (s *service) reallocateAll(ctx context.Context, repo Repository, st *billState, rule *splitrules.Rule) error {
	st.allocations = make(map[uuid.UUID]allocation.Split, len(st.payments))
	for _, p := range orderedPayments(st.payments) {
		if _, err := s.allocate(ctx, repo, st, rule, p); err != nil {
			return err
		}
	}
	return nil
}

func orderedPayments(payments []models.Payment) []models.Payment {
	out := append([]models.Payment(nil), payments...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].PaidAt.Before(out[j].PaidAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// walletMovement describes the wallet effect of payment p on bill, if any.
func walletMovement(bill *models.Bill, p models.Payment, operator uuid.UUID) (wallet.Movement, bool) {
	effect, ok := wallet.EffectFor(bill.BillType, p.Method, p.Amount)
	if !ok || bill.CustomerID == nil {
		return wallet.Movement{}, false
	}
	billID := bill.ID
	return wallet.Movement{
		Effect:     effect,
		MemberID:   *bill.CustomerID,
		OperatorID: operator,
		BillID:     &billID,
		OccurredAt: p.PaidAt,
	}, true
}

// validateWalletUse rejects payments whose wallet effect cannot be applied.
func validateWalletUse(bill *models.Bill, method enums.PaymentMethod) error {
	if bill.BillType.IsStoredValue() && method.IsWalletDebit() {
		return pkgerrors.New(pkgerrors.CodeValidation, "stored value cannot pay for a stored value bill")
	}
	if (bill.BillType.IsStoredValue() || method.IsWalletDebit()) && bill.CustomerID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stored value requires a customer on the bill")
	}
	return nil
}

// walletMovements lists the forward wallet movements of payments. Credits go
// first so a bill that both tops up and spends never trips the balance floor
// midway.
func walletMovements(bill *models.Bill, payments []models.Payment) []wallet.Movement {
	var movements []wallet.Movement
	for _, p := range orderedPayments(payments) {
		if m, ok := walletMovement(bill, p, p.RecordedBy); ok {
			movements = append(movements, m)
		}
	}
	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].BalanceDelta > 0 && movements[j].BalanceDelta <= 0
	})
	return movements
}

// walletReversals lists what undoing the wallet effect of payments takes.
// Reversals that give money back to the member come first.
func walletReversals(actor auth.Actor, bill *models.Bill, payments []models.Payment) []wallet.Reversal {
	var queue []wallet.Reversal
	for _, p := range orderedPayments(payments) {
		m, ok := walletMovement(bill, p, p.RecordedBy)
		if !ok {
			continue
		}
		queue = append(queue, wallet.Reversal{Movement: m, Operators: []uuid.UUID{p.RecordedBy, bill.CreatedBy, actor.ID}})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Movement.BalanceDelta < 0 && queue[j].Movement.BalanceDelta >= 0
	})
	return queue
}

// applyWallet runs the forward wallet path for payments.
func (s *service) applyWallet(ctx context.Context, tx *gorm.DB, bill *models.Bill, payments []models.Payment) error {
	for _, m := range walletMovements(bill, payments) {
		if _, err := s.wallet.Apply(ctx, tx, m); err != nil {
			return err
		}
	}
	return nil
}

// reverseWallet undoes the wallet effect of payments one movement at a time.
func (s *service) reverseWallet(ctx context.Context, tx *gorm.DB, actor auth.Actor, bill *models.Bill, payments []models.Payment) ([]wallet.ReversalOutcome, error) {
	reversals := walletReversals(actor, bill, payments)
	outcomes := make([]wallet.ReversalOutcome, 0, len(reversals))
	for _, r := range reversals {
		outcome, err := s.wallet.Reverse(ctx, tx, r.Movement, r.Operators)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	if err := s.emitCompensations(ctx, tx, actor, reversals, outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// rewriteWallet swaps the wallet effect of reversals for that of the payments
// now on bill, judging the balance floor on the net result per member.
func (s *service) rewriteWallet(ctx context.Context, tx *gorm.DB, actor auth.Actor, reversals []wallet.Reversal, bill *models.Bill, payments []models.Payment) ([]wallet.ReversalOutcome, error) {
	outcomes, err := s.wallet.Rewrite(ctx, tx, reversals, walletMovements(bill, payments))
	if err != nil {
		return nil, err
	}
	if err := s.emitCompensations(ctx, tx, actor, reversals, outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *service) emitCompensations(ctx context.Context, tx *gorm.DB, actor auth.Actor, reversals []wallet.Reversal, outcomes []wallet.ReversalOutcome) error {
	for i, outcome := range outcomes {
		comp, ok := outcome.(wallet.Compensated)
		if !ok {
			continue
		}
		m := reversals[i].Movement
		err := s.emit(ctx, tx, actor, enums.EventWalletCompensated, enums.AggregateMember, m.MemberID, payloads.WalletCompensatedEvent{
			MemberID:      m.MemberID,
			BillID:        m.BillID,
			EntryType:     comp.EntryType,
			Amount:        comp.Amount,
			LedgerEntryID: comp.LedgerEntryID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor auth.Actor, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, data any) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Actor:         actorRef(actor),
		Data:          data,
		OccurredAt:    s.now(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue "+string(eventType))
	}
	return nil
}

func (s *service) emitBill(ctx context.Context, tx *gorm.DB, actor auth.Actor, eventType enums.OutboxEventType, st *billState) error {
	return s.emit(ctx, tx, actor, eventType, enums.AggregateBill, st.bill.ID, billEvent(st))
}

func (s *service) emitSettled(ctx context.Context, tx *gorm.DB, actor auth.Actor, st *billState) error {
	err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBillSettled,
		AggregateType: enums.AggregateBill,
		AggregateID:   st.bill.ID,
		Actor:         actorRef(actor),
		Data:          billEvent(st),
		OccurredAt:    s.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue bill_settled")
	}
	return nil
}

func billEvent(st *billState) payloads.BillEvent {
	b := st.bill
	return payloads.BillEvent{
		BillID:        b.ID,
		BranchID:      b.BranchID,
		AppointmentID: b.AppointmentID,
		CustomerID:    b.CustomerID,
		ArtistID:      b.ArtistID,
		BillType:      b.BillType,
		Status:        b.Status,
		BillTotal:     b.BillTotal,
		PaidTotal:     st.paidTotal(),
		Currency:      b.Currency,
	}
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	ref := &outbox.ActorRef{UserID: actor.ID, Role: string(actor.Role)}
	if actor.BranchID != uuid.Nil {
		branch := actor.BranchID
		ref.BranchID = &branch
	}
	return ref
}

func (s *service) saveBill(ctx context.Context, repo Repository, bill *models.Bill) error {
	if err := repo.SaveBill(ctx, bill); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save bill")
	}
	return nil
}

func (s *service) observe(operation string, err error) {
	s.metrics.ObserveOperation(operation, err)
}

func (s *service) logDone(ctx context.Context, actor auth.Actor, operation string, billID uuid.UUID, extra map[string]any) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"operation":  operation,
		"actor_id":   actor.ID.String(),
		"actor_role": string(actor.Role),
	}
	for k, v := range extra {
		fields[k] = v
	}
	logCtx := s.logg.WithBillID(s.logg.WithFields(ctx, fields), billID.String())
	s.logg.Info(logCtx, "bill "+operation)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func (s *service) paidAt(v *time.Time) time.Time {
	if v == nil || v.IsZero() {
		return s.now()
	}
	return *v
}
