package bills

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/internal/appointments"
	"github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/db"
	"github.com/angelmondragon/inkledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/outbox"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	client *db.Client
	svc    Service
	branch uuid.UUID
	boss   auth.Actor
	staff  auth.Actor
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		client: dbtest.Open(t),
		branch: uuid.New(),
		now:    time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
	}
	f.boss = auth.Actor{ID: uuid.New(), Role: enums.ActorRoleBoss}
	f.staff = auth.Actor{ID: uuid.New(), Role: enums.ActorRoleStaff, BranchID: f.branch}
	f.svc = f.service(NewRepository(f.client.DB()))
	return f
}

func (f *fixture) service(repo Repository) Service {
	f.t.Helper()
	gdb := f.client.DB()
	ledger, err := wallet.NewLedger(wallet.NewRepository(gdb), 0, nil, nil)
	require.NoError(f.t, err)
	rules, err := splitrules.NewService(splitrules.NewRepository(gdb), f.client, nil)
	require.NoError(f.t, err)
	reader, err := appointments.NewReader(appointments.NewRepository(gdb), nil)
	require.NoError(f.t, err)

	svc, err := NewService(ServiceParams{
		Repository:      repo,
		Tx:              f.client,
		Outbox:          outbox.NewService(outbox.NewRepository(gdb), nil),
		SplitRules:      rules,
		Wallet:          ledger,
		Appointments:    reader,
		DefaultCurrency: "EUR",
		Now:             func() time.Time { return f.now },
	})
	require.NoError(f.t, err)
	return svc
}

// tick moves the service clock forward so payments keep a stable order.
func (f *fixture) tick() {
	f.now = f.now.Add(time.Minute)
}

func (f *fixture) artist() auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: enums.ActorRoleArtist, BranchID: f.branch}
}

func (f *fixture) member(balance int64, primaryArtist *uuid.UUID) models.Member {
	f.t.Helper()
	m := models.Member{BranchID: f.branch, Name: "Mina", PrimaryArtistID: primaryArtist, StoredValueBalance: balance}
	require.NoError(f.t, f.client.DB().Create(&m).Error)
	return m
}

func (f *fixture) rule(artistID uuid.UUID, artistBps int) {
	f.t.Helper()
	require.NoError(f.t, f.client.DB().Create(&models.SplitRule{
		ArtistID:      artistID,
		ArtistRateBps: artistBps,
		ShopRateBps:   splitrules.BasisPoints - artistBps,
		CreatedBy:     f.boss.ID,
	}).Error)
}

func (f *fixture) appointment(customerID, artistID *uuid.UUID, cartJSON string) models.Appointment {
	f.t.Helper()
	appt := models.Appointment{
		ID:           uuid.New(),
		BranchID:     f.branch,
		CustomerID:   customerID,
		ArtistID:     artistID,
		CartSnapshot: json.RawMessage(cartJSON),
		StartsAt:     f.now,
	}
	require.NoError(f.t, f.client.DB().Create(&appt).Error)
	return appt
}

func (f *fixture) setCart(appointmentID uuid.UUID, cartJSON string) {
	f.t.Helper()
	require.NoError(f.t, f.client.DB().
		Model(&models.Appointment{}).
		Where("id = ?", appointmentID).
		Update("cart_snapshot", json.RawMessage(cartJSON)).Error)
}

func (f *fixture) ensure(actor auth.Actor, appointmentID uuid.UUID) *Detail {
	f.t.Helper()
	d, err := f.svc.EnsureForAppointment(f.ctx, actor, appointmentID)
	require.NoError(f.t, err)
	return d
}

func (f *fixture) pay(billID uuid.UUID, amount int64, method enums.PaymentMethod) *Detail {
	f.t.Helper()
	f.tick()
	d, err := f.svc.RecordPayment(f.ctx, f.boss, RecordPaymentInput{BillID: billID, Amount: amount, Method: method})
	require.NoError(f.t, err)
	return d
}

func (f *fixture) wallet(memberID uuid.UUID) (balance, spent int64) {
	f.t.Helper()
	var m models.Member
	require.NoError(f.t, f.client.DB().Where("id = ?", memberID).First(&m).Error)
	return m.StoredValueBalance, m.TotalSpent
}

func (f *fixture) ledgerEntries(memberID uuid.UUID) []models.WalletLedgerEntry {
	f.t.Helper()
	var rows []models.WalletLedgerEntry
	require.NoError(f.t, f.client.DB().Where("member_id = ?", memberID).Find(&rows).Error)
	return rows
}

func (f *fixture) events(eventType enums.OutboxEventType) []models.OutboxEvent {
	f.t.Helper()
	var rows []models.OutboxEvent
	require.NoError(f.t, f.client.DB().Where("event_type = ?", eventType).Find(&rows).Error)
	return rows
}

func (f *fixture) count(model any) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.client.DB().Model(model).Count(&n).Error)
	return n
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

// racyRepository hides appointment bills inside transactions, the way a
// concurrent request that has not committed yet would see them.
type racyRepository struct {
	Repository
	inTx bool
}

func (r *racyRepository) WithTx(tx *gorm.DB) Repository {
	return &racyRepository{Repository: r.Repository.WithTx(tx), inTx: true}
}

func (r *racyRepository) FindBillByAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.Bill, error) {
	if r.inTx {
		return nil, gorm.ErrRecordNotFound
	}
	return r.Repository.FindBillByAppointment(ctx, appointmentID)
}

func ptr[T any](v T) *T { return &v }
