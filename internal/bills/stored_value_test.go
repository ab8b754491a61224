package bills

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/inkledger-backend/internal/allocation"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

func TestTopupRequiresPrimaryArtist(t *testing.T) {
	f := newFixture(t)
	member := f.member(0, nil)

	_, err := f.svc.CreateStoredValueTopup(f.ctx, f.boss, TopupInput{MemberID: member.ID, Amount: 1000, Method: enums.PaymentMethodCash})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.CreateStoredValueTopup(f.ctx, f.boss, TopupInput{MemberID: uuid.New(), Amount: 1000, Method: enums.PaymentMethodCash})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestTopupCreditsWalletAndSplitsForPrimaryArtist(t *testing.T) {
	f := newFixture(t)
	artist := f.artist()
	f.rule(artist.ID, 5000)
	member := f.member(100, &artist.ID)

	d, err := f.svc.CreateStoredValueTopup(f.ctx, f.staff, TopupInput{MemberID: member.ID, Amount: 2000, Method: enums.PaymentMethodCard})
	require.NoError(t, err)

	assert.Equal(t, enums.BillTypeStoredValueTopup, d.Bill.BillType)
	assert.Equal(t, enums.BillStatusSettled, d.Bill.Status)
	require.NotNil(t, d.Bill.ArtistID)
	assert.Equal(t, artist.ID, *d.Bill.ArtistID)
	require.Len(t, d.Items, 1)
	assert.Equal(t, int64(2000), d.Bill.BillTotal)
	require.Len(t, d.Payments, 1)
	assert.Equal(t, allocation.Split{Artist: 1000, Shop: 1000}, d.Payments[0].Allocation)

	balance, spent := f.wallet(member.ID)
	assert.Equal(t, int64(2100), balance)
	assert.Equal(t, int64(0), spent)
	entries := f.ledgerEntries(member.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.WalletEntryTopup, entries[0].Type)
}

func TestTopupRejectsWalletMethodAndBadAmount(t *testing.T) {
	f := newFixture(t)
	artist := f.artist()
	member := f.member(5000, &artist.ID)

	_, err := f.svc.CreateStoredValueTopup(f.ctx, f.boss, TopupInput{MemberID: member.ID, Amount: 1000, Method: enums.PaymentMethodStoredValue})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.CreateStoredValueTopup(f.ctx, f.boss, TopupInput{MemberID: member.ID, Amount: -5, Method: enums.PaymentMethodCash})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestArtistSeesTopupTheyCreated(t *testing.T) {
	f := newFixture(t)
	primary := f.artist()
	seller := f.artist()
	member := f.member(0, &primary.ID)

	d, err := f.svc.CreateStoredValueTopup(f.ctx, seller, TopupInput{MemberID: member.ID, Amount: 500, Method: enums.PaymentMethodCash})
	require.NoError(t, err)

	_, err = f.svc.Get(f.ctx, seller, d.Bill.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(f.ctx, primary, d.Bill.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(f.ctx, f.artist(), d.Bill.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestRefundToStoredValueCreditsWithoutAllocation(t *testing.T) {
	f := newFixture(t)
	artist := uuid.New()
	f.rule(artist, 7000)
	member := f.member(0, &artist)
	source := f.ensure(f.boss, f.appointment(&member.ID, &artist, `{"total":800}`).ID)

	d, err := f.svc.RefundToStoredValue(f.ctx, f.boss, RefundInput{MemberID: member.ID, Amount: 300, SourceBillID: &source.Bill.ID})
	require.NoError(t, err)

	assert.Equal(t, enums.BillTypeStoredValueRefund, d.Bill.BillType)
	assert.Nil(t, d.Bill.ArtistID)
	require.NotNil(t, d.Bill.SourceBillID)
	assert.Equal(t, source.Bill.ID, *d.Bill.SourceBillID)
	require.Len(t, d.Payments, 1)
	assert.Equal(t, enums.PaymentMethodOther, d.Payments[0].Method)
	assert.Equal(t, allocation.Split{}, d.Payments[0].Allocation)

	balance, _ := f.wallet(member.ID)
	assert.Equal(t, int64(300), balance)
}

func TestRefundToStoredValueGuards(t *testing.T) {
	f := newFixture(t)
	member := f.member(0, nil)
	stranger := f.member(0, nil)
	foreign := f.ensure(f.boss, f.appointment(&stranger.ID, nil, `{"total":800}`).ID)

	_, err := f.svc.RefundToStoredValue(f.ctx, f.staff, RefundInput{MemberID: member.ID, Amount: 300})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.RefundToStoredValue(f.ctx, f.boss, RefundInput{MemberID: member.ID, Amount: 0})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.RefundToStoredValue(f.ctx, f.boss, RefundInput{MemberID: member.ID, Amount: 300, SourceBillID: &foreign.Bill.ID})
	requireCode(t, err, pkgerrors.CodeValidation)

	balance, _ := f.wallet(member.ID)
	assert.Equal(t, int64(0), balance)
}

func TestCreateManualBillWithPayment(t *testing.T) {
	f := newFixture(t)
	artist := f.artist()
	f.rule(artist.ID, 6000)

	d, err := f.svc.CreateManualBill(f.ctx, artist, ManualBillInput{
		BranchID: f.branch,
		ArtistID: &artist.ID,
		BillType: enums.BillTypeWalkIn,
		Item:     ManualItem{Name: "Flash piece", BasePrice: 600, FinalPrice: ptr(int64(500))},
		Payment:  &ManualPayment{Amount: 500, Method: enums.PaymentMethodCash},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.BillTypeWalkIn, d.Bill.BillType)
	assert.Equal(t, enums.BillStatusSettled, d.Bill.Status)
	assert.Equal(t, int64(100), d.Bill.DiscountTotal)
	require.Len(t, d.Payments, 1)
	assert.Equal(t, allocation.Split{Artist: 300, Shop: 200}, d.Payments[0].Allocation)
	assert.Len(t, f.events(enums.EventBillCreated), 1)
	assert.Len(t, f.events(enums.EventBillSettled), 1)
}

func TestCreateManualBillGuards(t *testing.T) {
	f := newFixture(t)
	artist := f.artist()
	item := ManualItem{Name: "Flash", BasePrice: 500}

	cases := []struct {
		name  string
		input ManualBillInput
		code  pkgerrors.Code
	}{
		{"appointment type", ManualBillInput{BranchID: f.branch, BillType: enums.BillTypeAppointment, Item: item}, pkgerrors.CodeValidation},
		{"no branch", ManualBillInput{BillType: enums.BillTypeOther, Item: item}, pkgerrors.CodeValidation},
		{"discount above price", ManualBillInput{BranchID: f.branch, BillType: enums.BillTypeOther, Item: ManualItem{Name: "Flash", BasePrice: 500, FinalPrice: ptr(int64(900))}}, pkgerrors.CodeValidation},
		{"unknown customer", ManualBillInput{BranchID: f.branch, BillType: enums.BillTypeOther, CustomerID: ptr(uuid.New()), Item: item}, pkgerrors.CodeNotFound},
		{"other branch", ManualBillInput{BranchID: uuid.New(), BillType: enums.BillTypeOther, Item: item}, pkgerrors.CodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateManualBill(f.ctx, f.staff, tc.input)
			requireCode(t, err, tc.code)
		})
	}

	_, err := f.svc.CreateManualBill(f.ctx, artist, ManualBillInput{BranchID: f.branch, BillType: enums.BillTypeWalkIn, Item: item})
	requireCode(t, err, pkgerrors.CodeForbidden)
}
