package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/inkledger-backend/api/middleware"
	billsvc "github.com/angelmondragon/inkledger-backend/internal/bills"
	walletsvc "github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/pagination"
)

type stubStoredValue struct {
	err        error
	lastTopup  billsvc.TopupInput
	lastRefund billsvc.RefundInput
}

func (s *stubStoredValue) CreateStoredValueTopup(ctx context.Context, actor auth.Actor, input billsvc.TopupInput) (*billsvc.Detail, error) {
	s.lastTopup = input
	if s.err != nil {
		return nil, s.err
	}
	return &billsvc.Detail{Bill: billsvc.BillView{ID: uuid.New(), BillType: enums.BillTypeStoredValueTopup}}, nil
}

func (s *stubStoredValue) RefundToStoredValue(ctx context.Context, actor auth.Actor, input billsvc.RefundInput) (*billsvc.Detail, error) {
	s.lastRefund = input
	if s.err != nil {
		return nil, s.err
	}
	return &billsvc.Detail{Bill: billsvc.BillView{ID: uuid.New(), BillType: enums.BillTypeStoredValueRefund}}, nil
}

type stubReader struct {
	summary    *walletsvc.Summary
	page       *walletsvc.EntryPage
	err        error
	lastParams pagination.Params
}

func (s *stubReader) Summary(ctx context.Context, memberID uuid.UUID) (*walletsvc.Summary, error) {
	return s.summary, s.err
}

func (s *stubReader) Entries(ctx context.Context, memberID uuid.UUID, params pagination.Params) (*walletsvc.EntryPage, error) {
	s.lastParams = params
	return s.page, s.err
}

func memberRequest(method, target, body string, memberID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	actor := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleBoss, BranchID: uuid.New()}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("memberId", memberID.String())
	ctx := middleware.WithActor(req.Context(), actor)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func TestTopupCreatesBill(t *testing.T) {
	memberID := uuid.New()
	svc := &stubStoredValue{}

	resp := httptest.NewRecorder()
	Topup(svc, nil).ServeHTTP(resp, memberRequest(http.MethodPost, "/api/v1/members/x/wallet/topups", `{"amount":5000,"method":"CASH"}`, memberID))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, memberID, svc.lastTopup.MemberID)
	assert.Equal(t, int64(5000), svc.lastTopup.Amount)
	assert.Equal(t, enums.PaymentMethodCash, svc.lastTopup.Method)
}

func TestTopupRejectsStoredValueMethod(t *testing.T) {
	resp := httptest.NewRecorder()
	Topup(&stubStoredValue{}, nil).ServeHTTP(resp, memberRequest(http.MethodPost, "/x", `{"amount":5000,"method":"STORED_VALUE"}`, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTopupRejectsNonPositiveAmount(t *testing.T) {
	resp := httptest.NewRecorder()
	Topup(&stubStoredValue{}, nil).ServeHTTP(resp, memberRequest(http.MethodPost, "/x", `{"amount":0,"method":"CASH"}`, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRefundForbiddenPropagates(t *testing.T) {
	svc := &stubStoredValue{err: pkgerrors.New(pkgerrors.CodeForbidden, "boss only")}
	sourceID := uuid.New()

	resp := httptest.NewRecorder()
	Refund(svc, nil).ServeHTTP(resp, memberRequest(http.MethodPost, "/x", `{"amount":1500,"source_bill_id":"`+sourceID.String()+`"}`, uuid.New()))

	assert.Equal(t, http.StatusForbidden, resp.Code)
	require.NotNil(t, svc.lastRefund.SourceBillID)
	assert.Equal(t, sourceID, *svc.lastRefund.SourceBillID)
}

func TestSummaryReturnsBalance(t *testing.T) {
	memberID := uuid.New()
	reader := &stubReader{summary: &walletsvc.Summary{MemberID: memberID, Balance: 4200, TotalSpent: 800}}

	resp := httptest.NewRecorder()
	Summary(reader, nil).ServeHTTP(resp, memberRequest(http.MethodGet, "/x", "", memberID))

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data walletsvc.Summary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, int64(4200), envelope.Data.Balance)
	assert.Equal(t, int64(800), envelope.Data.TotalSpent)
}

func TestSummaryNotFound(t *testing.T) {
	reader := &stubReader{err: pkgerrors.New(pkgerrors.CodeNotFound, "member not found")}

	resp := httptest.NewRecorder()
	Summary(reader, nil).ServeHTTP(resp, memberRequest(http.MethodGet, "/x", "", uuid.New()))

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEntriesPassesPaging(t *testing.T) {
	reader := &stubReader{page: &walletsvc.EntryPage{Entries: []walletsvc.EntryView{}, NextCursor: "abc"}}

	resp := httptest.NewRecorder()
	Entries(reader, nil).ServeHTTP(resp, memberRequest(http.MethodGet, "/x?limit=10&cursor=c1", "", uuid.New()))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 10, reader.lastParams.Limit)
	assert.Equal(t, "c1", reader.lastParams.Cursor)
	assert.Contains(t, resp.Body.String(), `"next_cursor":"abc"`)
}

func TestEntriesRejectsLimitAboveMax(t *testing.T) {
	resp := httptest.NewRecorder()
	Entries(&stubReader{}, nil).ServeHTTP(resp, memberRequest(http.MethodGet, "/x?limit=1000", "", uuid.New()))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
