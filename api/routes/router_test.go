package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/inkledger-backend/internal/bills"
	"github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/config"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	"github.com/angelmondragon/inkledger-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

// stubBills only implements the calls these tests route to.
type stubBills struct {
	bills.Service
	deleted bool
}

func (s *stubBills) List(ctx context.Context, actor auth.Actor, query bills.ListQuery) ([]bills.ReportRow, error) {
	return []bills.ReportRow{{ID: uuid.New(), BillType: enums.BillTypeWalkIn, Status: enums.BillStatusOpen}}, nil
}

func (s *stubBills) DeleteHard(ctx context.Context, actor auth.Actor, billID uuid.UUID, reason string) (*bills.DeleteResult, error) {
	s.deleted = true
	return &bills.DeleteResult{BillID: billID, Reversals: []wallet.ReversalOutcome{}}, nil
}

type stubWallet struct{}

func (stubWallet) Summary(ctx context.Context, memberID uuid.UUID) (*wallet.Summary, error) {
	return &wallet.Summary{MemberID: memberID, Balance: 100}, nil
}

func (stubWallet) Entries(ctx context.Context, memberID uuid.UUID, params pagination.Params) (*wallet.EntryPage, error) {
	return &wallet.EntryPage{Entries: []wallet.EntryView{}}, nil
}

type stubRules struct{}

func (stubRules) Get(ctx context.Context, artistID uuid.UUID) (*splitrules.Rule, error) {
	return &splitrules.Rule{ArtistRateBps: 5000, ShopRateBps: 5000}, nil
}

func (stubRules) Set(ctx context.Context, actor auth.Actor, artistID uuid.UUID, rule splitrules.Rule) (*splitrules.Rule, error) {
	return &rule, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "inkledger-test"},
	}
}

func newTestRouter(t *testing.T, svc *stubBills) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(testConfig(), nil, stubPinger{}, nil, nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), svc, stubWallet{}, stubRules{})
}

func bearer(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := auth.MintActorToken(testConfig().JWT, time.Now(), time.Hour, auth.Actor{
		ID:       uuid.New(),
		Role:     role,
		BranchID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, &stubBills{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/api/public/ping"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router := newTestRouter(t, &stubBills{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/bills", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListBillsWithToken(t *testing.T) {
	router := newTestRouter(t, &stubBills{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bills", nil)
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleStaff))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"bills":[`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestDeleteBillBossOnly(t *testing.T) {
	svc := &stubBills{}
	router := newTestRouter(t, svc)
	path := "/api/v1/bills/" + uuid.NewString()

	req := httptest.NewRequest(http.MethodDelete, path, strings.NewReader(`{"reason":"duplicate"}`))
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleArtist))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if svc.deleted {
		t.Fatalf("artist must not reach delete")
	}

	req = httptest.NewRequest(http.MethodDelete, path, strings.NewReader(`{"reason":"duplicate"}`))
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleBoss))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !svc.deleted {
		t.Fatalf("expected delete to reach service")
	}
}

func TestWalletAndSplitRuleRoutes(t *testing.T) {
	router := newTestRouter(t, &stubBills{})
	token := bearer(t, enums.ActorRoleBoss)

	for _, path := range []string{
		"/api/v1/members/" + uuid.NewString() + "/wallet",
		"/api/v1/members/" + uuid.NewString() + "/wallet/entries",
		"/api/v1/split-rules/" + uuid.NewString(),
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", path, resp.Code, resp.Body.String())
		}
	}
}
