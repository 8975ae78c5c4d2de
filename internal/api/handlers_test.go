package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tari-project/stable-coin/internal/app"
	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
	"github.com/tari-project/stable-coin/internal/store"
)

// recordingSink persists emitted events so the /admin/events endpoints have
// something to serve.
type recordingSink struct {
	repo store.Repository
}

func (s recordingSink) Publish(ctx context.Context, event domain.Event) error {
	return s.repo.RecordEvent(ctx, event)
}

type apiFixture struct {
	server     *httptest.Server
	eng        *engine.Engine
	issuer     *app.Issuer
	repo       *store.MemoryRepository
	adminAcct  *engine.Account
	adminAuth  *engine.Auth
	adminToken string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	eng := engine.New()
	repo := store.NewMemoryRepository()

	issuer, adminBadge, err := app.Instantiate(eng, domain.DefaultStableCoinConfig(), app.InstantiateParams{
		InitialSupply:      1_000_000,
		TokenSymbol:        "USDX",
		Metadata:           map[string]string{"provider_name": "Acme Issuer"},
		EnableWrappedToken: true,
	}, recordingSink{repo: repo})
	if err != nil {
		t.Fatalf("Instantiate returned error: %v", err)
	}

	adminAcct := eng.CreateAccount()
	adminAuth := engine.NewAuth(string(adminAcct.Address()), adminBadge.Proof())
	if err := eng.AccountDeposit(adminAcct, adminBadge, adminAuth); err != nil {
		t.Fatalf("admin badge deposit failed: %v", err)
	}

	h := NewIssuerHandlers(issuer, eng, repo)
	server := httptest.NewServer(IssuerRoutes(h, testSecret))
	t.Cleanup(server.Close)

	return &apiFixture{
		server:     server,
		eng:        eng,
		issuer:     issuer,
		repo:       repo,
		adminAcct:  adminAcct,
		adminAuth:  adminAuth,
		adminToken: signedToken(t, testSecret, jwt.MapClaims{"sub": string(adminAcct.Address())}),
	}
}

// do issues one request against the test server, optionally authenticated and
// with a JSON body, and decodes the JSON response into out when non-nil.
func (f *apiFixture) do(t *testing.T, method, path, token string, body, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request failed: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response of %s %s failed: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// newBadgedUser provisions an account with a user badge over the API and funds
// it from the treasury. Returns the account address and its bearer token.
func (f *apiFixture) newBadgedUser(t *testing.T, userID string, funding domain.Amount) (string, string) {
	t.Helper()
	var created map[string]string
	if status := f.do(t, http.MethodPost, "/accounts", f.adminToken, nil, &created); status != http.StatusCreated {
		t.Fatalf("create account status = %d", status)
	}
	address := created["account"]

	status := f.do(t, http.MethodPost, "/admin/users", f.adminToken,
		map[string]string{"user_id": userID, "account": address}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create user status = %d", status)
	}

	if funding > 0 {
		acc, err := f.eng.Account(engine.ComponentAddress(address))
		if err != nil {
			t.Fatalf("resolving account failed: %v", err)
		}
		bucket, err := f.issuer.Withdraw(context.Background(), f.adminAuth, funding)
		if err != nil {
			t.Fatalf("treasury withdraw failed: %v", err)
		}
		if err := f.eng.AccountDeposit(acc, bucket, f.adminAuth); err != nil {
			t.Fatalf("funding deposit failed: %v", err)
		}
	}
	return address, signedToken(t, testSecret, jwt.MapClaims{"sub": address})
}

func TestSupplyEndpointIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	var resp supplyResponse
	if status := f.do(t, http.MethodGet, "/supply", "", nil, &resp); status != http.StatusOK {
		t.Fatalf("supply status = %d", status)
	}
	if resp.TotalSupply != "1000" || resp.WrappedTotalSupply != "1000" {
		t.Fatalf("supply = %s/%s, want 1000/1000", resp.TotalSupply, resp.WrappedTotalSupply)
	}
	if resp.Paused {
		t.Fatal("fresh issuer reports paused")
	}
}

func TestAuthenticatedEndpointsRejectAnonymous(t *testing.T) {
	f := newAPIFixture(t)

	if status := f.do(t, http.MethodPost, "/accounts", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous create account status = %d, want 401", status)
	}
	if status := f.do(t, http.MethodGet, "/balance", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous balance status = %d, want 401", status)
	}
}

func TestAdminEndpointsRequireAdminBadge(t *testing.T) {
	f := newAPIFixture(t)
	_, userToken := f.newBadgedUser(t, "21", 0)

	status := f.do(t, http.MethodPost, "/admin/supply/increase", userToken,
		amountRequest{Amount: "1"}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("user mint status = %d, want 403", status)
	}
}

func TestUserProfileAndBalance(t *testing.T) {
	f := newAPIFixture(t)
	address, userToken := f.newBadgedUser(t, "42", 200)

	var me map[string]interface{}
	if status := f.do(t, http.MethodGet, "/me", userToken, nil, &me); status != http.StatusOK {
		t.Fatalf("me status = %d", status)
	}
	if me["user_id"] != "0000000000000000042" {
		t.Fatalf("me user_id = %v, want 19-digit padded 42", me["user_id"])
	}
	if me["user_account"] != address {
		t.Fatalf("me user_account = %v, want %s", me["user_account"], address)
	}
	if me["is_blacklisted"] != false {
		t.Fatalf("me is_blacklisted = %v, want false", me["is_blacklisted"])
	}

	var balances map[string]string
	if status := f.do(t, http.MethodGet, "/balance", userToken, nil, &balances); status != http.StatusOK {
		t.Fatalf("balance status = %d", status)
	}
	if balances["balance"] != "0.2" {
		t.Fatalf("balance = %s, want 0.2", balances["balance"])
	}
	if balances["wrapped_balance"] != "0" {
		t.Fatalf("wrapped balance = %s, want 0", balances["wrapped_balance"])
	}
}

func TestExchangeOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	_, userToken := f.newBadgedUser(t, "7", 200)

	var resp map[string]string
	status := f.do(t, http.MethodPost, "/exchange/stable-to-wrapped", userToken,
		amountRequest{Amount: "0.1"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("exchange status = %d: %v", status, resp)
	}
	// 1% fee on 0.1.
	if resp["exchanged"] != "0.1" || resp["received"] != "0.099" {
		t.Fatalf("exchange response = %v, want exchanged 0.1 received 0.099", resp)
	}

	var balances map[string]string
	if status := f.do(t, http.MethodGet, "/balance", userToken, nil, &balances); status != http.StatusOK {
		t.Fatalf("balance status = %d", status)
	}
	if balances["balance"] != "0.1" || balances["wrapped_balance"] != "0.099" {
		t.Fatalf("balances after exchange = %v", balances)
	}

	status = f.do(t, http.MethodPost, "/exchange/wrapped-to-stable", userToken,
		amountRequest{Amount: "0.099"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("reverse exchange status = %d: %v", status, resp)
	}
	if resp["received"] != "0.099" {
		t.Fatalf("reverse exchange received = %s, want 0.099", resp["received"])
	}
}

func TestRejectedExchangeLeavesBalancesUntouched(t *testing.T) {
	f := newAPIFixture(t)
	// Default per-user limit is 1000 base units; fund well past it.
	_, userToken := f.newBadgedUser(t, "8", 5000)
	treasuryBefore := f.issuer.TreasuryBalance()

	var resp map[string]string
	status := f.do(t, http.MethodPost, "/exchange/stable-to-wrapped", userToken,
		amountRequest{Amount: "2"}, &resp)
	if status != http.StatusBadRequest {
		t.Fatalf("over-limit exchange status = %d, want 400: %v", status, resp)
	}

	var balances map[string]string
	if s := f.do(t, http.MethodGet, "/balance", userToken, nil, &balances); s != http.StatusOK {
		t.Fatalf("balance status = %d", s)
	}
	if balances["balance"] != "5" {
		t.Fatalf("balance after rejected exchange = %s, want 5", balances["balance"])
	}
	if balances["wrapped_balance"] != "0" {
		t.Fatalf("wrapped balance after rejected exchange = %s, want 0", balances["wrapped_balance"])
	}
	if got := f.issuer.TreasuryBalance(); got != treasuryBefore {
		t.Fatalf("treasury after rejected exchange = %d, want %d", got, treasuryBefore)
	}
}

func TestRejectedReverseExchangeLeavesBalancesUntouched(t *testing.T) {
	f := newAPIFixture(t)
	_, userToken := f.newBadgedUser(t, "9", 200)

	// Acquire wrapped tokens, then drain the stable treasury so the reverse
	// direction has nothing to pay out with.
	status := f.do(t, http.MethodPost, "/exchange/stable-to-wrapped", userToken,
		amountRequest{Amount: "0.1"}, nil)
	if status != http.StatusOK {
		t.Fatalf("exchange status = %d", status)
	}
	drained, err := f.issuer.Withdraw(context.Background(), f.adminAuth, f.issuer.TreasuryBalance())
	if err != nil {
		t.Fatalf("draining treasury failed: %v", err)
	}

	var balancesBefore map[string]string
	f.do(t, http.MethodGet, "/balance", userToken, nil, &balancesBefore)

	status = f.do(t, http.MethodPost, "/exchange/wrapped-to-stable", userToken,
		amountRequest{Amount: "0.099"}, nil)
	if status != http.StatusPaymentRequired {
		t.Fatalf("reverse exchange against empty treasury status = %d, want 402", status)
	}

	var balancesAfter map[string]string
	f.do(t, http.MethodGet, "/balance", userToken, nil, &balancesAfter)
	if balancesAfter["wrapped_balance"] != balancesBefore["wrapped_balance"] {
		t.Fatalf("wrapped balance changed across rejected exchange: %s -> %s",
			balancesBefore["wrapped_balance"], balancesAfter["wrapped_balance"])
	}
	if balancesAfter["balance"] != balancesBefore["balance"] {
		t.Fatalf("balance changed across rejected exchange: %s -> %s",
			balancesBefore["balance"], balancesAfter["balance"])
	}

	if err := f.issuer.Deposit(context.Background(), f.adminAuth, drained); err != nil {
		t.Fatalf("refilling treasury failed: %v", err)
	}
}

func TestRejectedAdminWithdrawRestoresTreasury(t *testing.T) {
	f := newAPIFixture(t)
	treasuryBefore := f.issuer.TreasuryBalance()

	// The admin account holds no user badge, so the deposit hook rejects the
	// withdrawal's landing; the treasury must get the tokens back.
	status := f.do(t, http.MethodPost, "/admin/withdraw", f.adminToken,
		amountRequest{Amount: "1"}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("badge-less withdraw status = %d, want 403", status)
	}
	if got := f.issuer.TreasuryBalance(); got != treasuryBefore {
		t.Fatalf("treasury after rejected withdraw = %d, want %d", got, treasuryBefore)
	}
}

func TestSupplyChangeOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	var resp map[string]string
	status := f.do(t, http.MethodPost, "/admin/supply/increase", f.adminToken,
		amountRequest{Amount: "500"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("increase status = %d: %v", status, resp)
	}
	if resp["minted"] != "500" {
		t.Fatalf("minted = %s, want 500", resp["minted"])
	}

	var supply supplyResponse
	if s := f.do(t, http.MethodGet, "/supply", "", nil, &supply); s != http.StatusOK {
		t.Fatalf("supply status = %d", s)
	}
	if supply.TotalSupply != "1500" {
		t.Fatalf("supply after mint = %s, want 1500", supply.TotalSupply)
	}
}

func TestPauseOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	if status := f.do(t, http.MethodPost, "/admin/pause", f.adminToken, nil, nil); status != http.StatusOK {
		t.Fatalf("pause status = %d", status)
	}
	var supply supplyResponse
	f.do(t, http.MethodGet, "/supply", "", nil, &supply)
	if !supply.Paused {
		t.Fatal("supply does not report paused")
	}
	if status := f.do(t, http.MethodPost, "/admin/unpause", f.adminToken, nil, nil); status != http.StatusOK {
		t.Fatalf("unpause status = %d", status)
	}
}

func TestTransferFeeOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	percent := uint8(2)
	var resp map[string]string
	status := f.do(t, http.MethodPut, "/admin/config/transfer-fee", f.adminToken,
		map[string]interface{}{"percent": percent}, &resp)
	if status != http.StatusOK {
		t.Fatalf("set fee status = %d: %v", status, resp)
	}
	if resp["transfer_fee"] != "2%" {
		t.Fatalf("transfer_fee = %s, want 2%%", resp["transfer_fee"])
	}

	// Both means neither: exactly one of fixed or percent must be given.
	status = f.do(t, http.MethodPut, "/admin/config/transfer-fee", f.adminToken,
		map[string]interface{}{"fixed": "0.001", "percent": percent}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("ambiguous fee request status = %d, want 400", status)
	}
}

func TestEventEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	status := f.do(t, http.MethodPost, "/admin/supply/increase", f.adminToken,
		amountRequest{Amount: "1"}, nil)
	if status != http.StatusOK {
		t.Fatalf("increase status = %d", status)
	}

	var events []domain.Event
	status = f.do(t, http.MethodGet, "/admin/events?name=increase_supply", f.adminToken, nil, &events)
	if status != http.StatusOK {
		t.Fatalf("list events status = %d", status)
	}
	if len(events) != 1 || events[0].Fields["amount"] != "1000" {
		t.Fatalf("events = %+v, want one increase_supply of 1000 base units", events)
	}

	var single domain.Event
	status = f.do(t, http.MethodGet, "/admin/events/"+events[0].ID.String(), f.adminToken, nil, &single)
	if status != http.StatusOK {
		t.Fatalf("get event status = %d", status)
	}
	if single.ID != events[0].ID {
		t.Fatalf("event id = %s, want %s", single.ID, events[0].ID)
	}

	status = f.do(t, http.MethodGet, "/admin/events/not-a-uuid", f.adminToken, nil, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad event id status = %d, want 400", status)
	}
}
