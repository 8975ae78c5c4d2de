package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
)

// captureSink records every emitted event for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *captureSink) Publish(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) last(t *testing.T, name string) domain.Event {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Name == name {
			return s.events[i]
		}
	}
	t.Fatalf("no %q event emitted; have %d events", name, len(s.events))
	return domain.Event{}
}

type testFixture struct {
	eng       *engine.Engine
	issuer    *Issuer
	sink      *captureSink
	adminAcct *engine.Account
	adminAuth *engine.Auth
}

func newTestFixture(t *testing.T, enableWrapped bool) *testFixture {
	t.Helper()
	eng := engine.New()
	sink := &captureSink{}

	issuer, adminBadge, err := Instantiate(eng, domain.DefaultStableCoinConfig(), InstantiateParams{
		InitialSupply:      1000,
		TokenSymbol:        "USDX",
		Metadata:           map[string]string{"provider_name": "Acme Issuer"},
		EnableWrappedToken: enableWrapped,
	}, sink)
	if err != nil {
		t.Fatalf("Instantiate returned error: %v", err)
	}

	adminAcct := eng.CreateAccount()
	adminAuth := engine.NewAuth("admin-signer", adminBadge.Proof())
	if err := eng.AccountDeposit(adminAcct, adminBadge, adminAuth); err != nil {
		t.Fatalf("admin badge deposit failed: %v", err)
	}

	return &testFixture{eng: eng, issuer: issuer, sink: sink, adminAcct: adminAcct, adminAuth: adminAuth}
}

// newUser creates a user badge for the id, deposits it into a fresh account and
// returns the account together with a live badge auth. The proof stays locked
// for the test's duration; register its Drop as cleanup.
func (f *testFixture) newUser(t *testing.T, id domain.UserID) (*engine.Account, *engine.Auth, *engine.Proof) {
	t.Helper()
	acc := f.eng.CreateAccount()
	badge, err := f.issuer.CreateNewUser(context.Background(), f.adminAuth, id, acc.Address())
	if err != nil {
		t.Fatalf("CreateNewUser(%d) returned error: %v", id, err)
	}
	if err := f.eng.AccountDeposit(acc, badge, f.adminAuth); err != nil {
		t.Fatalf("user badge deposit failed: %v", err)
	}
	proof, err := f.eng.CreateProof(acc, f.issuer.UserBadgeResource())
	if err != nil {
		t.Fatalf("user badge proof failed: %v", err)
	}
	t.Cleanup(proof.Drop)
	return acc, engine.NewAuth("user-signer", proof), proof
}

// fund moves amount from the treasury into the account.
func (f *testFixture) fund(t *testing.T, acc *engine.Account, amount domain.Amount) {
	t.Helper()
	bucket, err := f.issuer.Withdraw(context.Background(), f.adminAuth, amount)
	if err != nil {
		t.Fatalf("treasury withdraw failed: %v", err)
	}
	if err := f.eng.AccountDeposit(acc, bucket, f.adminAuth); err != nil {
		t.Fatalf("funding deposit failed: %v", err)
	}
}

func TestInstantiate(t *testing.T) {
	f := newTestFixture(t, true)

	supply, err := f.issuer.TotalSupply()
	if err != nil {
		t.Fatalf("TotalSupply returned error: %v", err)
	}
	if supply != 1000 {
		t.Fatalf("total supply = %d, want 1000", supply)
	}
	wrapped, err := f.issuer.WrappedTotalSupply()
	if err != nil {
		t.Fatalf("WrappedTotalSupply returned error: %v", err)
	}
	if wrapped != 1000 {
		t.Fatalf("wrapped supply = %d, want 1000", wrapped)
	}
	if f.issuer.TreasuryBalance() != 1000 {
		t.Fatalf("treasury = %d, want 1000", f.issuer.TreasuryBalance())
	}

	// The zeroth admin badge landed in the admin account.
	vault, ok := f.adminAcct.VaultByResource(f.issuer.AdminBadgeResource())
	if !ok || !vault.ContainsNonFungible(engine.NonFungibleID("0")) {
		t.Fatal("admin account does not hold badge 0")
	}
}

func TestInstantiateValidation(t *testing.T) {
	tests := []struct {
		name    string
		params  InstantiateParams
		wantErr error
	}{
		{
			name:    "missing provider name",
			params:  InstantiateParams{TokenSymbol: "USDX"},
			wantErr: ErrProviderNameRequired,
		},
		{
			name:    "blank provider name",
			params:  InstantiateParams{TokenSymbol: "USDX", Metadata: map[string]string{"provider_name": "  "}},
			wantErr: ErrProviderNameRequired,
		},
		{
			name:    "empty symbol",
			params:  InstantiateParams{Metadata: map[string]string{"provider_name": "Acme"}},
			wantErr: ErrTokenSymbolRequired,
		},
		{
			name: "negative supply",
			params: InstantiateParams{
				TokenSymbol:   "USDX",
				Metadata:      map[string]string{"provider_name": "Acme"},
				InitialSupply: -1,
			},
			wantErr: domain.ErrAmountNegative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Instantiate(engine.New(), domain.DefaultStableCoinConfig(), tt.params, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Instantiate error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSupplyChangesKeepWrappedInLockStep(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	if err := f.issuer.IncreaseSupply(ctx, f.adminAuth, 500); err != nil {
		t.Fatalf("IncreaseSupply returned error: %v", err)
	}
	supply, _ := f.issuer.TotalSupply()
	wrapped, _ := f.issuer.WrappedTotalSupply()
	if supply != 1500 || wrapped != 1500 {
		t.Fatalf("supplies = %d/%d after increase, want 1500/1500", supply, wrapped)
	}
	event := f.sink.last(t, domain.EventIncreaseSupply)
	if event.Fields["amount"] != "500" {
		t.Fatalf("increase event amount = %q, want \"500\"", event.Fields["amount"])
	}

	if err := f.issuer.DecreaseSupply(ctx, f.adminAuth, 300); err != nil {
		t.Fatalf("DecreaseSupply returned error: %v", err)
	}
	supply, _ = f.issuer.TotalSupply()
	wrapped, _ = f.issuer.WrappedTotalSupply()
	if supply != 1200 || wrapped != 1200 {
		t.Fatalf("supplies = %d/%d after decrease, want 1200/1200", supply, wrapped)
	}
	event = f.sink.last(t, domain.EventDecreaseSupply)
	if event.Fields["revealed_burn_amount"] != "300" {
		t.Fatalf("decrease event amount = %q, want \"300\"", event.Fields["revealed_burn_amount"])
	}
}

func TestSupplyOperationsRequireAdmin(t *testing.T) {
	f := newTestFixture(t, true)
	_, userAuth, _ := f.newUser(t, 7)

	if err := f.issuer.IncreaseSupply(context.Background(), userAuth, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for user mint, got %v", err)
	}
	if err := f.issuer.Pause(context.Background(), userAuth); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for user pause, got %v", err)
	}
}

func TestDepositGating(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	// An account without a user badge cannot receive the token.
	stranger := f.eng.CreateAccount()
	bucket, err := f.issuer.Withdraw(ctx, f.adminAuth, 10)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if err := f.eng.AccountDeposit(stranger, bucket, f.adminAuth); !errors.Is(err, ErrDepositUnauthorized) {
		t.Fatalf("expected ErrDepositUnauthorized, got %v", err)
	}
	if err := f.issuer.Deposit(ctx, f.adminAuth, bucket); err != nil {
		t.Fatalf("returning tokens to treasury failed: %v", err)
	}

	// A badged account can.
	acc, _, _ := f.newUser(t, 1)
	f.fund(t, acc, 10)

	// Paused blocks even badged accounts; unpause restores.
	if err := f.issuer.Pause(ctx, f.adminAuth); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	bucket, err = f.issuer.Withdraw(ctx, f.adminAuth, 5)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if err := f.eng.AccountDeposit(acc, bucket, f.adminAuth); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := f.issuer.Unpause(ctx, f.adminAuth); err != nil {
		t.Fatalf("Unpause returned error: %v", err)
	}
	if err := f.eng.AccountDeposit(acc, bucket, f.adminAuth); err != nil {
		t.Fatalf("deposit after unpause failed: %v", err)
	}

	// Static/template deposits are always rejected.
	if err := f.eng.AccountDepositStatic(f.issuer.TokenResource(), f.adminAuth); !errors.Is(err, ErrStaticDeposit) {
		t.Fatalf("expected ErrStaticDeposit, got %v", err)
	}
}

func TestPauseEventsCarryAdminBadge(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	if err := f.issuer.Pause(ctx, f.adminAuth); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	event := f.sink.last(t, domain.EventPaused)
	if event.Fields["tx_signer"] != "admin-signer" || event.Fields["admin_badge"] != "0" {
		t.Fatalf("pause event fields = %v, want signer and badge 0", event.Fields)
	}
	if !f.issuer.IsPaused() {
		t.Fatal("issuer not paused")
	}

	if err := f.issuer.Unpause(ctx, f.adminAuth); err != nil {
		t.Fatalf("Unpause returned error: %v", err)
	}
	if f.issuer.IsPaused() {
		t.Fatal("issuer still paused")
	}
}

func TestDuplicateUserRejected(t *testing.T) {
	f := newTestFixture(t, true)
	f.newUser(t, 42)

	acc := f.eng.CreateAccount()
	if _, err := f.issuer.CreateNewUser(context.Background(), f.adminAuth, 42, acc.Address()); !errors.Is(err, engine.ErrNonFungibleExists) {
		t.Fatalf("expected ErrNonFungibleExists for duplicate user, got %v", err)
	}
}

func TestCreateNewAdmin(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	badge, err := f.issuer.CreateNewAdmin(ctx, f.adminAuth, "emp-007")
	if err != nil {
		t.Fatalf("CreateNewAdmin returned error: %v", err)
	}
	ids := badge.NonFungibleIDs()
	if len(ids) != 1 {
		t.Fatalf("badge ids = %v, want one", ids)
	}

	// The fresh badge authorizes admin calls once held.
	second := f.eng.CreateAccount()
	secondAuth := engine.NewAuth("second-admin", badge.Proof())
	if err := f.eng.AccountDeposit(second, badge, secondAuth); err != nil {
		t.Fatalf("second admin badge deposit failed: %v", err)
	}
	if err := f.issuer.IncreaseSupply(ctx, secondAuth, 1); err != nil {
		t.Fatalf("second admin mint failed: %v", err)
	}

	event := f.sink.last(t, domain.EventCreateNewAdmin)
	if event.Fields["admin_id"] != string(ids[0]) {
		t.Fatalf("event admin_id = %q, want %q", event.Fields["admin_id"], ids[0])
	}
}

func TestBlacklistRoundTrip(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	acc, _, proof := f.newUser(t, 9)
	proof.Drop() // release the badge so it can be recalled

	before, err := f.issuer.GetUserData(f.adminAuth, 9)
	if err != nil {
		t.Fatalf("GetUserData returned error: %v", err)
	}

	vault, _ := acc.VaultByResource(f.issuer.UserBadgeResource())
	if err := f.issuer.BlacklistUser(ctx, f.adminAuth, vault.ID(), 9); err != nil {
		t.Fatalf("BlacklistUser returned error: %v", err)
	}

	mutable, err := f.issuer.GetUserMutableData(f.adminAuth, 9)
	if err != nil {
		t.Fatalf("GetUserMutableData returned error: %v", err)
	}
	if !mutable.IsBlacklisted {
		t.Fatal("user not flagged as blacklisted")
	}

	// With the badge recalled the account can no longer receive tokens.
	bucket, err := f.issuer.Withdraw(ctx, f.adminAuth, 5)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if err := f.eng.AccountDeposit(acc, bucket, f.adminAuth); !errors.Is(err, ErrDepositUnauthorized) {
		t.Fatalf("expected ErrDepositUnauthorized after blacklist, got %v", err)
	}
	if err := f.issuer.Deposit(ctx, f.adminAuth, bucket); err != nil {
		t.Fatalf("returning tokens failed: %v", err)
	}

	// Reinstating returns the badge with identity data untouched.
	badge, err := f.issuer.RemoveFromBlacklist(ctx, f.adminAuth, 9)
	if err != nil {
		t.Fatalf("RemoveFromBlacklist returned error: %v", err)
	}
	if err := f.eng.AccountDeposit(acc, badge, f.adminAuth); err != nil {
		t.Fatalf("badge redeposit failed: %v", err)
	}

	after, err := f.issuer.GetUserData(f.adminAuth, 9)
	if err != nil {
		t.Fatalf("GetUserData returned error: %v", err)
	}
	if after != before {
		t.Fatalf("user data changed across blacklist round trip: %+v != %+v", after, before)
	}
	mutable, err = f.issuer.GetUserMutableData(f.adminAuth, 9)
	if err != nil {
		t.Fatalf("GetUserMutableData returned error: %v", err)
	}
	if mutable.IsBlacklisted {
		t.Fatal("user still flagged after reinstatement")
	}
}

func TestRecallRevealedTokens(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	acc, _, _ := f.newUser(t, 3)
	f.fund(t, acc, 200)
	treasuryBefore := f.issuer.TreasuryBalance()

	if err := f.issuer.RecallRevealedTokens(ctx, f.adminAuth, 3, 150); err != nil {
		t.Fatalf("RecallRevealedTokens returned error: %v", err)
	}

	vault, _ := acc.VaultByResource(f.issuer.TokenResource())
	if vault.Balance() != 50 {
		t.Fatalf("user balance after recall = %d, want 50", vault.Balance())
	}
	if got := f.issuer.TreasuryBalance(); got != treasuryBefore+150 {
		t.Fatalf("treasury after recall = %d, want %d", got, treasuryBefore+150)
	}

	event := f.sink.last(t, domain.EventRecallTokens)
	if event.Fields["revealed_amount"] != "150" {
		t.Fatalf("recall event amount = %q, want \"150\"", event.Fields["revealed_amount"])
	}
}

func TestSetUserExchangeLimit(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()
	f.newUser(t, 4)

	if err := f.issuer.SetUserExchangeLimit(ctx, f.adminAuth, 4, 0); !errors.Is(err, ErrLimitNotPositive) {
		t.Fatalf("expected ErrLimitNotPositive, got %v", err)
	}
	if err := f.issuer.SetUserExchangeLimit(ctx, f.adminAuth, 4, 2500); err != nil {
		t.Fatalf("SetUserExchangeLimit returned error: %v", err)
	}

	mutable, err := f.issuer.GetUserMutableData(f.adminAuth, 4)
	if err != nil {
		t.Fatalf("GetUserMutableData returned error: %v", err)
	}
	if mutable.WrappedExchangeLimit != 2500 {
		t.Fatalf("limit = %d, want 2500", mutable.WrappedExchangeLimit)
	}

	event := f.sink.last(t, domain.EventSetUserExchangeLimit)
	if event.Fields["admin"] != "admin-signer" {
		t.Fatalf("event admin = %q, want signer", event.Fields["admin"])
	}
}

func TestFreezeAndBurnUtxosThroughIssuer(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	utxos := []engine.UtxoID{"u1", "u2"}
	if err := f.issuer.FreezeUtxos(ctx, f.adminAuth, utxos); err != nil {
		t.Fatalf("FreezeUtxos returned error: %v", err)
	}
	event := f.sink.last(t, domain.EventFreezeUtxos)
	if event.Fields["num_utxos"] != "2" {
		t.Fatalf("freeze event count = %q, want \"2\"", event.Fields["num_utxos"])
	}
	if err := f.issuer.UnfreezeUtxos(ctx, f.adminAuth, utxos); err != nil {
		t.Fatalf("UnfreezeUtxos returned error: %v", err)
	}

	if err := f.issuer.BurnUtxos(ctx, f.adminAuth, engine.ValueProof{Utxo: "u1", RevealedAmount: 100}); !errors.Is(err, engine.ErrValueProofInvalid) {
		t.Fatalf("expected ErrValueProofInvalid, got %v", err)
	}
	if err := f.issuer.BurnUtxos(ctx, f.adminAuth, engine.ValueProof{Utxo: "u1", RevealedAmount: 100, Certified: true}); err != nil {
		t.Fatalf("BurnUtxos returned error: %v", err)
	}
	supply, _ := f.issuer.TotalSupply()
	if supply != 900 {
		t.Fatalf("supply after utxo burn = %d, want 900", supply)
	}
}

func TestSetTransferFee(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	if err := f.issuer.SetConfigTransferFeePercentage(ctx, f.adminAuth, 2); err != nil {
		t.Fatalf("SetConfigTransferFeePercentage returned error: %v", err)
	}
	event := f.sink.last(t, domain.EventSetTransferFeePercentage)
	if event.Fields["old_transfer_fee"] != "1" || event.Fields["new_transfer_fee"] != "2%" {
		t.Fatalf("fee event fields = %v, want old \"1\" new \"2%%\"", event.Fields)
	}
	if f.issuer.Config().TransferFee.String() != "2%" {
		t.Fatalf("transfer fee = %s, want 2%%", f.issuer.Config().TransferFee)
	}

	if err := f.issuer.SetConfigTransferFeeFixed(ctx, f.adminAuth, 5); err != nil {
		t.Fatalf("SetConfigTransferFeeFixed returned error: %v", err)
	}
	if f.issuer.Config().TransferFee.String() != "5" {
		t.Fatalf("transfer fee = %s, want 5", f.issuer.Config().TransferFee)
	}

	if err := f.issuer.SetConfigTransferFeePercentage(ctx, f.adminAuth, 101); !errors.Is(err, domain.ErrPercentageOutOfRange) {
		t.Fatalf("expected ErrPercentageOutOfRange, got %v", err)
	}
}
