package app

import (
	"context"
	"errors"
	"testing"

	"github.com/tari-project/stable-coin/internal/engine"
)

func TestExchangeStableForWrapped(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	acc, userAuth, proof := f.newUser(t, 11)
	f.fund(t, acc, 200)
	treasuryBefore := f.issuer.TreasuryBalance()

	bucket, err := f.eng.AccountWithdraw(acc, f.issuer.TokenResource(), 100, userAuth)
	if err != nil {
		t.Fatalf("account withdraw failed: %v", err)
	}
	wrapped, err := f.issuer.ExchangeStableForWrapped(ctx, userAuth, proof, bucket)
	if err != nil {
		t.Fatalf("ExchangeStableForWrapped returned error: %v", err)
	}

	// 1% fee on 100 base units.
	if wrapped.Amount() != 99 {
		t.Fatalf("wrapped amount = %d, want 99", wrapped.Amount())
	}
	if wrapped.ResourceAddress() != f.issuer.WrappedResource() {
		t.Fatal("exchange returned the wrong resource")
	}
	if got := f.issuer.TreasuryBalance(); got != treasuryBefore+100 {
		t.Fatalf("treasury = %d, want %d", got, treasuryBefore+100)
	}

	mutable, err := f.issuer.GetUserMutableData(f.adminAuth, 11)
	if err != nil {
		t.Fatalf("GetUserMutableData returned error: %v", err)
	}
	if mutable.WrappedExchangeLimit != 900 {
		t.Fatalf("remaining limit = %d, want 900", mutable.WrappedExchangeLimit)
	}

	event := f.sink.last(t, "exchange_stable_for_wrapped_tokens")
	if event.Fields["amount"] != "100" || event.Fields["fee"] != "1" {
		t.Fatalf("exchange event fields = %v, want amount 100 fee 1", event.Fields)
	}
}

func TestExchangeStableForWrappedLimitExceeded(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	acc, userAuth, proof := f.newUser(t, 12)
	f.fund(t, acc, 2000)

	// Default per-user limit is 1000 base units.
	bucket, err := f.eng.AccountWithdraw(acc, f.issuer.TokenResource(), 1001, userAuth)
	if err != nil {
		t.Fatalf("account withdraw failed: %v", err)
	}
	if _, err := f.issuer.ExchangeStableForWrapped(ctx, userAuth, proof, bucket); !errors.Is(err, ErrExchangeLimitExceeded) {
		t.Fatalf("expected ErrExchangeLimitExceeded, got %v", err)
	}

	// The failed attempt must not consume any limit.
	mutable, err := f.issuer.GetUserMutableData(f.adminAuth, 12)
	if err != nil {
		t.Fatalf("GetUserMutableData returned error: %v", err)
	}
	if mutable.WrappedExchangeLimit != 1000 {
		t.Fatalf("limit = %d after failed exchange, want 1000", mutable.WrappedExchangeLimit)
	}
}

func TestExchangeStableForWrappedRejectsWrongResource(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	acc, userAuth, proof := f.newUser(t, 13)
	f.fund(t, acc, 100)

	stable, err := f.eng.AccountWithdraw(acc, f.issuer.TokenResource(), 50, userAuth)
	if err != nil {
		t.Fatalf("account withdraw failed: %v", err)
	}
	wrapped, err := f.issuer.ExchangeStableForWrapped(ctx, userAuth, proof, stable)
	if err != nil {
		t.Fatalf("ExchangeStableForWrapped returned error: %v", err)
	}

	// Feeding wrapped tokens into the stable-to-wrapped direction fails.
	if _, err := f.issuer.ExchangeStableForWrapped(ctx, userAuth, proof, wrapped); !errors.Is(err, engine.ErrResourceMismatch) {
		t.Fatalf("expected ErrResourceMismatch, got %v", err)
	}
}

func TestExchangeWrappedForStable(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	acc, userAuth, proof := f.newUser(t, 14)
	f.fund(t, acc, 200)

	stable, err := f.eng.AccountWithdraw(acc, f.issuer.TokenResource(), 100, userAuth)
	if err != nil {
		t.Fatalf("account withdraw failed: %v", err)
	}
	wrapped, err := f.issuer.ExchangeStableForWrapped(ctx, userAuth, proof, stable)
	if err != nil {
		t.Fatalf("ExchangeStableForWrapped returned error: %v", err)
	}
	treasuryBefore := f.issuer.TreasuryBalance()

	// The reverse direction is one for one with no fee.
	back, err := f.issuer.ExchangeWrappedForStable(ctx, userAuth, proof, wrapped)
	if err != nil {
		t.Fatalf("ExchangeWrappedForStable returned error: %v", err)
	}
	if back.Amount() != 99 {
		t.Fatalf("returned amount = %d, want 99", back.Amount())
	}
	if back.ResourceAddress() != f.issuer.TokenResource() {
		t.Fatal("reverse exchange returned the wrong resource")
	}
	if got := f.issuer.TreasuryBalance(); got != treasuryBefore-99 {
		t.Fatalf("treasury = %d, want %d", got, treasuryBefore-99)
	}

	event := f.sink.last(t, "exchange_wrapped_for_stable_tokens")
	if event.Fields["amount"] != "99" || event.Fields["fee"] != "0" {
		t.Fatalf("exchange event fields = %v, want amount 99 fee 0", event.Fields)
	}
}

func TestExchangeWrappedForStableNoLimitSpent(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	acc, userAuth, proof := f.newUser(t, 15)
	f.fund(t, acc, 200)

	stable, _ := f.eng.AccountWithdraw(acc, f.issuer.TokenResource(), 100, userAuth)
	wrapped, err := f.issuer.ExchangeStableForWrapped(ctx, userAuth, proof, stable)
	if err != nil {
		t.Fatalf("ExchangeStableForWrapped returned error: %v", err)
	}
	limitAfterForward, _ := f.issuer.GetUserMutableData(f.adminAuth, 15)

	if _, err := f.issuer.ExchangeWrappedForStable(ctx, userAuth, proof, wrapped); err != nil {
		t.Fatalf("ExchangeWrappedForStable returned error: %v", err)
	}
	limitAfterBack, _ := f.issuer.GetUserMutableData(f.adminAuth, 15)
	if limitAfterBack.WrappedExchangeLimit != limitAfterForward.WrappedExchangeLimit {
		t.Fatalf("reverse exchange changed the limit: %d -> %d",
			limitAfterForward.WrappedExchangeLimit, limitAfterBack.WrappedExchangeLimit)
	}
}

func TestExchangeEmptyBucket(t *testing.T) {
	f := newTestFixture(t, true)
	ctx := context.Background()

	acc, userAuth, proof := f.newUser(t, 16)
	f.fund(t, acc, 100)

	bucket, err := f.eng.AccountWithdraw(acc, f.issuer.TokenResource(), 0, userAuth)
	if err != nil {
		t.Fatalf("account withdraw failed: %v", err)
	}
	if _, err := f.issuer.ExchangeStableForWrapped(ctx, userAuth, proof, bucket); !errors.Is(err, ErrBucketEmpty) {
		t.Fatalf("expected ErrBucketEmpty, got %v", err)
	}
}

func TestExchangeRequiresWrappedToken(t *testing.T) {
	f := newTestFixture(t, false)
	ctx := context.Background()

	acc, userAuth, proof := f.newUser(t, 17)
	f.fund(t, acc, 100)

	bucket, err := f.eng.AccountWithdraw(acc, f.issuer.TokenResource(), 50, userAuth)
	if err != nil {
		t.Fatalf("account withdraw failed: %v", err)
	}
	if _, err := f.issuer.ExchangeStableForWrapped(ctx, userAuth, proof, bucket); !errors.Is(err, ErrWrappedTokenNotEnabled) {
		t.Fatalf("expected ErrWrappedTokenNotEnabled, got %v", err)
	}
	if f.issuer.WrappedResource() != "" {
		t.Fatalf("wrapped resource = %q, want empty when disabled", f.issuer.WrappedResource())
	}
}
