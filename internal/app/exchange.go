/**
 * @description
 * This file implements the stable ⇄ wrapped exchange. Converting into the liquid
 * wrapped form is rate-limited per user and fee-bearing; converting back is
 * unrestricted and free, so the exchange limit can never trap funds.
 */

package app

import (
	"context"
	"fmt"

	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
)

// ErrBucketEmpty is returned when an exchange bucket carries no tokens.
var ErrBucketEmpty = fmt.Errorf("the bucket must contain some tokens")

// ExchangeStableForWrapped exchanges a bucket of the primary token for wrapped
// tokens, charging the configured wrapped-exchange fee and consuming the user's
// remaining exchange limit.
func (i *Issuer) ExchangeStableForWrapped(ctx context.Context, auth *engine.Auth, proof *engine.Proof, bucket *engine.Bucket) (*engine.Bucket, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("exchange_stable_for_wrapped_tokens", auth); err != nil {
		return nil, err
	}
	if i.wrapped == nil {
		return nil, ErrWrappedTokenNotEnabled
	}
	if bucket.ResourceAddress() != i.tokenVault.ResourceAddress() {
		return nil, fmt.Errorf("%w: the bucket must contain the same resource as the token vault", engine.ErrResourceMismatch)
	}
	if !bucket.Amount().IsPositive() {
		return nil, ErrBucketEmpty
	}

	user, userData, err := i.userFromProof(proof)
	if err != nil {
		return nil, err
	}

	amount := bucket.Amount()
	if amount > userData.WrappedExchangeLimit {
		return nil, ErrExchangeLimitExceeded
	}

	fee := i.cfg.WrappedExchangeFee.CalculateFee(amount)
	netAmount, err := amount.CheckedSub(fee)
	if err != nil {
		return nil, ErrExchangeFeeExceedsAmount
	}
	if netAmount > i.wrapped.vault.Balance() {
		return nil, engine.ErrInsufficientBalance
	}

	// The limit decrement is persisted immediately; whole-call atomicity is the
	// engine's concern, not a rollback path here.
	if err := i.setUserWrappedExchangeLimit(ctx, user.UserID, userData.WrappedExchangeLimit-amount); err != nil {
		return nil, err
	}

	if err := i.tokenVault.Deposit(bucket); err != nil {
		return nil, err
	}
	wrappedTokens, err := i.wrapped.vault.Withdraw(netAmount)
	if err != nil {
		return nil, err
	}

	i.emit(ctx, domain.EventExchangeStableForWrapped, map[string]string{
		"user_id": user.UserID.String(),
		"amount":  amount.String(),
		"fee":     fee.String(),
	})
	return wrappedTokens, nil
}

// ExchangeWrappedForStable exchanges a bucket of wrapped tokens back for an
// equal amount of the primary token. No limit check and no fee apply in this
// direction.
func (i *Issuer) ExchangeWrappedForStable(ctx context.Context, auth *engine.Auth, proof *engine.Proof, wrappedBucket *engine.Bucket) (*engine.Bucket, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("exchange_wrapped_for_stable_tokens", auth); err != nil {
		return nil, err
	}
	if i.wrapped == nil {
		return nil, ErrWrappedTokenNotEnabled
	}
	if wrappedBucket.ResourceAddress() != i.wrapped.resourceAddress() {
		return nil, fmt.Errorf("%w: the bucket must contain the same resource as the wrapped token vault", engine.ErrResourceMismatch)
	}
	if wrappedBucket.Amount().IsZero() {
		return nil, ErrBucketEmpty
	}

	user, _, err := i.userFromProof(proof)
	if err != nil {
		return nil, err
	}

	amount := wrappedBucket.Amount()
	if amount > i.tokenVault.Balance() {
		return nil, engine.ErrInsufficientBalance
	}
	if err := i.wrapped.vault.Deposit(wrappedBucket); err != nil {
		return nil, err
	}
	tokens, err := i.tokenVault.Withdraw(amount)
	if err != nil {
		return nil, err
	}

	i.emit(ctx, domain.EventExchangeWrappedForStable, map[string]string{
		"user_id": user.UserID.String(),
		"amount":  amount.String(),
		"fee":     domain.Amount(0).String(),
	})
	return tokens, nil
}

// userFromProof resolves the single user badge a proof must carry and returns
// the badge's identity and mutable data.
func (i *Issuer) userFromProof(proof *engine.Proof) (domain.UserData, domain.UserMutableData, error) {
	if err := proof.AssertResource(i.userAuthResource); err != nil {
		return domain.UserData{}, domain.UserMutableData{}, err
	}
	badges := proof.NonFungibleIDs()
	if len(badges) != 1 {
		return domain.UserData{}, domain.UserMutableData{}, ErrExactlyOneBadge
	}
	nf, err := i.eng.GetNonFungible(i.userAuthResource, badges[0])
	if err != nil {
		return domain.UserData{}, domain.UserMutableData{}, err
	}
	return badgeData(nf)
}

// badgeData extracts the typed payloads from a user badge.
func badgeData(nf *engine.NonFungible) (domain.UserData, domain.UserMutableData, error) {
	data, ok := nf.Data.(domain.UserData)
	if !ok {
		return domain.UserData{}, domain.UserMutableData{}, fmt.Errorf("badge %s carries no user data", nf.ID)
	}
	mutable, ok := nf.MutableData.(domain.UserMutableData)
	if !ok {
		return domain.UserData{}, domain.UserMutableData{}, fmt.Errorf("badge %s carries no mutable user data", nf.ID)
	}
	return data, mutable, nil
}
