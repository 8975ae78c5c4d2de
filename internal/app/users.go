/**
 * @description
 * This file implements the identity and compliance operations: admin and user
 * badge issuance, exchange-limit management, blacklisting (badge recall into the
 * issuer's blacklist vault) and its reversal, and regulatory clawback of
 * revealed balances.
 *
 * @notes
 * - Badges are never destroyed by compliance actions, only relocated; the
 *   immutable identity data survives a blacklist round trip untouched.
 * - One live badge per user is guaranteed by minting the badge under the
 *   zero-padded user id: a second mint for the same id fails in the substrate.
 */

package app

import (
	"context"
	"fmt"

	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
)

// CreateNewAdmin mints a new admin badge carrying the employee id and returns it.
func (i *Issuer) CreateNewAdmin(ctx context.Context, auth *engine.Auth, employeeID string) (*engine.Bucket, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("create_new_admin", auth); err != nil {
		return nil, err
	}
	id := engine.NewRandomNonFungibleID()
	badge, err := i.eng.MintNonFungible(i.adminAuthResource, id, map[string]string{"employee_id": employeeID}, nil, auth)
	if err != nil {
		return nil, err
	}
	i.emit(ctx, domain.EventCreateNewAdmin, map[string]string{"admin_id": string(id)})
	return badge, nil
}

// CreateNewUser mints a user badge for the given id and linked account. The
// badge carries immutable identity data and mutable data initialized to
// non-blacklisted with the configured default exchange limit. A second call
// with the same id fails.
func (i *Issuer) CreateNewUser(ctx context.Context, auth *engine.Auth, userID domain.UserID, userAccount engine.ComponentAddress) (*engine.Bucket, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("create_new_user", auth); err != nil {
		return nil, err
	}
	badge, err := i.eng.MintNonFungible(
		i.userAuthResource,
		engine.NonFungibleID(userID.String()),
		domain.UserData{
			UserID:         userID,
			UserAccount:    string(userAccount),
			CreatedAtEpoch: i.eng.CurrentEpoch(),
		},
		domain.UserMutableData{
			IsBlacklisted:        false,
			WrappedExchangeLimit: i.cfg.DefaultExchangeLimit,
		},
		auth,
	)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", userID, err)
	}
	i.emit(ctx, domain.EventCreateNewUser, map[string]string{"user_id": userID.String()})
	return badge, nil
}

// GetUserData returns the immutable identity record of a user badge.
func (i *Issuer) GetUserData(auth *engine.Auth, userID domain.UserID) (domain.UserData, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("get_user_data", auth); err != nil {
		return domain.UserData{}, err
	}
	nf, err := i.eng.GetNonFungible(i.userAuthResource, engine.NonFungibleID(userID.String()))
	if err != nil {
		return domain.UserData{}, err
	}
	data, _, err := badgeData(nf)
	return data, err
}

// GetUserMutableData returns the mutable record of a user badge.
func (i *Issuer) GetUserMutableData(auth *engine.Auth, userID domain.UserID) (domain.UserMutableData, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("get_user_data", auth); err != nil {
		return domain.UserMutableData{}, err
	}
	nf, err := i.eng.GetNonFungible(i.userAuthResource, engine.NonFungibleID(userID.String()))
	if err != nil {
		return domain.UserMutableData{}, err
	}
	_, mutable, err := badgeData(nf)
	return mutable, err
}

// SetUserExchangeLimit rewrites a user's wrapped-exchange limit. The limit must
// be positive; the blacklist flag is preserved.
func (i *Issuer) SetUserExchangeLimit(ctx context.Context, auth *engine.Auth, userID domain.UserID, limit domain.Amount) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("set_user_exchange_limit", auth); err != nil {
		return err
	}
	if !limit.IsPositive() {
		return ErrLimitNotPositive
	}
	if err := i.updateUserLimit(userID, limit); err != nil {
		return err
	}
	i.emit(ctx, domain.EventSetUserExchangeLimit, map[string]string{
		"user_id": userID.String(),
		"limit":   limit.String(),
		"admin":   auth.SignerPublicKey(),
	})
	return nil
}

// SetUserWrappedExchangeLimit rewrites a user's remaining wrapped-exchange
// limit without the positivity requirement; the exchange path uses it to
// persist limit consumption.
func (i *Issuer) SetUserWrappedExchangeLimit(ctx context.Context, auth *engine.Auth, userID domain.UserID, newLimit domain.Amount) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("set_user_wrapped_exchange_limit", auth); err != nil {
		return err
	}
	return i.setUserWrappedExchangeLimit(ctx, userID, newLimit)
}

// setUserWrappedExchangeLimit is the lock-held limit rewrite shared with the
// exchange path, executed under component authority.
func (i *Issuer) setUserWrappedExchangeLimit(ctx context.Context, userID domain.UserID, newLimit domain.Amount) error {
	if err := i.updateUserLimit(userID, newLimit); err != nil {
		return err
	}
	i.emit(ctx, domain.EventSetUserWrappedExchangeLimit, map[string]string{
		"user_id": userID.String(),
		"limit":   newLimit.String(),
	})
	return nil
}

func (i *Issuer) updateUserLimit(userID domain.UserID, limit domain.Amount) error {
	nfID := engine.NonFungibleID(userID.String())
	nf, err := i.eng.GetNonFungible(i.userAuthResource, nfID)
	if err != nil {
		return err
	}
	_, mutable, err := badgeData(nf)
	if err != nil {
		return err
	}
	mutable.SetWrappedExchangeLimit(limit)
	return i.eng.UpdateNonFungibleData(i.userAuthResource, nfID, mutable, engine.SystemAuth())
}

// BlacklistUser recalls the user's badge from the given vault, flips the
// blacklist flag and parks the badge in the issuer's blacklist vault. The user
// can no longer authorize deposits because no live badge remains in their
// account.
func (i *Issuer) BlacklistUser(ctx context.Context, auth *engine.Auth, vaultID engine.VaultID, userID domain.UserID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("blacklist_user", auth); err != nil {
		return err
	}
	nfID := engine.NonFungibleID(userID.String())
	recalled, err := i.eng.RecallNonFungible(i.userAuthResource, vaultID, nfID, auth)
	if err != nil {
		return err
	}
	if err := i.setBlacklistFlag(nfID, true); err != nil {
		return err
	}
	if err := i.blacklistedUsers.Deposit(recalled); err != nil {
		return err
	}
	i.emit(ctx, domain.EventBlacklistUser, map[string]string{"user_id": userID.String()})
	return nil
}

// RemoveFromBlacklist reverses BlacklistUser: the badge leaves the blacklist
// vault with its flag cleared and is returned for redeposit into the user's
// account. The caller is responsible for the redeposit.
func (i *Issuer) RemoveFromBlacklist(ctx context.Context, auth *engine.Auth, userID domain.UserID) (*engine.Bucket, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("remove_from_blacklist", auth); err != nil {
		return nil, err
	}
	nfID := engine.NonFungibleID(userID.String())
	badge, err := i.blacklistedUsers.WithdrawNonFungible(nfID)
	if err != nil {
		return nil, err
	}
	if err := i.setBlacklistFlag(nfID, false); err != nil {
		return nil, err
	}
	i.emit(ctx, domain.EventRemoveFromBlacklist, map[string]string{"user_id": userID.String()})
	return badge, nil
}

func (i *Issuer) setBlacklistFlag(nfID engine.NonFungibleID, blacklisted bool) error {
	nf, err := i.eng.GetNonFungible(i.userAuthResource, nfID)
	if err != nil {
		return err
	}
	_, mutable, err := badgeData(nf)
	if err != nil {
		return err
	}
	mutable.IsBlacklisted = blacklisted
	return i.eng.UpdateNonFungibleData(i.userAuthResource, nfID, mutable, engine.SystemAuth())
}

// RecallRevealedTokens force-withdraws amount of the primary token from the
// user's linked account into the treasury. Regulatory clawback for revealed
// balances only; confidential outputs go through the freeze path instead.
func (i *Issuer) RecallRevealedTokens(ctx context.Context, auth *engine.Auth, userID domain.UserID, amount domain.Amount) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("recall_revealed_tokens", auth); err != nil {
		return err
	}
	nf, err := i.eng.GetNonFungible(i.userAuthResource, engine.NonFungibleID(userID.String()))
	if err != nil {
		return err
	}
	user, _, err := badgeData(nf)
	if err != nil {
		return err
	}
	account, err := i.eng.Account(engine.ComponentAddress(user.UserAccount))
	if err != nil {
		return err
	}
	vault, ok := account.VaultByResource(i.tokenVault.ResourceAddress())
	if !ok {
		return fmt.Errorf("%w: user account holds no stable coin vault", engine.ErrVaultNotFound)
	}
	bucket, err := i.eng.RecallFungible(i.tokenVault.ResourceAddress(), vault.ID(), amount, auth)
	if err != nil {
		return err
	}
	if err := i.tokenVault.Deposit(bucket); err != nil {
		return err
	}
	i.emit(ctx, domain.EventRecallTokens, map[string]string{
		"user_id":         userID.String(),
		"revealed_amount": amount.String(),
	})
	return nil
}
