/**
 * @description
 * This file contains the core of the stable-coin issuer: the component owning
 * the treasury vault, the admin and user badge resources, the blacklist vault,
 * the optional wrapped-token sub-ledger, the pause flag and the fee config. All
 * state-changing operations live on this component and are gated by the
 * per-method access policy plus the per-action resource rules.
 *
 * Key features:
 * - Instantiation mints the zeroth admin badge and wires every access rule and
 *   the deposit authorization hook before the component accepts calls.
 * - Supply control keeps primary and wrapped supply in lock-step.
 * - Every operation performs all of its checks before any state mutation and
 *   emits exactly one structured audit event on success.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, sync: Standard Go libraries.
 * - internal/domain, internal/engine: Domain types and the resource substrate.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
)

var (
	// ErrProviderNameRequired is returned when instantiation metadata lacks a
	// non-blank provider_name entry.
	ErrProviderNameRequired = errors.New("provider_name metadata entry is required")
	// ErrTokenSymbolRequired is returned when the token symbol is empty.
	ErrTokenSymbolRequired = errors.New("token symbol must not be empty")
	// ErrPaused is returned when a deposit is attempted while the issuer is paused.
	ErrPaused = errors.New("token is paused")
	// ErrStaticDeposit is returned for deposits not originating from an account.
	ErrStaticDeposit = errors.New("deposit not permitted from static template function")
	// ErrDepositUnauthorized is returned when the destination account holds no
	// live user badge.
	ErrDepositUnauthorized = errors.New("this account does not have permission to deposit")
	// ErrWrappedTokenNotEnabled is returned when a wrapped-token operation is
	// invoked on an issuer instantiated without the wrapped token.
	ErrWrappedTokenNotEnabled = errors.New("wrapped token is not enabled")
	// ErrExchangeLimitExceeded is returned when an exchange exceeds the user's
	// remaining wrapped-exchange limit.
	ErrExchangeLimitExceeded = errors.New("exchange limit exceeded")
	// ErrExactlyOneBadge is returned when a proof does not carry exactly one
	// user badge.
	ErrExactlyOneBadge = errors.New("the proof must contain exactly one badge")
	// ErrExchangeFeeExceedsAmount is returned when the configured fee cannot be
	// paid out of the exchanged amount.
	ErrExchangeFeeExceedsAmount = errors.New("insufficient funds to pay exchange fee")
	// ErrLimitNotPositive is returned when a non-positive exchange limit is set.
	ErrLimitNotPositive = errors.New("exchange limit must be positive")
)

// wrappedExchangeToken is the optional secondary fungible sub-ledger whose
// supply tracks the primary token outside of exchange operations.
type wrappedExchangeToken struct {
	vault *engine.Vault
}

func (w *wrappedExchangeToken) resourceAddress() engine.ResourceAddress {
	return w.vault.ResourceAddress()
}

// Issuer is the stable-coin component. One instance is created per issuer and
// mutated exclusively through its methods; the mutex serializes calls the way
// the transaction engine serializes calls against a component.
type Issuer struct {
	mu sync.Mutex

	eng    *engine.Engine
	cfg    domain.StableCoinConfig
	events EventSink
	policy *MethodPolicy

	tokenVault        *engine.Vault
	userAuthResource  engine.ResourceAddress
	adminAuthResource engine.ResourceAddress
	blacklistedUsers  *engine.Vault
	wrapped           *wrappedExchangeToken
	isPaused          bool
}

// InstantiateParams carries the issuer construction inputs.
type InstantiateParams struct {
	InitialSupply      domain.Amount
	TokenSymbol        string
	Metadata           map[string]string
	ViewKey            string
	EnableWrappedToken bool
}

// Instantiate creates the issuer component: it mints the zeroth admin badge,
// creates the user badge and token resources with their access rules, wires the
// deposit authorization hook and the per-method policy, and returns the issuer
// together with a bucket holding the first admin credential.
//
// All parameter validation happens before any resource is created, so a failed
// instantiation leaves no partial state behind.
func Instantiate(eng *engine.Engine, cfg domain.StableCoinConfig, params InstantiateParams, events EventSink) (*Issuer, *engine.Bucket, error) {
	providerName := strings.TrimSpace(params.Metadata["provider_name"])
	if providerName == "" {
		return nil, nil, ErrProviderNameRequired
	}
	if strings.TrimSpace(params.TokenSymbol) == "" {
		return nil, nil, ErrTokenSymbolRequired
	}
	if params.InitialSupply.IsNegative() {
		return nil, nil, fmt.Errorf("initial supply: %w", domain.ErrAmountNegative)
	}
	if events == nil {
		events = LogSink{}
	}

	// Admin badge resource, with the zeroth badge minted before the resource's
	// own mint rule can reference it.
	adminResource := eng.CreateResource(engine.ResourceSpec{
		Kind:   engine.NonFungibleKind,
		Symbol: params.TokenSymbol + "-ADMIN",
	})
	adminBadge, err := eng.MintNonFungible(adminResource.Address(), engine.NonFungibleID("0"), nil, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("mint admin badge: %w", err)
	}
	requireAdmin := engine.RequireResource(adminResource.Address())
	if err := eng.SetRules(adminResource.Address(), map[engine.Action]engine.AccessRule{
		engine.ActionMint: requireAdmin,
		engine.ActionBurn: requireAdmin,
	}); err != nil {
		return nil, nil, err
	}

	// User badge resource: only admin may mint, deposit, recall or rewrite it.
	userResource := eng.CreateResource(engine.ResourceSpec{
		Kind:     engine.NonFungibleKind,
		Symbol:   params.TokenSymbol + "-USER",
		Metadata: map[string]string{"provider_name": providerName},
		Rules: map[engine.Action]engine.AccessRule{
			engine.ActionMint:       requireAdmin,
			engine.ActionDeposit:    requireAdmin,
			engine.ActionRecall:     requireAdmin,
			engine.ActionUpdateData: requireAdmin,
		},
	})
	requireUserOrAdmin := engine.AnyOf(
		engine.RequireResource(adminResource.Address()),
		engine.RequireResource(userResource.Address()),
	)

	// Primary token resource with the initial supply.
	tokenResource := eng.CreateResource(engine.ResourceSpec{
		Kind:     engine.Confidential,
		Symbol:   params.TokenSymbol,
		Metadata: params.Metadata,
		ViewKey:  params.ViewKey,
		Rules: map[engine.Action]engine.AccessRule{
			engine.ActionMint:     requireAdmin,
			engine.ActionBurn:     requireAdmin,
			engine.ActionRecall:   requireAdmin,
			engine.ActionDeposit:  requireUserOrAdmin,
			engine.ActionWithdraw: requireUserOrAdmin,
		},
	})

	bootstrapAuth := engine.NewAuth("", adminBadge.Proof())
	initialTokens, err := eng.MintFungible(tokenResource.Address(), params.InitialSupply, bootstrapAuth)
	if err != nil {
		return nil, nil, fmt.Errorf("mint initial supply: %w", err)
	}
	tokenVault, err := eng.NewVaultFromBucket(initialTokens)
	if err != nil {
		return nil, nil, err
	}

	var wrapped *wrappedExchangeToken
	if params.EnableWrappedToken {
		wrappedResource := eng.CreateResource(engine.ResourceSpec{
			Kind:     engine.Fungible,
			Symbol:   "w" + params.TokenSymbol,
			Metadata: params.Metadata,
			Rules: map[engine.Action]engine.AccessRule{
				engine.ActionMint: requireAdmin,
				engine.ActionBurn: requireAdmin,
			},
		})
		wrappedTokens, err := eng.MintFungible(wrappedResource.Address(), params.InitialSupply, bootstrapAuth)
		if err != nil {
			return nil, nil, fmt.Errorf("mint wrapped supply: %w", err)
		}
		wrappedVault, err := eng.NewVaultFromBucket(wrappedTokens)
		if err != nil {
			return nil, nil, err
		}
		wrapped = &wrappedExchangeToken{vault: wrappedVault}
	}

	blacklistVault, err := eng.NewVault(userResource.Address())
	if err != nil {
		return nil, nil, err
	}

	policy := NewMethodPolicy(map[string]engine.AccessRule{
		"total_supply":                       engine.AllowAll(),
		"exchange_stable_for_wrapped_tokens": requireUserOrAdmin,
		"exchange_wrapped_for_stable_tokens": requireUserOrAdmin,
		"authorize_user_deposit":             engine.AllowAll(),
	}, requireAdmin)

	issuer := &Issuer{
		eng:               eng,
		cfg:               cfg,
		events:            events,
		policy:            policy,
		tokenVault:        tokenVault,
		userAuthResource:  userResource.Address(),
		adminAuthResource: adminResource.Address(),
		blacklistedUsers:  blacklistVault,
		wrapped:           wrapped,
	}
	if err := eng.SetDepositHook(tokenResource.Address(), issuer.AuthorizeUserDeposit); err != nil {
		return nil, nil, err
	}
	return issuer, adminBadge, nil
}

// AuthorizeUserDeposit is the deposit authorization hook for the primary token.
// It is invoked by the engine on every attempted account deposit and is the
// compliance chokepoint: the destination must be a recognized account holding a
// live user badge, independent of who initiates the transfer.
func (i *Issuer) AuthorizeUserDeposit(action engine.Action, caller engine.HookCaller) error {
	if action != engine.ActionDeposit {
		// Withdraws etc. follow ordinary resource access rules.
		return nil
	}
	i.mu.Lock()
	paused := i.isPaused
	userResource := i.userAuthResource
	i.mu.Unlock()

	if paused {
		return ErrPaused
	}
	if caller.Component == "" || caller.Account == nil {
		return ErrStaticDeposit
	}
	vault, ok := caller.Account.VaultByResource(userResource)
	if !ok {
		return ErrDepositUnauthorized
	}
	// The badge may be locked when sending to self.
	if vault.Balance().IsZero() && vault.LockedBalance().IsZero() {
		return ErrDepositUnauthorized
	}
	return nil
}

// TotalSupply returns the primary token's total supply. Publicly callable.
func (i *Issuer) TotalSupply() (domain.Amount, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.eng.TotalSupply(i.tokenVault.ResourceAddress())
}

// WrappedTotalSupply returns the wrapped token's total supply.
func (i *Issuer) WrappedTotalSupply() (domain.Amount, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.wrapped == nil {
		return 0, ErrWrappedTokenNotEnabled
	}
	return i.eng.TotalSupply(i.wrapped.resourceAddress())
}

// IncreaseSupply mints amount new primary units into the treasury vault, and
// the same amount into the wrapped vault when the wrapped token is enabled.
func (i *Issuer) IncreaseSupply(ctx context.Context, auth *engine.Auth, amount domain.Amount) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("increase_supply", auth); err != nil {
		return err
	}
	if amount.IsNegative() {
		return domain.ErrAmountNegative
	}
	newTokens, err := i.eng.MintFungible(i.tokenVault.ResourceAddress(), amount, auth)
	if err != nil {
		return err
	}
	if err := i.tokenVault.Deposit(newTokens); err != nil {
		return err
	}
	if i.wrapped != nil {
		wrappedTokens, err := i.eng.MintFungible(i.wrapped.resourceAddress(), amount, auth)
		if err != nil {
			return err
		}
		if err := i.wrapped.vault.Deposit(wrappedTokens); err != nil {
			return err
		}
	}
	i.emit(ctx, domain.EventIncreaseSupply, map[string]string{"amount": amount.String()})
	return nil
}

// DecreaseSupply withdraws and burns amount from the treasury vault, and
// symmetrically from the wrapped vault when enabled.
func (i *Issuer) DecreaseSupply(ctx context.Context, auth *engine.Auth, amount domain.Amount) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("decrease_supply", auth); err != nil {
		return err
	}
	if i.wrapped != nil && amount > i.wrapped.vault.Balance() {
		return engine.ErrInsufficientBalance
	}
	tokens, err := i.tokenVault.Withdraw(amount)
	if err != nil {
		return err
	}
	if err := i.eng.Burn(tokens, auth); err != nil {
		return err
	}
	if i.wrapped != nil {
		wrappedTokens, err := i.wrapped.vault.Withdraw(amount)
		if err != nil {
			return err
		}
		if err := i.eng.Burn(wrappedTokens, auth); err != nil {
			return err
		}
	}
	i.emit(ctx, domain.EventDecreaseSupply, map[string]string{"revealed_burn_amount": amount.String()})
	return nil
}

// Withdraw moves amount out of the treasury vault and returns it as a bucket.
func (i *Issuer) Withdraw(ctx context.Context, auth *engine.Auth, amount domain.Amount) (*engine.Bucket, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("withdraw", auth); err != nil {
		return nil, err
	}
	bucket, err := i.tokenVault.Withdraw(amount)
	if err != nil {
		return nil, err
	}
	i.emit(ctx, domain.EventWithdraw, map[string]string{"amount_withdrawn": bucket.Amount().String()})
	return bucket, nil
}

// Deposit moves a bucket of the primary token into the treasury vault.
func (i *Issuer) Deposit(ctx context.Context, auth *engine.Auth, bucket *engine.Bucket) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("deposit", auth); err != nil {
		return err
	}
	amount := bucket.Amount()
	if err := i.tokenVault.Deposit(bucket); err != nil {
		return err
	}
	i.emit(ctx, domain.EventDeposit, map[string]string{"amount": amount.String()})
	return nil
}

// TokenResource returns the primary token's resource address.
func (i *Issuer) TokenResource() engine.ResourceAddress {
	return i.tokenVault.ResourceAddress()
}

// WrappedResource returns the wrapped token's resource address, or "" when the
// wrapped token is disabled.
func (i *Issuer) WrappedResource() engine.ResourceAddress {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.wrapped == nil {
		return ""
	}
	return i.wrapped.resourceAddress()
}

// UserBadgeResource returns the user badge resource address.
func (i *Issuer) UserBadgeResource() engine.ResourceAddress { return i.userAuthResource }

// AdminBadgeResource returns the admin badge resource address.
func (i *Issuer) AdminBadgeResource() engine.ResourceAddress { return i.adminAuthResource }

// TreasuryBalance returns the treasury vault's current balance.
func (i *Issuer) TreasuryBalance() domain.Amount {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tokenVault.Balance()
}

// IsPaused reports whether deposits are currently short-circuited.
func (i *Issuer) IsPaused() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.isPaused
}

// Config returns a copy of the issuer's current policy configuration.
func (i *Issuer) Config() domain.StableCoinConfig {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg
}

// Authorize checks the caller's credentials against the method's access rule
// without invoking the method. The API layer uses it for dispatch decisions.
func (i *Issuer) Authorize(method string, auth *engine.Auth) error {
	return i.policy.Authorize(method, auth)
}

func (i *Issuer) emit(ctx context.Context, name string, fields map[string]string) {
	if err := i.events.Publish(ctx, domain.NewEvent(name, fields)); err != nil {
		log.Printf("level=warn component=issuer msg=\"event publish failed\" event=%s err=%v", name, err)
	}
}
