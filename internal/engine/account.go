/**
 * @description
 * This file defines accounts (the only account-shaped components in this
 * substrate) and the deposit/withdraw/proof operations performed against them.
 * Account deposits are the authorization boundary: they check the resource's
 * deposit rule and then route through the resource's deposit hook, which is how
 * the issuer enforces that the regulated token only ever lands in accounts
 * holding a live user badge.
 */

package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tari-project/stable-coin/internal/domain"
)

// Account is a component holding one vault per resource.
type Account struct {
	addr   ComponentAddress
	vaults map[ResourceAddress]*Vault
}

// Address returns the account's component address.
func (a *Account) Address() ComponentAddress { return a.addr }

// VaultByResource returns the account's vault for the resource, if one exists.
func (a *Account) VaultByResource(addr ResourceAddress) (*Vault, bool) {
	v, ok := a.vaults[addr]
	return v, ok
}

// CreateAccount registers a new, empty account.
func (e *Engine) CreateAccount() *Account {
	acc := &Account{
		addr:   ComponentAddress("account_" + uuid.NewString()),
		vaults: make(map[ResourceAddress]*Vault),
	}
	e.mu.Lock()
	e.accounts[acc.addr] = acc
	e.mu.Unlock()
	return acc
}

// Account looks up a registered account by address.
func (e *Engine) Account(addr ComponentAddress) (*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acc, ok := e.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc, nil
}

// AccountDeposit deposits a bucket into the account, creating the vault on
// first use. The resource's deposit rule is checked against the caller's auth
// and the resource's deposit hook, if any, is invoked with the destination
// account as the hook caller.
func (e *Engine) AccountDeposit(acc *Account, bucket *Bucket, auth *Auth) error {
	res, err := e.Resource(bucket.resource)
	if err != nil {
		return err
	}
	if err := res.authorize(ActionDeposit, auth); err != nil {
		return err
	}
	if res.depositHook != nil {
		if err := res.depositHook(ActionDeposit, HookCaller{Component: acc.addr, Account: acc}); err != nil {
			return err
		}
	}
	v, ok := acc.vaults[bucket.resource]
	if !ok {
		v, err = e.NewVault(bucket.resource)
		if err != nil {
			return err
		}
		acc.vaults[bucket.resource] = v
	}
	return v.Deposit(bucket)
}

// AccountDepositStatic exercises the resource's deposit hook from a
// static/template context, with no destination account. Hooked resources
// reject this path.
func (e *Engine) AccountDepositStatic(resource ResourceAddress, auth *Auth) error {
	res, err := e.Resource(resource)
	if err != nil {
		return err
	}
	if err := res.authorize(ActionDeposit, auth); err != nil {
		return err
	}
	if res.depositHook != nil {
		return res.depositHook(ActionDeposit, HookCaller{})
	}
	return nil
}

// AccountWithdraw withdraws amount of the resource from the account. The
// resource's withdraw rule is checked against the caller's auth.
func (e *Engine) AccountWithdraw(acc *Account, resource ResourceAddress, amount domain.Amount, auth *Auth) (*Bucket, error) {
	res, err := e.Resource(resource)
	if err != nil {
		return nil, err
	}
	if err := res.authorize(ActionWithdraw, auth); err != nil {
		return nil, err
	}
	v, ok := acc.vaults[resource]
	if !ok {
		return nil, fmt.Errorf("%w: account holds no %s vault", ErrVaultNotFound, res.symbol)
	}
	return v.Withdraw(amount)
}

// CreateProof builds a proof of the badges the account holds for the resource,
// locking them for the proof's lifetime. Callers must Drop the proof when the
// call completes.
func (e *Engine) CreateProof(acc *Account, resource ResourceAddress) (*Proof, error) {
	v, ok := acc.vaults[resource]
	if !ok {
		return nil, fmt.Errorf("%w: account holds no vault for %s", ErrVaultNotFound, resource)
	}
	ids := v.lockNonFungibles()
	return &Proof{resource: resource, nonFungibleIDs: ids, vault: v}, nil
}
