/**
 * @description
 * This file defines vaults (resource containers owned by a component or account)
 * and buckets (in-flight tokens moving between vaults within a call). A vault
 * always knows its revealed balance and its locked balance; locked covers items
 * that back a live proof, such as a badge mid-transaction during a self-transfer.
 */

package engine

import (
	"fmt"

	"github.com/tari-project/stable-coin/internal/domain"
)

// Vault holds a quantity of exactly one resource.
type Vault struct {
	id           VaultID
	resource     ResourceAddress
	balance      domain.Amount
	locked       domain.Amount
	nonFungibles map[NonFungibleID]struct{}
	lockedNFs    map[NonFungibleID]struct{}
}

// ID returns the vault's id.
func (v *Vault) ID() VaultID { return v.id }

// ResourceAddress returns the resource this vault holds.
func (v *Vault) ResourceAddress() ResourceAddress { return v.resource }

// Balance returns the unlocked revealed balance.
func (v *Vault) Balance() domain.Amount { return v.balance }

// LockedBalance returns the balance currently backing live proofs.
func (v *Vault) LockedBalance() domain.Amount { return v.locked }

// NonFungibleIDs returns the ids of all held items, locked or not.
func (v *Vault) NonFungibleIDs() []NonFungibleID {
	ids := make([]NonFungibleID, 0, len(v.nonFungibles)+len(v.lockedNFs))
	for id := range v.nonFungibles {
		ids = append(ids, id)
	}
	for id := range v.lockedNFs {
		ids = append(ids, id)
	}
	return ids
}

// ContainsNonFungible reports whether the vault holds the item, locked or not.
func (v *Vault) ContainsNonFungible(id NonFungibleID) bool {
	if _, ok := v.nonFungibles[id]; ok {
		return true
	}
	_, ok := v.lockedNFs[id]
	return ok
}

// Deposit moves the bucket's contents into the vault. The bucket must hold the
// vault's resource.
func (v *Vault) Deposit(bucket *Bucket) error {
	if bucket.resource != v.resource {
		return fmt.Errorf("%w: bucket %s, vault %s", ErrResourceMismatch, bucket.resource, v.resource)
	}
	v.balance += bucket.amount
	for _, id := range bucket.nonFungibleIDs {
		v.nonFungibles[id] = struct{}{}
	}
	bucket.consume()
	return nil
}

// Withdraw removes amount from the vault into a new bucket.
func (v *Vault) Withdraw(amount domain.Amount) (*Bucket, error) {
	if amount.IsNegative() {
		return nil, domain.ErrAmountNegative
	}
	if amount > v.balance {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrInsufficientBalance, v.balance, amount)
	}
	v.balance -= amount
	return &Bucket{resource: v.resource, amount: amount}, nil
}

// WithdrawNonFungible removes one item from the vault into a new bucket.
func (v *Vault) WithdrawNonFungible(id NonFungibleID) (*Bucket, error) {
	if _, ok := v.nonFungibles[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNonFungibleNotFound, id)
	}
	delete(v.nonFungibles, id)
	v.balance--
	return &Bucket{resource: v.resource, amount: 1, nonFungibleIDs: []NonFungibleID{id}}, nil
}

// lockNonFungibles moves every held item into the locked set, backing a proof.
func (v *Vault) lockNonFungibles() []NonFungibleID {
	ids := make([]NonFungibleID, 0, len(v.nonFungibles))
	for id := range v.nonFungibles {
		ids = append(ids, id)
		v.lockedNFs[id] = struct{}{}
		delete(v.nonFungibles, id)
	}
	v.locked += domain.Amount(len(ids))
	v.balance -= domain.Amount(len(ids))
	return ids
}

// unlockNonFungibles releases previously locked items back into the balance.
func (v *Vault) unlockNonFungibles(ids []NonFungibleID) {
	for _, id := range ids {
		if _, ok := v.lockedNFs[id]; !ok {
			continue
		}
		delete(v.lockedNFs, id)
		v.nonFungibles[id] = struct{}{}
		v.locked--
		v.balance++
	}
}

// Bucket is a transient container of tokens withdrawn or minted but not yet
// deposited. A bucket is consumed exactly once.
type Bucket struct {
	resource       ResourceAddress
	amount         domain.Amount
	nonFungibleIDs []NonFungibleID
	consumed       bool
}

// ResourceAddress returns the resource the bucket holds.
func (b *Bucket) ResourceAddress() ResourceAddress { return b.resource }

// Amount returns the bucket's quantity.
func (b *Bucket) Amount() domain.Amount { return b.amount }

// NonFungibleIDs returns the ids of held non-fungible items.
func (b *Bucket) NonFungibleIDs() []NonFungibleID { return b.nonFungibleIDs }

// Proof returns a non-locking attestation of the bucket's contents, used when a
// freshly minted badge must authorize its own first deposit.
func (b *Bucket) Proof() *Proof {
	return &Proof{resource: b.resource, nonFungibleIDs: append([]NonFungibleID(nil), b.nonFungibleIDs...)}
}

func (b *Bucket) consume() {
	b.amount = 0
	b.nonFungibleIDs = nil
	b.consumed = true
}
