/**
 * @description
 * This file defines proofs: caller-supplied attestations of holding specific
 * badges without transferring them. A proof created from an account vault locks
 * the underlying items until it is dropped, which is why the deposit hook must
 * accept locked balances (the badge is mid-transaction during a self-transfer).
 */

package engine

import (
	"errors"
	"fmt"
)

// ErrProofResourceMismatch is returned when a proof attests the wrong resource.
var ErrProofResourceMismatch = errors.New("proof does not attest the expected resource")

// Proof attests that the caller holds items of one resource.
type Proof struct {
	resource       ResourceAddress
	nonFungibleIDs []NonFungibleID
	vault          *Vault
	dropped        bool
}

// ResourceAddress returns the attested resource.
func (p *Proof) ResourceAddress() ResourceAddress { return p.resource }

// AssertResource fails unless the proof attests the expected resource.
func (p *Proof) AssertResource(expected ResourceAddress) error {
	if p == nil || p.resource != expected {
		return fmt.Errorf("%w: expected %s", ErrProofResourceMismatch, expected)
	}
	return nil
}

// NonFungibleIDs returns the attested item ids.
func (p *Proof) NonFungibleIDs() []NonFungibleID {
	if p == nil {
		return nil
	}
	return p.nonFungibleIDs
}

// Drop releases the proof, unlocking any items it held. Dropping twice is a
// no-op.
func (p *Proof) Drop() {
	if p == nil || p.dropped {
		return
	}
	p.dropped = true
	if p.vault != nil {
		p.vault.unlockNonFungibles(p.nonFungibleIDs)
	}
}
