/**
 * @description
 * This file implements the remaining admin surface: pause/unpause of the deposit
 * hook, freeze/unfreeze of confidential outputs, confidential-output burn, and
 * the transfer-fee configuration operations.
 *
 * @notes
 * - Freeze/unfreeze events record the count of outputs, never the identifiers.
 * - Fee configuration events record both the old and the new value; the active
 *   FeeSpec is replaced in a single in-place swap.
 */

package app

import (
	"context"
	"fmt"

	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
)

// Pause sets the paused flag, short-circuiting every future deposit of the
// primary token until Unpause. The proof must carry an admin badge; its id is
// recorded in the audit trail.
func (i *Issuer) Pause(ctx context.Context, auth *engine.Auth) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("pause", auth); err != nil {
		return err
	}
	badge, err := i.adminBadgeFromAuth(auth)
	if err != nil {
		return err
	}
	i.isPaused = true
	i.emit(ctx, domain.EventPaused, map[string]string{
		"tx_signer":   auth.SignerPublicKey(),
		"admin_badge": string(badge),
	})
	return nil
}

// Unpause clears the paused flag. The reference surface exposes pause without a
// counterpart; the omission is treated as accidental and the reversal kept
// symmetric.
func (i *Issuer) Unpause(ctx context.Context, auth *engine.Auth) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("unpause", auth); err != nil {
		return err
	}
	badge, err := i.adminBadgeFromAuth(auth)
	if err != nil {
		return err
	}
	i.isPaused = false
	i.emit(ctx, domain.EventUnpaused, map[string]string{
		"tx_signer":   auth.SignerPublicKey(),
		"admin_badge": string(badge),
	})
	return nil
}

func (i *Issuer) adminBadgeFromAuth(auth *engine.Auth) (engine.NonFungibleID, error) {
	proof := auth.ProofOf(i.adminAuthResource)
	if proof == nil {
		return "", fmt.Errorf("%w: proof must contain an admin badge", ErrUnauthorized)
	}
	badges := proof.NonFungibleIDs()
	if len(badges) == 0 {
		return "", fmt.Errorf("%w: proof must contain an admin badge", ErrUnauthorized)
	}
	return badges[0], nil
}

// FreezeUtxos freezes the given confidential outputs. The event records only
// the count.
func (i *Issuer) FreezeUtxos(ctx context.Context, auth *engine.Auth, utxos []engine.UtxoID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("freeze_utxos", auth); err != nil {
		return err
	}
	if err := i.eng.FreezeUtxos(i.tokenVault.ResourceAddress(), utxos, auth); err != nil {
		return err
	}
	i.emit(ctx, domain.EventFreezeUtxos, map[string]string{
		"tx_signer": auth.SignerPublicKey(),
		"num_utxos": fmt.Sprintf("%d", len(utxos)),
	})
	return nil
}

// UnfreezeUtxos reverses FreezeUtxos for the given outputs.
func (i *Issuer) UnfreezeUtxos(ctx context.Context, auth *engine.Auth, utxos []engine.UtxoID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("unfreeze_utxos", auth); err != nil {
		return err
	}
	if err := i.eng.UnfreezeUtxos(i.tokenVault.ResourceAddress(), utxos, auth); err != nil {
		return err
	}
	i.emit(ctx, domain.EventUnfreezeUtxos, map[string]string{
		"tx_signer": auth.SignerPublicKey(),
		"num_utxos": fmt.Sprintf("%d", len(utxos)),
	})
	return nil
}

// BurnUtxos destroys one confidential output given an externally certified
// value proof, reducing total supply by the certified revealed amount.
func (i *Issuer) BurnUtxos(ctx context.Context, auth *engine.Auth, proof engine.ValueProof) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("burn_utxos", auth); err != nil {
		return err
	}
	if err := i.eng.BurnUtxo(i.tokenVault.ResourceAddress(), proof, auth); err != nil {
		return err
	}
	i.emit(ctx, domain.EventBurnUtxos, map[string]string{
		"tx_signer": auth.SignerPublicKey(),
		"utxo_id":   string(proof.Utxo),
	})
	return nil
}

// SetConfigTransferFeeFixed replaces the transfer fee with a fixed amount.
func (i *Issuer) SetConfigTransferFeeFixed(ctx context.Context, auth *engine.Auth, newFee domain.Amount) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("set_config_transfer_fee_fixed", auth); err != nil {
		return err
	}
	if newFee.IsNegative() {
		return domain.ErrAmountNegative
	}
	i.emit(ctx, domain.EventSetTransferFeeFixed, map[string]string{
		"old_transfer_fee": i.cfg.TransferFee.String(),
		"new_transfer_fee": newFee.String(),
	})
	i.cfg.TransferFee = domain.FixedFee(newFee)
	return nil
}

// SetConfigTransferFeePercentage replaces the transfer fee with a percentage.
// Percentages above 100 are rejected at this configuration boundary.
func (i *Issuer) SetConfigTransferFeePercentage(ctx context.Context, auth *engine.Auth, newFeePercent uint8) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.policy.Authorize("set_config_transfer_fee_percentage", auth); err != nil {
		return err
	}
	spec, err := domain.PercentageFee(newFeePercent)
	if err != nil {
		return err
	}
	i.emit(ctx, domain.EventSetTransferFeePercentage, map[string]string{
		"old_transfer_fee": i.cfg.TransferFee.String(),
		"new_transfer_fee": spec.String(),
	})
	i.cfg.TransferFee = spec
	return nil
}
