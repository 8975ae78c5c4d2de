/**
 * @description
 * This file defines the audit-event model. Every state-changing issuer operation
 * emits exactly one structured event named after the operation, carrying amounts
 * and ids as decimal strings. The event stream is the durable audit trail that
 * external observers consume, so names and field keys are load-bearing and must
 * not change.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the issuer. External consumers match on these exactly.
const (
	EventIncreaseSupply              = "increase_supply"
	EventDecreaseSupply              = "decrease_supply"
	EventWithdraw                    = "withdraw"
	EventDeposit                     = "deposit"
	EventExchangeStableForWrapped    = "exchange_stable_for_wrapped_tokens"
	EventExchangeWrappedForStable    = "exchange_wrapped_for_stable_tokens"
	EventRecallTokens                = "recall_tokens"
	EventBurnUtxos                   = "burn_utxos"
	EventCreateNewAdmin              = "create_new_admin"
	EventCreateNewUser               = "create_new_user"
	EventSetUserExchangeLimit        = "set_user_exchange_limit"
	EventBlacklistUser               = "blacklist_user"
	EventRemoveFromBlacklist         = "remove_from_blacklist"
	EventSetUserWrappedExchangeLimit = "set_user_wrapped_exchange_limit"
	EventSetTransferFeeFixed         = "config.set_transfer_fee_fixed"
	EventSetTransferFeePercentage    = "config.set_transfer_fee_percentage"
	EventPaused                      = "admin.paused"
	EventUnpaused                    = "admin.unpaused"
	EventFreezeUtxos                 = "admin.freeze_utxos"
	EventUnfreezeUtxos               = "admin.unfreeze_utxos"
)

// Event is one append-only audit record.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Fields    map[string]string `json:"fields"`
	EmittedAt time.Time         `json:"emitted_at"`
}

// NewEvent builds an event with a fresh id and the current timestamp.
func NewEvent(name string, fields map[string]string) Event {
	return Event{
		ID:        uuid.New(),
		Name:      name,
		Fields:    fields,
		EmittedAt: time.Now().UTC(),
	}
}
