/**
 * @description
 * HTTP handlers for the admin-only endpoints: supply management, treasury
 * movements, pause control, confidential output freezing and burning, fee
 * configuration, and the audit-event query surface.
 *
 * Every handler here authorizes the caller by building a proof of the admin
 * badge from the caller's account. Holding a valid bearer token is never
 * sufficient on its own.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tari-project/stable-coin/internal/app"
	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
	"github.com/tari-project/stable-coin/internal/store"
)

// adminAuth resolves the caller's account and builds an admin-badge Auth.
// It writes the error response itself and returns nil when the caller does not
// hold the admin badge.
func (h *IssuerHandlers) adminAuth(w http.ResponseWriter, r *http.Request) (*engine.Account, *engine.Auth, func()) {
	acc := h.callerAccount(w, r)
	if acc == nil {
		return nil, nil, nil
	}
	auth, _, drop, err := h.badgeAuth(acc, h.issuer.AdminBadgeResource())
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=no_admin_badge account=%s", acc.Address())
		h.writeError(w, http.StatusForbidden, "Admin badge required")
		return nil, nil, nil
	}
	return acc, auth, drop
}

// adminOperationError maps admin-facing service errors to HTTP statuses.
func (h *IssuerHandlers) adminOperationError(w http.ResponseWriter, endpoint string, err error) {
	log.Printf("level=warn component=api endpoint=%s outcome=failed err=%v", endpoint, err)
	switch {
	case errors.Is(err, app.ErrUnauthorized), errors.Is(err, engine.ErrActionNotAllowed):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrInsufficientBalance):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, engine.ErrNonFungibleNotFound),
		errors.Is(err, engine.ErrVaultNotFound),
		errors.Is(err, engine.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrNonFungibleExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrValueProofInvalid),
		errors.Is(err, app.ErrLimitNotPositive),
		errors.Is(err, domain.ErrAmountNotPositive),
		errors.Is(err, domain.ErrPercentageOutOfRange):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// IncreaseSupplyHandler mints new stable tokens into the treasury.
func (h *IssuerHandlers) IncreaseSupplyHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	amount, err := decodeAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount: %v", err))
		return
	}

	if err := h.issuer.IncreaseSupply(r.Context(), auth, amount); err != nil {
		h.adminOperationError(w, "increase_supply", err)
		return
	}

	log.Printf("level=info component=api endpoint=increase_supply outcome=completed account=%s amount=%s", acc.Address(), amount)
	h.writeJSON(w, http.StatusOK, map[string]string{"minted": amount.FormatDecimal()})
}

// DecreaseSupplyHandler burns stable tokens held in the treasury.
func (h *IssuerHandlers) DecreaseSupplyHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	amount, err := decodeAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount: %v", err))
		return
	}

	if err := h.issuer.DecreaseSupply(r.Context(), auth, amount); err != nil {
		h.adminOperationError(w, "decrease_supply", err)
		return
	}

	log.Printf("level=info component=api endpoint=decrease_supply outcome=completed account=%s amount=%s", acc.Address(), amount)
	h.writeJSON(w, http.StatusOK, map[string]string{"burned": amount.FormatDecimal()})
}

// WithdrawHandler moves stable tokens from the treasury into the caller's
// account. The caller's account must pass the user-badge deposit check.
func (h *IssuerHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	amount, err := decodeAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount: %v", err))
		return
	}

	bucket, err := h.issuer.Withdraw(r.Context(), auth, amount)
	if err != nil {
		h.adminOperationError(w, "withdraw", err)
		return
	}
	if err := h.eng.AccountDeposit(acc, bucket, auth); err != nil {
		// The account refused the tokens (no user badge, paused). Return them
		// to the treasury so the failed call leaves no debit behind.
		if depErr := h.issuer.Deposit(r.Context(), auth, bucket); depErr != nil {
			log.Printf("level=error component=api endpoint=withdraw outcome=refund_failed account=%s err=%v", acc.Address(), depErr)
		}
		h.userOperationError(w, "withdraw", acc, err)
		return
	}

	log.Printf("level=info component=api endpoint=withdraw outcome=completed account=%s amount=%s", acc.Address(), amount)
	h.writeJSON(w, http.StatusOK, map[string]string{"withdrawn": amount.FormatDecimal()})
}

// DepositHandler moves stable tokens from the caller's account into the
// treasury.
func (h *IssuerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	amount, err := decodeAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount: %v", err))
		return
	}

	bucket, err := h.eng.AccountWithdraw(acc, h.issuer.TokenResource(), amount, auth)
	if err != nil {
		h.adminOperationError(w, "deposit", err)
		return
	}
	if err := h.issuer.Deposit(r.Context(), auth, bucket); err != nil {
		h.refundBucket(acc, bucket)
		h.adminOperationError(w, "deposit", err)
		return
	}

	log.Printf("level=info component=api endpoint=deposit outcome=completed account=%s amount=%s", acc.Address(), amount)
	h.writeJSON(w, http.StatusOK, map[string]string{"deposited": amount.FormatDecimal()})
}

// PauseHandler halts user deposits of the stable token.
func (h *IssuerHandlers) PauseHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	if err := h.issuer.Pause(r.Context(), auth); err != nil {
		h.adminOperationError(w, "pause", err)
		return
	}
	log.Printf("level=info component=api endpoint=pause outcome=completed account=%s", acc.Address())
	h.writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

// UnpauseHandler resumes user deposits of the stable token.
func (h *IssuerHandlers) UnpauseHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	if err := h.issuer.Unpause(r.Context(), auth); err != nil {
		h.adminOperationError(w, "unpause", err)
		return
	}
	log.Printf("level=info component=api endpoint=unpause outcome=completed account=%s", acc.Address())
	h.writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

type utxoListRequest struct {
	Utxos []string `json:"utxos"`
}

func (r utxoListRequest) ids() []engine.UtxoID {
	ids := make([]engine.UtxoID, 0, len(r.Utxos))
	for _, u := range r.Utxos {
		ids = append(ids, engine.UtxoID(u))
	}
	return ids
}

// FreezeUtxosHandler marks confidential outputs as unspendable.
func (h *IssuerHandlers) FreezeUtxosHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req utxoListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Utxos) == 0 {
		h.writeError(w, http.StatusBadRequest, "At least one utxo is required")
		return
	}

	if err := h.issuer.FreezeUtxos(r.Context(), auth, req.ids()); err != nil {
		h.adminOperationError(w, "freeze_utxos", err)
		return
	}

	log.Printf("level=info component=api endpoint=freeze_utxos outcome=completed account=%s num_utxos=%d", acc.Address(), len(req.Utxos))
	h.writeJSON(w, http.StatusOK, map[string]int{"frozen": len(req.Utxos)})
}

// UnfreezeUtxosHandler reverses a previous freeze.
func (h *IssuerHandlers) UnfreezeUtxosHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req utxoListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Utxos) == 0 {
		h.writeError(w, http.StatusBadRequest, "At least one utxo is required")
		return
	}

	if err := h.issuer.UnfreezeUtxos(r.Context(), auth, req.ids()); err != nil {
		h.adminOperationError(w, "unfreeze_utxos", err)
		return
	}

	log.Printf("level=info component=api endpoint=unfreeze_utxos outcome=completed account=%s num_utxos=%d", acc.Address(), len(req.Utxos))
	h.writeJSON(w, http.StatusOK, map[string]int{"unfrozen": len(req.Utxos)})
}

// BurnUtxosHandler destroys one confidential output given a certified value
// proof, reducing total supply by the revealed amount.
func (h *IssuerHandlers) BurnUtxosHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req struct {
		Utxo           string `json:"utxo"`
		RevealedAmount string `json:"revealed_amount"`
		Certified      bool   `json:"certified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	amount, err := domain.ParseAmount(req.RevealedAmount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid revealed amount: %v", err))
		return
	}

	proof := engine.ValueProof{
		Utxo:           engine.UtxoID(req.Utxo),
		RevealedAmount: amount,
		Certified:      req.Certified,
	}
	if err := h.issuer.BurnUtxos(r.Context(), auth, proof); err != nil {
		h.adminOperationError(w, "burn_utxos", err)
		return
	}

	log.Printf("level=info component=api endpoint=burn_utxos outcome=completed account=%s utxo=%s", acc.Address(), req.Utxo)
	h.writeJSON(w, http.StatusOK, map[string]string{"burned": amount.FormatDecimal()})
}

// SetTransferFeeHandler reconfigures the transfer fee. Exactly one of `fixed`
// (a decimal amount) or `percent` must be provided.
func (h *IssuerHandlers) SetTransferFeeHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req struct {
		Fixed   *string `json:"fixed,omitempty"`
		Percent *uint8  `json:"percent,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if (req.Fixed == nil) == (req.Percent == nil) {
		h.writeError(w, http.StatusBadRequest, "Provide exactly one of fixed or percent")
		return
	}

	if req.Fixed != nil {
		fee, err := domain.ParseAmount(*req.Fixed)
		if err != nil || fee.IsNegative() {
			h.writeError(w, http.StatusBadRequest, "Invalid fixed fee")
			return
		}
		if err := h.issuer.SetConfigTransferFeeFixed(r.Context(), auth, fee); err != nil {
			h.adminOperationError(w, "set_transfer_fee", err)
			return
		}
	} else {
		if err := h.issuer.SetConfigTransferFeePercentage(r.Context(), auth, *req.Percent); err != nil {
			h.adminOperationError(w, "set_transfer_fee", err)
			return
		}
	}

	log.Printf("level=info component=api endpoint=set_transfer_fee outcome=completed account=%s fee=%s", acc.Address(), h.issuer.Config().TransferFee)
	h.writeJSON(w, http.StatusOK, map[string]string{"transfer_fee": h.issuer.Config().TransferFee.String()})
}

// ListEventsHandler returns recorded audit events, newest first.
func (h *IssuerHandlers) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	acc, _, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 100)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	events, err := h.repo.ListEvents(r.Context(), store.EventListOptions{
		Name:   r.URL.Query().Get("name"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("level=error component=api endpoint=list_events outcome=failed err=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}

	h.writeJSON(w, http.StatusOK, events)
}

// GetEventHandler fetches one audit event by id.
func (h *IssuerHandlers) GetEventHandler(w http.ResponseWriter, r *http.Request) {
	acc, _, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid event ID format")
		return
	}

	event, err := h.repo.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			h.writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_event outcome=failed event_id=%s err=%v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, event)
}
