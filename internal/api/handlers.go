/**
 * @description
 * This file contains the HTTP handlers for the issuer's public and user-facing
 * API endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business logic
 * layer.
 *
 * All privileged operations are authorized by badge, not by the bearer token:
 * a handler resolves the caller's account, builds a proof from the badge vault
 * in that account, and passes the proof to the issuer. A caller whose account
 * holds no badge is rejected by the issuer's access rules.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/engine, internal/store: For service
 *   logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/tari-project/stable-coin/internal/app"
	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
	"github.com/tari-project/stable-coin/internal/store"
)

// IssuerHandlers holds the application service that handlers will use.
type IssuerHandlers struct {
	issuer *app.Issuer
	eng    *engine.Engine
	repo   store.Repository
}

// NewIssuerHandlers creates a new instance of IssuerHandlers.
func NewIssuerHandlers(issuer *app.Issuer, eng *engine.Engine, repo store.Repository) *IssuerHandlers {
	return &IssuerHandlers{issuer: issuer, eng: eng, repo: repo}
}

type supplyResponse struct {
	TotalSupply        string `json:"total_supply"`
	WrappedTotalSupply string `json:"wrapped_total_supply,omitempty"`
	Paused             bool   `json:"paused"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// callerAccount resolves the authenticated account address from the request
// context to the engine account. It writes the error response itself and
// returns nil when the caller cannot be resolved.
func (h *IssuerHandlers) callerAccount(w http.ResponseWriter, r *http.Request) *engine.Account {
	addr, ok := GetCallerAccount(r.Context())
	if !ok {
		http.Error(w, "Could not get account address from context", http.StatusInternalServerError)
		return nil
	}
	acc, err := h.eng.Account(engine.ComponentAddress(addr))
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=unknown_account account=%s", addr)
		http.Error(w, "Account not found", http.StatusUnauthorized)
		return nil
	}
	return acc
}

// badgeAuth builds an Auth backed by a proof of the given badge resource held
// in the caller's account. The returned cleanup must be deferred to release the
// badge lock.
func (h *IssuerHandlers) badgeAuth(acc *engine.Account, badge engine.ResourceAddress) (*engine.Auth, *engine.Proof, func(), error) {
	proof, err := h.eng.CreateProof(acc, badge)
	if err != nil {
		return nil, nil, nil, err
	}
	auth := engine.NewAuth(string(acc.Address()), proof)
	return auth, proof, proof.Drop, nil
}

// refundBucket returns a withdrawn bucket to the account's own vault after a
// failed call, so a rejected operation never debits the caller. The deposit
// hook is bypassed: the tokens never left this account. A bucket consumed by a
// partially completed call is already empty and refunds as a no-op.
func (h *IssuerHandlers) refundBucket(acc *engine.Account, bucket *engine.Bucket) {
	if bucket == nil || bucket.Amount().IsZero() {
		return
	}
	vault, ok := acc.VaultByResource(bucket.ResourceAddress())
	if !ok {
		log.Printf("level=error component=api outcome=refund_failed reason=no_vault account=%s resource=%s amount=%s", acc.Address(), bucket.ResourceAddress(), bucket.Amount())
		return
	}
	if err := vault.Deposit(bucket); err != nil {
		log.Printf("level=error component=api outcome=refund_failed account=%s err=%v", acc.Address(), err)
	}
}

// decodeAmount parses a human-unit decimal amount from a request body field.
func decodeAmount(raw string) (domain.Amount, error) {
	amount, err := domain.ParseAmount(raw)
	if err != nil {
		return 0, err
	}
	if !amount.IsPositive() {
		return 0, domain.ErrAmountNotPositive
	}
	return amount, nil
}

// TotalSupplyHandler reports the stable-coin supply. This endpoint is public.
func (h *IssuerHandlers) TotalSupplyHandler(w http.ResponseWriter, r *http.Request) {
	supply, err := h.issuer.TotalSupply()
	if err != nil {
		log.Printf("level=error component=api endpoint=total_supply outcome=failed err=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := supplyResponse{
		TotalSupply: supply.FormatDecimal(),
		Paused:      h.issuer.IsPaused(),
	}
	if wrapped, err := h.issuer.WrappedTotalSupply(); err == nil {
		response.WrappedTotalSupply = wrapped.FormatDecimal()
	}

	h.writeJSON(w, http.StatusOK, response)
}

// CreateAccountHandler creates a fresh on-ledger account and returns its
// address. Buckets and badges are deposited into accounts created here.
func (h *IssuerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	acc := h.eng.CreateAccount()
	log.Printf("level=info component=api endpoint=create_account outcome=created account=%s", acc.Address())
	h.writeJSON(w, http.StatusCreated, map[string]string{"account": string(acc.Address())})
}

// BalanceHandler reports the caller's stable and wrapped token balances.
func (h *IssuerHandlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	acc := h.callerAccount(w, r)
	if acc == nil {
		return
	}

	balances := map[string]string{}
	if vault, ok := acc.VaultByResource(h.issuer.TokenResource()); ok {
		balances["balance"] = vault.Balance().FormatDecimal()
	} else {
		balances["balance"] = domain.Amount(0).FormatDecimal()
	}
	if wrapped := h.issuer.WrappedResource(); wrapped != "" {
		if vault, ok := acc.VaultByResource(wrapped); ok {
			balances["wrapped_balance"] = vault.Balance().FormatDecimal()
		} else {
			balances["wrapped_balance"] = domain.Amount(0).FormatDecimal()
		}
	}

	h.writeJSON(w, http.StatusOK, balances)
}

// MeHandler reports the user badge data held in the caller's account.
func (h *IssuerHandlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	acc := h.callerAccount(w, r)
	if acc == nil {
		return
	}

	vault, ok := acc.VaultByResource(h.issuer.UserBadgeResource())
	if !ok || len(vaultBadgeIDs(vault)) != 1 {
		h.writeError(w, http.StatusForbidden, "No user badge in account")
		return
	}
	badgeID := vaultBadgeIDs(vault)[0]

	userID, err := domain.ParseUserID(string(badgeID))
	if err != nil {
		log.Printf("level=error component=api endpoint=me outcome=failed account=%s err=%v", acc.Address(), err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	auth, _, drop, err := h.badgeAuth(acc, h.issuer.UserBadgeResource())
	if err != nil {
		h.writeError(w, http.StatusForbidden, "No user badge in account")
		return
	}
	defer drop()

	data, err := h.issuer.GetUserData(auth, userID)
	if err != nil {
		h.userOperationError(w, "me", acc, err)
		return
	}
	mutable, err := h.issuer.GetUserMutableData(auth, userID)
	if err != nil {
		h.userOperationError(w, "me", acc, err)
		return
	}

	h.writeJSON(w, http.StatusOK, userResponse(data, mutable))
}

// ExchangeStableForWrappedHandler swaps stable tokens from the caller's account
// for wrapped tokens, applying the configured exchange fee and limit.
func (h *IssuerHandlers) ExchangeStableForWrappedHandler(w http.ResponseWriter, r *http.Request) {
	acc := h.callerAccount(w, r)
	if acc == nil {
		return
	}

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

	auth, proof, drop, err := h.badgeAuth(acc, h.issuer.UserBadgeResource())
	if err != nil {
		h.writeError(w, http.StatusForbidden, "No user badge in account")
		return
	}
	defer drop()

	bucket, err := h.eng.AccountWithdraw(acc, h.issuer.TokenResource(), amount, auth)
	if err != nil {
		h.userOperationError(w, "exchange_stable_for_wrapped", acc, err)
		return
	}

	wrapped, err := h.issuer.ExchangeStableForWrapped(r.Context(), auth, proof, bucket)
	if err != nil {
		h.refundBucket(acc, bucket)
		h.userOperationError(w, "exchange_stable_for_wrapped", acc, err)
		return
	}

	received := wrapped.Amount()
	if err := h.eng.AccountDeposit(acc, wrapped, auth); err != nil {
		h.refundBucket(acc, wrapped)
		h.userOperationError(w, "exchange_stable_for_wrapped", acc, err)
		return
	}

	log.Printf("level=info component=api endpoint=exchange_stable_for_wrapped outcome=completed account=%s amount=%s received=%s", acc.Address(), amount, received)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"exchanged": amount.FormatDecimal(),
		"received":  received.FormatDecimal(),
	})
}

// ExchangeWrappedForStableHandler swaps wrapped tokens from the caller's
// account back into stable tokens at par.
func (h *IssuerHandlers) ExchangeWrappedForStableHandler(w http.ResponseWriter, r *http.Request) {
	acc := h.callerAccount(w, r)
	if acc == nil {
		return
	}

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

	auth, proof, drop, err := h.badgeAuth(acc, h.issuer.UserBadgeResource())
	if err != nil {
		h.writeError(w, http.StatusForbidden, "No user badge in account")
		return
	}
	defer drop()

	bucket, err := h.eng.AccountWithdraw(acc, h.issuer.WrappedResource(), amount, auth)
	if err != nil {
		h.userOperationError(w, "exchange_wrapped_for_stable", acc, err)
		return
	}

	stable, err := h.issuer.ExchangeWrappedForStable(r.Context(), auth, proof, bucket)
	if err != nil {
		h.refundBucket(acc, bucket)
		h.userOperationError(w, "exchange_wrapped_for_stable", acc, err)
		return
	}

	received := stable.Amount()
	if err := h.eng.AccountDeposit(acc, stable, auth); err != nil {
		h.refundBucket(acc, stable)
		h.userOperationError(w, "exchange_wrapped_for_stable", acc, err)
		return
	}

	log.Printf("level=info component=api endpoint=exchange_wrapped_for_stable outcome=completed account=%s amount=%s received=%s", acc.Address(), amount, received)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"exchanged": amount.FormatDecimal(),
		"received":  received.FormatDecimal(),
	})
}

// userOperationError maps user-facing service errors to HTTP statuses.
func (h *IssuerHandlers) userOperationError(w http.ResponseWriter, endpoint string, acc *engine.Account, err error) {
	log.Printf("level=warn component=api endpoint=%s outcome=failed account=%s err=%v", endpoint, acc.Address(), err)
	switch {
	case errors.Is(err, app.ErrUnauthorized), errors.Is(err, engine.ErrActionNotAllowed):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrPaused):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrInsufficientBalance):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrExchangeLimitExceeded),
		errors.Is(err, app.ErrExchangeFeeExceedsAmount),
		errors.Is(err, app.ErrWrappedTokenNotEnabled),
		errors.Is(err, app.ErrExactlyOneBadge),
		errors.Is(err, app.ErrBucketEmpty),
		errors.Is(err, domain.ErrAmountNotPositive):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrDepositUnauthorized), errors.Is(err, app.ErrStaticDeposit):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrVaultNotFound), errors.Is(err, engine.ErrNonFungibleNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func vaultBadgeIDs(vault *engine.Vault) []engine.NonFungibleID {
	if vault == nil {
		return nil
	}
	return vault.NonFungibleIDs()
}

func userResponse(data domain.UserData, mutable domain.UserMutableData) map[string]interface{} {
	return map[string]interface{}{
		"user_id":                data.UserID.String(),
		"user_account":           data.UserAccount,
		"created_at_epoch":       data.CreatedAtEpoch,
		"is_blacklisted":         mutable.IsBlacklisted,
		"wrapped_exchange_limit": mutable.WrappedExchangeLimit.FormatDecimal(),
	}
}

func parseOptionalInt(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return value, nil
}

// writeJSON is a helper for writing JSON responses.
func (h *IssuerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *IssuerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
