/**
 * @description
 * HTTP handlers for admin-driven user management: issuing admin and user
 * badges, reading badge data, adjusting exchange limits, blacklisting, and
 * recalling revealed tokens from a user's account.
 */

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
)

// pathUserID parses the {id} URL parameter as a user id. It writes the error
// response itself and reports success via the bool.
func (h *IssuerHandlers) pathUserID(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	userID, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return 0, false
	}
	return userID, true
}

// targetAccount resolves an account address from a request body field. It
// writes the error response itself and returns nil on failure.
func (h *IssuerHandlers) targetAccount(w http.ResponseWriter, address string) *engine.Account {
	if strings.TrimSpace(address) == "" {
		h.writeError(w, http.StatusBadRequest, "Account address is required")
		return nil
	}
	acc, err := h.eng.Account(engine.ComponentAddress(address))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Target account not found")
		return nil
	}
	return acc
}

// CreateAdminHandler mints a new admin badge and deposits it into the target
// account.
func (h *IssuerHandlers) CreateAdminHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req struct {
		EmployeeID string `json:"employee_id"`
		Account    string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.EmployeeID) == "" {
		h.writeError(w, http.StatusBadRequest, "Employee ID is required")
		return
	}
	target := h.targetAccount(w, req.Account)
	if target == nil {
		return
	}

	bucket, err := h.issuer.CreateNewAdmin(r.Context(), auth, req.EmployeeID)
	if err != nil {
		h.adminOperationError(w, "create_admin", err)
		return
	}
	badgeIDs := bucket.NonFungibleIDs()
	if err := h.eng.AccountDeposit(target, bucket, auth); err != nil {
		h.adminOperationError(w, "create_admin", err)
		return
	}

	log.Printf("level=info component=api endpoint=create_admin outcome=completed account=%s target=%s employee_id=%s", acc.Address(), target.Address(), req.EmployeeID)
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"admin_badge": badgeIDs,
		"account":     string(target.Address()),
	})
}

// CreateUserHandler mints a new user badge and deposits it into the target
// account. The badge id is the zero-padded user id.
func (h *IssuerHandlers) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	var req struct {
		UserID  string `json:"user_id"`
		Account string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	userID, err := domain.ParseUserID(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	target := h.targetAccount(w, req.Account)
	if target == nil {
		return
	}

	bucket, err := h.issuer.CreateNewUser(r.Context(), auth, userID, target.Address())
	if err != nil {
		h.adminOperationError(w, "create_user", err)
		return
	}
	if err := h.eng.AccountDeposit(target, bucket, auth); err != nil {
		h.adminOperationError(w, "create_user", err)
		return
	}

	log.Printf("level=info component=api endpoint=create_user outcome=completed account=%s target=%s user_id=%s", acc.Address(), target.Address(), userID)
	h.writeJSON(w, http.StatusCreated, map[string]string{
		"user_id": userID.String(),
		"account": string(target.Address()),
	})
}

// GetUserHandler reads a user badge's immutable and mutable data.
func (h *IssuerHandlers) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	data, err := h.issuer.GetUserData(auth, userID)
	if err != nil {
		h.adminOperationError(w, "get_user", err)
		return
	}
	mutable, err := h.issuer.GetUserMutableData(auth, userID)
	if err != nil {
		h.adminOperationError(w, "get_user", err)
		return
	}

	h.writeJSON(w, http.StatusOK, userResponse(data, mutable))
}

// SetExchangeLimitHandler sets a user's wrapped exchange limit to an absolute
// value chosen by an admin.
func (h *IssuerHandlers) SetExchangeLimitHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Limit string `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	limit, err := domain.ParseAmount(req.Limit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid limit: %v", err))
		return
	}

	if err := h.issuer.SetUserExchangeLimit(r.Context(), auth, userID, limit); err != nil {
		h.adminOperationError(w, "set_user_exchange_limit", err)
		return
	}

	log.Printf("level=info component=api endpoint=set_user_exchange_limit outcome=completed account=%s user_id=%s limit=%s", acc.Address(), userID, limit)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"user_id": userID.String(),
		"limit":   limit.FormatDecimal(),
	})
}

// SetWrappedExchangeLimitHandler overwrites a user's remaining wrapped exchange
// allowance, including lowering it to zero.
func (h *IssuerHandlers) SetWrappedExchangeLimitHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Limit string `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	limit, err := domain.ParseAmount(req.Limit)
	if err != nil || limit.IsNegative() {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	if err := h.issuer.SetUserWrappedExchangeLimit(r.Context(), auth, userID, limit); err != nil {
		h.adminOperationError(w, "set_user_wrapped_exchange_limit", err)
		return
	}

	log.Printf("level=info component=api endpoint=set_user_wrapped_exchange_limit outcome=completed account=%s user_id=%s limit=%s", acc.Address(), userID, limit)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"user_id": userID.String(),
		"limit":   limit.FormatDecimal(),
	})
}

// BlacklistUserHandler recalls a user's badge into the blacklist vault. The
// badge data survives so the user can later be reinstated.
func (h *IssuerHandlers) BlacklistUserHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Account string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	target := h.targetAccount(w, req.Account)
	if target == nil {
		return
	}
	vault, ok := target.VaultByResource(h.issuer.UserBadgeResource())
	if !ok {
		h.writeError(w, http.StatusNotFound, "No user badge vault in target account")
		return
	}

	if err := h.issuer.BlacklistUser(r.Context(), auth, vault.ID(), userID); err != nil {
		h.adminOperationError(w, "blacklist_user", err)
		return
	}

	log.Printf("level=info component=api endpoint=blacklist_user outcome=completed account=%s user_id=%s", acc.Address(), userID)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     userID.String(),
		"blacklisted": true,
	})
}

// RemoveFromBlacklistHandler returns a blacklisted badge to the target account
// and clears the blacklist flag.
func (h *IssuerHandlers) RemoveFromBlacklistHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Account string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	target := h.targetAccount(w, req.Account)
	if target == nil {
		return
	}

	bucket, err := h.issuer.RemoveFromBlacklist(r.Context(), auth, userID)
	if err != nil {
		h.adminOperationError(w, "remove_from_blacklist", err)
		return
	}
	if err := h.eng.AccountDeposit(target, bucket, auth); err != nil {
		h.adminOperationError(w, "remove_from_blacklist", err)
		return
	}

	log.Printf("level=info component=api endpoint=remove_from_blacklist outcome=completed account=%s user_id=%s target=%s", acc.Address(), userID, target.Address())
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     userID.String(),
		"blacklisted": false,
	})
}

// RecallTokensHandler pulls revealed tokens out of a user's account back into
// the treasury.
func (h *IssuerHandlers) RecallTokensHandler(w http.ResponseWriter, r *http.Request) {
	acc, auth, drop := h.adminAuth(w, r)
	if acc == nil {
		return
	}
	defer drop()

	userID, ok := h.pathUserID(w, r)
	if !ok {
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

	if err := h.issuer.RecallRevealedTokens(r.Context(), auth, userID, amount); err != nil {
		h.adminOperationError(w, "recall_tokens", err)
		return
	}

	log.Printf("level=info component=api endpoint=recall_tokens outcome=completed account=%s user_id=%s amount=%s", acc.Address(), userID, amount)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"user_id":  userID.String(),
		"recalled": amount.FormatDecimal(),
	})
}
