package api

import (
	"net/http"

	"github.com/xraph/herald/account"
)

// upsertAccountRequest carries the token the account JSON never exposes.
type upsertAccountRequest struct {
	OwnerUserID       string   `json:"owner_user_id"`
	ExternalAccountID string   `json:"external_account_id"`
	Username          string   `json:"username"`
	AccessToken       string   `json:"access_token"`
	CapabilityScopes  []string `json:"capability_scopes"`
}

func (req *upsertAccountRequest) account() *account.ConnectedAccount {
	return &account.ConnectedAccount{
		OwnerUserID:       req.OwnerUserID,
		ExternalAccountID: req.ExternalAccountID,
		Username:          req.Username,
		AccessToken:       req.AccessToken,
		CapabilityScopes:  req.CapabilityScopes,
	}
}

func (h *Handler) upsertAccount(w http.ResponseWriter, r *http.Request) {
	var req upsertAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.OwnerUserID == "" || req.ExternalAccountID == "" {
		writeError(w, http.StatusBadRequest, "owner_user_id and external_account_id are required")
		return
	}

	acct := req.account()
	if err := h.herald.Store().UpsertAccount(r.Context(), acct); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acct)
}
