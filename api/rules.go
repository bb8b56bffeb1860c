package api

import (
	"net/http"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/rule"
)

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var in rule.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	created, err := h.herald.Rules().Create(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	owner := queryParam(r, "owner_user_id")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner_user_id query parameter is required")
		return
	}

	opts := rule.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	switch queryParam(r, "active") {
	case "true":
		active := true
		opts.Active = &active
	case "false":
		active := false
		opts.Active = &active
	}

	rules, err := h.herald.Rules().List(r.Context(), owner, opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := id.ParseRuleID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule ID")
		return
	}

	found, err := h.herald.Rules().Get(r.Context(), ruleID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, found)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := id.ParseRuleID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule ID")
		return
	}

	var in rule.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	updated, err := h.herald.Rules().Update(r.Context(), ruleID, in)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := id.ParseRuleID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule ID")
		return
	}

	if err := h.herald.Rules().Delete(r.Context(), ruleID); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setRuleActive(w http.ResponseWriter, r *http.Request) {
	ruleID, err := id.ParseRuleID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule ID")
		return
	}

	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.herald.Rules().SetActive(r.Context(), ruleID, req.Active); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
