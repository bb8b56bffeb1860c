package api

import (
	"net/http"
	"time"

	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/id"
)

type purgeResponse struct {
	Purged int64 `json:"purged"`
}

func (h *Handler) listFailures(w http.ResponseWriter, r *http.Request) {
	opts := failure.ListOpts{
		Offset:      queryInt(r, "offset", 0),
		Limit:       queryInt(r, "limit", 50),
		OwnerUserID: queryParam(r, "owner_user_id"),
	}

	if v := queryParam(r, "automation_id"); v != "" {
		ruleID, err := id.ParseRuleID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid automation ID")
			return
		}
		opts.AutomationID = &ruleID
	}

	var err error
	if opts.From, err = queryTime(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'from' time format (use RFC3339)")
		return
	}
	if opts.To, err = queryTime(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'to' time format (use RFC3339)")
		return
	}

	failures, err := h.herald.Failures().List(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, failures)
}

func (h *Handler) getFailure(w http.ResponseWriter, r *http.Request) {
	failID, err := id.ParseFailureID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid failure ID")
		return
	}

	f, err := h.herald.Failures().Get(r.Context(), failID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) purgeFailures(w http.ResponseWriter, r *http.Request) {
	before, err := time.Parse(time.RFC3339, queryParam(r, "before"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "before query parameter must be RFC3339")
		return
	}

	n, err := h.herald.Failures().Purge(r.Context(), before)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, purgeResponse{Purged: n})
}
