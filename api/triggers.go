package api

import (
	"net/http"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/trigger"
)

func (h *Handler) listTriggerLogs(w http.ResponseWriter, r *http.Request) {
	opts := trigger.ListOpts{
		Offset:  queryInt(r, "offset", 0),
		Limit:   queryInt(r, "limit", 50),
		ActorID: queryParam(r, "actor_id"),
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

	logs, err := h.herald.Store().ListTriggerLogs(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}
