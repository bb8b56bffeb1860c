package api

import (
	"context"
	"net/http"

	"github.com/xraph/herald"
	"github.com/xraph/herald/trigger"
)

type statsResponse struct {
	TriggerLogs  int64 `json:"trigger_logs"`
	Failures     int64 `json:"failures"`
	DedupEntries int   `json:"dedup_entries"`
}

func collectStats(ctx context.Context, h *herald.Herald) (*statsResponse, error) {
	logs, err := h.Store().CountTriggerLogs(ctx, trigger.ListOpts{})
	if err != nil {
		return nil, err
	}

	failures, err := h.Failures().Count(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := h.Guard().Len(ctx)
	if err != nil {
		return nil, err
	}

	return &statsResponse{
		TriggerLogs:  logs,
		Failures:     failures,
		DedupEntries: entries,
	}, nil
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := collectStats(r.Context(), h.herald)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
