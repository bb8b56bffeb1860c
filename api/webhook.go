package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/xraph/herald"
	"github.com/xraph/herald/signature"
)

// verifySubscription answers the provider's subscription handshake.
func (h *Handler) verifySubscription(w http.ResponseWriter, r *http.Request) {
	mode := queryParam(r, "hub.mode")
	token := queryParam(r, "hub.verify_token")
	challenge := queryParam(r, "hub.challenge")

	if mode != "subscribe" || !signature.VerifyToken(h.config.VerifyToken, token) {
		h.logger.Warn("webhook verification rejected", "mode", mode)
		writeError(w, http.StatusForbidden, "verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge) //nolint:errcheck // best effort
}

// receiveWebhook verifies, normalizes and processes one delivery. A verified
// delivery is acknowledged with 200 even when individual events fail, so the
// provider does not redeliver work that was recorded as a failure.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}

	if !h.signer.Verify(body, r.Header.Get(signature.Header)) {
		h.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		writeErr(w, herald.ErrInvalidSignature)
		return
	}

	// Processing outlives a provider that hangs up early.
	ctx := context.WithoutCancel(r.Context())

	report, err := h.herald.HandleWebhook(ctx, body)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
