package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/forumdesk-io/forumdesk/internal/relay"
)

// signatureHeader carries the HMAC of the raw webhook body:
// "sha256=<hex>".
const signatureHeader = "X-Forumdesk-Signature-256"

// handleZendeskWebhook receives ticket-comment events and relays them into
// the matching thread. Response codes follow the remote system's retry
// contract: 200 for anything consumed (including a thread that is no
// longer active), 400 for a payload it should never resend, 500 only for
// internal failure.
func (s *Server) handleZendeskWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	if s.cfg.WebhookSecret != "" && !verifyHMAC(body, s.cfg.WebhookSecret, r.Header.Get(signatureHeader)) {
		s.logger.Warn("webhook signature rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var payload relay.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	s.logger.Info("webhook payload received",
		"thread", payload.ThreadID, "commenter", payload.CommenterID)

	switch err := s.relay.Deliver(r.Context(), payload); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, relay.ErrUnknownCommenter):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown commenter"})
	case errors.Is(err, relay.ErrThreadNotActive):
		// Consumed: the event's thread is gone and a retry won't help.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		s.logger.Error("webhook processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// verifyHMAC checks an HMAC-SHA256 signature in "sha256=<hex>" form.
func verifyHMAC(body []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}
	sig := strings.TrimPrefix(signature, "sha256=")
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// ComputeSignature generates the signature value for a body, for trigger
// configuration and tests.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
