package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/importer"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

const (
	tallySignatureHeader = "Tally-Signature"
	maxTallyBody         = 1 << 20
)

type tallyStager interface {
	StageTally(ctx context.Context, sub *importer.TallySubmission) (*domain.StagedTransaction, error)
}

type WebhookHandler struct {
	staging tallyStager
	secret  string
}

// NewWebhookHandler builds the Tally form receiver. An empty secret disables
// signature verification.
func NewWebhookHandler(staging tallyStager, secret string) *WebhookHandler {
	return &WebhookHandler{staging: staging, secret: secret}
}

func (h *WebhookHandler) ReceiveTally(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTallyBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("tally submission too large", "limit", tooLarge.Limit)
			RespondAppError(w, ErrPayloadTooLarge, nil)
			return
		}
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if h.secret != "" && !validSignature(body, r.Header.Get(tallySignatureHeader), h.secret) {
		log.Warn("tally signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	sub, err := importer.ParseTally(body)
	if err != nil {
		log.Warn("rejected tally submission", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	st, err := h.staging.StageTally(r.Context(), sub)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			log.Info("duplicate tally submission received", "response_id", sub.ResponseID)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
			return
		}
		log.Warn("failed to stage tally submission", "response_id", sub.ResponseID, "error", err)
		RespondDomainError(w, r, err)
		return
	}

	log.Info("tally submission received", "response_id", sub.ResponseID, "staged_id", st.ID)
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received", "staged_id": st.ID.String()})
}

// validSignature reports whether sig is the base64 HMAC-SHA256 of body
// under secret.
func validSignature(body []byte, sig, secret string) bool {
	got, err := base64.StdEncoding.DecodeString(sig)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
