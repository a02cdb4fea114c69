package webhooks

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"voiceai-billing/internal/billing"
	"voiceai-billing/internal/config"
	"voiceai-billing/internal/ledger"
	"voiceai-billing/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxPaymentBody = 1 << 20

// PaymentHandler receives signed payment-confirmation webhooks. The signature
// is verified over the raw body before anything is parsed or trusted.
type PaymentHandler struct {
	Billing   *billing.Service
	Secret    []byte
	Tolerance time.Duration

	clock func() time.Time
}

func NewPaymentHandler(svc *billing.Service, cfg config.PaymentsConfig) *PaymentHandler {
	return &PaymentHandler{
		Billing:   svc,
		Secret:    []byte(cfg.WebhookSecret),
		Tolerance: cfg.SignatureTolerance,
		clock:     time.Now,
	}
}

type paymentEvent struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`

	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`

	// Kind is "recharge" for one-time top-ups, "subscription" for renewals.
	Kind string `json:"kind"`
}

func (h *PaymentHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPaymentBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	sig := c.GetHeader(SignatureHeader)
	if err := VerifySignature(h.Secret, sig, body, h.clock(), h.Tolerance); err != nil {
		logger.FromGin(c).Warn("payment webhook signature rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	var ev paymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	receipt, err := h.Billing.ProcessPayment(c.Request.Context(), billing.PaymentEvent{
		EventID:     ev.ID,
		ClientID:    ev.ClientID,
		AmountMinor: ev.AmountMinor,
		Kind:        ledger.TransactionKind(ev.Kind),
	})
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrInvalidEvent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, billing.ErrClientNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown client"})
		return
	default:
		logger.FromGin(c).Error("payment webhook processing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	if receipt.Duplicate {
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              "processed",
		"transaction_id":      receipt.TransactionID,
		"balance_after_minor": receipt.BalanceAfterMinor,
	})
}
