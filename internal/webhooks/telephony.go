package webhooks

import (
	"errors"
	"net/http"
	"time"

	"voiceai-billing/internal/billing"
	"voiceai-billing/pkg/logger"

	"github.com/gin-gonic/gin"
)

// EventKindCallAnalyzed is the only telephony event kind that bills; every
// other kind is acknowledged and dropped.
const EventKindCallAnalyzed = "call.analyzed"

// TelephonyHandler receives call-lifecycle webhooks from the voice platform.
// The client is resolved from the per-client token in the query string, never
// from the body.
type TelephonyHandler struct {
	Billing *billing.Service
}

type telephonyEvent struct {
	Type string         `json:"type"`
	Call *telephonyCall `json:"call"`
}

type telephonyCall struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`

	Transcript   string `json:"transcript"`
	RecordingURL string `json:"recording_url"`
	Summary      string `json:"summary"`

	Successful bool   `json:"successful"`
	Sentiment  string `json:"sentiment"`
	Voicemail  bool   `json:"voicemail"`
}

func (h TelephonyHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var ev telephonyEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if ev.Type != EventKindCallAnalyzed {
		// Lifecycle noise (call.started, call.ended, ...): acknowledge so the
		// sender stops retrying, touch nothing.
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "type": ev.Type})
		return
	}
	if ev.Call == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing call payload"})
		return
	}

	receipt, err := h.Billing.ProcessCallEvent(c.Request.Context(), token, billing.CallEvent{
		ExternalID:   ev.Call.ID,
		StartedAt:    ev.Call.StartedAt,
		EndedAt:      ev.Call.EndedAt,
		DurationMs:   ev.Call.DurationMs,
		Transcript:   ev.Call.Transcript,
		RecordingURL: ev.Call.RecordingURL,
		Summary:      ev.Call.Summary,
		Successful:   ev.Call.Successful,
		Sentiment:    ev.Call.Sentiment,
		Voicemail:    ev.Call.Voicemail,
	})
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	case errors.Is(err, billing.ErrInvalidEvent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	default:
		// Store failure: 5xx so the sender retries. The retry is safe, the
		// charge is gated on the call id.
		logger.FromGin(c).Error("call webhook processing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	if receipt.Duplicate {
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              "processed",
		"call_id":             receipt.CallID,
		"billable_minutes":    receipt.BillableMinutes,
		"cost_minor":          receipt.CostMinor,
		"balance_after_minor": receipt.BalanceAfterMinor,
	})
}
