package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"voiceai-billing/internal/auth"
	"voiceai-billing/internal/billing"
	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/clients"
	"voiceai-billing/internal/ledger"
	"voiceai-billing/internal/notify"
	"voiceai-billing/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Billing *billing.Service
	Clients *clients.Repo
	Calls   *calls.Repo
	Ledger  *ledger.Repo
	Notify  *notify.Service
	Reports *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id,omitempty"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair. Staff roles carry no client id; client
// accounts must name theirs.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.ClientID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Client self-service ---

func (h Handlers) GetMyBalance(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil || clientID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client account required"})
		return
	}
	client, err := h.Clients.ByID(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"client_id":     client.ID,
		"balance_minor": client.BalanceMinor,
		"currency":      client.Currency,
		"status":        client.Status,
	})
}

func (h Handlers) ListMyTransactions(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil || clientID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client account required"})
		return
	}
	from, to, ok := parseTimeRange(c)
	if !ok {
		return
	}
	limit, offset := parsePage(c)

	txs, err := h.Ledger.ListByClient(c.Request.Context(), clientID, from, to, limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transaction lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h Handlers) ListMyCalls(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil || clientID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client account required"})
		return
	}
	from, to, ok := parseTimeRange(c)
	if !ok {
		return
	}
	limit, offset := parsePage(c)

	rows, err := h.Calls.ListByClient(c.Request.Context(), clientID, from, to, limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

func (h Handlers) ListMyNotifications(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil || clientID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client account required"})
		return
	}
	limit, offset := parsePage(c)
	unreadOnly := c.Query("unread") == "true"

	rows, err := h.Notify.List(c.Request.Context(), clientID, unreadOnly, limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notification lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": rows})
}

func (h Handlers) MarkNotificationRead(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil || clientID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client account required"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "notification id required"})
		return
	}
	if err := h.Notify.MarkRead(c.Request.Context(), clientID, id); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "mark read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) GetMyUsageSummary(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil || clientID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client account required"})
		return
	}
	h.usageSummary(c, clientID)
}

// --- Admin / support ---

func (h Handlers) AdminListClients(c *gin.Context) {
	limit, offset := parsePage(c)
	rows, err := h.Clients.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "client lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": rows})
}

func (h Handlers) AdminGetClient(c *gin.Context) {
	id := c.Param("id")
	client, err := h.Clients.ByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "client lookup failed"})
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h Handlers) AdminGetClientUsage(c *gin.Context) {
	h.usageSummary(c, c.Param("id"))
}

type adminAdjustBalanceRequest struct {
	DeltaMinor int64  `json:"delta_minor"`
	Reason     string `json:"reason"`
}

// AdminAdjustBalance applies an audited manual balance correction.
// RBAC: admin only.
func (h Handlers) AdminAdjustBalance(c *gin.Context) {
	clientID := c.Param("id")
	actorUserID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())

	var req adminAdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Billing.AdjustBalance(c.Request.Context(), actorUserID, actorRole, c.ClientIP(), clientID, req.DeltaMinor, req.Reason)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrInvalidEvent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, billing.ErrClientNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "adjustment failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id":      res.TransactionID,
		"balance_after_minor": res.BalanceAfterMinor,
	})
}

// --- shared ---

func (h Handlers) usageSummary(c *gin.Context, clientID string) {
	from, to, ok := parseTimeRange(c)
	if !ok {
		return
	}
	r := reporting.TimeRange{From: from, To: to}

	callsOut, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{ClientID: clientID, Range: r})
	if err != nil {
		abortReportErr(c, err)
		return
	}
	spendOut, err := h.Reports.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{ClientID: clientID, Range: r})
	if err != nil {
		abortReportErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": callsOut, "spend": spendOut})
}

func abortReportErr(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid reporting request"})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
}

// parseTimeRange reads from/to query params (RFC 3339), defaulting to the
// trailing 30 days. Writes the error response itself when parsing fails.
func parseTimeRange(c *gin.Context) (from, to time.Time, ok bool) {
	now := time.Now().UTC()
	from, to = now.AddDate(0, 0, -30), now

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return from, to, false
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return from, to, false
		}
		to = t
	}
	return from, to, true
}

func parsePage(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
