package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Date filters

	"kolia/internal/domain"     // Importing domain models
	"kolia/internal/middleware" // Payment metrics
	"kolia/internal/service"    // Payment service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
)

// InitializePaymentRequest opens a payment for an order
type InitializePaymentRequest struct {
	OrderID  uint            `json:"orderId" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// VerifyPaymentRequest names the transaction to reconcile
type VerifyPaymentRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
}

// WebhookPayload is what the gateway posts to notify_url, as a form or JSON
type WebhookPayload struct {
	TransactionID string `form:"cpm_trans_id" json:"cpm_trans_id"`
	SiteID        string `form:"cpm_site_id" json:"cpm_site_id"`
}

// RefundRequest carries the refund reason
type RefundRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// InitializePaymentHandler starts a payment for the caller's order
func InitializePaymentHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitializePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "orderId and amount are required")
			return
		}
		res, err := d.Payments.InitializePayment(c.Request.Context(), currentActor(c).ID, req.OrderID, req.Amount, req.Currency)
		if err != nil {
			middleware.RecordPaymentEvent("initialize_error")
			respondError(c, err, d.IsProd)
			return
		}
		middleware.RecordPaymentEvent("initialized")
		respondOK(c, gin.H{
			"transactionId": res.TransactionID,
			"paymentUrl":    res.PaymentURL,
			"paymentToken":  res.PaymentToken,
			"isMock":        res.IsMock,
		})
	}
}

// VerifyPaymentHandler reconciles a transaction with the gateway. A refused payment answers 400.
func VerifyPaymentHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "transactionId is required")
			return
		}
		res, err := d.Payments.VerifyPayment(c.Request.Context(), req.TransactionID)
		if err != nil {
			middleware.RecordPaymentEvent("verify_error")
			respondError(c, err, d.IsProd)
			return
		}
		middleware.RecordPaymentEvent(string(res.Status))
		if res.Status == domain.TxFailed {
			respond(c, http.StatusBadRequest, "Payment failed", res)
			return
		}
		d.Cache.Invalidate(c.Request.Context(), "admin:txs:*", "admin:dashboard")
		respond(c, http.StatusOK, "Payment verified", res)
	}
}

// PaymentWebhookHandler receives gateway notifications. It always answers 200 so the
// gateway stops retrying; repeated deliveries are absorbed by VerifyPayment.
func PaymentWebhookHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p WebhookPayload
		_ = c.ShouldBind(&p)
		id := strings.TrimSpace(p.TransactionID)
		if id == "" {
			logrus.WithField("path", c.Request.URL.Path).Warn("Webhook without transaction id")
			respondOK(c, gin.H{"received": true})
			return
		}
		middleware.RecordPaymentEvent("webhook")
		res, err := d.Payments.VerifyPayment(c.Request.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{"transaction_id": id, "error": err.Error()}).Warn("Webhook verification failed")
			respondOK(c, gin.H{"received": true})
			return
		}
		d.Cache.Invalidate(c.Request.Context(), "admin:txs:*", "admin:dashboard")
		respondOK(c, gin.H{"received": true, "status": res.Status})
	}
}

func parseDate(v string) (*time.Time, bool) {
	if v == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// ListTransactionsHandler pages through transactions with user, status and date filters
func ListTransactionsHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		f := service.TransactionFilter{ListParams: listParams(c), Status: c.Query("status")}
		if v := c.Query("user_id"); v != "" {
			id, err := parseUint(v)
			if err != nil {
				badRequest(c, "invalid user_id")
				return
			}
			f.UserID = id
		}
		var ok bool
		if f.From, ok = parseDate(c.Query("from")); !ok {
			badRequest(c, "from must be YYYY-MM-DD")
			return
		}
		if f.To, ok = parseDate(c.Query("to")); !ok {
			badRequest(c, "to must be YYYY-MM-DD")
			return
		}
		if f.To != nil {
			end := f.To.Add(24*time.Hour - time.Nanosecond) // Whole day inclusive
			f.To = &end
		}
		cacheKey := "admin:txs:" + c.Request.URL.Query().Encode()
		var cached gin.H
		if d.Cache.Get(ctx, cacheKey, &cached) {
			cached["cached"] = true // Indicate response is from cache
			respondOK(c, cached)
			return
		}
		txs, total, err := d.Payments.ListTransactions(ctx, f)
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		data := paged("transactions", txs, f.ListParams, total)
		d.Cache.Set(ctx, cacheKey, data, cacheTTL)
		data["cached"] = false
		respondOK(c, data)
	}
}

// PaymentStatusHandler summarises a transaction and its order
func PaymentStatusHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := d.Payments.GetPaymentStatus(c.Request.Context(), c.Param("transactionId"), currentActor(c))
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		respondOK(c, st)
	}
}

// RefundHandler refunds a completed transaction and cancels its order
func RefundHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "reason is required")
			return
		}
		tx, err := d.Payments.ProcessRefund(c.Request.Context(), c.Param("transactionId"), req.Reason)
		if err != nil {
			respondError(c, err, d.IsProd)
			return
		}
		middleware.RecordPaymentEvent("refunded")
		d.Cache.Invalidate(c.Request.Context(), "admin:txs:*", "admin:dashboard")
		respond(c, http.StatusOK, "Refund processed", gin.H{"transactionId": tx.ID, "status": tx.Status})
	}
}
