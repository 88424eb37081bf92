package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"kolia/internal/config"
	"kolia/internal/domain"
	"kolia/internal/errs"
	"kolia/internal/gateway"
	"kolia/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PaymentService opens payment attempts with the gateway and reconciles their outcome with orders
type PaymentService struct {
	db          *gorm.DB
	gateway     gateway.Gateway
	notifier    notify.Dispatcher
	isProd      bool
	prefix      string
	currency    string
	frontendURL string
	backendURL  string
	now         func() time.Time
}

func NewPaymentService(db *gorm.DB, gw gateway.Gateway, notifier notify.Dispatcher, cfg *config.Config) *PaymentService {
	return &PaymentService{
		db:          db,
		gateway:     gw,
		notifier:    notifier,
		isProd:      cfg.IsProd,
		prefix:      cfg.TransactionPrefix,
		currency:    cfg.DefaultCurrency,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		backendURL:  strings.TrimRight(cfg.BackendURL, "/"),
		now:         time.Now,
	}
}

// InitResult tells the client where to pay
type InitResult struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
	PaymentToken  string `json:"payment_token,omitempty"`
	IsMock        bool   `json:"is_mock,omitempty"`
}

// VerifyResult is the reconciled state of a transaction
type VerifyResult struct {
	TransactionID string                   `json:"transaction_id"`
	Status        domain.TransactionStatus `json:"status"`
	OrderID       uint                     `json:"order_id"`
	Amount        string                   `json:"amount"`
	Currency      string                   `json:"currency"`
	IsMock        bool                     `json:"is_mock,omitempty"`
}

// PaymentStatus summarises a transaction and the order it pays for
type PaymentStatus struct {
	TransactionID string                   `json:"transaction_id"`
	Status        domain.TransactionStatus `json:"status"`
	Amount        decimal.Decimal          `json:"amount"`
	Currency      string                   `json:"currency"`
	OrderID       uint                     `json:"order_id"`
	OrderStatus   domain.OrderStatus       `json:"order_status"`
	PaymentStatus domain.PaymentStatus     `json:"payment_status"`
	CreatedAt     time.Time                `json:"created_at"`
	CompletedAt   *time.Time               `json:"completed_at"`
}

// TransactionFilter narrows the admin transaction listing
type TransactionFilter struct {
	UserID uint
	Status string
	From   *time.Time
	To     *time.Time
	ListParams
}

// InitializePayment opens a payment attempt for the buyer's order. The amount must equal the
// order total. Outside production a gateway failure degrades to a mock transaction.
func (s *PaymentService) InitializePayment(ctx context.Context, buyerID, orderID uint, amount decimal.Decimal, currency string) (*InitResult, error) {
	db := s.db.WithContext(ctx)
	var order domain.Order
	if err := db.Where("id = ? AND user_id = ?", orderID, buyerID).First(&order).Error; err != nil {
		if isNotFound(err) {
			return nil, errs.NotFound(errs.CodeOrderNotFound, "order not found").With("orderId", orderID)
		}
		return nil, errs.Persistence("failed to load order", err)
	}
	if !amount.Equal(order.Total) {
		return nil, errs.Validation(errs.CodeAmountMismatch, "amount does not match the order total").
			With("expected", order.Total.String())
	}
	if order.PaymentStatus == domain.PaymentPaid || order.PaymentStatus == domain.PaymentRefunded {
		return nil, errs.Conflict(errs.CodeAlreadyPaid, "order is already paid").With("paymentStatus", order.PaymentStatus)
	}
	if order.Status == domain.StatusCancelled {
		return nil, errs.Conflict(errs.CodeInvalidTransition, "order is cancelled")
	}
	if currency == "" {
		currency = s.currency
	}

	var buyer domain.User
	if err := db.First(&buyer, buyerID).Error; err != nil {
		return nil, dbErr(err, "failed to load buyer")
	}

	stamp := s.now().UnixNano()
	txID := fmt.Sprintf("%s_%d_%d", s.prefix, order.ID, stamp)
	res, gwErr := s.gateway.Initialize(ctx, gateway.InitRequest{
		TransactionID:   txID,
		Amount:          order.Total.IntPart(),
		Currency:        currency,
		Description:     fmt.Sprintf("Commande %s #%d", s.prefix, order.ID),
		ReturnURL:       s.frontendURL + "/order-success?transaction_id=" + url.QueryEscape(txID),
		NotifyURL:       s.backendURL + "/api/payments/webhook",
		CustomerName:    buyer.Name,
		CustomerEmail:   buyer.Email,
		CustomerPhone:   buyer.Phone,
		CustomerAddress: buyer.Address,
		CustomerCity:    "Bukavu",
		CustomerCountry: "CD",
		CustomerState:   "Sud-Kivu",
	})
	if gwErr == nil {
		tx := domain.Transaction{
			ID:            txID,
			OrderID:       order.ID,
			UserID:        buyerID,
			Amount:        order.Total,
			Currency:      currency,
			Status:        domain.TxPending,
			PaymentMethod: domain.TxMethodCinetPay,
			GatewayToken:  res.PaymentToken,
		}
		if err := db.Create(&tx).Error; err != nil {
			return nil, errs.Persistence("failed to save transaction", err)
		}
		logrus.WithFields(logrus.Fields{
			"transaction_id": txID,
			"order_id":       order.ID,
			"amount":         order.Total.String(),
		}).Info("Payment initialized")
		return &InitResult{TransactionID: txID, PaymentURL: res.PaymentURL, PaymentToken: res.PaymentToken}, nil
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"error":    gwErr.Error(),
	}).Error("Payment gateway initialization failed")
	if s.isProd {
		return nil, errs.Upstream("payment gateway unavailable", gwErr)
	}

	mockID := fmt.Sprintf("MOCK_%d_%d", order.ID, stamp)
	tx := domain.Transaction{
		ID:            mockID,
		OrderID:       order.ID,
		UserID:        buyerID,
		Amount:        order.Total,
		Currency:      currency,
		Status:        domain.TxPending,
		PaymentMethod: domain.TxMethodMock,
	}
	if err := db.Create(&tx).Error; err != nil {
		return nil, errs.Persistence("failed to save transaction", err)
	}
	return &InitResult{
		TransactionID: mockID,
		PaymentURL:    s.frontendURL + "/mock-payment?transaction_id=" + url.QueryEscape(mockID),
		IsMock:        true,
	}, nil
}

func (s *PaymentService) loadTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := s.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, errs.NotFound(errs.CodeTransactionNotFound, "transaction not found").With("transactionId", id)
		}
		return nil, errs.Persistence("failed to load transaction", err)
	}
	return &tx, nil
}

func resultOf(tx *domain.Transaction) *VerifyResult {
	return &VerifyResult{
		TransactionID: tx.ID,
		Status:        tx.Status,
		OrderID:       tx.OrderID,
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency,
		IsMock:        tx.IsMock(),
	}
}

// VerifyPayment reconciles a transaction with the gateway. Settled transactions are returned
// as they are, so repeated calls and duplicate webhooks have no further effect.
// A gateway refusal is not an error: the result carries the failed status. So does a payment
// that arrives for an order already paid or cancelled.
func (s *PaymentService) VerifyPayment(ctx context.Context, id string) (*VerifyResult, error) {
	tx, err := s.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status == domain.TxCompleted || tx.Status == domain.TxRefunded {
		return resultOf(tx), nil
	}

	var raw []byte
	if tx.IsMock() {
		if s.isProd {
			e := errs.Forbidden("mock payments are disabled in production")
			e.Code = errs.CodeMockDisabled
			return nil, e
		}
	} else {
		st, err := s.gateway.CheckStatus(ctx, tx.ID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"transaction_id": tx.ID, "error": err.Error()}).Error("Payment status check failed")
			return nil, errs.Upstream("payment gateway unavailable", err)
		}
		if !st.Accepted() {
			if err := s.markFailed(ctx, tx, st.Raw); err != nil {
				return nil, err
			}
			logrus.WithFields(logrus.Fields{"transaction_id": tx.ID, "code": st.Code}).Warn("Payment refused by gateway")
			return s.reload(ctx, tx.ID)
		}
		raw = st.Raw
	}

	confirmed, rejected, err := s.settle(ctx, tx, raw)
	if err != nil {
		return nil, err
	}
	if rejected != "" {
		logrus.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"order_id":       tx.OrderID,
			"amount":         tx.Amount.String(),
			"reason":         rejected,
		}).Warn("Payment rejected, refund it manually at the gateway")
		return s.reload(ctx, tx.ID)
	}
	logrus.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"order_id":       tx.OrderID,
		"mock":           tx.IsMock(),
	}).Info("Payment verified")
	if confirmed != nil {
		if msg, ok := notify.StatusMessage(confirmed.ID, domain.StatusConfirmed); ok {
			sendBestEffort(ctx, s.notifier, confirmed.ID, buyerPhone(ctx, s.db, confirmed), msg)
		}
	}
	return s.reload(ctx, tx.ID)
}

func (s *PaymentService) reload(ctx context.Context, id string) (*VerifyResult, error) {
	tx, err := s.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return resultOf(tx), nil
}

func (s *PaymentService) markFailed(ctx context.Context, tx *domain.Transaction, raw []byte) error {
	err := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", tx.ID, string(domain.TxPending)).
		Updates(map[string]any{"status": string(domain.TxFailed), "gateway_response": string(raw)}).Error
	return dbErr(err, "failed to update transaction")
}

// Reasons recorded on a transaction that was paid at the gateway but could not be applied to its order
const (
	RejectDuplicatePayment = "duplicate_payment"
	RejectOrderCancelled   = "order_cancelled"
)

// errNothingToSettle rolls back a settlement that another call already applied
var errNothingToSettle = errors.New("transaction already settled")

// settle completes the transaction and cascades to the order in one database transaction.
// The order is claimed first so at most one transaction is ever completed for it. A payment
// for an order that is already paid or cancelled is marked failed with the rejection reason
// and left for a manual refund at the gateway.
// It returns the order when this call moved it from pending to confirmed, and the rejection reason if any.
func (s *PaymentService) settle(ctx context.Context, t *domain.Transaction, raw []byte) (*domain.Order, string, error) {
	now := s.now()
	var confirmed *domain.Order
	var rejected string
	open := []string{string(domain.TxPending), string(domain.TxFailed)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND payment_status NOT IN ? AND status <> ?", t.OrderID,
				[]string{string(domain.PaymentPaid), string(domain.PaymentRefunded)}, string(domain.StatusCancelled)).
			Update("payment_status", string(domain.PaymentPaid))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var order domain.Order
			if err := tx.Select("id", "status").First(&order, t.OrderID).Error; err != nil {
				return err
			}
			reason := RejectDuplicatePayment
			if order.Status == domain.StatusCancelled {
				reason = RejectOrderCancelled
			}
			blob, err := json.Marshal(map[string]string{"rejected": reason, "gateway_response": string(raw)})
			if err != nil {
				return err
			}
			res = tx.Model(&domain.Transaction{}).
				Where("id = ? AND status IN ?", t.ID, open).
				Updates(map[string]any{"status": string(domain.TxFailed), "gateway_response": string(blob)})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errNothingToSettle
			}
			rejected = reason
			return nil
		}

		updates := map[string]any{"status": string(domain.TxCompleted), "completed_at": now}
		if raw != nil {
			updates["gateway_response"] = string(raw)
		}
		res = tx.Model(&domain.Transaction{}).Where("id = ? AND status IN ?", t.ID, open).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNothingToSettle
		}

		var order domain.Order
		if err := tx.First(&order, t.OrderID).Error; err != nil {
			return err
		}
		if order.Status != domain.StatusPending {
			return nil
		}
		res = tx.Model(&domain.Order{}).
			Where("id = ? AND status = ? AND version = ?", order.ID, string(domain.StatusPending), order.Version).
			Updates(map[string]any{"status": string(domain.StatusConfirmed), "version": gorm.Expr("version + 1")})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(&domain.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: domain.StatusPending,
			Status:     domain.StatusConfirmed,
			Note:       "payment " + t.ID,
		}).Error; err != nil {
			return err
		}
		confirmed = &order
		return nil
	})
	if errors.Is(err, errNothingToSettle) {
		return nil, "", nil
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"transaction_id": t.ID, "error": err.Error()}).Error("Payment settlement failed")
		return nil, "", dbErr(err, "failed to settle payment")
	}
	return confirmed, rejected, nil
}

// GetPaymentStatus returns the transaction summary to its buyer or an admin
func (s *PaymentService) GetPaymentStatus(ctx context.Context, id string, actor Actor) (*PaymentStatus, error) {
	tx, err := s.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && tx.UserID != actor.ID {
		return nil, errs.NotFound(errs.CodeTransactionNotFound, "transaction not found").With("transactionId", id)
	}
	var order domain.Order
	if err := s.db.WithContext(ctx).Select("id", "status", "payment_status").First(&order, tx.OrderID).Error; err != nil {
		return nil, dbErr(err, "failed to load order")
	}
	return &PaymentStatus{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		OrderID:       tx.OrderID,
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     tx.CreatedAt,
		CompletedAt:   tx.CompletedAt,
	}, nil
}

// ProcessRefund books a refund for a completed transaction and cancels its order.
// No funds are moved at the gateway.
func (s *PaymentService) ProcessRefund(ctx context.Context, id, reason string) (*domain.Transaction, error) {
	notEligible := errs.NotFound(errs.CodeNotEligible, "transaction not found or not eligible for refund").With("transactionId", id)
	now := s.now()
	var orderID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t domain.Transaction
		if err := tx.Where("id = ? AND status = ?", id, string(domain.TxCompleted)).First(&t).Error; err != nil {
			if isNotFound(err) {
				return notEligible
			}
			return err
		}
		res := tx.Model(&domain.Transaction{}).
			Where("id = ? AND status = ?", id, string(domain.TxCompleted)).
			Updates(map[string]any{"status": string(domain.TxRefunded), "refund_reason": reason, "refunded_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notEligible
		}
		orderID = t.OrderID

		var order domain.Order
		if err := tx.First(&order, t.OrderID).Error; err != nil {
			return err
		}
		updates := map[string]any{
			"status":         string(domain.StatusCancelled),
			"payment_status": string(domain.PaymentRefunded),
			"version":        gorm.Expr("version + 1"),
		}
		if order.CancelledAt == nil {
			updates["cancelled_at"] = now
		}
		if err := tx.Model(&domain.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return err
		}
		if order.Status == domain.StatusCancelled {
			return nil
		}
		return tx.Create(&domain.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: order.Status,
			Status:     domain.StatusCancelled,
			Note:       strings.TrimSpace("refund " + reason),
		}).Error
	})
	if err != nil {
		return nil, dbErr(err, "failed to process refund")
	}
	logrus.WithFields(logrus.Fields{
		"transaction_id": id,
		"order_id":       orderID,
		"reason":         reason,
	}).Info("Refund processed")

	t, err := s.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions pages through transactions, newest first
func (s *PaymentService) ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int64, error) {
	limit, offset := f.Normalize()
	q := s.db.WithContext(ctx).Model(&domain.Transaction{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errs.Persistence("failed to count transactions", err)
	}
	var txs []domain.Transaction
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&txs).Error; err != nil {
		return nil, 0, errs.Persistence("failed to list transactions", err)
	}
	return txs, total, nil
}
