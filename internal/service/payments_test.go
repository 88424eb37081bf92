package service

import (
	"context"
	"strings"
	"testing"

	"kolia/internal/domain"
	"kolia/internal/errs"
	"kolia/internal/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) initMock(t *testing.T, order *domain.Order) string {
	t.Helper()
	f.gateway.initErr = errGatewayDown
	res, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")
	require.NoError(t, err)
	require.True(t, res.IsMock)
	return res.TransactionID
}

func TestInitializePayment_Gateway(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)

	res, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, decimal.NewFromInt(82940), "CDF")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.TransactionID, "KOLIA_"+itoa(order.ID)+"_"), res.TransactionID)
	assert.False(t, res.IsMock)
	assert.Equal(t, "tok", res.PaymentToken)
	assert.Equal(t, int64(82940), f.gateway.initReq.Amount)
	assert.Equal(t, "http://localhost:8080/api/payments/webhook", f.gateway.initReq.NotifyURL)
	assert.Contains(t, f.gateway.initReq.ReturnURL, "/order-success?transaction_id=")
	assert.Equal(t, f.buyer.Email, f.gateway.initReq.CustomerEmail)
	assert.Equal(t, "Bukavu", f.gateway.initReq.CustomerCity)

	var tx domain.Transaction
	require.NoError(t, f.db.First(&tx, "id = ?", res.TransactionID).Error)
	assert.Equal(t, domain.TxPending, tx.Status)
	assert.Equal(t, domain.TxMethodCinetPay, tx.PaymentMethod)
	assert.Equal(t, "tok", tx.GatewayToken)
	assert.Equal(t, f.buyer.ID, tx.UserID)
}

func TestInitializePayment_AllowsRetries(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)

	a, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")
	require.NoError(t, err)
	b, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")
	require.NoError(t, err)

	assert.NotEqual(t, a.TransactionID, b.TransactionID)
	assert.Equal(t, int64(2), f.count(t, &domain.Transaction{}))
}

func TestInitializePayment_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)

	_, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, decimal.NewFromInt(100), "CDF")

	assert.Equal(t, errs.CodeAmountMismatch, errs.CodeOf(err))
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Zero(t, f.count(t, &domain.Transaction{}))
}

func TestInitializePayment_OtherBuyersOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)

	_, err := f.payments.InitializePayment(context.Background(), f.owner.ID, order.ID, order.Total, "CDF")

	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, errs.CodeOrderNotFound, errs.CodeOf(err))
}

func TestInitializePayment_FallsBackToMockOutsideProduction(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)

	id := f.initMock(t, order)

	assert.True(t, strings.HasPrefix(id, "MOCK_"+itoa(order.ID)+"_"))
	var tx domain.Transaction
	require.NoError(t, f.db.First(&tx, "id = ?", id).Error)
	assert.Equal(t, domain.TxMethodMock, tx.PaymentMethod)
	assert.Equal(t, domain.TxPending, tx.Status)
}

func TestInitializePayment_GatewayErrorInProduction(t *testing.T) {
	f := newFixture(t)
	f.payments.isProd = true
	f.gateway.initErr = errGatewayDown
	order := f.placeOrder(t)

	_, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")

	assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
	assert.ErrorIs(t, err, errGatewayDown)
	assert.Zero(t, f.count(t, &domain.Transaction{}))
}

func TestVerifyPayment_MockSettlesOrder(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	id := f.initMock(t, order)

	res, err := f.payments.VerifyPayment(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, domain.TxCompleted, res.Status)
	assert.True(t, res.IsMock)
	stored := f.reload(t, order.ID)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)

	var tx domain.Transaction
	require.NoError(t, f.db.First(&tx, "id = ?", id).Error)
	assert.NotNil(t, tx.CompletedAt)
}

func TestVerifyPayment_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	f.gateway.status = &gateway.StatusResponse{Code: gateway.CodeAccepted, Raw: []byte(`{"code":"00"}`)}
	init, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")
	require.NoError(t, err)

	first, err := f.payments.VerifyPayment(context.Background(), init.TransactionID)
	require.NoError(t, err)
	afterFirst := f.reload(t, order.ID)
	second, err := f.payments.VerifyPayment(context.Background(), init.TransactionID)
	require.NoError(t, err)
	afterSecond := f.reload(t, order.ID)

	assert.Equal(t, domain.TxCompleted, first.Status)
	assert.Equal(t, domain.TxCompleted, second.Status)
	assert.Equal(t, 1, f.gateway.checks)
	assert.Equal(t, domain.StatusConfirmed, afterSecond.Status)
	assert.Equal(t, domain.PaymentPaid, afterSecond.PaymentStatus)
	assert.Equal(t, afterFirst.Version, afterSecond.Version)

	var confirmations int64
	f.db.Model(&domain.OrderStatusHistory{}).Where("order_id = ? AND status = ?", order.ID, domain.StatusConfirmed).Count(&confirmations)
	assert.Equal(t, int64(1), confirmations)
}

func TestVerifyPayment_DoesNotRewindProgressedOrder(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	id := f.initMock(t, order)
	_, err := f.orders.UpdateStatus(context.Background(), order.ID, actor(f.owner), domain.StatusPreparing, nil)
	require.NoError(t, err)

	_, err = f.payments.VerifyPayment(context.Background(), id)
	require.NoError(t, err)

	stored := f.reload(t, order.ID)
	assert.Equal(t, domain.StatusPreparing, stored.Status)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
}

func TestVerifyPayment_SecondPaymentForPaidOrderIsRejected(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	first := f.initMock(t, order)
	second := f.initMock(t, order)

	res, err := f.payments.VerifyPayment(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, domain.TxCompleted, res.Status)
	sent := len(f.notifier.messages())

	res, err = f.payments.VerifyPayment(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, domain.TxFailed, res.Status)

	var completed int64
	f.db.Model(&domain.Transaction{}).Where("order_id = ? AND status = ?", order.ID, domain.TxCompleted).Count(&completed)
	assert.Equal(t, int64(1), completed)

	var dup domain.Transaction
	require.NoError(t, f.db.First(&dup, "id = ?", second).Error)
	assert.Nil(t, dup.CompletedAt)
	assert.Contains(t, dup.GatewayResponse, RejectDuplicatePayment)
	assert.Len(t, f.notifier.messages(), sent)

	// verifying the rejected attempt again still leaves a single completed payment
	res, err = f.payments.VerifyPayment(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, domain.TxFailed, res.Status)
	f.db.Model(&domain.Transaction{}).Where("order_id = ? AND status = ?", order.ID, domain.TxCompleted).Count(&completed)
	assert.Equal(t, int64(1), completed)
}

func TestVerifyPayment_CancelledOrderStaysUnpaid(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	id := f.initMock(t, order)
	_, err := f.orders.CancelOrder(context.Background(), order.ID, actor(f.buyer))
	require.NoError(t, err)

	res, err := f.payments.VerifyPayment(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, domain.TxFailed, res.Status)
	stored := f.reload(t, order.ID)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.NotEqual(t, domain.PaymentPaid, stored.PaymentStatus)

	var tx domain.Transaction
	require.NoError(t, f.db.First(&tx, "id = ?", id).Error)
	assert.Contains(t, tx.GatewayResponse, RejectOrderCancelled)
}

func TestVerifyPayment_GatewayRefusal(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	f.gateway.status = &gateway.StatusResponse{Code: "627", Raw: []byte(`{"code":"627","message":"TRANSACTION_CANCEL"}`)}
	init, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")
	require.NoError(t, err)

	res, err := f.payments.VerifyPayment(context.Background(), init.TransactionID)
	require.NoError(t, err)

	assert.Equal(t, domain.TxFailed, res.Status)
	var tx domain.Transaction
	require.NoError(t, f.db.First(&tx, "id = ?", init.TransactionID).Error)
	assert.Contains(t, tx.GatewayResponse, "TRANSACTION_CANCEL")
	stored := f.reload(t, order.ID)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, domain.PaymentPending, stored.PaymentStatus)
}

func TestVerifyPayment_GatewayDown(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	init, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")
	require.NoError(t, err)
	f.gateway.statusErr = errGatewayDown

	_, err = f.payments.VerifyPayment(context.Background(), init.TransactionID)

	assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
}

func TestVerifyPayment_MockDisabledInProduction(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	id := f.initMock(t, order)
	f.payments.isProd = true

	_, err := f.payments.VerifyPayment(context.Background(), id)

	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
	assert.Equal(t, errs.CodeMockDisabled, errs.CodeOf(err))
	assert.Equal(t, domain.PaymentPending, f.reload(t, order.ID).PaymentStatus)
}

func TestVerifyPayment_UnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.payments.VerifyPayment(context.Background(), "KOLIA_1_1")
	assert.Equal(t, errs.CodeTransactionNotFound, errs.CodeOf(err))
}

func TestProcessRefund(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	id := f.initMock(t, order)
	_, err := f.payments.VerifyPayment(context.Background(), id)
	require.NoError(t, err)

	tx, err := f.payments.ProcessRefund(context.Background(), id, "client absent")
	require.NoError(t, err)

	assert.Equal(t, domain.TxRefunded, tx.Status)
	assert.Equal(t, "client absent", tx.RefundReason)
	assert.NotNil(t, tx.RefundedAt)
	stored := f.reload(t, order.ID)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Equal(t, domain.PaymentRefunded, stored.PaymentStatus)
	assert.NotNil(t, stored.CancelledAt)

	_, err = f.payments.ProcessRefund(context.Background(), id, "again")
	assert.Equal(t, errs.CodeNotEligible, errs.CodeOf(err))
}

func TestProcessRefund_OnlyCompleted(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	pending := f.initMock(t, order)

	_, err := f.payments.ProcessRefund(context.Background(), pending, "")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, errs.CodeNotEligible, errs.CodeOf(err))

	f.gateway.initErr = nil
	f.gateway.status = &gateway.StatusResponse{Code: "600"}
	init, err := f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")
	require.NoError(t, err)
	_, err = f.payments.VerifyPayment(context.Background(), init.TransactionID)
	require.NoError(t, err)

	_, err = f.payments.ProcessRefund(context.Background(), init.TransactionID, "")
	assert.Equal(t, errs.CodeNotEligible, errs.CodeOf(err))
	assert.Equal(t, domain.PaymentPending, f.reload(t, order.ID).PaymentStatus)
}

func TestGetPaymentStatus(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	id := f.initMock(t, order)

	st, err := f.payments.GetPaymentStatus(context.Background(), id, actor(f.buyer))
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, st.Status)
	assert.Equal(t, order.ID, st.OrderID)
	assert.Equal(t, domain.StatusPending, st.OrderStatus)

	_, err = f.payments.GetPaymentStatus(context.Background(), id, actor(f.owner))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	_, err = f.payments.GetPaymentStatus(context.Background(), id, actor(f.admin))
	assert.NoError(t, err)
}

func TestInitializePayment_AlreadyPaid(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	id := f.initMock(t, order)
	_, err := f.payments.VerifyPayment(context.Background(), id)
	require.NoError(t, err)

	_, err = f.payments.InitializePayment(context.Background(), f.buyer.ID, order.ID, order.Total, "")
	assert.Equal(t, errs.CodeAlreadyPaid, errs.CodeOf(err))
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	id := f.initMock(t, order)
	f.initMock(t, order)
	_, err := f.payments.VerifyPayment(context.Background(), id)
	require.NoError(t, err)

	all, total, err := f.payments.ListTransactions(context.Background(), TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	done, total, err := f.payments.ListTransactions(context.Background(), TransactionFilter{Status: "completed", UserID: f.buyer.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, id, done[0].ID)
}
