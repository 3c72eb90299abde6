package refundproc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"

	"mall/app/models/payment"
	"mall/app/models/refund"
	"mall/app/services/reconcile"
	"mall/pkg/database"
	"mall/pkg/database/migrations"
)

// fakeGateway 可编程的渠道退款桩
type fakeGateway struct {
	refundID string
	err      error
	calls    int
}

func (f *fakeGateway) RefundCapture(ctx context.Context, captureID string, amount int64, currency string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.refundID, nil
}

// setupProcessor 连接独立的内存数据库并构建退款处理器
func setupProcessor(t *testing.T, gateway Gateway) *Processor {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database.Connect(sqlite.Open(dsn), gormlogger.Discard)
	require.NoError(t, database.AutoMigrate(migrations.RegisterTables()))

	return NewProcessor(gateway, reconcile.NewEngine())
}

// seedCompletedPayment 造一笔已完成、带渠道捕获号的支付
func seedCompletedPayment(t *testing.T, paymentNo string) *payment.Payment {
	t.Helper()

	now := time.Now()
	p := &payment.Payment{
		PaymentNo:     paymentNo,
		OrderNo:       "O" + paymentNo,
		UserID:        "user-1",
		Method:        string(payment.MethodPayPal),
		Amount:        100000,
		Currency:      payment.CurrencyVND,
		Status:        string(payment.StatusCompleted),
		TransactionID: "3C679366HH908993F",
		PaidAt:        &now,
	}
	require.NoError(t, database.DB.Create(p).Error)
	return p
}

func TestRefundSuccess(t *testing.T) {
	gateway := &fakeGateway{refundID: "1JU08902781691411"}
	proc := setupProcessor(t, gateway)
	p := seedCompletedPayment(t, "P7001")

	record, err := proc.Refund(context.Background(), p.PaymentNo, "customer request")
	require.NoError(t, err)

	assert.Equal(t, string(refund.StatusSuccess), record.Status)
	assert.Equal(t, "1JU08902781691411", record.GatewayRefundID)
	assert.Equal(t, "customer request", record.Reason)
	assert.Equal(t, p.Amount, record.Amount)
	assert.Equal(t, 1, gateway.calls)

	// 支付迁移到退款终态
	var stored payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).First(&stored).Error)
	assert.Equal(t, string(payment.StatusRefunded), stored.Status)
}

func TestRefundGatewayFailureKeepsPaymentIntact(t *testing.T) {
	gateway := &fakeGateway{err: errors.New("channel unavailable")}
	proc := setupProcessor(t, gateway)
	p := seedCompletedPayment(t, "P7002")

	record, err := proc.Refund(context.Background(), p.PaymentNo, "")
	require.Error(t, err)
	require.NotNil(t, record)

	// 失败的尝试保留原因作为审计轨迹
	assert.Equal(t, string(refund.StatusFailed), record.Status)
	assert.Contains(t, record.Reason, "channel unavailable")
	assert.Empty(t, record.GatewayRefundID)

	// 支付保持原终态，后续可以重试
	var stored payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).First(&stored).Error)
	assert.Equal(t, string(payment.StatusCompleted), stored.Status)
}

func TestRefundRetryAppendsRows(t *testing.T) {
	gateway := &fakeGateway{err: errors.New("channel unavailable")}
	proc := setupProcessor(t, gateway)
	p := seedCompletedPayment(t, "P7003")

	_, err := proc.Refund(context.Background(), p.PaymentNo, "")
	require.Error(t, err)

	// 渠道恢复后重试，成功行与失败行并存
	gateway.err = nil
	gateway.refundID = "1JU08902781691411"
	record, err := proc.Refund(context.Background(), p.PaymentNo, "")
	require.NoError(t, err)
	assert.Equal(t, string(refund.StatusSuccess), record.Status)

	var rows []refund.Refund
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).Order("id ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, string(refund.StatusFailed), rows[0].Status)
	assert.Equal(t, string(refund.StatusSuccess), rows[1].Status)
}

func TestRefundDefaultReason(t *testing.T) {
	gateway := &fakeGateway{refundID: "refund-1"}
	proc := setupProcessor(t, gateway)
	p := seedCompletedPayment(t, "P7004")

	record, err := proc.Refund(context.Background(), p.PaymentNo, "")
	require.NoError(t, err)
	assert.Equal(t, refund.DefaultReason, record.Reason)
}

func TestRefundRejectsNonCompletedPayment(t *testing.T) {
	gateway := &fakeGateway{}
	proc := setupProcessor(t, gateway)

	p := &payment.Payment{
		PaymentNo: "P7005",
		OrderNo:   "OP7005",
		UserID:    "user-1",
		Method:    string(payment.MethodPayPal),
		Amount:    100000,
		Currency:  payment.CurrencyVND,
		Status:    string(payment.StatusPending),
	}
	require.NoError(t, database.DB.Create(p).Error)

	_, err := proc.Refund(context.Background(), p.PaymentNo, "")
	assert.ErrorIs(t, err, ErrPaymentNotRefundable)
	assert.Equal(t, 0, gateway.calls)
}

func TestRefundRequiresCaptureRef(t *testing.T) {
	gateway := &fakeGateway{}
	proc := setupProcessor(t, gateway)

	p := &payment.Payment{
		PaymentNo: "P7006",
		OrderNo:   "OP7006",
		UserID:    "user-1",
		Method:    string(payment.MethodPayPal),
		Amount:    100000,
		Currency:  payment.CurrencyVND,
		Status:    string(payment.StatusCompleted),
	}
	require.NoError(t, database.DB.Create(p).Error)

	_, err := proc.Refund(context.Background(), p.PaymentNo, "")
	assert.ErrorIs(t, err, ErrMissingCaptureRef)
}

func TestRefundUnknownPayment(t *testing.T) {
	proc := setupProcessor(t, &fakeGateway{})

	_, err := proc.Refund(context.Background(), "P-missing", "")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestRefundAlreadyRefunded(t *testing.T) {
	gateway := &fakeGateway{refundID: "refund-1"}
	proc := setupProcessor(t, gateway)
	p := seedCompletedPayment(t, "P7007")

	_, err := proc.Refund(context.Background(), p.PaymentNo, "")
	require.NoError(t, err)

	// 已退款的支付不再是可退款状态
	_, err = proc.Refund(context.Background(), p.PaymentNo, "")
	assert.ErrorIs(t, err, ErrPaymentNotRefundable)
	assert.Equal(t, 1, gateway.calls)
}
