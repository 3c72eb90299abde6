package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"

	"mall/app/models/order"
	"mall/app/models/payment"
	"mall/pkg/database"
	"mall/pkg/database/migrations"
	"mall/pkg/paygate/types"
)

// setupEngine 连接独立的内存数据库并构建对账引擎
func setupEngine(t *testing.T) *Engine {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database.Connect(sqlite.Open(dsn), gormlogger.Discard)
	require.NoError(t, database.AutoMigrate(migrations.RegisterTables()))

	return NewEngine()
}

// seedOrder 造一笔待支付订单，单价 × 数量即为订单总额
func seedOrder(t *testing.T, orderNo string, status order.Status, unitPrice int64, quantity int) *order.Order {
	t.Helper()

	ord := &order.Order{
		OrderNo: orderNo,
		UserID:  "user-1",
		Status:  string(status),
		Items: []order.OrderItem{
			{OrderNo: orderNo, ProductID: "sku-1", Quantity: quantity, UnitPrice: unitPrice},
		},
	}
	require.NoError(t, database.DB.Create(ord).Error)
	return ord
}

// seedPayment 造一笔支付记录
func seedPayment(t *testing.T, orderNo string, status payment.Status, amount int64) *payment.Payment {
	t.Helper()

	p := &payment.Payment{
		PaymentNo: "P" + orderNo,
		OrderNo:   orderNo,
		UserID:    "user-1",
		Method:    string(payment.MethodVNPay),
		Amount:    amount,
		Currency:  payment.CurrencyVND,
		Status:    string(status),
	}
	require.NoError(t, database.DB.Create(p).Error)
	return p
}

func paymentStatus(t *testing.T, paymentNo string) string {
	t.Helper()
	var p payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", paymentNo).First(&p).Error)
	return p.Status
}

func orderStatus(t *testing.T, orderNo string) string {
	t.Helper()
	var o order.Order
	require.NoError(t, database.DB.Where("order_no = ?", orderNo).First(&o).Error)
	return o.Status
}

func TestPreparePaymentCreates(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O1001", order.StatusPending, 50000, 2)

	p, ord, err := engine.PreparePayment(context.Background(), &types.Request{
		OrderNo: "O1001",
		UserID:  "user-1",
		Method:  string(payment.MethodVNPay),
	})
	require.NoError(t, err)

	// 金额默认取订单总额
	assert.Equal(t, int64(100000), p.Amount)
	assert.Equal(t, payment.CurrencyVND, p.Currency)
	assert.Equal(t, string(payment.StatusPending), p.Status)
	assert.Equal(t, "O1001", ord.OrderNo)
	assert.NotEmpty(t, p.PaymentNo)
}

func TestPreparePaymentExplicitAmountMustMatchTotal(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O1002", order.StatusPending, 100000, 1)

	_, _, err := engine.PreparePayment(context.Background(), &types.Request{
		OrderNo: "O1002",
		UserID:  "user-1",
		Method:  string(payment.MethodVNPay),
		Amount:  99999,
	})
	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func TestPreparePaymentRejectsNonPendingOrder(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O1003", order.StatusCanceled, 100000, 1)

	_, _, err := engine.PreparePayment(context.Background(), &types.Request{
		OrderNo: "O1003",
		UserID:  "user-1",
		Method:  string(payment.MethodVNPay),
	})
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}

func TestPreparePaymentUnknownOrder(t *testing.T) {
	engine := setupEngine(t)

	_, _, err := engine.PreparePayment(context.Background(), &types.Request{
		OrderNo: "O-missing",
		UserID:  "user-1",
		Method:  string(payment.MethodVNPay),
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPreparePaymentReusesPendingRow(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O1004", order.StatusPending, 100000, 1)

	first, _, err := engine.PreparePayment(context.Background(), &types.Request{
		OrderNo: "O1004",
		UserID:  "user-1",
		Method:  string(payment.MethodVNPay),
	})
	require.NoError(t, err)

	// 换方式重试：复用仍在 pending 的支付行，不另起新行
	second, _, err := engine.PreparePayment(context.Background(), &types.Request{
		OrderNo: "O1004",
		UserID:  "user-1",
		Method:  string(payment.MethodPayPal),
	})
	require.NoError(t, err)

	assert.Equal(t, first.PaymentNo, second.PaymentNo)
	assert.Equal(t, string(payment.MethodPayPal), second.Method)

	var count int64
	require.NoError(t, database.DB.Model(&payment.Payment{}).
		Where("order_no = ?", "O1004").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPreparePaymentRevivesFailedRow(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O1005", order.StatusPending, 100000, 1)

	p, _, err := engine.PreparePayment(context.Background(), &types.Request{
		OrderNo: "O1005",
		UserID:  "user-1",
		Method:  string(payment.MethodPayPal),
	})
	require.NoError(t, err)

	// 捕获被拒：支付失败，订单保持待支付
	_, err = engine.Apply(context.Background(), p, types.EventCaptureFailed, "")
	require.NoError(t, err)
	require.Equal(t, string(payment.StatusFailed), paymentStatus(t, p.PaymentNo))

	// 重新结账复用原行，不为同一订单堆积支付记录
	revived, _, err := engine.PreparePayment(context.Background(), &types.Request{
		OrderNo: "O1005",
		UserID:  "user-1",
		Method:  string(payment.MethodVNPay),
	})
	require.NoError(t, err)

	assert.Equal(t, p.PaymentNo, revived.PaymentNo)
	assert.Equal(t, string(payment.StatusPending), revived.Status)
	assert.Equal(t, string(payment.MethodVNPay), revived.Method)
	assert.Empty(t, revived.ProviderOrderID)

	var count int64
	require.NoError(t, database.DB.Model(&payment.Payment{}).
		Where("order_no = ?", "O1005").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestApplyTransitions(t *testing.T) {
	tests := []struct {
		name              string
		event             types.Event
		wantApplied       bool
		wantPaymentStatus payment.Status
		wantOrderStatus   order.Status
	}{
		{
			name:              "回跳成功只确认支付",
			event:             types.EventReturnSuccess,
			wantApplied:       true,
			wantPaymentStatus: payment.StatusCompleted,
			wantOrderStatus:   order.StatusPending,
		},
		{
			name:              "异步通知成功只确认支付",
			event:             types.EventNotifySuccess,
			wantApplied:       true,
			wantPaymentStatus: payment.StatusCompleted,
			wantOrderStatus:   order.StatusPending,
		},
		{
			name:              "捕获成功推进订单到拣货",
			event:             types.EventCaptureSuccess,
			wantApplied:       true,
			wantPaymentStatus: payment.StatusCompleted,
			wantOrderStatus:   order.StatusPicking,
		},
		{
			name:              "回调失败连带取消订单",
			event:             types.EventCallbackFailed,
			wantApplied:       true,
			wantPaymentStatus: payment.StatusFailed,
			wantOrderStatus:   order.StatusCanceled,
		},
		{
			name:              "捕获失败订单保持待支付",
			event:             types.EventCaptureFailed,
			wantApplied:       true,
			wantPaymentStatus: payment.StatusFailed,
			wantOrderStatus:   order.StatusPending,
		},
		{
			name:              "超时清扫取消支付与订单",
			event:             types.EventExpired,
			wantApplied:       true,
			wantPaymentStatus: payment.StatusCanceled,
			wantOrderStatus:   order.StatusCanceled,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := setupEngine(t)
			orderNo := fmt.Sprintf("O20%02d", i)
			seedOrder(t, orderNo, order.StatusPending, 100000, 1)
			p := seedPayment(t, orderNo, payment.StatusPending, 100000)

			result, err := engine.Apply(context.Background(), p, tt.event, "txn-1")
			require.NoError(t, err)

			assert.Equal(t, tt.wantApplied, result.Applied)
			assert.Equal(t, string(tt.wantPaymentStatus), paymentStatus(t, p.PaymentNo))
			assert.Equal(t, string(tt.wantOrderStatus), orderStatus(t, orderNo))
		})
	}
}

func TestApplyRecordsTransactionAndPaidAt(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O2101", order.StatusPending, 100000, 1)
	p := seedPayment(t, "O2101", payment.StatusPending, 100000)

	_, err := engine.Apply(context.Background(), p, types.EventNotifySuccess, "14226112")
	require.NoError(t, err)

	var stored payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).First(&stored).Error)
	assert.Equal(t, "14226112", stored.TransactionID)
	assert.NotNil(t, stored.PaidAt)
}

func TestApplyTerminalIsDuplicate(t *testing.T) {
	terminalStatuses := []payment.Status{
		payment.StatusCompleted,
		payment.StatusFailed,
		payment.StatusCanceled,
		payment.StatusRefunded,
	}

	for i, status := range terminalStatuses {
		t.Run(string(status), func(t *testing.T) {
			engine := setupEngine(t)
			orderNo := fmt.Sprintf("O22%02d", i)
			seedOrder(t, orderNo, order.StatusPending, 100000, 1)
			p := seedPayment(t, orderNo, status, 100000)

			// 终态支付对后续事件按幂等空操作应答
			result, err := engine.Apply(context.Background(), p, types.EventNotifySuccess, "txn-late")
			require.NoError(t, err)

			assert.True(t, result.Duplicate)
			assert.False(t, result.Applied)
			assert.Equal(t, string(status), paymentStatus(t, p.PaymentNo))
		})
	}
}

func TestApplyRefundedFromCompleted(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O2301", order.StatusPicking, 100000, 1)
	p := seedPayment(t, "O2301", payment.StatusCompleted, 100000)

	result, err := engine.Apply(context.Background(), p, types.EventRefunded, "refund-1")
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, string(payment.StatusRefunded), paymentStatus(t, p.PaymentNo))
}

func TestApplyRefundedRequiresCompleted(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O2302", order.StatusPending, 100000, 1)
	p := seedPayment(t, "O2302", payment.StatusFailed, 100000)

	// 只有完成终态可以退款，其他终态按重复处理
	result, err := engine.Apply(context.Background(), p, types.EventRefunded, "refund-1")
	require.NoError(t, err)

	assert.False(t, result.Applied)
	assert.Equal(t, string(payment.StatusFailed), paymentStatus(t, p.PaymentNo))
}

func TestApplyDoesNotReviveCanceledOrder(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O2401", order.StatusCanceled, 100000, 1)
	p := seedPayment(t, "O2401", payment.StatusPending, 100000)

	// 订单已取消后又来了失败回调：支付照常置失败，订单保持已取消
	result, err := engine.Apply(context.Background(), p, types.EventCallbackFailed, "")
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, string(order.StatusCanceled), orderStatus(t, "O2401"))
}

func TestApplyCompetingCallbacksFirstWins(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O2501", order.StatusPending, 100000, 1)
	p := seedPayment(t, "O2501", payment.StatusPending, 100000)

	// 成功与失败回调先后到达：先到者生效，后到者按重复处理
	first, err := engine.Apply(context.Background(), p, types.EventNotifySuccess, "txn-1")
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := engine.Apply(context.Background(), p, types.EventCallbackFailed, "")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assert.Equal(t, string(payment.StatusCompleted), paymentStatus(t, p.PaymentNo))
	assert.Equal(t, string(order.StatusPending), orderStatus(t, "O2501"))
}

func TestApplyUnsupportedEvent(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O2601", order.StatusPending, 100000, 1)
	p := seedPayment(t, "O2601", payment.StatusPending, 100000)

	_, err := engine.Apply(context.Background(), p, types.Event("bogus"), "")
	assert.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestLookupByOrderNoReturnsLatestPayment(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O2701", order.StatusPending, 100000, 1)

	old := seedPayment(t, "O2701", payment.StatusFailed, 100000)
	latest := &payment.Payment{
		PaymentNo: "P-latest",
		OrderNo:   "O2701",
		UserID:    "user-1",
		Method:    string(payment.MethodVNPay),
		Amount:    100000,
		Currency:  payment.CurrencyVND,
		Status:    string(payment.StatusPending),
	}
	require.NoError(t, database.DB.Create(latest).Error)

	p, ord, err := engine.LookupByOrderNo(context.Background(), "O2701")
	require.NoError(t, err)

	assert.Equal(t, latest.PaymentNo, p.PaymentNo)
	assert.NotEqual(t, old.PaymentNo, p.PaymentNo)
	assert.Equal(t, "O2701", ord.OrderNo)
}

func TestApplyTerminalDuplicateSecondNotify(t *testing.T) {
	engine := setupEngine(t)
	seedOrder(t, "O2801", order.StatusPending, 100000, 1)
	p := seedPayment(t, "O2801", payment.StatusPending, 100000)

	first, err := engine.Apply(context.Background(), p, types.EventNotifySuccess, "txn-1")
	require.NoError(t, err)
	assert.True(t, first.Applied)

	// 支付结构体仍是旧快照（pending），存储层的条件更新保证第二次不生效
	second, err := engine.Apply(context.Background(), p, types.EventNotifySuccess, "txn-2")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	// 第一次记录的渠道交易号不被覆盖
	var stored payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).First(&stored).Error)
	assert.Equal(t, "txn-1", stored.TransactionID)
}
