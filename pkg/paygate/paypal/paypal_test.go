package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"

	"mall/app/models/order"
	"mall/app/models/payment"
	"mall/app/services/reconcile"
	"mall/config"
	"mall/pkg/database"
	"mall/pkg/database/migrations"
)

// fakeChannel 模拟渠道侧 API，按路径分发并统计调用次数
type fakeChannel struct {
	server *httptest.Server
	mux    *http.ServeMux

	tokenCalls   int64
	captureCalls int64
}

func newFakeChannel(t *testing.T) *fakeChannel {
	t.Helper()

	f := &fakeChannel{mux: http.NewServeMux()}
	f.mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})

	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

// setupService 连接独立的内存数据库并构建指向假渠道的网关服务
func setupService(t *testing.T, channel *fakeChannel) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database.Connect(sqlite.Open(dsn), gormlogger.Discard)
	require.NoError(t, database.AutoMigrate(migrations.RegisterTables()))

	svc, err := NewService(config.PayPalConfig{
		BaseURL:  channel.server.URL,
		ClientID: "client-id",
		Secret:   "client-secret",
		Timeout:  5,
	}, reconcile.NewEngine())
	require.NoError(t, err)
	return svc
}

// seedOrder 造一笔待支付订单和对应的 pending 支付
func seedOrder(t *testing.T, orderNo string, amount int64) *payment.Payment {
	t.Helper()

	ord := &order.Order{
		OrderNo: orderNo,
		UserID:  "user-1",
		Status:  string(order.StatusPending),
		Items: []order.OrderItem{
			{OrderNo: orderNo, ProductID: "sku-1", Quantity: 1, UnitPrice: amount},
		},
	}
	require.NoError(t, database.DB.Create(ord).Error)

	p := &payment.Payment{
		PaymentNo: "P" + orderNo,
		OrderNo:   orderNo,
		UserID:    "user-1",
		Method:    string(payment.MethodPayPal),
		Amount:    amount,
		Currency:  payment.CurrencyVND,
		Status:    string(payment.StatusPending),
	}
	require.NoError(t, database.DB.Create(p).Error)
	return p
}

func TestCreateOrder(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, IntentCapture, body["intent"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "5O190127TN364715T",
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://channel.example.com/self", "rel": "self"},
				{"href": "https://channel.example.com/approve?token=5O190127TN364715T", "rel": "approve"},
			},
		})
	})
	svc := setupService(t, channel)
	p := seedOrder(t, "O4001", 100000)

	approveURL, err := svc.CreateOrder(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "https://channel.example.com/approve?token=5O190127TN364715T", approveURL)

	// 渠道订单号已挂到支付单上，供捕获时对应
	var stored payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).First(&stored).Error)
	assert.Equal(t, "5O190127TN364715T", stored.ProviderOrderID)
	assert.Equal(t, string(payment.StatusPending), stored.Status)
}

func TestCreateOrderChannelError(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	svc := setupService(t, channel)
	p := seedOrder(t, "O4002", 100000)

	_, err := svc.CreateOrder(context.Background(), p)
	require.Error(t, err)

	// 下单失败不改动支付状态，调用方可以直接重试
	var stored payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).First(&stored).Error)
	assert.Equal(t, string(payment.StatusPending), stored.Status)
	assert.Empty(t, stored.ProviderOrderID)
}

func TestCreateOrderMissingApproveLink(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "5O190127TN364715T",
			"status": "CREATED",
			"links":  []map[string]string{{"href": "https://channel.example.com/self", "rel": "self"}},
		})
	})
	svc := setupService(t, channel)
	p := seedOrder(t, "O4003", 100000)

	_, err := svc.CreateOrder(context.Background(), p)
	assert.Error(t, err)
}

func TestCaptureOrderSuccess(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/checkout/orders/5O190127TN364715T/capture", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&channel.captureCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "5O190127TN364715T",
			"status": StatusCompleted,
			"purchase_units": []map[string]interface{}{
				{
					"payments": map[string]interface{}{
						"captures": []map[string]string{
							{"id": "3C679366HH908993F", "status": StatusCompleted},
						},
					},
				},
			},
		})
	})
	svc := setupService(t, channel)
	p := seedOrder(t, "O5001", 100000)

	result, err := svc.CaptureOrder(context.Background(), "5O190127TN364715T", p.PaymentNo)
	require.NoError(t, err)

	assert.Equal(t, string(payment.StatusCompleted), result.Status)
	assert.Equal(t, "3C679366HH908993F", result.TransactionID)
	assert.False(t, result.Duplicate)

	// 支付完成并记录渠道捕获号，订单推进到履约入口状态
	var stored payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).First(&stored).Error)
	assert.Equal(t, string(payment.StatusCompleted), stored.Status)
	assert.Equal(t, "3C679366HH908993F", stored.TransactionID)

	var ord order.Order
	require.NoError(t, database.DB.Where("order_no = ?", "O5001").First(&ord).Error)
	assert.Equal(t, string(order.StatusPicking), ord.Status)
}

func TestCaptureOrderFailure(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/checkout/orders/5O190127TN364715T/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	svc := setupService(t, channel)
	p := seedOrder(t, "O5002", 100000)

	result, err := svc.CaptureOrder(context.Background(), "5O190127TN364715T", p.PaymentNo)
	require.NoError(t, err)
	assert.Equal(t, string(payment.StatusFailed), result.Status)

	// 捕获失败：支付置失败，订单保持待支付以便重新结账
	var stored payment.Payment
	require.NoError(t, database.DB.Where("payment_no = ?", p.PaymentNo).First(&stored).Error)
	assert.Equal(t, string(payment.StatusFailed), stored.Status)

	var ord order.Order
	require.NoError(t, database.DB.Where("order_no = ?", "O5002").First(&ord).Error)
	assert.Equal(t, string(order.StatusPending), ord.Status)
}

func TestCaptureOrderShortCircuitsWhenCompleted(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/checkout/orders/5O190127TN364715T/capture", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&channel.captureCalls, 1)
		w.WriteHeader(http.StatusCreated)
	})
	svc := setupService(t, channel)
	p := seedOrder(t, "O5003", 100000)

	// 支付已完成：不再调用渠道，直接返回库内结果
	require.NoError(t, database.DB.Model(&payment.Payment{}).
		Where("payment_no = ?", p.PaymentNo).
		Updates(map[string]interface{}{
			"status":         string(payment.StatusCompleted),
			"transaction_id": "3C679366HH908993F",
		}).Error)

	result, err := svc.CaptureOrder(context.Background(), "5O190127TN364715T", p.PaymentNo)
	require.NoError(t, err)

	assert.True(t, result.Duplicate)
	assert.Equal(t, "3C679366HH908993F", result.TransactionID)
	assert.Equal(t, int64(0), atomic.LoadInt64(&channel.captureCalls))
}

func TestCaptureOrderUnknownPayment(t *testing.T) {
	channel := newFakeChannel(t)
	svc := setupService(t, channel)

	_, err := svc.CaptureOrder(context.Background(), "5O190127TN364715T", "P-missing")
	assert.Error(t, err)
}

func TestRefundCapture(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/payments/captures/3C679366HH908993F/refund", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		amount := body["amount"].(map[string]interface{})
		assert.Equal(t, "VND", amount["currency_code"])
		assert.Equal(t, "100000", amount["value"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"id":     "1JU08902781691411",
			"status": StatusCompleted,
		})
	})
	svc := setupService(t, channel)

	refundID, err := svc.RefundCapture(context.Background(), "3C679366HH908993F", 100000, "VND")
	require.NoError(t, err)
	assert.Equal(t, "1JU08902781691411", refundID)
}

func TestRefundCaptureChannelError(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/payments/captures/3C679366HH908993F/refund", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	svc := setupService(t, channel)

	_, err := svc.RefundCapture(context.Background(), "3C679366HH908993F", 100000, "VND")
	assert.Error(t, err)
}

func TestAccessTokenCached(t *testing.T) {
	channel := newFakeChannel(t)
	channel.mux.HandleFunc("/v2/payments/captures/cap-1/refund", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "refund-1"})
	})
	svc := setupService(t, channel)

	for i := 0; i < 3; i++ {
		_, err := svc.RefundCapture(context.Background(), "cap-1", 100000, "VND")
		require.NoError(t, err)
	}

	// 令牌未过期时复用缓存，只取一次
	assert.Equal(t, int64(1), atomic.LoadInt64(&channel.tokenCalls))
}

func TestNewServiceRequiresCredentials(t *testing.T) {
	_, err := NewService(config.PayPalConfig{BaseURL: "https://example.com"}, nil)
	assert.Error(t, err)

	_, err = NewService(config.PayPalConfig{ClientID: "id", Secret: "secret"}, nil)
	assert.Error(t, err)
}
