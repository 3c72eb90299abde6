// Package types 定义支付网关层共用的类型与接口
package types

import (
	"context"

	"mall/app/models/order"
	"mall/app/models/payment"
)

// Provider 支付提供商类型
type Provider string

const (
	ProviderVNPay  Provider = "vnpay"  // 签名跳转回调网关
	ProviderPayPal Provider = "paypal" // 托管下单/捕获网关
)

// Event 网关产出的支付事件，对账引擎据此决定状态迁移
type Event string

const (
	EventReturnSuccess  Event = "return_success"  // 浏览器回跳，渠道确认成功
	EventNotifySuccess  Event = "notify_success"  // 异步通知，渠道确认成功
	EventCallbackFailed Event = "callback_failed" // 签名有效但渠道明确失败
	EventCaptureSuccess Event = "capture_success" // 托管网关捕获成功
	EventCaptureFailed  Event = "capture_failed"  // 托管网关捕获失败
	EventExpired        Event = "expired"         // 超时清扫
	EventRefunded       Event = "refunded"        // 退款成功
)

// ApplyResult 状态迁移的应用结果
type ApplyResult struct {
	Applied   bool // 本次事件是否真正改变了支付状态
	Duplicate bool // 支付已处于终态，事件按幂等空操作处理
}

// Request 支付创建请求参数
type Request struct {
	OrderNo  string `json:"order_no"`
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	Method   string `json:"method"`
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
	ClientIP string `json:"client_ip"`
	BankCode string `json:"bank_code"`
}

// Result 支付创建结果
type Result struct {
	PaymentNo string `json:"payment_no"`
	PayURL    string `json:"pay_url,omitempty"` // 跳转/批准地址，线下方式为空
}

// RedirectDecision 浏览器回跳路径的处理结论
// 描述应当呈现给用户的结果，业务失败不抛错
type RedirectDecision struct {
	Success bool   `json:"success"`
	Code    string `json:"code"` // 渠道响应码或本地错误码
	Message string `json:"message"`
	OrderNo string `json:"order_no,omitempty"`
}

// CaptureResult 托管网关捕获结果
type CaptureResult struct {
	PaymentNo     string `json:"payment_no"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Duplicate     bool   `json:"duplicate"` // 已捕获过，本次未调用渠道
}

// Reconciler 对账引擎接口，网关客户端据此查找与迁移支付/订单
// 具体实现见 app/services/reconcile
type Reconciler interface {
	// LookupByOrderNo 按交易参考号（订单号）查找支付与订单
	LookupByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, *order.Order, error)
	// LookupByPaymentNo 按支付单号查找支付
	LookupByPaymentNo(ctx context.Context, paymentNo string) (*payment.Payment, error)
	// AttachProviderOrder 记录托管网关返回的渠道订单号
	AttachProviderOrder(ctx context.Context, paymentNo, providerOrderID string) error
	// Apply 将网关事件原子地应用到支付与订单
	Apply(ctx context.Context, p *payment.Payment, event Event, transactionID string) (*ApplyResult, error)
}
