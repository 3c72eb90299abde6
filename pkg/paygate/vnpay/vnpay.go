// Package vnpay 实现签名跳转回调网关（VNPay 协议）的客户端
//
// 该协议的回调分两条路径：
//   - 浏览器回跳（return）：用户侧展示用，仅供参考，不得单独作为放货依据
//   - 异步通知（IPN/notify）：服务器间回调，是支付结果的最终依据，必须幂等
package vnpay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"mall/app/models/order"
	"mall/app/models/payment"
	"mall/config"
	"mall/pkg/logger"
	"mall/pkg/paygate/types"
)

// 协议常量
const (
	Version = "2.1.0"
	Command = "pay"

	// MinorUnitFactor 渠道以最小货币单位表示金额（无小数点），即金额 ×100
	MinorUnitFactor = 100

	// CodeSuccess 渠道响应码：支付成功
	CodeSuccess = "00"
	// CodeUserCancel 渠道响应码：用户取消
	CodeUserCancel = "24"

	DefaultLocale    = "vn"
	DefaultOrderType = "other"
)

// NotifyAck 异步通知的固定应答格式
type NotifyAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// 异步通知的应答码
var (
	AckSuccess          = NotifyAck{RspCode: "00", Message: "Confirm Success"}
	AckOrderNotFound    = NotifyAck{RspCode: "01", Message: "Order not found"}
	AckAlreadyConfirmed = NotifyAck{RspCode: "02", Message: "Order already confirmed"}
	AckInvalidAmount    = NotifyAck{RspCode: "04", Message: "Invalid amount"}
	AckInvalidSignature = NotifyAck{RspCode: "97", Message: "Invalid signature"}
	AckUnknownError     = NotifyAck{RspCode: "99", Message: "Unknown error"}
)

// Service 签名跳转网关服务
type Service struct {
	cfg        config.VNPayConfig
	secret     []byte
	reconciler types.Reconciler
}

// NewService 创建网关服务
// 商户凭证缺失属于配置错误，启动时立即失败，不进入任何处理流程
func NewService(cfg config.VNPayConfig, reconciler types.Reconciler) (*Service, error) {
	if cfg.TmnCode == "" || cfg.HashSecret == "" {
		return nil, fmt.Errorf("vnpay: missing merchant credentials")
	}
	if cfg.PayURL == "" {
		return nil, fmt.Errorf("vnpay: missing pay url")
	}
	return &Service{
		cfg:        cfg,
		secret:     []byte(cfg.HashSecret),
		reconciler: reconciler,
	}, nil
}

// BuildPaymentURL 构造带签名的跳转支付地址
// 交易参考号使用业务订单号，金额按渠道的最小单位因子放大
func (s *Service) BuildPaymentURL(ord *order.Order, p *payment.Payment, locale, clientIP, bankCode string) string {
	if locale == "" {
		locale = DefaultLocale
	}

	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    Command,
		"vnp_TmnCode":    s.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(p.Amount*MinorUnitFactor, 10),
		"vnp_CurrCode":   p.Currency,
		"vnp_TxnRef":     ord.OrderNo,
		"vnp_OrderInfo":  "Payment for order " + ord.OrderNo,
		"vnp_OrderType":  DefaultOrderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  s.cfg.ReturnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": time.Now().Format("20060102150405"),
	}
	if bankCode != "" {
		params["vnp_BankCode"] = bankCode
	}

	canonical := Canonicalize(params)
	return s.cfg.PayURL + "?" + canonical + "&" + ParamSecureHash + "=" + Sign(canonical, s.secret)
}

// HandleReturn 处理浏览器回跳
// 返回呈现给用户的结论对象，业务失败不抛错。
// 该路径仅更新支付状态，订单履约不在此推进。
func (s *Service) HandleReturn(ctx context.Context, params map[string]string) *types.RedirectDecision {
	if !Verify(params, s.secret) {
		// 签名失败按安全事件记录
		logger.WarnString("VNPay", "Return", "签名校验失败，txnRef="+params["vnp_TxnRef"])
		return &types.RedirectDecision{Success: false, Code: "97", Message: "invalid signature"}
	}

	txnRef := params["vnp_TxnRef"]
	p, _, err := s.reconciler.LookupByOrderNo(ctx, txnRef)
	if err != nil {
		return &types.RedirectDecision{Success: false, Code: "01", Message: "order not found", OrderNo: txnRef}
	}

	if !s.amountMatches(params, p) {
		// 金额不符不改动支付状态，留待清扫任务或后续正确回调处理
		logger.WarnString("VNPay", "Return", "金额不符，txnRef="+txnRef+"，收到 "+params["vnp_Amount"])
		return &types.RedirectDecision{Success: false, Code: "04", Message: "invalid amount", OrderNo: txnRef}
	}

	respCode := params["vnp_ResponseCode"]
	if respCode == CodeSuccess {
		if _, err := s.reconciler.Apply(ctx, p, types.EventReturnSuccess, params["vnp_TransactionNo"]); err != nil {
			logger.ErrorString("VNPay", "Return", err.Error())
			return &types.RedirectDecision{Success: false, Code: "99", Message: "internal error", OrderNo: txnRef}
		}
		// 已经是终态的支付按幂等空操作处理，对用户仍然展示成功
		return &types.RedirectDecision{Success: true, Code: respCode, Message: "payment completed", OrderNo: txnRef}
	}

	// 渠道明确失败：支付置为失败，订单随之取消
	if _, err := s.reconciler.Apply(ctx, p, types.EventCallbackFailed, ""); err != nil {
		logger.ErrorString("VNPay", "Return", err.Error())
		return &types.RedirectDecision{Success: false, Code: "99", Message: "internal error", OrderNo: txnRef}
	}
	return &types.RedirectDecision{Success: false, Code: respCode, Message: "payment failed", OrderNo: txnRef}
}

// HandleNotify 处理异步通知
// 服务器间回调路径，结果以固定应答码返回给渠道。
// 支付已到终态时应答「已确认」且不再应用任何迁移。
func (s *Service) HandleNotify(ctx context.Context, params map[string]string) NotifyAck {
	if !Verify(params, s.secret) {
		logger.WarnString("VNPay", "Notify", "签名校验失败，txnRef="+params["vnp_TxnRef"])
		return AckInvalidSignature
	}

	txnRef := params["vnp_TxnRef"]
	p, _, err := s.reconciler.LookupByOrderNo(ctx, txnRef)
	if err != nil {
		return AckOrderNotFound
	}

	if !s.amountMatches(params, p) {
		logger.WarnString("VNPay", "Notify", "金额不符，txnRef="+txnRef+"，收到 "+params["vnp_Amount"])
		return AckInvalidAmount
	}

	var event types.Event
	if params["vnp_ResponseCode"] == CodeSuccess {
		event = types.EventNotifySuccess
	} else {
		event = types.EventCallbackFailed
	}

	result, err := s.reconciler.Apply(ctx, p, event, params["vnp_TransactionNo"])
	if err != nil {
		logger.ErrorString("VNPay", "Notify", err.Error())
		return AckUnknownError
	}
	if result.Duplicate {
		return AckAlreadyConfirmed
	}
	return AckSuccess
}

// amountMatches 校验回调金额与本地支付金额按最小单位因子放大后一致
func (s *Service) amountMatches(params map[string]string, p *payment.Payment) bool {
	callbackAmount, err := strconv.ParseInt(params["vnp_Amount"], 10, 64)
	if err != nil {
		return false
	}
	return callbackAmount == p.Amount*MinorUnitFactor
}
