package payment

import (
	"errors"
)

// Method 支付方式
type Method string

const (
	MethodCard         Method = "card"          // 银行卡
	MethodVNPay        Method = "vnpay"         // VNPay 跳转支付
	MethodPayPal       Method = "paypal"        // PayPal 托管下单
	MethodBankTransfer Method = "bank_transfer" // 银行转账
	MethodCOD          Method = "cod"           // 货到付款
)

// Status 支付状态
type Status string

const (
	StatusPending   Status = "pending"   // 待支付
	StatusCompleted Status = "completed" // 已支付
	StatusFailed    Status = "failed"    // 支付失败
	StatusCanceled  Status = "canceled"  // 已取消
	StatusRefunded  Status = "refunded"  // 已退款
)

// CurrencyVND 当前唯一支持的币种
const CurrencyVND = "VND"

// Validate 验证支付记录
func (p *Payment) Validate() error {
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	if p.OrderNo == "" {
		return errors.New("order_no is required")
	}
	if p.Amount < 0 {
		return errors.New("amount must not be negative")
	}
	if !p.ValidateMethod() {
		return errors.New("invalid payment method")
	}
	if p.Currency != CurrencyVND {
		return errors.New("unsupported currency")
	}
	return nil
}

// ValidateMethod 验证支付方式
func (p *Payment) ValidateMethod() bool {
	switch Method(p.Method) {
	case MethodCard, MethodVNPay, MethodPayPal, MethodBankTransfer, MethodCOD:
		return true
	}
	return false
}

// IsTerminal 检查支付是否已到终态
// 终态的支付不再接受任何状态迁移，后续事件只记录不应用
func (p *Payment) IsTerminal() bool {
	switch Status(p.Status) {
	case StatusCompleted, StatusFailed, StatusCanceled, StatusRefunded:
		return true
	}
	return false
}

// IsCompleted 检查支付是否成功
func (p *Payment) IsCompleted() bool {
	return p.Status == string(StatusCompleted)
}

// IsPending 检查是否待支付
func (p *Payment) IsPending() bool {
	return p.Status == string(StatusPending)
}

// IsRefunded 检查是否已退款
func (p *Payment) IsRefunded() bool {
	return p.Status == string(StatusRefunded)
}

// IsCanceled 检查是否已取消
func (p *Payment) IsCanceled() bool {
	return p.Status == string(StatusCanceled)
}
