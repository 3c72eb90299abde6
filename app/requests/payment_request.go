package requests

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// CreatePaymentRequest 创建支付请求
type CreatePaymentRequest struct {
	OrderNo  string `json:"order_no" valid:"required"`
	UserID   string `json:"user_id" valid:"required"`
	Amount   int64  `json:"amount"`
	Method   string `json:"method" valid:"required"`
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
	BankCode string `json:"bank_code"`
}

// ValidateCreatePayment 验证创建支付请求
func ValidateCreatePayment(c *gin.Context) (*CreatePaymentRequest, error) {
	var req CreatePaymentRequest

	// 1. 首先绑定 JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}

	// 2. 验证规则
	rules := govalidator.MapData{
		"order_no": []string{"required"},
		"user_id":  []string{"required"},
		"method":   []string{"required", "in:card,vnpay,paypal,bank_transfer,cod"},
		"currency": []string{"in:VND"},
	}

	// 3. 验证消息
	messages := govalidator.MapData{
		"order_no": []string{
			"required:订单号不能为空",
		},
		"user_id": []string{
			"required:用户 ID 不能为空",
		},
		"method": []string{
			"required:支付方式不能为空",
			"in:支付方式必须是 card、vnpay、paypal、bank_transfer 或 cod",
		},
		"currency": []string{
			"in:币种目前仅支持 VND",
		},
	}

	if err := ValidateStruct(&req, rules, messages); err != nil {
		return nil, err
	}

	// 4. 金额为可选项，传入时不允许为负
	if req.Amount < 0 {
		return nil, fmt.Errorf("金额不能为负数")
	}

	return &req, nil
}

// CaptureRequest 捕获请求
type CaptureRequest struct {
	ProviderOrderID string `json:"provider_order_id" valid:"required"`
	PaymentNo       string `json:"payment_no" valid:"required"`
}

// ValidateCapture 验证捕获请求
func ValidateCapture(c *gin.Context) (*CaptureRequest, error) {
	var req CaptureRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}

	rules := govalidator.MapData{
		"provider_order_id": []string{"required"},
		"payment_no":        []string{"required"},
	}

	messages := govalidator.MapData{
		"provider_order_id": []string{
			"required:渠道订单号不能为空",
		},
		"payment_no": []string{
			"required:支付单号不能为空",
		},
	}

	if err := ValidateStruct(&req, rules, messages); err != nil {
		return nil, err
	}

	return &req, nil
}

// RefundRequest 退款请求
type RefundRequest struct {
	Reason string `json:"reason"`
}

// ValidateRefund 验证退款请求，原因为可选项
func ValidateRefund(c *gin.Context) (*RefundRequest, error) {
	var req RefundRequest

	// 允许空请求体
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, fmt.Errorf("解析 JSON 失败: %w", err)
		}
	}

	return &req, nil
}
