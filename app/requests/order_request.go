package requests

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// OrderItemRequest 订单行项目
type OrderItemRequest struct {
	ProductID string `json:"product_id" valid:"required"`
	Quantity  int    `json:"quantity" valid:"required"`
	UnitPrice int64  `json:"unit_price"`
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	UserID          string             `json:"user_id" valid:"required"`
	PaymentMethod   string             `json:"payment_method" valid:"required"`
	ShippingName    string             `json:"shipping_name" valid:"required"`
	ShippingPhone   string             `json:"shipping_phone" valid:"required"`
	ShippingAddress string             `json:"shipping_address" valid:"required"`
	Items           []OrderItemRequest `json:"items" valid:"required"`
}

// ValidateCreateOrder 验证创建订单请求
func ValidateCreateOrder(c *gin.Context) (*CreateOrderRequest, error) {
	var req CreateOrderRequest

	// 1. 首先绑定 JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}

	// 2. 验证规则
	rules := govalidator.MapData{
		"user_id":          []string{"required"},
		"payment_method":   []string{"required", "in:card,vnpay,paypal,bank_transfer,cod"},
		"shipping_name":    []string{"required"},
		"shipping_phone":   []string{"required"},
		"shipping_address": []string{"required"},
	}

	// 3. 验证消息
	messages := govalidator.MapData{
		"user_id": []string{
			"required:用户 ID 不能为空",
		},
		"payment_method": []string{
			"required:支付方式不能为空",
			"in:支付方式必须是 card、vnpay、paypal、bank_transfer 或 cod",
		},
		"shipping_name": []string{
			"required:收货人不能为空",
		},
		"shipping_phone": []string{
			"required:联系电话不能为空",
		},
		"shipping_address": []string{
			"required:收货地址不能为空",
		},
	}

	if err := ValidateStruct(&req, rules, messages); err != nil {
		return nil, err
	}

	// 4. 额外的行项目验证
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("订单至少需要一个商品")
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("商品 %s 的数量必须大于 0", item.ProductID)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("商品 %s 的单价不能为负数", item.ProductID)
		}
	}

	return &req, nil
}
