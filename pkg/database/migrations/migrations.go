package migrations

import (
	"mall/app/models/order"
	"mall/app/models/payment"
	"mall/app/models/refund"
)

// RegisterTables 返回需要迁移的表的模型列表
func RegisterTables() []interface{} {
	return []interface{}{
		&order.Order{},
		&order.OrderItem{},
		&payment.Payment{},
		&refund.Refund{},
	}
}
