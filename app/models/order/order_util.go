package order

import (
	"errors"
)

// Status 订单状态
type Status string

const (
	StatusPending   Status = "pending"   // 待支付
	StatusPicking   Status = "picking"   // 拣货中，支付成功后的履约入口状态
	StatusShipping  Status = "shipping"  // 配送中
	StatusDelivered Status = "delivered" // 已送达
	StatusCompleted Status = "completed" // 已完成
	StatusCanceled  Status = "canceled"  // 已取消
	StatusReturned  Status = "returned"  // 已退货
)

// CancelableStatuses 允许迁移到 canceled 的状态集合
// delivered 之后只能走退货分支，不允许取消
var CancelableStatuses = []string{
	string(StatusPending),
	string(StatusPicking),
	string(StatusShipping),
}

// OrderTotal 计算订单总金额
// 订单金额只在此处聚合，所有调用方复用该函数，不得各自累加
func OrderTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.UnitPrice
	}
	return total
}

// Validate 验证订单
func (o *Order) Validate() error {
	if o.UserID == "" {
		return errors.New("user_id is required")
	}
	if len(o.Items) == 0 {
		return errors.New("order has no items")
	}
	for _, item := range o.Items {
		if item.Quantity < 1 {
			return errors.New("item quantity must be at least 1")
		}
		if item.UnitPrice < 0 {
			return errors.New("item unit price must not be negative")
		}
	}
	return nil
}

// IsTerminal 检查订单是否已到终态
func (o *Order) IsTerminal() bool {
	switch Status(o.Status) {
	case StatusCompleted, StatusCanceled, StatusReturned:
		return true
	}
	return false
}

// IsPending 检查订单是否待支付
func (o *Order) IsPending() bool {
	return o.Status == string(StatusPending)
}

// IsCanceled 检查订单是否已取消
func (o *Order) IsCanceled() bool {
	return o.Status == string(StatusCanceled)
}

// Total 订单总金额
func (o *Order) Total() int64 {
	return OrderTotal(o.Items)
}
