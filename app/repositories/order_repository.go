package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"mall/app/models/order"
	"mall/pkg/database"
)

// OrderRepository 订单仓库
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建仓库实例
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		db: database.DB,
	}
}

// Create 创建订单（含行项目）
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// GetByOrderNo 根据订单号获取订单
func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	var o order.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_no = ?", orderNo).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Transition 条件迁移订单状态
// 仅当当前状态在 fromSet 内时更新到 to，返回是否发生迁移。
// 已取消的订单不会被迟到的回调复活，履约阶段的推进不会被支付逻辑回退。
func (r *OrderRepository) Transition(ctx context.Context, orderNo string, fromSet []string, to order.Status) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&order.Order{}).
		Where("order_no = ? AND status IN ?", orderNo, fromSet).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
