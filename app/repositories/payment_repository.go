package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"mall/app/models/payment"
	"mall/pkg/database"
)

// PaymentRepository 支付记录仓库
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建仓库实例
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		db: database.DB,
	}
}

// Create 创建支付记录
func (r *PaymentRepository) Create(ctx context.Context, payment *payment.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// Save 保存支付记录
func (r *PaymentRepository) Save(ctx context.Context, payment *payment.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

// GetByPaymentNo 根据支付单号获取支付记录
func (r *PaymentRepository) GetByPaymentNo(ctx context.Context, paymentNo string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("payment_no = ?", paymentNo).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActiveByOrderNo 获取订单当前处于 pending 的支付记录
// 同一订单同一时刻最多只有一笔非终态支付
func (r *PaymentRepository) GetActiveByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("order_no = ? AND status = ?", orderNo, string(payment.StatusPending)).
		Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetLatestByOrderNo 获取订单最近一次的支付记录
// 回调晚于支付完成到达时，最新一笔支付仍是核对对象
func (r *PaymentRepository) GetLatestByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetProviderOrder 记录托管渠道返回的渠道订单号
func (r *PaymentRepository) SetProviderOrder(ctx context.Context, paymentNo, providerOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("payment_no = ?", paymentNo).
		Updates(map[string]interface{}{
			"provider_order_id": providerOrderID,
			"updated_at":        time.Now(),
		}).Error
}

// GetByProviderOrderID 根据渠道订单号获取支付记录
func (r *PaymentRepository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("provider_order_id = ?", providerOrderID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Transition 条件迁移支付状态，存储层的 compare-and-set
// 只有当前状态仍等于 from 时才更新到 to，返回是否真正发生了迁移。
// 并发回调同时到达时，谁赢得这次更新谁的迁移生效，输家拿到 false 走幂等分支。
func (r *PaymentRepository) Transition(ctx context.Context, paymentNo string, from, to payment.Status, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("payment_no = ? AND status = ?", paymentNo, string(from)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindExpiredPending 查询创建时间早于 before 且仍处于 pending 的支付记录
// 供过期清扫任务分批取用
func (r *PaymentRepository) FindExpiredPending(ctx context.Context, before time.Time, limit int) ([]payment.Payment, error) {
	var payments []payment.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(payment.StatusPending), before).
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
