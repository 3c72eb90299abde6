package repositories

import (
	"context"

	"gorm.io/gorm"

	"mall/app/models/refund"
	"mall/pkg/database"
)

// RefundRepository 退款记录仓库
type RefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建仓库实例
func NewRefundRepository() *RefundRepository {
	return &RefundRepository{
		db: database.DB,
	}
}

// Create 创建退款记录
func (r *RefundRepository) Create(ctx context.Context, refund *refund.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// Save 保存退款记录
func (r *RefundRepository) Save(ctx context.Context, refund *refund.Refund) error {
	return r.db.WithContext(ctx).Save(refund).Error
}

// GetByRefundNo 根据退款单号获取退款记录
func (r *RefundRepository) GetByRefundNo(ctx context.Context, refundNo string) (*refund.Refund, error) {
	var rf refund.Refund
	err := r.db.WithContext(ctx).Where("refund_no = ?", refundNo).First(&rf).Error
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

// ListByPaymentNo 列出一笔支付的全部退款尝试，按时间先后排序
func (r *RefundRepository) ListByPaymentNo(ctx context.Context, paymentNo string) ([]refund.Refund, error) {
	var refunds []refund.Refund
	err := r.db.WithContext(ctx).
		Where("payment_no = ?", paymentNo).
		Order("id ASC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}
