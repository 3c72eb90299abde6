package refund

import (
	"time"
)

// Status 退款状态
type Status string

const (
	StatusProcessing Status = "processing" // 处理中
	StatusSuccess    Status = "success"    // 退款成功
	StatusFailed     Status = "failed"     // 退款失败
)

// DefaultReason 未填写退款原因时的占位值
const DefaultReason = "unspecified"

// Refund 退款记录模型
// 只追加不修改覆盖：每次退款尝试各占一行，失败记录保留作为审计轨迹
type Refund struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RefundNo  string `gorm:"type:varchar(64);uniqueIndex" json:"refund_no"`
	PaymentNo string `gorm:"type:varchar(64);index" json:"payment_no"`
	Amount    int64  `gorm:"" json:"amount"`
	Method    string `gorm:"type:varchar(20)" json:"method"`

	// GatewayRefundID 渠道退款号，退款成功前为空
	GatewayRefundID string `gorm:"type:varchar(64)" json:"gateway_refund_id"`
	Status          string `gorm:"type:varchar(20);index" json:"status"`
	Reason          string `gorm:"type:varchar(255)" json:"reason"`

	CreatedAt time.Time `gorm:"" json:"created_at"`
	UpdatedAt time.Time `gorm:"" json:"updated_at"`
}

// TableName 指定表名
func (Refund) TableName() string {
	return "refunds"
}

// IsSuccess 检查退款是否成功
func (r *Refund) IsSuccess() bool {
	return r.Status == string(StatusSuccess)
}
