package payment

import (
	"time"
)

// Payment 支付记录模型
type Payment struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo string `gorm:"type:varchar(64);uniqueIndex" json:"payment_no"` // 业务支付单号，与存储主键无关
	OrderNo   string `gorm:"type:varchar(64);index" json:"order_no"`
	UserID    string `gorm:"type:varchar(36);index" json:"user_id"`
	Method    string `gorm:"type:varchar(20)" json:"method"`
	Amount    int64  `gorm:"" json:"amount"` // 以 VND 计的定点金额
	Currency  string `gorm:"type:varchar(8)" json:"currency"`
	Status    string `gorm:"type:varchar(20);index" json:"status"`

	// TransactionID 渠道侧交易号，捕获成功前为空
	TransactionID string `gorm:"type:varchar(64)" json:"transaction_id"`
	// ProviderOrderID 托管下单渠道（PayPal 协议）返回的渠道订单号
	ProviderOrderID string `gorm:"type:varchar(64);index" json:"provider_order_id"`

	PaidAt    *time.Time `gorm:"" json:"paid_at"`
	CreatedAt time.Time  `gorm:"" json:"created_at"`
	UpdatedAt time.Time  `gorm:"" json:"updated_at"`
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
