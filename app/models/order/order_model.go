package order

import (
	"time"
)

// Order 订单模型
type Order struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo string `gorm:"type:varchar(64);uniqueIndex" json:"order_no"` // 业务订单号，与存储主键无关
	UserID  string `gorm:"type:varchar(36);index" json:"user_id"`
	Status  string `gorm:"type:varchar(20);index" json:"status"`

	PaymentMethod string `gorm:"type:varchar(20)" json:"payment_method"`

	// 收货地址快照
	ShippingName    string `gorm:"type:varchar(64)" json:"shipping_name"`
	ShippingPhone   string `gorm:"type:varchar(20)" json:"shipping_phone"`
	ShippingAddress string `gorm:"type:varchar(255)" json:"shipping_address"`

	Items []OrderItem `gorm:"foreignKey:OrderNo;references:OrderNo" json:"items"`

	CreatedAt time.Time `gorm:"" json:"created_at"`
	UpdatedAt time.Time `gorm:"" json:"updated_at"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单行项目，下单时的商品快照
type OrderItem struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo   string `gorm:"type:varchar(64);index" json:"order_no"`
	ProductID string `gorm:"type:varchar(64);index" json:"product_id"`
	Quantity  int    `gorm:"" json:"quantity"`   // 数量 ≥ 1
	UnitPrice int64  `gorm:"" json:"unit_price"` // 单价 ≥ 0，定点金额

	CreatedAt time.Time `gorm:"" json:"created_at"`
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
