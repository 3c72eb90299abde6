package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTotal(t *testing.T) {
	tests := []struct {
		name  string
		items []OrderItem
		want  int64
	}{
		{
			name:  "空订单",
			items: nil,
			want:  0,
		},
		{
			name:  "单件商品",
			items: []OrderItem{{Quantity: 1, UnitPrice: 100000}},
			want:  100000,
		},
		{
			name: "多件多行",
			items: []OrderItem{
				{Quantity: 2, UnitPrice: 50000},
				{Quantity: 3, UnitPrice: 10000},
			},
			want: 130000,
		},
		{
			name:  "零价商品",
			items: []OrderItem{{Quantity: 5, UnitPrice: 0}},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderTotal(tt.items))
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Order{
		UserID: "user-1",
		Items:  []OrderItem{{ProductID: "sku-1", Quantity: 1, UnitPrice: 100000}},
	}
	assert.NoError(t, valid.Validate())

	noUser := valid
	noUser.UserID = ""
	assert.Error(t, noUser.Validate())

	noItems := valid
	noItems.Items = nil
	assert.Error(t, noItems.Validate())

	zeroQty := valid
	zeroQty.Items = []OrderItem{{ProductID: "sku-1", Quantity: 0, UnitPrice: 100000}}
	assert.Error(t, zeroQty.Validate())

	negativePrice := valid
	negativePrice.Items = []OrderItem{{ProductID: "sku-1", Quantity: 1, UnitPrice: -1}}
	assert.Error(t, negativePrice.Validate())
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []Status{StatusCompleted, StatusCanceled, StatusReturned} {
		o := Order{Status: string(status)}
		assert.True(t, o.IsTerminal(), "status %s", status)
	}
	for _, status := range []Status{StatusPending, StatusPicking, StatusShipping, StatusDelivered} {
		o := Order{Status: string(status)}
		assert.False(t, o.IsTerminal(), "status %s", status)
	}
}

func TestCancelableStatusesExcludeDelivered(t *testing.T) {
	// 送达之后只能走退货分支
	assert.NotContains(t, CancelableStatuses, string(StatusDelivered))
	assert.Contains(t, CancelableStatuses, string(StatusPending))
	assert.Contains(t, CancelableStatuses, string(StatusPicking))
	assert.Contains(t, CancelableStatuses, string(StatusShipping))
}
