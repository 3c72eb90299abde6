package order

import (
	"github.com/gin-gonic/gin"

	ordermodel "mall/app/models/order"
	"mall/app/repositories"
	"mall/app/requests"
	"mall/pkg/paygate/utils"
	"mall/pkg/response"
)

// OrderController 订单控制器
// 订单创建是结账的协作入口，支付核心据此校验订单存在后再建支付
type OrderController struct {
	orders *repositories.OrderRepository
}

// NewOrderController 创建订单控制器
func NewOrderController() *OrderController {
	return &OrderController{
		orders: repositories.NewOrderRepository(),
	}
}

// Store 创建订单
func (oc *OrderController) Store(c *gin.Context) {
	request, err := requests.ValidateCreateOrder(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	ord := &ordermodel.Order{
		OrderNo:         utils.GenerateOrderNo(),
		UserID:          request.UserID,
		Status:          string(ordermodel.StatusPending),
		PaymentMethod:   request.PaymentMethod,
		ShippingName:    request.ShippingName,
		ShippingPhone:   request.ShippingPhone,
		ShippingAddress: request.ShippingAddress,
	}
	for _, item := range request.Items {
		ord.Items = append(ord.Items, ordermodel.OrderItem{
			OrderNo:   ord.OrderNo,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	if err := ord.Validate(); err != nil {
		response.BadRequest(c, err, "订单数据不合法")
		return
	}

	if err := oc.orders.Create(c.Request.Context(), ord); err != nil {
		response.ServerError(c, err, "创建订单失败")
		return
	}

	response.Created(c, gin.H{
		"order_no": ord.OrderNo,
		"status":   ord.Status,
		"total":    ord.Total(),
	})
}

// Show 查询订单
func (oc *OrderController) Show(c *gin.Context) {
	ord, err := oc.orders.GetByOrderNo(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		response.Abort404(c, "订单不存在")
		return
	}

	response.Data(c, gin.H{
		"order": ord,
		"total": ord.Total(),
	})
}
