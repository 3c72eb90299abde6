package routes

import (
	"github.com/gin-gonic/gin"

	"mall/app/http/controllers/api/v1/order"
	"mall/app/http/controllers/api/v1/payment"
	"mall/app/http/middlewares"
	"mall/pkg/logger"
)

// 路由限流配置
const (
	// 🌍 全局限流：每小时每IP 10000 请求
	GlobalRateLimit = "10000-H"
	// 💳 创建支付/订单限流：每小时每IP 300 请求
	CreateLimit = "300-H"
	// 🔍 查询限流：每分钟每IP 300 请求
	QueryLimit = "300-M"
	// 📡 网关回调限流：每分钟每IP 600 请求
	CallbackLimit = "600-M"
)

// RegisterAPIRoutes 注册所有 API 路由
func RegisterAPIRoutes(r *gin.Engine) {
	v1 := r.Group("/v1")

	v1.Use(
		middlewares.SecurityHeaders(),
		middlewares.LimitIP(GlobalRateLimit),
		middlewares.Cors(),
	)

	// 📦 订单相关路由
	orderRoutes := v1.Group("/orders")
	{
		oc := order.NewOrderController()

		// 创建订单
		// POST /v1/orders
		orderRoutes.POST("", middlewares.LimitPerRoute(CreateLimit), oc.Store)

		// 查询订单
		// GET /v1/orders/:order_no
		orderRoutes.GET("/:order_no", middlewares.LimitPerRoute(QueryLimit), oc.Show)
	}

	// 💳 支付相关路由
	paymentRoutes := v1.Group("/payments")
	{
		pc, err := payment.NewPaymentController()
		if err != nil {
			// 网关凭证等配置错误，启动即失败，不允许带病运行
			logger.FatalString("路由", "支付控制器", err.Error())
		}

		// 创建支付
		// POST /v1/payments
		paymentRoutes.POST("", middlewares.LimitPerRoute(CreateLimit), pc.Store)

		// 查询支付状态
		// GET /v1/payments/:payment_no
		paymentRoutes.GET("/:payment_no", middlewares.LimitPerRoute(QueryLimit), pc.Show)

		// 重新获取支付地址
		// POST /v1/payments/:payment_no/retry
		paymentRoutes.POST("/:payment_no/retry", middlewares.LimitPerRoute(CreateLimit), pc.Retry)

		// 退款
		// POST /v1/payments/:payment_no/refund
		paymentRoutes.POST("/:payment_no/refund", middlewares.LimitPerRoute(CreateLimit), pc.Refund)

		// 捕获托管网关订单
		// POST /v1/payments/capture
		paymentRoutes.POST("/capture", middlewares.LimitPerRoute(CreateLimit), pc.Capture)

		// 📡 VNPay 回调：浏览器回跳 + 异步通知
		// 渠道侧可能以 GET 或 POST 发起
		paymentRoutes.GET("/vnpay/return", middlewares.LimitPerRoute(CallbackLimit), pc.VNPayReturn)
		paymentRoutes.POST("/vnpay/return", middlewares.LimitPerRoute(CallbackLimit), pc.VNPayReturn)
		paymentRoutes.GET("/vnpay/notify", middlewares.LimitPerRoute(CallbackLimit), pc.VNPayNotify)
		paymentRoutes.POST("/vnpay/notify", middlewares.LimitPerRoute(CallbackLimit), pc.VNPayNotify)
	}
}
