package payment

import (
	"errors"

	"github.com/gin-gonic/gin"

	paymentmodel "mall/app/models/payment"
	"mall/app/requests"
	"mall/app/services/reconcile"
	"mall/app/services/refundproc"
	"mall/pkg/paygate/factory"
	"mall/pkg/paygate/types"
	"mall/pkg/response"
)

// PaymentController 支付控制器
type PaymentController struct {
	engine   *reconcile.Engine
	gateways *factory.Gateways
	refunds  *refundproc.Processor
}

// NewPaymentController 创建支付控制器
// 网关凭证缺失会在此处返回错误，启动阶段即失败
func NewPaymentController() (*PaymentController, error) {
	engine := reconcile.NewEngine()

	gateways, err := factory.NewGateways(engine)
	if err != nil {
		return nil, err
	}

	return &PaymentController{
		engine:   engine,
		gateways: gateways,
		refunds:  refundproc.NewProcessor(gateways.PayPal, engine),
	}, nil
}

// Store 创建支付
// 根据支付方式返回跳转地址（vnpay）或批准地址（paypal），
// 线下方式只创建待支付记录
func (pc *PaymentController) Store(c *gin.Context) {
	request, err := requests.ValidateCreatePayment(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	req := &types.Request{
		OrderNo:  request.OrderNo,
		UserID:   request.UserID,
		Amount:   request.Amount,
		Method:   request.Method,
		Currency: request.Currency,
		Locale:   request.Locale,
		ClientIP: c.ClientIP(),
		BankCode: request.BankCode,
	}

	p, ord, err := pc.engine.PreparePayment(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrOrderNotFound):
			response.Abort404(c, "订单不存在")
		case errors.Is(err, reconcile.ErrOrderNotPayable):
			response.Abort409(c, "订单当前状态不可支付")
		case errors.Is(err, reconcile.ErrAmountMismatch):
			response.Abort400(c, "金额与订单总额不符")
		default:
			response.ServerError(c, err, "创建支付失败")
		}
		return
	}

	result := &types.Result{PaymentNo: p.PaymentNo}

	switch paymentmodel.Method(p.Method) {
	case paymentmodel.MethodVNPay:
		result.PayURL = pc.gateways.VNPay.BuildPaymentURL(ord, p, req.Locale, req.ClientIP, req.BankCode)

	case paymentmodel.MethodPayPal:
		// 下单失败不改动支付状态，直接反馈给调用方重试
		approveURL, err := pc.gateways.PayPal.CreateOrder(c.Request.Context(), p)
		if err != nil {
			response.ServerError(c, err, "渠道下单失败，请重试")
			return
		}
		result.PayURL = approveURL
	}

	response.Created(c, result, "支付已创建")
}

// Show 查询支付状态，跳转回来后轮询用
func (pc *PaymentController) Show(c *gin.Context) {
	p, err := pc.engine.LookupByPaymentNo(c.Request.Context(), c.Param("payment_no"))
	if err != nil {
		response.Abort404(c, "支付记录不存在")
		return
	}
	response.Data(c, p)
}

// Retry 对非终态支付重新获取支付地址
// 复用原支付记录，不会为同一订单另起一行
func (pc *PaymentController) Retry(c *gin.Context) {
	p, err := pc.engine.LookupByPaymentNo(c.Request.Context(), c.Param("payment_no"))
	if err != nil {
		response.Abort404(c, "支付记录不存在")
		return
	}

	if p.IsTerminal() {
		response.Abort409(c, "支付已到终态，不能重试")
		return
	}

	_, ord, err := pc.engine.LookupByOrderNo(c.Request.Context(), p.OrderNo)
	if err != nil {
		response.Abort404(c, "订单不存在")
		return
	}

	result := &types.Result{PaymentNo: p.PaymentNo}

	switch paymentmodel.Method(p.Method) {
	case paymentmodel.MethodVNPay:
		result.PayURL = pc.gateways.VNPay.BuildPaymentURL(ord, p, "", c.ClientIP(), "")

	case paymentmodel.MethodPayPal:
		approveURL, err := pc.gateways.PayPal.CreateOrder(c.Request.Context(), p)
		if err != nil {
			response.ServerError(c, err, "渠道下单失败，请重试")
			return
		}
		result.PayURL = approveURL

	default:
		response.Abort400(c, "该支付方式不支持重试获取支付地址")
		return
	}

	response.Data(c, result)
}

// Capture 捕获托管网关订单
func (pc *PaymentController) Capture(c *gin.Context) {
	request, err := requests.ValidateCapture(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	result, err := pc.gateways.PayPal.CaptureOrder(c.Request.Context(), request.ProviderOrderID, request.PaymentNo)
	if err != nil {
		response.ServerError(c, err, "捕获失败")
		return
	}

	response.Data(c, result)
}

// Refund 对已完成的支付发起退款
func (pc *PaymentController) Refund(c *gin.Context) {
	request, err := requests.ValidateRefund(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	record, err := pc.refunds.Refund(c.Request.Context(), c.Param("payment_no"), request.Reason)
	if err != nil {
		switch {
		case errors.Is(err, refundproc.ErrPaymentNotFound):
			response.Abort404(c, "支付记录不存在")
		case errors.Is(err, refundproc.ErrPaymentNotRefundable):
			response.Abort409(c, "支付当前状态不可退款")
		case errors.Is(err, refundproc.ErrMissingCaptureRef):
			response.Abort409(c, "支付缺少渠道交易号")
		default:
			// 渠道退款失败时失败记录已落库，随响应一并返回便于排查
			if record != nil {
				response.JSON(c, gin.H{
					"status":  response.Error,
					"message": "退款失败，可重试",
					"data":    record,
				})
				return
			}
			response.ServerError(c, err, "退款失败")
		}
		return
	}

	response.Data(c, record)
}

// VNPayReturn 浏览器回跳入口
// 结论对象仅供呈现，真正的支付确认以异步通知为准
func (pc *PaymentController) VNPayReturn(c *gin.Context) {
	decision := pc.gateways.VNPay.HandleReturn(c.Request.Context(), queryToMap(c))
	response.JSON(c, decision)
}

// VNPayNotify 异步通知入口，按协议返回固定应答码
func (pc *PaymentController) VNPayNotify(c *gin.Context) {
	ack := pc.gateways.VNPay.HandleNotify(c.Request.Context(), queryToMap(c))
	response.JSON(c, ack)
}

// queryToMap 将查询参数摊平成单值 map，同名参数取第一个
func queryToMap(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}
