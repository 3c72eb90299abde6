package factory

import (
	"fmt"

	"mall/config"
	"mall/pkg/paygate/paypal"
	"mall/pkg/paygate/types"
	"mall/pkg/paygate/vnpay"
)

// Gateways 两个已建模渠道的客户端集合
type Gateways struct {
	VNPay  *vnpay.Service
	PayPal *paypal.Service
}

// NewGateways 根据配置构建全部网关客户端
// 任一渠道凭证缺失即返回错误，启动阶段处理，不允许带病运行
func NewGateways(reconciler types.Reconciler) (*Gateways, error) {
	vnpayService, err := vnpay.NewService(config.LoadVNPayConfig(), reconciler)
	if err != nil {
		return nil, fmt.Errorf("create vnpay service: %w", err)
	}

	paypalService, err := paypal.NewService(config.LoadPayPalConfig(), reconciler)
	if err != nil {
		return nil, fmt.Errorf("create paypal service: %w", err)
	}

	return &Gateways{
		VNPay:  vnpayService,
		PayPal: paypalService,
	}, nil
}
