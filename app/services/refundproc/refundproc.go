// Package refundproc 实现退款处理
//
// 退款记录只追加：每次尝试各占一行，失败的尝试保留原因作为审计轨迹，
// 不会阻止后续重试，也不会破坏支付记录原有的终态。
package refundproc

import (
	"context"
	"errors"
	"fmt"

	"mall/app/models/payment"
	"mall/app/models/refund"
	"mall/app/repositories"
	"mall/pkg/logger"
	"mall/pkg/paygate/types"
	"mall/pkg/paygate/utils"
)

// 预定义业务错误
var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentNotRefundable = errors.New("payment is not in a refundable state")
	ErrMissingCaptureRef    = errors.New("payment has no capture reference")
)

// Gateway 退款走托管网关，仅依赖其退款能力
type Gateway interface {
	RefundCapture(ctx context.Context, captureID string, amount int64, currency string) (string, error)
}

// Reconciler 退款成功后将支付迁移到 refunded 终态
type Reconciler interface {
	Apply(ctx context.Context, p *payment.Payment, event types.Event, transactionID string) (*types.ApplyResult, error)
}

// Processor 退款处理器
type Processor struct {
	payments   *repositories.PaymentRepository
	refunds    *repositories.RefundRepository
	gateway    Gateway
	reconciler Reconciler
}

// NewProcessor 创建退款处理器
func NewProcessor(gateway Gateway, reconciler Reconciler) *Processor {
	return &Processor{
		payments:   repositories.NewPaymentRepository(),
		refunds:    repositories.NewRefundRepository(),
		gateway:    gateway,
		reconciler: reconciler,
	}
}

// Refund 对已完成的支付发起全额退款
// 成功：退款行置 success 并记录渠道退款号，支付迁移到 refunded；
// 失败：退款行置 failed 并记录原因，支付保持原终态，可以重试。
func (p *Processor) Refund(ctx context.Context, paymentNo, reason string) (*refund.Refund, error) {
	pay, err := p.payments.GetByPaymentNo(ctx, paymentNo)
	if err != nil {
		return nil, ErrPaymentNotFound
	}

	// 只有成功终态的支付可以退款
	if !pay.IsCompleted() {
		return nil, ErrPaymentNotRefundable
	}
	if pay.TransactionID == "" {
		return nil, ErrMissingCaptureRef
	}

	if reason == "" {
		reason = refund.DefaultReason
	}

	// 先落处理中的退款行，每次尝试单独成行
	record := &refund.Refund{
		RefundNo:  utils.GenerateRefundNo(),
		PaymentNo: pay.PaymentNo,
		Amount:    pay.Amount,
		Method:    pay.Method,
		Status:    string(refund.StatusProcessing),
		Reason:    reason,
	}
	if err := p.refunds.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create refund record: %w", err)
	}

	// 调用渠道退款，失败只标记本行，支付不受影响
	gatewayRefundID, err := p.gateway.RefundCapture(ctx, pay.TransactionID, pay.Amount, pay.Currency)
	if err != nil {
		logger.ErrorString("Refund", "Gateway", err.Error())
		record.Status = string(refund.StatusFailed)
		record.Reason = err.Error()
		if saveErr := p.refunds.Save(ctx, record); saveErr != nil {
			logger.ErrorString("Refund", "Save", saveErr.Error())
		}
		return record, fmt.Errorf("gateway refund: %w", err)
	}

	record.Status = string(refund.StatusSuccess)
	record.GatewayRefundID = gatewayRefundID
	if err := p.refunds.Save(ctx, record); err != nil {
		return record, fmt.Errorf("save refund record: %w", err)
	}

	if _, err := p.reconciler.Apply(ctx, pay, types.EventRefunded, gatewayRefundID); err != nil {
		return record, fmt.Errorf("apply refund transition: %w", err)
	}

	return record, nil
}
