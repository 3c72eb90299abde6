// Package reconcile 实现支付与订单的对账状态机
//
// 所有支付状态迁移都通过存储层的条件更新表达（当前状态仍为预期状态才更新），
// 并发回调谁赢得该次更新谁的迁移生效，输家观察到「已终态」走幂等空操作分支。
// 正确性不依赖任何进程内锁：回调可以落在不同实例的不同连接上。
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mall/app/models/order"
	"mall/app/models/payment"
	"mall/app/repositories"
	"mall/pkg/logger"
	"mall/pkg/paygate/types"
	"mall/pkg/paygate/utils"
)

// 预定义业务错误
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotPayable  = errors.New("order is not payable")
	ErrAmountMismatch   = errors.New("amount does not match order total")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrPaymentTerminal  = errors.New("payment is in a terminal state")
	ErrUnsupportedEvent = errors.New("unsupported reconcile event")
)

// Engine 对账引擎
type Engine struct {
	payments *repositories.PaymentRepository
	orders   *repositories.OrderRepository
}

// NewEngine 创建对账引擎
func NewEngine() *Engine {
	return &Engine{
		payments: repositories.NewPaymentRepository(),
		orders:   repositories.NewOrderRepository(),
	}
}

// PreparePayment 为订单创建（或复用）一笔待支付的支付记录
// 同一订单同一时刻至多一笔非终态支付：仍处于 pending 或上次已失败的
// 支付会被重置复用而不是另起一行，以支持用户换方式重试。
func (e *Engine) PreparePayment(ctx context.Context, req *types.Request) (*payment.Payment, *order.Order, error) {
	ord, err := e.orders.GetByOrderNo(ctx, req.OrderNo)
	if err != nil {
		return nil, nil, ErrOrderNotFound
	}
	if !ord.IsPending() {
		return nil, nil, ErrOrderNotPayable
	}

	// 金额默认取订单总额；显式传入时必须与订单总额一致
	amount := req.Amount
	if amount <= 0 {
		amount = ord.Total()
	} else if amount != ord.Total() {
		return nil, nil, ErrAmountMismatch
	}

	currency := req.Currency
	if currency == "" {
		currency = payment.CurrencyVND
	}

	// 复用仍在 pending 的支付记录
	existing, err := e.payments.GetActiveByOrderNo(ctx, req.OrderNo)
	if err == nil {
		existing.Amount = amount
		existing.Method = req.Method
		existing.Currency = currency
		if err := e.payments.Save(ctx, existing); err != nil {
			return nil, nil, fmt.Errorf("reset pending payment: %w", err)
		}
		return existing, ord, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("find active payment: %w", err)
	}

	// 上一次支付失败（如捕获被拒）时同样复用原行重新发起，
	// 同一订单不会因为反复结账而堆积支付记录
	latest, err := e.payments.GetLatestByOrderNo(ctx, req.OrderNo)
	if err == nil && latest.Status == string(payment.StatusFailed) {
		latest.Amount = amount
		latest.Method = req.Method
		latest.Currency = currency
		latest.Status = string(payment.StatusPending)
		latest.TransactionID = ""
		latest.ProviderOrderID = ""
		latest.PaidAt = nil
		if err := e.payments.Save(ctx, latest); err != nil {
			return nil, nil, fmt.Errorf("revive failed payment: %w", err)
		}
		return latest, ord, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("find latest payment: %w", err)
	}

	p := &payment.Payment{
		PaymentNo: utils.GeneratePaymentNo(),
		OrderNo:   req.OrderNo,
		UserID:    req.UserID,
		Method:    req.Method,
		Amount:    amount,
		Currency:  currency,
		Status:    string(payment.StatusPending),
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if err := e.payments.Create(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("create payment: %w", err)
	}
	return p, ord, nil
}

// LookupByOrderNo 按交易参考号（订单号）查找支付与订单
func (e *Engine) LookupByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, *order.Order, error) {
	ord, err := e.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, nil, ErrOrderNotFound
	}
	p, err := e.payments.GetLatestByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, nil, ErrPaymentNotFound
	}
	return p, ord, nil
}

// LookupByPaymentNo 按支付单号查找支付
func (e *Engine) LookupByPaymentNo(ctx context.Context, paymentNo string) (*payment.Payment, error) {
	p, err := e.payments.GetByPaymentNo(ctx, paymentNo)
	if err != nil {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

// AttachProviderOrder 记录托管渠道返回的渠道订单号
func (e *Engine) AttachProviderOrder(ctx context.Context, paymentNo, providerOrderID string) error {
	return e.payments.SetProviderOrder(ctx, paymentNo, providerOrderID)
}

// Apply 将网关事件原子地应用到支付与订单
//
// 迁移表：
//
//	pending + 回调/通知成功      → 支付 completed，订单不变
//	pending + 回调明确失败        → 支付 failed，订单 canceled
//	pending + 捕获成功            → 支付 completed，订单 pending→picking
//	pending + 捕获失败            → 支付 failed，订单不变（可重试结账）
//	pending + 超时清扫            → 支付 canceled，订单 canceled
//	completed + 退款成功          → 支付 refunded
//	任意终态 + 其他事件           → 不应用，按幂等空操作应答
func (e *Engine) Apply(ctx context.Context, p *payment.Payment, event types.Event, transactionID string) (*types.ApplyResult, error) {
	// 终态支付不再接受迁移；退款是 completed 之后唯一的例外
	if p.IsTerminal() && event != types.EventRefunded {
		logger.InfoString("Reconcile", "Apply",
			fmt.Sprintf("支付 %s 已处于终态 %s，事件 %s 按重复处理", p.PaymentNo, p.Status, event))
		return &types.ApplyResult{Duplicate: true}, nil
	}

	switch event {
	case types.EventReturnSuccess, types.EventNotifySuccess:
		applied, err := e.completePayment(ctx, p, transactionID)
		if err != nil {
			return nil, err
		}
		// 浏览器回跳路径不推进履约，异步通知路径同样只确认支付
		return &types.ApplyResult{Applied: applied, Duplicate: !applied}, nil

	case types.EventCaptureSuccess:
		applied, err := e.completePayment(ctx, p, transactionID)
		if err != nil {
			return nil, err
		}
		if applied {
			// 捕获成功推进订单到履约入口状态
			if _, err := e.orders.Transition(ctx, p.OrderNo,
				[]string{string(order.StatusPending)}, order.StatusPicking); err != nil {
				return nil, fmt.Errorf("advance order: %w", err)
			}
		}
		return &types.ApplyResult{Applied: applied, Duplicate: !applied}, nil

	case types.EventCallbackFailed:
		applied, err := e.payments.Transition(ctx, p.PaymentNo,
			payment.StatusPending, payment.StatusFailed, nil)
		if err != nil {
			return nil, fmt.Errorf("fail payment: %w", err)
		}
		if applied {
			// 明确失败的支付连带取消订单；已取消的订单不会被复活
			if _, err := e.orders.Transition(ctx, p.OrderNo,
				order.CancelableStatuses, order.StatusCanceled); err != nil {
				return nil, fmt.Errorf("cancel order: %w", err)
			}
		}
		return &types.ApplyResult{Applied: applied, Duplicate: !applied}, nil

	case types.EventCaptureFailed:
		// 订单保持 pending，客户可以重新结账
		applied, err := e.payments.Transition(ctx, p.PaymentNo,
			payment.StatusPending, payment.StatusFailed, nil)
		if err != nil {
			return nil, fmt.Errorf("fail payment: %w", err)
		}
		return &types.ApplyResult{Applied: applied, Duplicate: !applied}, nil

	case types.EventExpired:
		applied, err := e.payments.Transition(ctx, p.PaymentNo,
			payment.StatusPending, payment.StatusCanceled, nil)
		if err != nil {
			return nil, fmt.Errorf("cancel payment: %w", err)
		}
		if applied {
			if _, err := e.orders.Transition(ctx, p.OrderNo,
				order.CancelableStatuses, order.StatusCanceled); err != nil {
				return nil, fmt.Errorf("cancel order: %w", err)
			}
		}
		return &types.ApplyResult{Applied: applied, Duplicate: !applied}, nil

	case types.EventRefunded:
		applied, err := e.payments.Transition(ctx, p.PaymentNo,
			payment.StatusCompleted, payment.StatusRefunded, nil)
		if err != nil {
			return nil, fmt.Errorf("refund payment: %w", err)
		}
		return &types.ApplyResult{Applied: applied, Duplicate: !applied}, nil

	default:
		return nil, ErrUnsupportedEvent
	}
}

// completePayment pending → completed 的条件迁移，记录渠道交易号和完成时间
func (e *Engine) completePayment(ctx context.Context, p *payment.Payment, transactionID string) (bool, error) {
	now := time.Now()
	extra := map[string]interface{}{
		"paid_at": &now,
	}
	if transactionID != "" {
		extra["transaction_id"] = transactionID
	}
	applied, err := e.payments.Transition(ctx, p.PaymentNo,
		payment.StatusPending, payment.StatusCompleted, extra)
	if err != nil {
		return false, fmt.Errorf("complete payment: %w", err)
	}
	return applied, nil
}
