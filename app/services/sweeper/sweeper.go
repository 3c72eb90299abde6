// Package sweeper 实现过期支付的后台清扫任务
//
// 周期性扫描停留在 pending 超过时限的支付，将其连同订单一起取消，
// 回收被放弃的支付尝试。单条记录的失败只记录日志，不中断本轮清扫。
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"mall/app/repositories"
	"mall/app/services/reconcile"
	"mall/pkg/logger"
	"mall/pkg/paygate/types"
	"mall/pkg/redis"
)

// 默认配置
const (
	// DefaultMaxAge 支付在 pending 停留超过该时长即被视为放弃
	DefaultMaxAge = 24 * time.Hour
	// DefaultInterval 清扫周期
	DefaultInterval = 10 * time.Minute
	// DefaultBatchSize 每批处理的记录数
	DefaultBatchSize = 100
	// DefaultRatePerSecond 单条处理的速率上限，避免清扫挤占正常流量
	DefaultRatePerSecond = 50

	// leaseKey 多实例部署时的清扫租约键
	leaseKey = "mall:sweeper:lease"
)

// Config 清扫任务配置
type Config struct {
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
	// Lease 多实例部署时用于互斥的 Redis 客户端，单实例可为 nil
	Lease *redis.RedisClient
}

// Sweeper 过期支付清扫器
type Sweeper struct {
	engine   *reconcile.Engine
	payments *repositories.PaymentRepository
	config   Config
	limiter  *rate.Limiter
	holder   string // 租约持有者标识

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSweeper 创建清扫器
func NewSweeper(engine *reconcile.Engine, config Config) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	return &Sweeper{
		engine:   engine,
		payments: repositories.NewPaymentRepository(),
		config:   config,
		limiter:  rate.NewLimiter(rate.Limit(DefaultRatePerSecond), DefaultBatchSize),
		holder:   uuid.New().String(),
		stopChan: make(chan struct{}),
	}
}

// Start 启动清扫循环
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
	logger.InfoString("Sweeper", "Start", "过期支付清扫任务已启动")
}

// run 清扫主循环
func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			logger.InfoString("Sweeper", "Stop", "清扫循环退出")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.config.Interval)
			swept, err := s.SweepOnce(ctx)
			cancel()
			if err != nil {
				logger.ErrorString("Sweeper", "Sweep", err.Error())
				continue
			}
			if swept > 0 {
				logger.InfoString("Sweeper", "Sweep", fmt.Sprintf("本轮取消 %d 笔过期支付", swept))
			}
		}
	}
}

// SweepOnce 执行一轮清扫，返回被取消的支付数量
// 多实例部署时先抢租约，没抢到说明其他实例正在清扫，本轮跳过。
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.config.Lease != nil {
		if !s.config.Lease.Acquire(leaseKey, s.holder, s.config.Interval) {
			return 0, nil
		}
		defer s.config.Lease.Release(leaseKey, s.holder)
	}

	cutoff := time.Now().Add(-s.config.MaxAge)
	swept := 0

	for {
		expired, err := s.payments.FindExpiredPending(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return swept, fmt.Errorf("find expired payments: %w", err)
		}
		if len(expired) == 0 {
			return swept, nil
		}

		for i := range expired {
			if err := s.limiter.Wait(ctx); err != nil {
				return swept, err
			}

			p := expired[i]
			result, err := s.engine.Apply(ctx, &p, types.EventExpired, "")
			if err != nil {
				// 单条失败不影响其余记录的清扫
				logger.ErrorString("Sweeper", "Cancel",
					fmt.Sprintf("取消支付 %s 失败: %v", p.PaymentNo, err))
				continue
			}
			if result.Applied {
				swept++
			}
		}

		// 不足一批说明已经扫完
		if len(expired) < s.config.BatchSize {
			return swept, nil
		}
	}
}

// Stop 优雅关闭清扫器
func (s *Sweeper) Stop() {
	close(s.stopChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("Sweeper", "Stop", "清扫任务已停止")
	case <-time.After(30 * time.Second):
		logger.WarnString("Sweeper", "Stop", "清扫任务停止超时")
	}
}
