package bootstrap

import (
	"time"

	"mall/app/services/reconcile"
	"mall/app/services/sweeper"
	"mall/pkg/config"
	"mall/pkg/redis"
)

// SetupSweeper 构建过期支付清扫任务
// 多实例部署时借助 Redis 租约互斥，保证同一时刻只有一个实例在清扫。
func SetupSweeper() *sweeper.Sweeper {
	return sweeper.NewSweeper(reconcile.NewEngine(), sweeper.Config{
		Interval:  time.Duration(config.GetInt("sweeper.interval")) * time.Second,
		MaxAge:    time.Duration(config.GetInt("sweeper.max_age_hours")) * time.Hour,
		BatchSize: config.GetInt("sweeper.batch_size"),
		Lease:     redis.Redis,
	})
}
