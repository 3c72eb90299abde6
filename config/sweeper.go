package config

import "mall/pkg/config"

func init() {
	config.Add("sweeper", func() map[string]interface{} {
		return map[string]interface{}{
			// 清扫周期，单位：秒
			"interval": config.Env("SWEEPER_INTERVAL", 600),

			// 支付在 pending 停留超过该时长即被取消，单位：小时
			"max_age_hours": config.Env("SWEEPER_MAX_AGE_HOURS", 24),

			// 每批处理的记录数
			"batch_size": config.Env("SWEEPER_BATCH_SIZE", 100),
		}
	})
}
