package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateOrderNo 生成业务订单号
func GenerateOrderNo() string {
	return fmt.Sprintf("O%s%s", time.Now().Format("20060102150405"), shortID())
}

// GeneratePaymentNo 生成业务支付单号
func GeneratePaymentNo() string {
	return fmt.Sprintf("P%s%s", time.Now().Format("20060102150405"), shortID())
}

// GenerateRefundNo 生成业务退款单号
func GenerateRefundNo() string {
	return fmt.Sprintf("R%s%s", time.Now().Format("20060102150405"), shortID())
}

// shortID 取 UUID 的前八位作为随机后缀
func shortID() string {
	return strings.Split(uuid.New().String(), "-")[0]
}
