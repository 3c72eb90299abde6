package config

import "mall/pkg/config"

func init() {
	// VNPay 协议网关：签名跳转 + 服务器回调
	config.Add("vnpay", func() map[string]interface{} {
		return map[string]interface{}{
			"tmn_code":    config.Env("VNPAY_TMN_CODE", ""),
			"hash_secret": config.Env("VNPAY_HASH_SECRET", ""),
			"pay_url":     config.Env("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			"return_url":  config.Env("VNPAY_RETURN_URL", ""),
		}
	})

	// PayPal 协议网关：托管下单 / 捕获 / 退款
	config.Add("paypal", func() map[string]interface{} {
		return map[string]interface{}{
			"base_url":  config.Env("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
			"client_id": config.Env("PAYPAL_CLIENT_ID", ""),
			"secret":    config.Env("PAYPAL_SECRET", ""),
			// 出站调用超时，单位：秒
			"timeout": config.Env("PAYPAL_TIMEOUT", 10),
		}
	})
}

// VNPayConfig VNPay 网关配置
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// PayPalConfig PayPal 网关配置
type PayPalConfig struct {
	BaseURL  string
	ClientID string
	Secret   string
	Timeout  int
}

// LoadVNPayConfig 从配置读取 VNPay 网关配置
func LoadVNPayConfig() VNPayConfig {
	return VNPayConfig{
		TmnCode:    config.GetString("vnpay.tmn_code"),
		HashSecret: config.GetString("vnpay.hash_secret"),
		PayURL:     config.GetString("vnpay.pay_url"),
		ReturnURL:  config.GetString("vnpay.return_url"),
	}
}

// LoadPayPalConfig 从配置读取 PayPal 网关配置
func LoadPayPalConfig() PayPalConfig {
	return PayPalConfig{
		BaseURL:  config.GetString("paypal.base_url"),
		ClientID: config.GetString("paypal.client_id"),
		Secret:   config.GetString("paypal.secret"),
		Timeout:  config.GetInt("paypal.timeout", 10),
	}
}
