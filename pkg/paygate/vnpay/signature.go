package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// 签名相关的参数名
const (
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// Canonicalize 将参数集规范化为待签名串
// 规则必须与渠道侧完全一致，任何偏差都会导致全部回调被拒：
// 1. 丢弃空值参数；
// 2. 按 percent-encode 后的键名做字节序升序排序；
// 3. 值做 percent-encode（空格编码为 +）；
// 4. 以 key=value 形式用 & 连接。
// 入参 map 不会被修改，调用方持有的参数集不受影响。
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return url.QueryEscape(keys[i]) < url.QueryEscape(keys[j])
	})

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// Sign 对规范化串计算 HMAC-SHA512 签名，返回十六进制小写
func Sign(canonical string, secret []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 校验回调参数集的签名
// 重新计算除签名字段外全部参数的签名并做恒定时间比较。
// 签名字段缺失或为空一律拒绝，绝不放行。
func Verify(params map[string]string, secret []byte) bool {
	provided, ok := params[ParamSecureHash]
	if !ok || provided == "" {
		return false
	}

	filtered := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		filtered[k] = v
	}

	expected := Sign(Canonicalize(filtered), secret)

	providedBytes, err := hex.DecodeString(strings.ToLower(provided))
	if err != nil {
		// 非法的十六进制一律视为签名错误
		return false
	}
	expectedBytes, _ := hex.DecodeString(expected)
	return hmac.Equal(expectedBytes, providedBytes)
}
