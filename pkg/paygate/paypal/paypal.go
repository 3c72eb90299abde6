// Package paypal 实现托管下单/捕获网关（PayPal 协议）的客户端
//
// 下单、捕获、退款都是带超时的出站 API 调用：
//   - 下单失败不改动支付状态，由调用方重试
//   - 捕获在渠道侧不天然幂等，调用前必须检查支付状态并短路
package paypal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"mall/app/models/payment"
	"mall/config"
	"mall/pkg/logger"
	"mall/pkg/paygate/types"
)

// 渠道状态常量
const (
	StatusCompleted = "COMPLETED"
	IntentCapture   = "CAPTURE"
	RelApprove      = "approve"
)

// Service 托管网关服务
type Service struct {
	client     *resty.Client
	cfg        config.PayPalConfig
	reconciler types.Reconciler

	// 访问令牌缓存
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewService 创建网关服务
// 商户凭证缺失属于配置错误，启动时立即失败
func NewService(cfg config.PayPalConfig, reconciler types.Reconciler) (*Service, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("paypal: missing merchant credentials")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("paypal: missing base url")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Service{
		client:     client,
		cfg:        cfg,
		reconciler: reconciler,
	}, nil
}

// tokenResponse OAuth2 令牌应答
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// link 应答中的超链接
type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// orderResponse 下单应答信封
type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
}

// captureResponse 捕获应答信封
type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// refundResponse 退款应答信封
type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// getAccessToken 获取访问令牌，带缓存
func (s *Service) getAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 留出 60 秒余量，避免用到刚好过期的令牌
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry.Add(-60*time.Second)) {
		return s.accessToken, nil
	}

	var token tokenResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBasicAuth(s.cfg.ClientID, s.cfg.Secret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&token).
		Post("/v1/oauth2/token")
	if err != nil {
		return "", fmt.Errorf("paypal: request token: %w", err)
	}
	if resp.StatusCode() != 200 || token.AccessToken == "" {
		return "", fmt.Errorf("paypal: request token failed with status %d", resp.StatusCode())
	}

	s.accessToken = token.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return s.accessToken, nil
}

// CreateOrder 在渠道侧创建订单，返回用户批准地址
// 商户参考号使用支付单号。非 2xx 应答或缺失批准链接都是硬失败，
// 不改动支付状态，调用方可以直接重试。
func (s *Service) CreateOrder(ctx context.Context, p *payment.Payment) (string, error) {
	token, err := s.getAccessToken(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"intent": IntentCapture,
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": p.PaymentNo,
				"amount": map[string]string{
					"currency_code": p.Currency,
					"value":         strconv.FormatInt(p.Amount, 10),
				},
			},
		},
	}

	var orderResp orderResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&orderResp).
		Post("/v2/checkout/orders")
	if err != nil {
		return "", fmt.Errorf("paypal: create order: %w", err)
	}
	if resp.StatusCode() != 201 {
		return "", fmt.Errorf("paypal: create order failed with status %d", resp.StatusCode())
	}

	approveURL := ""
	for _, l := range orderResp.Links {
		if l.Rel == RelApprove {
			approveURL = l.Href
			break
		}
	}
	if approveURL == "" {
		return "", fmt.Errorf("paypal: create order response missing approve link")
	}

	// 记录渠道订单号，捕获时凭此对应回支付单
	if err := s.reconciler.AttachProviderOrder(ctx, p.PaymentNo, orderResp.ID); err != nil {
		return "", fmt.Errorf("paypal: attach provider order: %w", err)
	}

	return approveURL, nil
}

// CaptureOrder 捕获渠道订单
// 捕获成功：支付完成并推进订单到拣货；捕获失败：支付置为失败，订单
// 保持待支付以便重试结账。支付已完成时短路返回库内结果，不二次调用渠道。
func (s *Service) CaptureOrder(ctx context.Context, providerOrderID, paymentNo string) (*types.CaptureResult, error) {
	p, err := s.reconciler.LookupByPaymentNo(ctx, paymentNo)
	if err != nil {
		return nil, fmt.Errorf("paypal: payment not found: %w", err)
	}

	// 渠道侧捕获不幂等，已完成的支付直接返回库内结果
	if p.IsCompleted() {
		return &types.CaptureResult{
			PaymentNo:     p.PaymentNo,
			TransactionID: p.TransactionID,
			Status:        p.Status,
			Duplicate:     true,
		}, nil
	}

	token, err := s.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var captureResp captureResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetResult(&captureResp).
		Post("/v2/checkout/orders/" + providerOrderID + "/capture")

	// 网络失败与非成功应答同样按捕获失败处理
	if err != nil || resp.StatusCode() != 201 || captureResp.Status != StatusCompleted {
		if err != nil {
			logger.ErrorString("PayPal", "Capture", err.Error())
		} else {
			logger.WarnString("PayPal", "Capture",
				fmt.Sprintf("捕获失败，status=%d，订单号=%s", resp.StatusCode(), providerOrderID))
		}
		if _, applyErr := s.reconciler.Apply(ctx, p, types.EventCaptureFailed, ""); applyErr != nil {
			return nil, fmt.Errorf("paypal: apply capture failure: %w", applyErr)
		}
		return &types.CaptureResult{
			PaymentNo: p.PaymentNo,
			Status:    string(payment.StatusFailed),
		}, nil
	}

	// 提取渠道捕获号
	captureID := ""
	for _, pu := range captureResp.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			captureID = pu.Payments.Captures[0].ID
			break
		}
	}

	result, err := s.reconciler.Apply(ctx, p, types.EventCaptureSuccess, captureID)
	if err != nil {
		return nil, fmt.Errorf("paypal: apply capture success: %w", err)
	}

	return &types.CaptureResult{
		PaymentNo:     p.PaymentNo,
		TransactionID: captureID,
		Status:        string(payment.StatusCompleted),
		Duplicate:     result.Duplicate,
	}, nil
}

// RefundCapture 对已捕获的交易发起全额退款，返回渠道退款号
func (s *Service) RefundCapture(ctx context.Context, captureID string, amount int64, currency string) (string, error) {
	token, err := s.getAccessToken(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"amount": map[string]string{
			"currency_code": currency,
			"value":         strconv.FormatInt(amount, 10),
		},
	}

	var refundResp refundResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&refundResp).
		Post("/v2/payments/captures/" + captureID + "/refund")
	if err != nil {
		return "", fmt.Errorf("paypal: refund: %w", err)
	}
	if resp.StatusCode() != 201 || refundResp.ID == "" {
		return "", fmt.Errorf("paypal: refund failed with status %d", resp.StatusCode())
	}

	return refundResp.ID, nil
}
