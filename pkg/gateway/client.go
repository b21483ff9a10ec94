// Package gateway 封装收单网关（Safepay 风格）的 HTTP 客户端
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config 网关配置
type Config struct {
	Name      string `mapstructure:"name"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Timeout   int    `mapstructure:"timeout"`
	IsSandbox bool   `mapstructure:"is_sandbox"`
}

// Client 网关客户端
type Client struct {
	config *Config
	http   *http.Client
}

// NewClient 创建网关客户端
func NewClient(config *Config) *Client {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
	}
}

// Name 网关名称
func (c *Client) Name() string {
	return c.config.Name
}

// 网关侧交易状态
const (
	TxnStatusPaid     = "paid"
	TxnStatusPending  = "pending"
	TxnStatusFailed   = "failed"
	TxnStatusRefunded = "refunded"
)

// ChargeRequest 创建收款请求
type ChargeRequest struct {
	ReferenceNo string `json:"reference_no"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

// ChargeResponse 创建收款响应
type ChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
}

// CreateCharge 在网关创建一笔收款
func (c *Client) CreateCharge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if c.config.IsSandbox {
		return &ChargeResponse{
			TransactionID: fmt.Sprintf("sbx_txn_%d", time.Now().UnixNano()),
			Status:        TxnStatusPending,
			CheckoutURL:   fmt.Sprintf("%s/checkout/%s", c.config.BaseURL, req.ReferenceNo),
		}, nil
	}

	var resp ChargeResponse
	if err := c.post(ctx, "/v1/charges", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryCharge 查询收款状态
func (c *Client) QueryCharge(ctx context.Context, transactionID string) (*ChargeResponse, error) {
	if c.config.IsSandbox {
		return &ChargeResponse{TransactionID: transactionID, Status: TxnStatusPaid}, nil
	}

	var resp ChargeResponse
	if err := c.get(ctx, "/v1/charges/"+transactionID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefundRequest 退款请求
type RefundRequest struct {
	TransactionID string `json:"transaction_id"`
	RefundNo      string `json:"refund_no"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason,omitempty"`
}

// RefundResponse 退款响应
type RefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// ProcessRefund 向网关发起退款
func (c *Client) ProcessRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	if c.config.IsSandbox {
		return &RefundResponse{
			RefundID: fmt.Sprintf("sbx_rf_%d", time.Now().UnixNano()),
			Status:   TxnStatusRefunded,
		}, nil
	}

	var resp RefundResponse
	if err := c.post(ctx, "/v1/refunds", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse gateway response: %w", err)
		}
	}
	return nil
}

// APIError 网关返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}
