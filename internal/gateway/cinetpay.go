package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CinetPay is the HTTP client for api-checkout.cinetpay.com
type CinetPay struct {
	apiKey  string
	siteID  string
	baseURL string
	client  *http.Client
}

func NewCinetPay(apiKey, siteID, baseURL string) *CinetPay {
	return &CinetPay{
		apiKey:  apiKey,
		siteID:  siteID,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initPayload struct {
	APIKey string `json:"apikey"`
	SiteID string `json:"site_id"`
	InitRequest
}

type initData struct {
	PaymentURL   string `json:"payment_url"`
	PaymentToken string `json:"payment_token"`
}

type statusData struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

func (c *CinetPay) Initialize(ctx context.Context, req InitRequest) (*InitResponse, error) {
	if c.apiKey == "" || c.siteID == "" {
		return nil, fmt.Errorf("cinetpay credentials not configured")
	}
	env, _, err := c.post(ctx, "paymentInitialization", initPayload{APIKey: c.apiKey, SiteID: c.siteID, InitRequest: req})
	if err != nil {
		return nil, err
	}
	if env.Code != CodeInitialized {
		return nil, fmt.Errorf("cinetpay init refused: code %s: %s", env.Code, env.Message)
	}
	var data initData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode cinetpay init data: %w", err)
	}
	return &InitResponse{PaymentURL: data.PaymentURL, PaymentToken: data.PaymentToken}, nil
}

func (c *CinetPay) CheckStatus(ctx context.Context, transactionID string) (*StatusResponse, error) {
	env, raw, err := c.post(ctx, "checkPayStatus", map[string]string{
		"apikey":         c.apiKey,
		"site_id":        c.siteID,
		"transaction_id": transactionID,
	})
	if err != nil {
		return nil, err
	}
	res := &StatusResponse{Code: env.Code, Message: env.Message, Raw: raw}
	var data statusData
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &data) == nil {
		res.Amount = data.Amount.String()
		res.Currency = data.Currency
	}
	return res, nil
}

// post sends a JSON body to /v2/?method=<method>. CinetPay answers with a JSON
// envelope even for business refusals, so only transport or decode problems are errors.
func (c *CinetPay) post(ctx context.Context, method string, payload any) (*envelope, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/?method="+method, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("cinetpay %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read cinetpay %s response: %w", method, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("cinetpay %s: unexpected response (status %d): %w", method, resp.StatusCode, err)
	}
	return &env, raw, nil
}
