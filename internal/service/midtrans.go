package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"salome-be/internal/config"

	"go.uber.org/zap"
)

// MidtransService talks to the Midtrans Payment Link API with HTTP basic
// auth on the server key.
type MidtransService struct {
	serverKey string
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

type MidtransPaymentLinkResponse struct {
	OrderID       string `json:"order_id"`
	PaymentLinkID string `json:"payment_link_id"`
	PaymentURL    string `json:"payment_url"`
	GrossAmount   int64  `json:"gross_amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	ExpiryTime    string `json:"expiry_time"`
}

type MidtransTransactionStatus struct {
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	GrossAmount       string `json:"gross_amount"`
	Currency          string `json:"currency"`
}

func NewMidtransService(logger *zap.Logger) *MidtransService {
	cfg := config.GetConfig()
	return &MidtransService{
		serverKey: cfg.Midtrans.ServerKey,
		baseURL:   cfg.Midtrans.BaseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

func (m *MidtransService) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	auth := base64.StdEncoding.EncodeToString([]byte(m.serverKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		m.logger.Warn("midtrans API error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return nil, fmt.Errorf("midtrans API error: status %d", resp.StatusCode)
	}
	return raw, nil
}

// CreatePaymentLink makes a payment link for one member's share. Amounts are
// whole rupiah.
func (m *MidtransService) CreatePaymentLink(ctx context.Context, orderID string, amount int64, expiryMinutes int) (*MidtransPaymentLinkResponse, error) {
	payload := map[string]any{
		"order_id":     orderID,
		"gross_amount": amount,
		"currency":     "IDR",
		"expiry_time":  fmt.Sprintf("%d minutes", expiryMinutes),
		"payment_settings": map[string]any{
			"payment_methods": []string{"credit_card", "bca_va", "bni_va", "bri_va", "gopay", "shopeepay", "qris"},
		},
	}

	raw, err := m.do(ctx, http.MethodPost, "/v1/payment-links", payload)
	if err != nil {
		return nil, err
	}

	var resp MidtransPaymentLinkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentURL == "" && resp.PaymentLinkID != "" {
		resp.PaymentURL = fmt.Sprintf("%s/payment-links/%s", m.baseURL, resp.PaymentLinkID)
	}
	return &resp, nil
}

// GetTransactionStatus queries the v2 status endpoint for an order.
func (m *MidtransService) GetTransactionStatus(ctx context.Context, orderID string) (*MidtransTransactionStatus, error) {
	raw, err := m.do(ctx, http.MethodGet, fmt.Sprintf("/v2/%s/status", orderID), nil)
	if err != nil {
		return nil, err
	}
	var status MidtransTransactionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (m *MidtransService) IsSettled(status string) bool {
	return status == "settlement" || status == "capture"
}

func (m *MidtransService) IsFailed(status string) bool {
	return status == "deny" || status == "cancel" || status == "expire" || status == "failure"
}
