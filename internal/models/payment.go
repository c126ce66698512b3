package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusMismatch  PaymentStatus = "mismatch"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is one member's attempt to settle their share. The unique
// provider_transaction_id is the idempotency key for webhook delivery.
type Payment struct {
	ID                    uuid.UUID     `json:"id" db:"id"`
	GroupID               uuid.UUID     `json:"group_id" db:"group_id"`
	UserID                uuid.UUID     `json:"user_id" db:"user_id"`
	Amount                int64         `json:"amount" db:"amount"`
	Currency              string        `json:"currency" db:"currency"`
	Status                PaymentStatus `json:"status" db:"status"`
	ProviderOrderID       string        `json:"provider_order_id" db:"provider_order_id"`
	ProviderTransactionID *string       `json:"provider_transaction_id" db:"provider_transaction_id"`
	PaymentURL            *string       `json:"payment_url" db:"payment_url"`
	PaymentMethod         *string       `json:"payment_method" db:"payment_method"`
	CreatedAt             time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at" db:"updated_at"`
}

type GroupPaymentLinkRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

type GroupPaymentLinkResponse struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	OrderID    string    `json:"order_id"`
	Amount     int64     `json:"amount"`
	PaymentURL string    `json:"payment_url"`
}

// PaymentNotification is the Midtrans webhook payload subset we act on.
type PaymentNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	TransactionID     string `json:"transaction_id" binding:"required"`
	TransactionStatus string `json:"transaction_status" binding:"required"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	StatusCode        string `json:"status_code"`
}
