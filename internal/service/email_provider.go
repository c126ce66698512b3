package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type PaymentReceiptData struct {
	Email     string
	Name      string
	GroupName string
	AppName   string
	Amount    int64
	OrderID   string
}

type BroadcastEmailData struct {
	Email   string
	Name    string
	Title   string
	Message string
}

// EmailProvider abstracts the transactional email vendors.
type EmailProvider interface {
	SendWelcomeEmail(ctx context.Context, email, name string) error
	SendPaymentReceipt(ctx context.Context, data PaymentReceiptData) error
	SendBroadcast(ctx context.Context, data BroadcastEmailData) error
}

// MultiProviderEmailService walks its providers in order and stops at the
// first one that delivers.
type MultiProviderEmailService struct {
	providers []EmailProvider
	logger    *zap.Logger
}

func NewMultiProviderEmailService(logger *zap.Logger, providers ...EmailProvider) *MultiProviderEmailService {
	return &MultiProviderEmailService{providers: providers, logger: logger}
}

func (m *MultiProviderEmailService) send(ctx context.Context, what string, fn func(EmailProvider) error) error {
	if len(m.providers) == 0 {
		return fmt.Errorf("no email providers configured")
	}
	var lastErr error
	for i, provider := range m.providers {
		if err := fn(provider); err != nil {
			m.logger.Warn("email provider failed",
				zap.String("email", what),
				zap.Int("provider", i+1),
				zap.Error(err))
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("all email providers failed: %w", lastErr)
}

func (m *MultiProviderEmailService) SendWelcomeEmail(ctx context.Context, email, name string) error {
	return m.send(ctx, "welcome", func(p EmailProvider) error {
		return p.SendWelcomeEmail(ctx, email, name)
	})
}

func (m *MultiProviderEmailService) SendPaymentReceipt(ctx context.Context, data PaymentReceiptData) error {
	return m.send(ctx, "payment_receipt", func(p EmailProvider) error {
		return p.SendPaymentReceipt(ctx, data)
	})
}

func (m *MultiProviderEmailService) SendBroadcast(ctx context.Context, data BroadcastEmailData) error {
	return m.send(ctx, "broadcast", func(p EmailProvider) error {
		return p.SendBroadcast(ctx, data)
	})
}
