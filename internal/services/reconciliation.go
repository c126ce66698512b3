package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"salome-be/internal/apperrors"
	"salome-be/internal/metrics"
	"salome-be/internal/models"
	"salome-be/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconciliationService owns the payment rows and keeps them consistent with
// the membership ledger. Webhook handling is idempotent: the unique
// provider_transaction_id column makes a redelivered notification a no-op.
type ReconciliationService struct {
	db         *sql.DB
	logger     *zap.Logger
	midtrans   *service.MidtransService
	membership *MembershipService
	email      *service.MultiProviderEmailService
}

func NewReconciliationService(db *sql.DB, logger *zap.Logger, midtrans *service.MidtransService, membership *MembershipService, email *service.MultiProviderEmailService) *ReconciliationService {
	return &ReconciliationService{
		db:         db,
		logger:     logger,
		midtrans:   midtrans,
		membership: membership,
		email:      email,
	}
}

const paymentLinkExpiryMinutes = 24 * 60

// CreateGroupPaymentLink issues a payment link for the caller's pending
// share. An existing pending payment for the same membership is reused so a
// member refreshing the page does not pile up orders.
func (s *ReconciliationService) CreateGroupPaymentLink(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupPaymentLinkResponse, error) {
	var amount int64
	var status models.UserStatus
	err := s.db.QueryRowContext(ctx, `
		SELECT payment_amount, user_status FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`, groupID, userID).Scan(&amount, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "membership not found")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load membership", err)
	}
	if status != models.UserStatusPending {
		return nil, apperrors.Newf(apperrors.KindPrecondition, "membership is %s, nothing to pay", status)
	}

	var existing models.GroupPaymentLinkResponse
	var existingURL sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT id, provider_order_id, amount, payment_url FROM payments
		WHERE group_id = $1 AND user_id = $2 AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1
	`, groupID, userID).Scan(&existing.PaymentID, &existing.OrderID, &existing.Amount, &existingURL)
	if err == nil && existingURL.Valid {
		existing.PaymentURL = existingURL.String
		return &existing, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to check existing payments", err)
	}

	paymentID := uuid.New()
	orderID := fmt.Sprintf("SLM-%s", uuid.New().String())

	link, err := s.midtrans.CreatePaymentLink(ctx, orderID, amount, paymentLinkExpiryMinutes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to create payment link", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (id, group_id, user_id, amount, currency, status, provider_order_id, payment_url)
		VALUES ($1, $2, $3, $4, 'IDR', $5, $6, $7)
	`, paymentID, groupID, userID, amount, models.PaymentStatusPending, orderID, link.PaymentURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to save payment", err)
	}

	s.logger.Info("payment link created",
		zap.String("group_id", groupID.String()),
		zap.String("user_id", userID.String()),
		zap.String("order_id", orderID),
		zap.Int64("amount", amount))

	return &models.GroupPaymentLinkResponse{
		PaymentID:  paymentID,
		OrderID:    orderID,
		Amount:     amount,
		PaymentURL: link.PaymentURL,
	}, nil
}

// HandleNotification reconciles one gateway webhook against the payment row.
// Settlement flips the payment and the membership in the same transaction.
// Amount mismatch parks the payment for operator review rather than
// crediting a wrong figure. Duplicate deliveries of the same transaction_id
// are absorbed silently.
func (s *ReconciliationService) HandleNotification(ctx context.Context, notif *models.PaymentNotification) error {
	var payment models.Payment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_id, user_id, amount, status FROM payments WHERE provider_order_id = $1
	`, notif.OrderID).Scan(&payment.ID, &payment.GroupID, &payment.UserID, &payment.Amount, &payment.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.PaymentNotifications.WithLabelValues("ignored").Inc()
			return apperrors.New(apperrors.KindNotFound, "unknown order id")
		}
		return apperrors.Wrap(apperrors.KindInternal, "failed to load payment", err)
	}

	if payment.Status == models.PaymentStatusPaid {
		metrics.PaymentNotifications.WithLabelValues("duplicate").Inc()
		return nil
	}

	switch {
	case s.midtrans.IsSettled(notif.TransactionStatus):
		return s.settle(ctx, &payment, notif)
	case s.midtrans.IsFailed(notif.TransactionStatus):
		status := models.PaymentStatusFailed
		if notif.TransactionStatus == "cancel" || notif.TransactionStatus == "expire" {
			status = models.PaymentStatusCancelled
		}
		if _, err := s.db.ExecContext(ctx, `
			UPDATE payments SET status = $1, payment_method = $2, updated_at = NOW() WHERE id = $3
		`, status, notif.PaymentType, payment.ID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to update payment", err)
		}
		metrics.PaymentNotifications.WithLabelValues(string(status)).Inc()
		return nil
	default:
		// pending / challenge: nothing to do yet
		metrics.PaymentNotifications.WithLabelValues("ignored").Inc()
		return nil
	}
}

func (s *ReconciliationService) settle(ctx context.Context, payment *models.Payment, notif *models.PaymentNotification) error {
	gross, err := parseGrossAmount(notif.GrossAmount)
	if err != nil {
		return apperrors.Wrap(apperrors.KindValidation, "unparseable gross_amount", err)
	}
	if gross != payment.Amount {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE payments SET status = $1, provider_transaction_id = $2, updated_at = NOW() WHERE id = $3
		`, models.PaymentStatusMismatch, notif.TransactionID, payment.ID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to park mismatched payment", err)
		}
		metrics.PaymentNotifications.WithLabelValues("mismatch").Inc()
		s.logger.Warn("payment amount mismatch",
			zap.String("order_id", notif.OrderID),
			zap.Int64("expected", payment.Amount),
			zap.Int64("received", gross))
		return apperrors.Newf(apperrors.KindMismatch, "amount mismatch: expected %d, received %d", payment.Amount, gross)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, provider_transaction_id = $2, payment_method = $3, updated_at = NOW()
		WHERE id = $4 AND status != $1
	`, models.PaymentStatusPaid, notif.TransactionID, notif.PaymentType, payment.ID)
	if err != nil {
		if isUniqueViolation(err, "payments_provider_transaction_id_key") {
			metrics.PaymentNotifications.WithLabelValues("duplicate").Inc()
			return nil
		}
		return apperrors.Wrap(apperrors.KindInternal, "failed to mark payment paid", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		metrics.PaymentNotifications.WithLabelValues("duplicate").Inc()
		return nil
	}

	if err := s.membership.recordPaymentTx(ctx, tx, payment.GroupID, payment.UserID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to commit settlement", err)
	}

	metrics.PaymentNotifications.WithLabelValues("settled").Inc()
	s.logger.Info("payment settled",
		zap.String("order_id", notif.OrderID),
		zap.String("transaction_id", notif.TransactionID),
		zap.Int64("amount", gross))

	s.sendReceipt(payment, notif.OrderID)
	return nil
}

// sendReceipt is best-effort: the settlement already committed.
func (s *ReconciliationService) sendReceipt(payment *models.Payment, orderID string) {
	if s.email == nil {
		return
	}
	var data service.PaymentReceiptData
	err := s.db.QueryRow(`
		SELECT u.email, u.full_name, g.name, a.name
		FROM users u, groups g
		JOIN apps a ON a.id = g.app_id
		WHERE u.id = $1 AND g.id = $2
	`, payment.UserID, payment.GroupID).Scan(&data.Email, &data.Name, &data.GroupName, &data.AppName)
	if err != nil {
		s.logger.Warn("failed to load receipt data", zap.Error(err))
		return
	}
	data.Amount = payment.Amount
	data.OrderID = orderID

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.email.SendPaymentReceipt(ctx, data); err != nil {
		s.logger.Warn("failed to send payment receipt", zap.Error(err))
	}
}

// SyncPaymentStatus polls the gateway for an order and feeds the answer
// through the same reconciliation path as a webhook.
func (s *ReconciliationService) SyncPaymentStatus(ctx context.Context, orderID string) error {
	status, err := s.midtrans.GetTransactionStatus(ctx, orderID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to query gateway", err)
	}
	return s.HandleNotification(ctx, &models.PaymentNotification{
		OrderID:           status.OrderID,
		TransactionID:     status.TransactionID,
		TransactionStatus: status.TransactionStatus,
		FraudStatus:       status.FraudStatus,
		PaymentType:       status.PaymentType,
		GrossAmount:       status.GrossAmount,
	})
}

// ListGroupPayments returns the payment history for one group.
func (s *ReconciliationService) ListGroupPayments(ctx context.Context, groupID uuid.UUID) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, user_id, amount, currency, status, provider_order_id, provider_transaction_id, payment_url, payment_method, created_at, updated_at
		FROM payments WHERE group_id = $1 ORDER BY created_at DESC
	`, groupID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to list payments", err)
	}
	return scanPayments(rows)
}

// ListUserPayments returns the caller's payment history across all groups.
func (s *ReconciliationService) ListUserPayments(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, user_id, amount, currency, status, provider_order_id, provider_transaction_id, payment_url, payment_method, created_at, updated_at
		FROM payments WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to list payments", err)
	}
	return scanPayments(rows)
}

// ListMismatched returns payments parked for operator review.
func (s *ReconciliationService) ListMismatched(ctx context.Context) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, user_id, amount, currency, status, provider_order_id, provider_transaction_id, payment_url, payment_method, created_at, updated_at
		FROM payments WHERE status = 'mismatch' ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to list mismatched payments", err)
	}
	return scanPayments(rows)
}

func scanPayments(rows *sql.Rows) ([]models.Payment, error) {
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.GroupID, &p.UserID, &p.Amount, &p.Currency, &p.Status,
			&p.ProviderOrderID, &p.ProviderTransactionID, &p.PaymentURL, &p.PaymentMethod,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to scan payment", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// parseGrossAmount reads Midtrans's decimal-string amounts ("100000.00")
// into whole rupiah. Any fractional part is rejected.
func parseGrossAmount(raw string) (int64, error) {
	whole, frac, found := strings.Cut(raw, ".")
	if found && strings.Trim(frac, "0") != "" {
		return 0, fmt.Errorf("fractional rupiah amount %q", raw)
	}
	return strconv.ParseInt(whole, 10, 64)
}
