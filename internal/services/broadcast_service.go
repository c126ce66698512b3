package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"salome-be/internal/apperrors"
	"salome-be/internal/metrics"
	"salome-be/internal/models"
	"salome-be/internal/service"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// broadcastTransitions: drafts can be scheduled, sent directly or cancelled;
// scheduled broadcasts fire or get cancelled. sent and cancelled are final.
var broadcastTransitions = map[models.BroadcastStatus][]models.BroadcastStatus{
	models.BroadcastStatusDraft:     {models.BroadcastStatusScheduled, models.BroadcastStatusSent, models.BroadcastStatusCancelled},
	models.BroadcastStatusScheduled: {models.BroadcastStatusSent, models.BroadcastStatusCancelled},
	models.BroadcastStatusSent:      {},
	models.BroadcastStatusCancelled: {},
}

func CheckBroadcastTransition(from, to models.BroadcastStatus) error {
	for _, allowed := range broadcastTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return apperrors.Newf(apperrors.KindInvalidTransition, "broadcast cannot go from %s to %s", from, to)
}

// BroadcastService manages platform announcements: created by admins as
// drafts, sent immediately or picked up by the scheduler, and fanned out to
// member notifications with best-effort email.
type BroadcastService struct {
	db     *sql.DB
	logger *zap.Logger
	email  *service.MultiProviderEmailService
}

func NewBroadcastService(db *sql.DB, logger *zap.Logger, email *service.MultiProviderEmailService) *BroadcastService {
	return &BroadcastService{db: db, logger: logger, email: email}
}

func (s *BroadcastService) Create(ctx context.Context, adminID uuid.UUID, req *models.CreateBroadcastRequest) (*models.Broadcast, error) {
	if req.TargetType == models.BroadcastTargetSelected && len(req.TargetGroupIDs) == 0 {
		return nil, apperrors.New(apperrors.KindValidation, "target_group_ids is required when target_type is selected")
	}
	for _, id := range req.TargetGroupIDs {
		if _, err := uuid.Parse(id); err != nil {
			return nil, apperrors.Newf(apperrors.KindValidation, "invalid group id %q", id)
		}
	}

	priority := req.Priority
	if priority == 0 {
		priority = 1
	}
	if priority < 1 || priority > 3 {
		return nil, apperrors.New(apperrors.KindValidation, "priority must be between 1 and 3")
	}

	now := time.Now()
	startDate := now
	status := models.BroadcastStatusDraft
	if req.StartDate != nil {
		parsed, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindValidation, "invalid start_date", err)
		}
		startDate = parsed
		if parsed.After(now) {
			status = models.BroadcastStatusScheduled
		}
	}

	var endDate *time.Time
	if req.EndDate != nil {
		parsed, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindValidation, "invalid end_date", err)
		}
		if !parsed.After(startDate) {
			return nil, apperrors.New(apperrors.KindValidation, "end_date must be after start_date")
		}
		endDate = &parsed
	}

	b := &models.Broadcast{
		ID:             uuid.New(),
		AdminID:        adminID,
		Title:          req.Title,
		Message:        req.Message,
		TargetType:     req.TargetType,
		TargetGroupIDs: req.TargetGroupIDs,
		Priority:       priority,
		Status:         status,
		StartDate:      startDate,
		EndDate:        endDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO broadcasts (id, admin_id, title, message, target_type, target_group_ids, priority, status, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.AdminID, b.Title, b.Message, b.TargetType, pq.Array(b.TargetGroupIDs), b.Priority, b.Status, b.StartDate, b.EndDate)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to create broadcast", err)
	}
	return b, nil
}

func (s *BroadcastService) Get(ctx context.Context, id uuid.UUID) (*models.Broadcast, error) {
	var b models.Broadcast
	var targetIDs pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT id, admin_id, title, message, target_type, target_group_ids, priority, status, start_date, end_date, sent_at, created_at, updated_at
		FROM broadcasts WHERE id = $1
	`, id).Scan(&b.ID, &b.AdminID, &b.Title, &b.Message, &b.TargetType, &targetIDs,
		&b.Priority, &b.Status, &b.StartDate, &b.EndDate, &b.SentAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "broadcast not found")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load broadcast", err)
	}
	b.TargetGroupIDs = targetIDs
	return &b, nil
}

func (s *BroadcastService) List(ctx context.Context, limit, offset int) (*models.BroadcastListResponse, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM broadcasts`).Scan(&total); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to count broadcasts", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, title, message, target_type, target_group_ids, priority, status, start_date, end_date, sent_at, created_at, updated_at
		FROM broadcasts ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to list broadcasts", err)
	}
	defer rows.Close()

	resp := &models.BroadcastListResponse{Broadcasts: []models.Broadcast{}, Total: total}
	for rows.Next() {
		var b models.Broadcast
		var targetIDs pq.StringArray
		if err := rows.Scan(&b.ID, &b.AdminID, &b.Title, &b.Message, &b.TargetType, &targetIDs,
			&b.Priority, &b.Status, &b.StartDate, &b.EndDate, &b.SentAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to scan broadcast", err)
		}
		b.TargetGroupIDs = targetIDs
		resp.Broadcasts = append(resp.Broadcasts, b)
	}
	return resp, rows.Err()
}

// Update edits a draft or scheduled broadcast in place.
func (s *BroadcastService) Update(ctx context.Context, id uuid.UUID, req *models.UpdateBroadcastRequest) (*models.Broadcast, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BroadcastStatusSent || b.Status == models.BroadcastStatusCancelled {
		return nil, apperrors.Newf(apperrors.KindPrecondition, "cannot edit a %s broadcast", b.Status)
	}

	if req.Title != nil {
		b.Title = *req.Title
	}
	if req.Message != nil {
		b.Message = *req.Message
	}
	if req.TargetType != nil {
		if *req.TargetType != models.BroadcastTargetAll && *req.TargetType != models.BroadcastTargetSelected {
			return nil, apperrors.New(apperrors.KindValidation, "target_type must be all or selected")
		}
		b.TargetType = *req.TargetType
	}
	if req.TargetGroupIDs != nil {
		b.TargetGroupIDs = req.TargetGroupIDs
	}
	if b.TargetType == models.BroadcastTargetSelected && len(b.TargetGroupIDs) == 0 {
		return nil, apperrors.New(apperrors.KindValidation, "target_group_ids is required when target_type is selected")
	}
	if req.Priority != nil {
		if *req.Priority < 1 || *req.Priority > 3 {
			return nil, apperrors.New(apperrors.KindValidation, "priority must be between 1 and 3")
		}
		b.Priority = *req.Priority
	}
	if req.StartDate != nil {
		parsed, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindValidation, "invalid start_date", err)
		}
		b.StartDate = parsed
	}
	if req.EndDate != nil {
		parsed, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindValidation, "invalid end_date", err)
		}
		b.EndDate = &parsed
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE broadcasts
		SET title = $1, message = $2, target_type = $3, target_group_ids = $4, priority = $5, start_date = $6, end_date = $7, updated_at = NOW()
		WHERE id = $8
	`, b.Title, b.Message, b.TargetType, pq.Array(b.TargetGroupIDs), b.Priority, b.StartDate, b.EndDate, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to update broadcast", err)
	}
	return b, nil
}

func (s *BroadcastService) Cancel(ctx context.Context, id uuid.UUID) error {
	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckBroadcastTransition(b.Status, models.BroadcastStatusCancelled); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE broadcasts SET status = $1, updated_at = NOW() WHERE id = $2
	`, models.BroadcastStatusCancelled, id)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to cancel broadcast", err)
	}
	return nil
}

// Delete removes a broadcast that never went out. Sent broadcasts are
// history and stay; scheduled ones must be cancelled first.
func (s *BroadcastService) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM broadcasts WHERE id = $1 AND status IN ($2, $3)
	`, id, models.BroadcastStatusDraft, models.BroadcastStatusCancelled)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to delete broadcast", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		b, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		return apperrors.Newf(apperrors.KindPrecondition, "broadcast in status %s cannot be deleted", b.Status)
	}
	return nil
}

// Send dispatches a broadcast now: resolves the audience, writes one
// notification per recipient and stamps sent_at. Email delivery is
// best-effort and never blocks the dispatch.
func (s *BroadcastService) Send(ctx context.Context, id uuid.UUID) (*models.Broadcast, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckBroadcastTransition(b.Status, models.BroadcastStatusSent); err != nil {
		return nil, err
	}

	recipients, err := s.resolveAudience(ctx, b)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to start transaction", err)
	}
	defer tx.Rollback()

	// Guarded so a concurrent send (admin racing the scheduler) cannot
	// fan out the same broadcast twice.
	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE broadcasts SET status = $1, sent_at = $2, updated_at = $2
		WHERE id = $3 AND status NOT IN ($4, $5)
	`, models.BroadcastStatusSent, now, id, models.BroadcastStatusSent, models.BroadcastStatusCancelled)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to mark broadcast sent", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition, "broadcast %s was already sent or cancelled", id)
	}

	for _, userID := range recipients {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, type, title, message)
			VALUES ($1, $2, 'broadcast', $3, $4)
		`, uuid.New(), userID, b.Title, b.Message); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to write notification", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to commit broadcast", err)
	}

	b.Status = models.BroadcastStatusSent
	b.SentAt = &now
	metrics.BroadcastsSent.Inc()
	s.logger.Info("broadcast sent",
		zap.String("broadcast_id", id.String()),
		zap.Int("recipients", len(recipients)))

	go s.emailRecipients(b, recipients)
	return b, nil
}

// DispatchDue sends every scheduled broadcast whose start date has arrived.
// Run from the cron scheduler.
func (s *BroadcastService) DispatchDue(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM broadcasts WHERE status = 'scheduled' AND start_date <= NOW()
	`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "failed to scan scheduled broadcasts", err)
	}
	defer rows.Close()

	var due []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return 0, apperrors.Wrap(apperrors.KindInternal, "failed to scan broadcast id", err)
		}
		due = append(due, id)
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "failed to iterate scheduled broadcasts", err)
	}

	sent := 0
	for _, id := range due {
		if _, err := s.Send(ctx, id); err != nil {
			s.logger.Warn("failed to dispatch scheduled broadcast",
				zap.String("broadcast_id", id.String()),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// resolveAudience returns the distinct user ids a broadcast reaches:
// everyone with a live membership for "all", members of the target groups
// for "selected".
func (s *BroadcastService) resolveAudience(ctx context.Context, b *models.Broadcast) ([]uuid.UUID, error) {
	var rows *sql.Rows
	var err error
	if b.TargetType == models.BroadcastTargetSelected {
		rows, err = s.db.QueryContext(ctx, `
			SELECT DISTINCT user_id FROM group_members
			WHERE user_status != 'removed' AND group_id = ANY($1::uuid[])
		`, pq.Array(b.TargetGroupIDs))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT DISTINCT user_id FROM group_members WHERE user_status != 'removed'
		`)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to resolve audience", err)
	}
	defer rows.Close()

	var recipients []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to scan recipient", err)
		}
		recipients = append(recipients, id)
	}
	return recipients, rows.Err()
}

func (s *BroadcastService) emailRecipients(b *models.Broadcast, recipients []uuid.UUID) {
	if s.email == nil || len(recipients) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT email, full_name FROM users WHERE id = ANY($1::uuid[]) AND status = 'active'
	`, pq.Array(uuidStrings(recipients)))
	if err != nil {
		s.logger.Warn("failed to load broadcast recipients", zap.Error(err))
		return
	}
	defer rows.Close()

	for rows.Next() {
		var email, name string
		if err := rows.Scan(&email, &name); err != nil {
			s.logger.Warn("failed to scan broadcast recipient", zap.Error(err))
			return
		}
		if err := s.email.SendBroadcast(ctx, service.BroadcastEmailData{
			Email:   email,
			Name:    name,
			Title:   b.Title,
			Message: b.Message,
		}); err != nil {
			s.logger.Warn("failed to email broadcast",
				zap.String("email", email),
				zap.Error(err))
		}
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
