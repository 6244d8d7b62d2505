package emaillogs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confmeal/backend/internal/models"
)

// Repository persists email delivery logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const emailLogColumns = `id, coupon_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at`

func scanEmailLog(row pgx.Row) (*models.EmailLog, error) {
	var l models.EmailLog
	var errMsg *string
	err := row.Scan(&l.ID, &l.CouponID, &l.EmailType, &l.RecipientEmail, &l.Subject,
		&l.Status, &l.SentAt, &errMsg, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		l.ErrorMessage = *errMsg
	}
	return &l, nil
}

// Create inserts an email log row.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) error {
	q := `
		INSERT INTO email_logs (coupon_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q,
		l.CouponID, l.EmailType, l.RecipientEmail, l.Subject, l.Status, l.SentAt, l.ErrorMessage,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// List returns email logs newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]models.EmailLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + emailLogColumns + ` FROM email_logs`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.EmailLog, 0, limit)
	for rows.Next() {
		l, err := scanEmailLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// ByCoupon returns all delivery attempts for a coupon, newest first.
func (r *Repository) ByCoupon(ctx context.Context, couponID uuid.UUID) ([]models.EmailLog, error) {
	q := `SELECT ` + emailLogColumns + ` FROM email_logs WHERE coupon_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, couponID)
	if err != nil {
		return nil, fmt.Errorf("email logs by coupon: %w", err)
	}
	defer rows.Close()

	var logs []models.EmailLog
	for rows.Next() {
		l, err := scanEmailLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// LastByCoupon returns the most recent delivery attempt for a coupon, or
// nil when no email was ever attempted.
func (r *Repository) LastByCoupon(ctx context.Context, couponID uuid.UUID) (*models.EmailLog, error) {
	q := `SELECT ` + emailLogColumns + ` FROM email_logs WHERE coupon_id = $1 ORDER BY created_at DESC LIMIT 1`
	l, err := scanEmailLog(r.pool.QueryRow(ctx, q, couponID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}
