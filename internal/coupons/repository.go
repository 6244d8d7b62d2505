package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confmeal/backend/internal/models"
	"github.com/confmeal/backend/internal/scans"
)

// ErrDuplicateToken is returned by Create when the generated token already
// exists. The registration workflow retries with a fresh token.
var ErrDuplicateToken = errors.New("coupon token already exists")

const pgUniqueViolation = "23505"

// ListFilter narrows and pages coupon listings.
type ListFilter struct {
	Status   models.CouponStatus // empty = all
	Search   string              // substring match on team name or token
	Page     int                 // 1-based
	PageSize int
}

// Repository is the PostgreSQL coupon store. It owns the token uniqueness
// and one-time-use invariants; redemption correctness comes from a
// conditional UPDATE inside a transaction, never from process-local locks.
type Repository struct {
	pool  *pgxpool.Pool
	scans *scans.Repository
}

// NewRepository creates a coupon repository.
func NewRepository(pool *pgxpool.Pool, scanRepo *scans.Repository) *Repository {
	return &Repository{pool: pool, scans: scanRepo}
}

// Create inserts a new unused coupon. A unique-index violation on token is
// translated to ErrDuplicateToken; the raw pg error never leaves this layer.
func (r *Repository) Create(ctx context.Context, c *models.Coupon) error {
	members, err := json.Marshal(c.Members)
	if err != nil {
		return fmt.Errorf("marshal members: %w", err)
	}
	const q = `INSERT INTO coupons (token, team_name, team_size, members)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at`
	err = r.pool.QueryRow(ctx, q, c.Token, c.TeamName, c.TeamSize, members).
		Scan(&c.ID, &c.Status, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateToken
		}
		return err
	}
	return nil
}

const couponColumns = `id, token, team_name, team_size, members, status, redeemed_at, redeemed_by, created_at`

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	var members []byte
	err := row.Scan(&c.ID, &c.Token, &c.TeamName, &c.TeamSize, &members, &c.Status, &c.RedeemedAt, &c.RedeemedBy, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(members, &c.Members); err != nil {
		return nil, fmt.Errorf("unmarshal members: %w", err)
	}
	return &c, nil
}

// ByToken returns the coupon for a token, or nil when no such token exists.
func (r *Repository) ByToken(ctx context.Context, token string) (*models.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE token = $1`
	c, err := scanCoupon(r.pool.QueryRow(ctx, q, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ByID returns the coupon for an id, or nil when no such coupon exists.
func (r *Repository) ByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	c, err := scanCoupon(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// List returns a page of coupons matching the filter plus the total count,
// newest first. The id tiebreak keeps pagination stable for rows created in
// the same instant.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Coupon, int, error) {
	where := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(team_name ILIKE $%d OR token ILIKE $%d)", len(args), len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM coupons"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	q := fmt.Sprintf("SELECT %s FROM coupons%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		couponColumns, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *c)
	}
	return list, total, rows.Err()
}

// All returns every coupon, newest first (export).
func (r *Repository) All(ctx context.Context) ([]models.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// CountByStatus returns total, used and unused coupon counts.
func (r *Repository) CountByStatus(ctx context.Context) (total, used, unused int, err error) {
	const q = `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE status = 'used'),
		COUNT(*) FILTER (WHERE status = 'unused')
		FROM coupons`
	err = r.pool.QueryRow(ctx, q).Scan(&total, &used, &unused)
	return total, used, unused, err
}

// Redeem performs the one-shot unused -> used transition and writes the
// audit log in a single transaction.
//
// The conditional UPDATE matches on status = 'unused': when two scanner
// stations race on the same token, only one transaction observes the unused
// row and performs the write; the other matches zero rows. A zero-row match
// is reported as (nil, nil, nil) and classified by the caller against a
// fresh read. Any failure after the UPDATE (including the audit insert)
// rolls the transition back: a coupon is never used without exactly one
// scan log.
func (r *Repository) Redeem(ctx context.Context, token string, operatorID uuid.UUID, location string, ip *string) (*models.Coupon, *models.ScanLog, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := `UPDATE coupons
		SET status = 'used', redeemed_at = now(), redeemed_by = $2
		WHERE token = $1 AND status = 'unused'
		RETURNING ` + couponColumns
	c, err := scanCoupon(tx.QueryRow(ctx, q, token, operatorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("conditional update: %w", err)
	}

	log := &models.ScanLog{
		Token:        c.Token,
		CouponID:     c.ID,
		ScannedBy:    operatorID,
		ScannedAt:    derefTime(c.RedeemedAt),
		ScanLocation: location,
		IPAddress:    ip,
	}
	if err := r.scans.CreateTx(ctx, tx, log); err != nil {
		return nil, nil, fmt.Errorf("insert scan log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return c, log, nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
