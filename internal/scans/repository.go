// Package scans persists the append-only redemption audit log.
package scans

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confmeal/backend/internal/models"
)

// Repository handles scan log persistence. Rows are insert-only; no update
// or delete operation exists.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a scans repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTx inserts a scan log inside the caller's transaction. The
// redemption engine calls this in the same transaction as the coupon
// state transition so both commit or neither does.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, log *models.ScanLog) error {
	const q = `INSERT INTO scan_logs (token, coupon_id, scanned_by, scanned_at, scan_location, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return tx.QueryRow(ctx, q, log.Token, log.CouponID, log.ScannedBy, log.ScannedAt, log.ScanLocation, log.IPAddress).
		Scan(&log.ID, &log.CreatedAt)
}

// Recent returns the most recent scans with team and operator info,
// newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	const q = `SELECT s.id, s.token, s.coupon_id, s.scanned_by, s.scanned_at, s.scan_location, s.ip_address, s.created_at,
			c.team_name, c.team_size, u.name, u.email
		FROM scan_logs s
		JOIN coupons c ON c.id = s.coupon_id
		JOIN users u ON u.id = s.scanned_by
		ORDER BY s.scanned_at DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ScanRecord
	for rows.Next() {
		var rec models.ScanRecord
		if err := rows.Scan(&rec.ID, &rec.Token, &rec.CouponID, &rec.ScannedBy, &rec.ScannedAt, &rec.ScanLocation, &rec.IPAddress, &rec.CreatedAt,
			&rec.TeamName, &rec.TeamSize, &rec.OperatorName, &rec.OperatorEmail); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// ByCoupon returns the scan log for a coupon, or nil when the coupon has
// not been redeemed. Redemption is exactly-once, so at most one row exists.
func (r *Repository) ByCoupon(ctx context.Context, couponID uuid.UUID) (*models.ScanLog, error) {
	const q = `SELECT id, token, coupon_id, scanned_by, scanned_at, scan_location, ip_address, created_at
		FROM scan_logs WHERE coupon_id = $1`
	var log models.ScanLog
	err := r.pool.QueryRow(ctx, q, couponID).
		Scan(&log.ID, &log.Token, &log.CouponID, &log.ScannedBy, &log.ScannedAt, &log.ScanLocation, &log.IPAddress, &log.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

// LastScanTime returns the timestamp of the most recent scan, or nil when
// nothing has been redeemed yet.
func (r *Repository) LastScanTime(ctx context.Context) (*models.ScanLog, error) {
	const q = `SELECT id, token, coupon_id, scanned_by, scanned_at, scan_location, ip_address, created_at
		FROM scan_logs ORDER BY scanned_at DESC LIMIT 1`
	var log models.ScanLog
	err := r.pool.QueryRow(ctx, q).
		Scan(&log.ID, &log.Token, &log.CouponID, &log.ScannedBy, &log.ScannedAt, &log.ScanLocation, &log.IPAddress, &log.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}
