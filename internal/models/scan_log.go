package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanLog is the append-only audit record of one successful redemption.
// At most one row exists per coupon.
type ScanLog struct {
	ID           uuid.UUID `json:"id"`
	Token        string    `json:"token"`
	CouponID     uuid.UUID `json:"coupon_id"`
	ScannedBy    uuid.UUID `json:"scanned_by"`
	ScannedAt    time.Time `json:"scanned_at"`
	ScanLocation string    `json:"scan_location"`
	IPAddress    *string   `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScanRecord is a ScanLog joined with team and operator details for
// dashboard listings.
type ScanRecord struct {
	ScanLog
	TeamName      string `json:"team_name"`
	TeamSize      int    `json:"team_size"`
	OperatorName  string `json:"operator_name"`
	OperatorEmail string `json:"operator_email"`
}
