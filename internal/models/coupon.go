package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponStatus is the lifecycle state of a coupon. There are exactly two
// states; a coupon only ever moves forward from unused to used.
type CouponStatus string

const (
	CouponStatusUnused CouponStatus = "unused"
	CouponStatusUsed   CouponStatus = "used"
)

// TeamMember is one participant of a registered team. EnrollmentNumber is
// the business key; it must be unique within a team.
type TeamMember struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	EnrollmentNumber string `json:"enrollment_number"`
	Class            string `json:"class"`
	Department       string `json:"department"`
}

// Coupon is the durable record tracking a redemption token and its owning
// team. Token is globally unique and immutable once assigned.
type Coupon struct {
	ID         uuid.UUID    `json:"id"`
	Token      string       `json:"token"`
	TeamName   string       `json:"team_name"`
	TeamSize   int          `json:"team_size"`
	Members    []TeamMember `json:"members"`
	Status     CouponStatus `json:"status"`
	RedeemedAt *time.Time   `json:"redeemed_at,omitempty"`
	RedeemedBy *uuid.UUID   `json:"redeemed_by,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}
