package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types sent by the notification worker.
const (
	EmailTypeCouponIssued = "coupon_issued"
)

// Email delivery status.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records one coupon email delivery attempt.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	CouponID       *uuid.UUID `json:"coupon_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
