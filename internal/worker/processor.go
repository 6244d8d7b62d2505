// Package worker processes background jobs dequeued from Redis. It runs
// as its own binary so email delivery never adds latency to registration.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confmeal/backend/internal/coupons"
	"github.com/confmeal/backend/internal/emaillogs"
	"github.com/confmeal/backend/internal/models"
	"github.com/confmeal/backend/pkg/mailer"
	"github.com/confmeal/backend/pkg/qr"
	"github.com/confmeal/backend/pkg/queue"
	"github.com/confmeal/backend/pkg/storage"
)

// Processor consumes jobs and delivers coupon emails.
type Processor struct {
	queue     *queue.Queue
	coupons   *coupons.Repository
	emailLogs *emaillogs.Repository
	mailer    *mailer.Mailer
	s3        *storage.S3
	eventName string
	logger    *zap.Logger
}

// NewProcessor creates a worker processor. s3 may be nil; QR images then
// travel only inline in the email.
func NewProcessor(q *queue.Queue, couponRepo *coupons.Repository, emailLogRepo *emaillogs.Repository, m *mailer.Mailer, s3 *storage.S3, eventName string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eventName == "" {
		eventName = "Conference"
	}
	return &Processor{
		queue:     q,
		coupons:   couponRepo,
		emailLogs: emailLogRepo,
		mailer:    m,
		s3:        s3,
		eventName: eventName,
		logger:    logger,
	}
}

// Run consumes jobs until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("worker started", zap.String("queue", queue.QueueEmails))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.process(ctx, job); err != nil {
			p.logger.Error("job failed",
				zap.String("job_id", job.ID),
				zap.String("type", string(job.Type)),
				zap.Int("attempt", job.Attempt),
				zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			if rerr := p.queue.Retry(ctx, job); rerr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(rerr), zap.String("job_id", job.ID))
			}
		}
	}
}

func (p *Processor) process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeCouponEmail:
		var payload queue.CouponEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			p.logger.Warn("dropping malformed job", zap.String("job_id", job.ID), zap.Error(err))
			return nil
		}
		return p.sendCouponEmail(ctx, payload.CouponID)
	default:
		p.logger.Warn("dropping unknown job type", zap.String("type", string(job.Type)))
		return nil
	}
}

func (p *Processor) sendCouponEmail(ctx context.Context, couponID uuid.UUID) error {
	coupon, err := p.coupons.ByID(ctx, couponID)
	if err != nil {
		return fmt.Errorf("load coupon: %w", err)
	}
	if coupon == nil {
		p.logger.Warn("coupon email job for missing coupon", zap.String("coupon_id", couponID.String()))
		return nil
	}

	png, err := qr.Render(coupon.Token, coupon.TeamName)
	if err != nil {
		return fmt.Errorf("render qr: %w", err)
	}

	if p.s3 != nil {
		key := storage.CouponImageKey(coupon.CreatedAt.Year(), coupon.Token)
		if _, err := p.s3.UploadCouponImage(ctx, key, png); err != nil {
			p.logger.Warn("coupon image upload failed", zap.String("token", coupon.Token), zap.Error(err))
		}
	}

	recipients := make([]string, 0, len(coupon.Members))
	for _, m := range coupon.Members {
		email := strings.TrimSpace(m.Email)
		if email != "" {
			recipients = append(recipients, email)
		}
	}
	if len(recipients) == 0 {
		p.logger.Warn("coupon has no recipient emails", zap.String("token", coupon.Token))
		return nil
	}

	subject := fmt.Sprintf("%s Meal Coupon - %s", p.eventName, coupon.TeamName)
	body := p.renderBody(coupon)

	sendErr := p.mailer.Send(recipients, subject, body, png)
	now := time.Now()
	for _, rcpt := range recipients {
		log := &models.EmailLog{
			CouponID:       &coupon.ID,
			EmailType:      models.EmailTypeCouponIssued,
			RecipientEmail: rcpt,
			Subject:        subject,
		}
		if sendErr != nil {
			log.Status = models.EmailLogStatusFailed
			log.ErrorMessage = sendErr.Error()
		} else {
			log.Status = models.EmailLogStatusSent
			log.SentAt = &now
		}
		if err := p.emailLogs.Create(ctx, log); err != nil {
			p.logger.Error("email log write failed", zap.String("recipient", rcpt), zap.Error(err))
		}
	}
	if sendErr != nil {
		return fmt.Errorf("send coupon email: %w", sendErr)
	}
	p.logger.Info("coupon email sent",
		zap.String("token", coupon.Token),
		zap.String("team", coupon.TeamName),
		zap.Int("recipients", len(recipients)))
	return nil
}

func (p *Processor) renderBody(c *models.Coupon) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto">`)
	fmt.Fprintf(&b, `<h2>%s Meal Coupon</h2>`, p.eventName)
	fmt.Fprintf(&b, `<p>Hello team <strong>%s</strong>,</p>`, c.TeamName)
	b.WriteString(`<p>Your meal coupon is ready. Show the QR code below at the canteen counter. The coupon admits the whole team once.</p>`)
	b.WriteString(`<p style="text-align:center"><img src="cid:coupon-qr" alt="coupon QR" width="300" height="300"/></p>`)
	fmt.Fprintf(&b, `<p style="text-align:center;font-size:20px;letter-spacing:2px"><strong>%s</strong></p>`, c.Token)
	fmt.Fprintf(&b, `<p>Team size: %d</p>`, c.TeamSize)
	b.WriteString(`<p>This coupon is valid for a single redemption only.</p>`)
	b.WriteString(`</div>`)
	return b.String()
}
