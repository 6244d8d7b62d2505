// Package notify bridges registration to the background email worker.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/confmeal/backend/internal/models"
	"github.com/confmeal/backend/pkg/queue"
)

// QueueNotifier enqueues coupon email jobs onto the Redis queue. The
// actual rendering and SMTP delivery happen in the worker process.
type QueueNotifier struct {
	queue  *queue.Queue
	logger *zap.Logger
}

// NewQueueNotifier creates a queue-backed notifier.
func NewQueueNotifier(q *queue.Queue, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{queue: q, logger: logger}
}

// CouponIssued enqueues a coupon email job for the newly issued coupon.
func (n *QueueNotifier) CouponIssued(ctx context.Context, c *models.Coupon) error {
	err := n.queue.EnqueueCouponEmail(ctx, queue.CouponEmailPayload{CouponID: c.ID})
	if err != nil {
		n.logger.Error("failed to enqueue coupon email",
			zap.String("coupon_id", c.ID.String()),
			zap.String("token", c.Token),
			zap.Error(err))
		return err
	}
	return nil
}
