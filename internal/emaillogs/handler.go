package emaillogs

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confmeal/backend/internal/coupons"
	"github.com/confmeal/backend/pkg/queue"
	"github.com/confmeal/backend/pkg/response"
)

// Handler serves email log endpoints.
type Handler struct {
	repo    *Repository
	coupons *coupons.Repository
	queue   *queue.Queue
	logger  *zap.Logger
}

// NewHandler creates an email log handler.
func NewHandler(repo *Repository, couponRepo *coupons.Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, coupons: couponRepo, queue: q, logger: logger}
}

// List returns recent email logs, optionally filtered by status.
// GET /api/admin/email-logs?status=failed&limit=50
func (h *Handler) List(c *gin.Context) {
	var req struct {
		Status string `form:"status"`
		Limit  int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}
	logs, err := h.repo.List(c.Request.Context(), req.Status, req.Limit)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("list email logs failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	response.OK(c, gin.H{"email_logs": logs, "count": len(logs)})
}

// ByCoupon returns all delivery attempts for one coupon.
// GET /api/admin/email-logs/coupon/:id
func (h *Handler) ByCoupon(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid coupon id")
		return
	}
	logs, err := h.repo.ByCoupon(c.Request.Context(), id)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("email logs by coupon failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	response.OK(c, gin.H{"email_logs": logs, "count": len(logs)})
}

// Resend re-enqueues the coupon email for a team whose delivery failed or
// never arrived. POST /api/admin/email-logs/coupon/:id/resend
func (h *Handler) Resend(c *gin.Context) {
	if h.queue == nil {
		response.BadRequest(c, "email queue is not available")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid coupon id")
		return
	}
	coupon, err := h.coupons.ByID(c.Request.Context(), id)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("resend lookup failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	if coupon == nil {
		response.BadRequest(c, "coupon not found")
		return
	}
	last, err := h.repo.LastByCoupon(c.Request.Context(), coupon.ID)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("resend lookup failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	if err := h.queue.EnqueueCouponEmail(c.Request.Context(), queue.CouponEmailPayload{CouponID: coupon.ID}); err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("resend enqueue failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	h.logger.Info("coupon email resend queued",
		zap.String("coupon_id", coupon.ID.String()),
		zap.String("token", coupon.Token))
	resp := gin.H{"queued": true, "coupon_id": coupon.ID, "token": coupon.Token}
	if last != nil {
		resp["previous_attempt"] = last
	}
	response.OK(c, resp)
}
