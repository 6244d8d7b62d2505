package coupons

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/confmeal/backend/internal/middleware"
	"github.com/confmeal/backend/internal/models"
	"github.com/confmeal/backend/pkg/response"
)

// Handler handles team registration and coupon HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a coupons handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRequest is the body for POST /api/teams/register.
type RegisterRequest struct {
	TeamName string              `json:"team_name" binding:"required"`
	TeamSize int                 `json:"team_size" binding:"required"`
	Members  []models.TeamMember `json:"members" binding:"required"`
}

// Register handles POST /api/teams/register. Creates the team coupon and
// dispatches the confirmation email.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "team_name, team_size and members are required")
		return
	}

	coupon, err := h.service.Register(c.Request.Context(), req.TeamName, req.TeamSize, req.Members)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("register team failed", zap.String("debug_id", debugID),
			zap.String("team_name", req.TeamName), zap.Error(err))
		return
	}

	response.Created(c, gin.H{
		"team_id":   coupon.ID,
		"token":     coupon.Token,
		"team_name": coupon.TeamName,
		"status":    coupon.Status,
	})
}

// List handles GET /api/teams. Supports status, search, page and limit
// query params.
func (h *Handler) List(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
		Search string `form:"search"`
		Page   int    `form:"page"`
		Limit  int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}

	items, page, err := h.service.List(c.Request.Context(), ListFilter{
		Status:   models.CouponStatus(query.Status),
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.Limit,
	})
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("list coupons failed", zap.String("debug_id", debugID), zap.Error(err))
		return
	}
	response.OK(c, gin.H{"teams": items, "pagination": page})
}

// ByToken handles GET /api/teams/:token. Also the documented way for a
// scanner to resolve an unknown outcome after a redemption timeout.
func (h *Handler) ByToken(c *gin.Context) {
	coupon, err := h.service.ByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"team": coupon})
}

// ScanRequest is the body for POST /api/teams/scan.
type ScanRequest struct {
	Token        string `json:"token" binding:"required"`
	ScanLocation string `json:"scan_location"`
}

// Scan handles POST /api/teams/scan: the exactly-once redemption. The
// operator identity comes from the JWT middleware, never the body.
func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token is required")
		return
	}

	operatorID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}

	result, err := h.service.Redeem(c.Request.Context(), req.Token, operatorID, req.ScanLocation, c.ClientIP())
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Warn("scan rejected", zap.String("debug_id", debugID),
			zap.String("token", req.Token), zap.String("operator_id", operatorID.String()), zap.Error(err))
		return
	}

	h.logger.Info("coupon redeemed",
		zap.String("token", result.Token),
		zap.String("operator_id", operatorID.String()),
		zap.Time("redeemed_at", result.RedeemedAt))
	response.OK(c, result)
}

// QRImage handles GET /api/teams/:token/qr. Returns the coupon QR as PNG.
func (h *Handler) QRImage(c *gin.Context) {
	coupon, err := h.service.ByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	png, err := h.service.RenderImage(coupon)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("render qr failed", zap.String("debug_id", debugID),
			zap.String("token", coupon.Token), zap.Error(err))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
