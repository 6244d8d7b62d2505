// Package admin serves the dashboard: stats, recent scans and exports.
package admin

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confmeal/backend/internal/coupons"
	"github.com/confmeal/backend/internal/scans"
	"github.com/confmeal/backend/pkg/response"
	"github.com/confmeal/backend/pkg/storage"
)

// Handler serves admin dashboard endpoints.
type Handler struct {
	coupons *coupons.Repository
	scans   *scans.Repository
	s3      *storage.S3
	logger  *zap.Logger
}

// NewHandler creates an admin handler. s3 may be nil; the image-url
// endpoint then reports S3 storage as disabled.
func NewHandler(couponRepo *coupons.Repository, scanRepo *scans.Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{coupons: couponRepo, scans: scanRepo, s3: s3, logger: logger}
}

// Stats returns aggregate coupon counts and the time of the last scan.
// GET /api/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	total, used, unused, err := h.coupons.CountByStatus(ctx)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("stats query failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	last, err := h.scans.LastScanTime(ctx)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("last scan query failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}

	var redeemedPct float64
	if total > 0 {
		redeemedPct = float64(used) / float64(total) * 100
	}
	var lastScanAt *time.Time
	if last != nil {
		lastScanAt = &last.ScannedAt
	}
	response.OK(c, gin.H{
		"total_coupons":    total,
		"redeemed":         used,
		"pending":          unused,
		"redeemed_percent": redeemedPct,
		"last_scan_at":     lastScanAt,
	})
}

// RecentScans returns the latest redemptions with team and operator detail.
// GET /api/admin/recent-scans?limit=50
func (h *Handler) RecentScans(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			response.BadRequest(c, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	records, err := h.scans.Recent(c.Request.Context(), limit)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("recent scans query failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	response.OK(c, gin.H{"scans": records, "count": len(records)})
}

// ScanByCoupon returns the audit record for one coupon, or null when the
// coupon has not been redeemed. GET /api/admin/scans/coupon/:id
func (h *Handler) ScanByCoupon(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid coupon id")
		return
	}
	log, err := h.scans.ByCoupon(c.Request.Context(), id)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("scan lookup failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	response.OK(c, gin.H{"scan": log})
}

// CouponImageURL returns a presigned download URL for the stored coupon
// QR image. GET /api/admin/coupons/:token/image-url
func (h *Handler) CouponImageURL(c *gin.Context) {
	if h.s3 == nil {
		response.BadRequest(c, "image storage is not configured")
		return
	}
	coupon, err := h.coupons.ByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("image url lookup failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	if coupon == nil {
		response.BadRequest(c, "coupon not found")
		return
	}
	key := storage.CouponImageKey(coupon.CreatedAt.Year(), coupon.Token)
	url, err := h.s3.PresignCouponImage(c.Request.Context(), key)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("presign failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	response.OK(c, gin.H{
		"url":        url,
		"expires_in": h.s3.PresignExpire().String(),
	})
}

// ExportCSV streams all coupons as a CSV attachment.
// GET /api/admin/export/csv
func (h *Handler) ExportCSV(c *gin.Context) {
	all, err := h.coupons.All(c.Request.Context())
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("export query failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	data, err := BuildCSV(all)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("csv build failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	filename := fmt.Sprintf("coupons_%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportXLSX streams all coupons as an Excel workbook.
// GET /api/admin/export/xlsx
func (h *Handler) ExportXLSX(c *gin.Context) {
	all, err := h.coupons.All(c.Request.Context())
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("export query failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	data, err := BuildWorkbook(all)
	if err != nil {
		debugID := response.Error(c, err)
		h.logger.Error("workbook build failed", zap.Error(err), zap.String("debug_id", debugID))
		return
	}
	filename := fmt.Sprintf("coupons_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
