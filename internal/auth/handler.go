package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confmeal/backend/internal/models"
	"github.com/confmeal/backend/pkg/apperr"
	"github.com/confmeal/backend/pkg/response"
	"github.com/confmeal/backend/pkg/utils"
)

// Handler handles authentication and user management HTTP endpoints.
type Handler struct {
	repo       *Repository
	jwtService *JWTService
	logger     *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwtService *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwtService: jwtService, logger: logger}
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		debugID := response.Error(c, apperr.Server("login failed", err))
		h.logger.Error("login lookup failed", zap.String("debug_id", debugID), zap.Error(err))
		return
	}
	if user == nil || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if err := h.repo.TouchLastLogin(c.Request.Context(), user.ID); err != nil {
		h.logger.Warn("update last login failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	token, err := h.jwtService.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		debugID := response.Error(c, apperr.Server("login failed", err))
		h.logger.Error("jwt generate failed", zap.String("debug_id", debugID), zap.Error(err))
		return
	}

	response.OK(c, gin.H{"token": token, "user": user.ToPublic()})
}

// Me handles GET /api/auth/me. Returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	idVal, ok := c.Get("user_id")
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	userID, _ := idVal.(uuid.UUID)

	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		response.Unauthorized(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// List handles GET /api/admin/users (admin only).
func (h *Handler) List(c *gin.Context) {
	users, err := h.repo.List(c.Request.Context())
	if err != nil {
		debugID := response.Error(c, apperr.Server("failed to list users", err))
		h.logger.Error("list users failed", zap.String("debug_id", debugID), zap.Error(err))
		return
	}
	response.OK(c, gin.H{"users": users})
}

// CreateUserRequest is the body for POST /api/admin/users.
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// Create handles POST /api/admin/users (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name, email and password (min 8 chars) are required")
		return
	}
	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleViewer
	}
	if role != models.RoleAdmin && role != models.RoleViewer {
		response.BadRequest(c, "role must be admin or viewer")
		return
	}

	existing, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		debugID := response.Error(c, apperr.Server("failed to create user", err))
		h.logger.Error("create user lookup failed", zap.String("debug_id", debugID), zap.Error(err))
		return
	}
	if existing != nil {
		response.BadRequest(c, "user with this email already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Error(c, apperr.Server("failed to create user", err))
		return
	}
	user, err := h.repo.Create(c.Request.Context(), req.Name, req.Email, hash, role)
	if err != nil {
		debugID := response.Error(c, apperr.Server("failed to create user", err))
		h.logger.Error("create user failed", zap.String("debug_id", debugID), zap.Error(err))
		return
	}
	response.Created(c, gin.H{"user": user.ToPublic()})
}

// UpdateRoleRequest is the body for PATCH /api/admin/users/:id/role.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateRole handles PATCH /api/admin/users/:id/role (admin only).
func (h *Handler) UpdateRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "role is required")
		return
	}
	role := models.Role(req.Role)
	if role != models.RoleAdmin && role != models.RoleViewer {
		response.BadRequest(c, "role must be admin or viewer")
		return
	}

	user, err := h.repo.UpdateRole(c.Request.Context(), userID, role)
	if err != nil {
		debugID := response.Error(c, apperr.Server("failed to update role", err))
		h.logger.Error("update role failed", zap.String("debug_id", debugID), zap.Error(err))
		return
	}
	if user == nil {
		response.BadRequest(c, "user not found")
		return
	}
	response.OK(c, gin.H{"user": user.ToPublic()})
}
