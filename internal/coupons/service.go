package coupons

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confmeal/backend/internal/models"
	"github.com/confmeal/backend/pkg/apperr"
)

// Store is the durable coupon storage the service runs against. The pg
// Repository implements it; tests substitute an in-memory fake.
type Store interface {
	// Create inserts an unused coupon, returning ErrDuplicateToken when the
	// token is taken.
	Create(ctx context.Context, c *models.Coupon) error
	// ByToken returns the coupon for a token, or nil when absent.
	ByToken(ctx context.Context, token string) (*models.Coupon, error)
	// List returns a page of coupons plus the total count.
	List(ctx context.Context, f ListFilter) ([]models.Coupon, int, error)
	// Redeem atomically transitions unused -> used and appends the audit
	// log. Returns (nil, nil, nil) when the conditional update matched
	// nothing (unknown token or already used).
	Redeem(ctx context.Context, token string, operatorID uuid.UUID, location string, ip *string) (*models.Coupon, *models.ScanLog, error)
}

// TokenImageRenderer turns a final token into an opaque image payload
// (QR code) attached to outbound notifications.
type TokenImageRenderer interface {
	Render(token, teamName string) ([]byte, error)
}

// Notifier delivers the coupon to the team after registration. Invoked
// fire-and-forget: its failure never fails or rolls back a registration.
type Notifier interface {
	CouponIssued(ctx context.Context, c *models.Coupon) error
}

// Options tunes the service.
type Options struct {
	// TokenPrefix is the leading segment of generated tokens.
	TokenPrefix string
	// MaxTokenAttempts bounds the collision-retry loop.
	MaxTokenAttempts int
	// DefaultScanLocation is recorded when a redemption omits location.
	DefaultScanLocation string
}

// RedemptionResult is the outcome of a successful redemption.
type RedemptionResult struct {
	Token      string    `json:"token"`
	TeamName   string    `json:"team_name"`
	TeamSize   int       `json:"team_size"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// Service implements the registration workflow and the redemption engine.
type Service struct {
	store    Store
	renderer TokenImageRenderer
	notifier Notifier
	opts     Options
	logger   *zap.Logger
}

// NewService creates the coupon service. renderer and notifier may be nil
// (registration then skips image rendering / notification).
func NewService(store Store, renderer TokenImageRenderer, notifier Notifier, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TokenPrefix == "" {
		opts.TokenPrefix = "CONF"
	}
	if opts.MaxTokenAttempts <= 0 {
		opts.MaxTokenAttempts = 10
	}
	if opts.DefaultScanLocation == "" {
		opts.DefaultScanLocation = "Canteen Counter"
	}
	return &Service{store: store, renderer: renderer, notifier: notifier, opts: opts, logger: logger}
}

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

const (
	minTeamSize    = 1
	maxTeamSize    = 10
	maxTeamNameLen = 100
)

// Register validates the team, allocates a collision-free token and creates
// the coupon in unused state. Notification is dispatched after the coupon
// is durably created and its failure is only logged.
func (s *Service) Register(ctx context.Context, teamName string, teamSize int, members []models.TeamMember) (*models.Coupon, error) {
	if err := validateTeam(teamName, teamSize, members); err != nil {
		return nil, err
	}

	coupon, err := s.createWithUniqueToken(ctx, teamName, teamSize, members)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.CouponIssued(ctx, coupon); err != nil {
			s.logger.Error("coupon notification failed",
				zap.String("token", coupon.Token), zap.Error(err))
		}
	}
	return coupon, nil
}

func validateTeam(teamName string, teamSize int, members []models.TeamMember) error {
	if strings.TrimSpace(teamName) == "" {
		return apperr.Validation("team name is required")
	}
	if len(teamName) > maxTeamNameLen {
		return apperr.Validation(fmt.Sprintf("team name cannot exceed %d characters", maxTeamNameLen))
	}
	if teamSize < minTeamSize || teamSize > maxTeamSize {
		return apperr.Validation(fmt.Sprintf("team size must be between %d and %d", minTeamSize, maxTeamSize))
	}
	if len(members) != teamSize {
		return apperr.Validation("team size does not match number of members")
	}
	seen := make(map[string]struct{}, len(members))
	for i, m := range members {
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.EnrollmentNumber) == "" ||
			strings.TrimSpace(m.Class) == "" || strings.TrimSpace(m.Department) == "" {
			return apperr.Validation(fmt.Sprintf("member %d is missing required fields", i+1))
		}
		if !emailPattern.MatchString(m.Email) {
			return apperr.Validation(fmt.Sprintf("member %d has an invalid email", i+1))
		}
		key := strings.ToUpper(strings.TrimSpace(m.EnrollmentNumber))
		if _, dup := seen[key]; dup {
			return apperr.Validation("duplicate enrollment numbers found")
		}
		seen[key] = struct{}{}
	}
	return nil
}

// createWithUniqueToken loops generate-then-insert until the store's unique
// index accepts a token, up to the configured bound. Tokens burned by a
// losing attempt are never reused; the store keeps the constraint, the loop
// just picks a fresh candidate.
func (s *Service) createWithUniqueToken(ctx context.Context, teamName string, teamSize int, members []models.TeamMember) (*models.Coupon, error) {
	for attempt := 1; attempt <= s.opts.MaxTokenAttempts; attempt++ {
		token, err := GenerateToken(s.opts.TokenPrefix)
		if err != nil {
			return nil, apperr.Server("failed to generate coupon token", err)
		}
		coupon := &models.Coupon{
			Token:    token,
			TeamName: teamName,
			TeamSize: teamSize,
			Members:  members,
			Status:   models.CouponStatusUnused,
		}
		err = s.store.Create(ctx, coupon)
		if err == nil {
			return coupon, nil
		}
		if errors.Is(err, ErrDuplicateToken) {
			s.logger.Warn("coupon token collision, retrying",
				zap.String("token", token), zap.Int("attempt", attempt))
			continue
		}
		return nil, apperr.Server("failed to create coupon", err)
	}
	return nil, apperr.Server("could not allocate a unique coupon token", nil)
}

// Redeem performs the exactly-once redemption of a token.
//
// The store's conditional update decides the race: exactly one concurrent
// attempt succeeds, the rest observe a used coupon and get a conflict
// carrying the winner's timestamp. The engine never retries; "already
// used" is a legitimate terminal outcome, not a transient failure.
func (s *Service) Redeem(ctx context.Context, token string, operatorID uuid.UUID, location string, sourceIP string) (*RedemptionResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Validation("coupon code is required")
	}
	if !ValidTokenFormat(token) {
		return nil, apperr.Validation("malformed coupon code")
	}
	if operatorID == uuid.Nil {
		return nil, apperr.Validation("operator is required")
	}
	if location == "" {
		location = s.opts.DefaultScanLocation
	}
	var ip *string
	if sourceIP != "" {
		ip = &sourceIP
	}

	coupon, scan, err := s.store.Redeem(ctx, token, operatorID, location, ip)
	if err != nil {
		return nil, apperr.Server("redemption failed", err)
	}
	if coupon != nil {
		return &RedemptionResult{
			Token:      coupon.Token,
			TeamName:   coupon.TeamName,
			TeamSize:   coupon.TeamSize,
			RedeemedAt: scan.ScannedAt,
		}, nil
	}

	// The conditional update matched nothing: unknown token or lost race.
	existing, err := s.store.ByToken(ctx, token)
	if err != nil {
		return nil, apperr.Server("redemption failed", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("invalid coupon code")
	}
	if existing.Status == models.CouponStatusUsed && existing.RedeemedAt != nil {
		return nil, apperr.AlreadyRedeemed(*existing.RedeemedAt)
	}
	// The re-read observed the coupon unused again: a concurrent winner
	// rolled back between our update and re-read. The caller should
	// re-query the token; its state is unknown.
	return nil, apperr.Server("coupon state changed during redemption", nil)
}

// Page describes a listing page.
type Page struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	Total       int  `json:"total"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// List returns a page of coupons matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Coupon, Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if f.Status != "" && f.Status != models.CouponStatusUnused && f.Status != models.CouponStatusUsed {
		return nil, Page{}, apperr.Validation("status must be used or unused")
	}

	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, Page{}, apperr.Server("failed to list coupons", err)
	}
	totalPages := (total + f.PageSize - 1) / f.PageSize
	return items, Page{
		CurrentPage: f.Page,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     f.Page < totalPages,
		HasPrev:     f.Page > 1,
	}, nil
}

// ByToken returns the coupon for a token. Callers that time out during
// Redeem use this to resolve the unknown outcome.
func (s *Service) ByToken(ctx context.Context, token string) (*models.Coupon, error) {
	c, err := s.store.ByToken(ctx, token)
	if err != nil {
		return nil, apperr.Server("failed to load coupon", err)
	}
	if c == nil {
		return nil, apperr.NotFound("coupon not found")
	}
	return c, nil
}

// RenderImage returns the QR image for an issued coupon.
func (s *Service) RenderImage(c *models.Coupon) ([]byte, error) {
	if s.renderer == nil {
		return nil, errors.New("no image renderer configured")
	}
	return s.renderer.Render(c.Token, c.TeamName)
}
