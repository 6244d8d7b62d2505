package coupons

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confmeal/backend/internal/models"
	"github.com/confmeal/backend/pkg/apperr"
)

// fakeStore is an in-memory Store with the same atomicity contract as the
// pg repository: Redeem is a mutex-guarded compare-and-swap.
type fakeStore struct {
	mu      sync.Mutex
	byToken map[string]*models.Coupon
	scans   map[string]*models.ScanLog

	// createErrs is consumed once per Create call, letting tests script
	// collision sequences.
	createErrs []error
	// auditErr makes the audit append fail, rolling back the redemption.
	auditErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byToken: make(map[string]*models.Coupon),
		scans:   make(map[string]*models.ScanLog),
	}
}

func (f *fakeStore) Create(_ context.Context, c *models.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, exists := f.byToken[c.Token]; exists {
		return ErrDuplicateToken
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	cp := *c
	f.byToken[c.Token] = &cp
	return nil
}

func (f *fakeStore) ByToken(_ context.Context, token string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) List(_ context.Context, _ ListFilter) ([]models.Coupon, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Coupon, 0, len(f.byToken))
	for _, c := range f.byToken {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeStore) Redeem(_ context.Context, token string, operatorID uuid.UUID, location string, ip *string) (*models.Coupon, *models.ScanLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byToken[token]
	if !ok || c.Status != models.CouponStatusUnused {
		return nil, nil, nil
	}
	if f.auditErr != nil {
		// Audit insert failed: the transaction rolls back, coupon stays
		// unused.
		return nil, nil, f.auditErr
	}
	now := time.Now()
	c.Status = models.CouponStatusUsed
	c.RedeemedAt = &now
	c.RedeemedBy = &operatorID
	scan := &models.ScanLog{
		ID:           uuid.New(),
		Token:        token,
		CouponID:     c.ID,
		ScannedBy:    operatorID,
		ScannedAt:    now,
		ScanLocation: location,
		IPAddress:    ip,
		CreatedAt:    now,
	}
	f.scans[token] = scan
	cp := *c
	sp := *scan
	return &cp, &sp, nil
}

type captureNotifier struct {
	mu     sync.Mutex
	issued []string
	err    error
}

func (n *captureNotifier) CouponIssued(_ context.Context, c *models.Coupon) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, c.Token)
	return n.err
}

func members(n int) []models.TeamMember {
	out := make([]models.TeamMember, n)
	for i := range out {
		out[i] = models.TeamMember{
			Name:             "Member",
			Email:            "member@example.com",
			EnrollmentNumber: string(rune('A'+i)) + "1234",
			Class:            "TE-A",
			Department:       "IT",
		}
	}
	return out
}

func newTestService(store Store, notifier Notifier) *Service {
	return NewService(store, nil, notifier, Options{}, nil)
}

func TestRegisterIssuesUnusedCoupon(t *testing.T) {
	store := newFakeStore()
	notifier := &captureNotifier{}
	svc := newTestService(store, notifier)

	c, err := svc.Register(context.Background(), "Quantum Crew", 3, members(3))
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, models.CouponStatusUnused, c.Status)
	assert.True(t, ValidTokenFormat(c.Token), "token %q should match the coupon format", c.Token)
	assert.Nil(t, c.RedeemedAt)
	assert.Equal(t, []string{c.Token}, notifier.issued)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		teamName string
		teamSize int
		members  []models.TeamMember
	}{
		{"empty team name", "   ", 2, members(2)},
		{"team size zero", "Crew", 0, nil},
		{"team size over limit", "Crew", 11, members(11)},
		{"size mismatch", "Crew", 3, members(2)},
		{"missing member name", "Crew", 1, []models.TeamMember{{
			Email: "a@b.co", EnrollmentNumber: "E1", Class: "TE-A", Department: "IT",
		}}},
		{"invalid email", "Crew", 1, []models.TeamMember{{
			Name: "A", Email: "not-an-email", EnrollmentNumber: "E1", Class: "TE-A", Department: "IT",
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.teamName, tt.teamSize, tt.members)
			require.Error(t, err)
			assert.Equal(t, apperr.CodeValidation, apperr.From(err).Code)
		})
	}
}

func TestRegisterRejectsDuplicateEnrollment(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)

	ms := members(2)
	ms[1].EnrollmentNumber = "  " + ms[0].EnrollmentNumber + "  " // same after trim
	_, err := svc.Register(context.Background(), "Crew", 2, ms)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.From(err).Code)
}

func TestRegisterRetriesOnTokenCollision(t *testing.T) {
	store := newFakeStore()
	store.createErrs = []error{ErrDuplicateToken, ErrDuplicateToken, ErrDuplicateToken}
	svc := newTestService(store, nil)

	c, err := svc.Register(context.Background(), "Crew", 1, members(1))
	require.NoError(t, err)
	assert.True(t, ValidTokenFormat(c.Token))
}

func TestRegisterFailsAfterExhaustedAttempts(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		store.createErrs = append(store.createErrs, ErrDuplicateToken)
	}
	svc := NewService(store, nil, nil, Options{MaxTokenAttempts: 5}, nil)

	_, err := svc.Register(context.Background(), "Crew", 1, members(1))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeServer, apperr.From(err).Code)
}

func TestRegisterSurvivesNotifierFailure(t *testing.T) {
	store := newFakeStore()
	notifier := &captureNotifier{err: errors.New("smtp down")}
	svc := newTestService(store, notifier)

	c, err := svc.Register(context.Background(), "Crew", 1, members(1))
	require.NoError(t, err)

	stored, err := store.ByToken(context.Background(), c.Token)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.CouponStatusUnused, stored.Status)
}

func TestRedeemSuccess(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	ctx := context.Background()
	operator := uuid.New()

	c, err := svc.Register(ctx, "Crew", 2, members(2))
	require.NoError(t, err)

	res, err := svc.Redeem(ctx, c.Token, operator, "", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, c.Token, res.Token)
	assert.Equal(t, "Crew", res.TeamName)
	assert.Equal(t, 2, res.TeamSize)
	assert.False(t, res.RedeemedAt.IsZero())

	stored, _ := store.ByToken(ctx, c.Token)
	assert.Equal(t, models.CouponStatusUsed, stored.Status)
	assert.Equal(t, operator, *stored.RedeemedBy)

	scan := store.scans[c.Token]
	require.NotNil(t, scan)
	assert.Equal(t, "Canteen Counter", scan.ScanLocation)
	require.NotNil(t, scan.IPAddress)
	assert.Equal(t, "10.0.0.1", *scan.IPAddress)
}

func TestRedeemValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)
	ctx := context.Background()

	_, err := svc.Redeem(ctx, "   ", uuid.New(), "", "")
	assert.Equal(t, apperr.CodeValidation, apperr.From(err).Code)

	_, err = svc.Redeem(ctx, "conf-2026-abc123", uuid.New(), "", "")
	assert.Equal(t, apperr.CodeValidation, apperr.From(err).Code, "lowercase token must be rejected")

	_, err = svc.Redeem(ctx, "CONF-2026-AB12CD", uuid.Nil, "", "")
	assert.Equal(t, apperr.CodeValidation, apperr.From(err).Code)
}

func TestRedeemUnknownToken(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)

	_, err := svc.Redeem(context.Background(), "CONF-2026-AB12CD", uuid.New(), "", "")
	require.Error(t, err)
	ae := apperr.From(err)
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
	assert.Nil(t, ae.RedeemedAt)
}

func TestRedeemTwiceConflictsWithOriginalTime(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	c, err := svc.Register(ctx, "Crew", 1, members(1))
	require.NoError(t, err)

	first, err := svc.Redeem(ctx, c.Token, uuid.New(), "", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Redeem(ctx, c.Token, uuid.New(), "", "")
		require.Error(t, err)
		ae := apperr.From(err)
		assert.Equal(t, apperr.CodeConflict, ae.Code)
		require.NotNil(t, ae.RedeemedAt)
		assert.True(t, ae.RedeemedAt.Equal(first.RedeemedAt),
			"conflict must carry the first redemption time on every retry")
	}
}

func TestRedeemExactlyOnceUnderConcurrency(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	c, err := svc.Register(ctx, "Crew", 1, members(1))
	require.NoError(t, err)

	const attempts = 32
	var wg sync.WaitGroup
	var successes, conflicts int32
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Redeem(ctx, c.Token, uuid.New(), "", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if apperr.From(err).Code == apperr.CodeConflict {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes, "exactly one attempt must win")
	assert.Equal(t, int32(attempts-1), conflicts, "all losers must see a conflict")
}

func TestRedeemAuditFailureLeavesCouponUnused(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	c, err := svc.Register(ctx, "Crew", 1, members(1))
	require.NoError(t, err)

	store.auditErr = errors.New("disk full")
	_, err = svc.Redeem(ctx, c.Token, uuid.New(), "", "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeServer, apperr.From(err).Code)

	stored, _ := store.ByToken(ctx, c.Token)
	assert.Equal(t, models.CouponStatusUnused, stored.Status, "failed audit must roll back the redemption")

	// The coupon is redeemable once the audit path recovers.
	store.auditErr = nil
	_, err = svc.Redeem(ctx, c.Token, uuid.New(), "", "")
	require.NoError(t, err)
}

func TestListValidatesStatusAndPaginates(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	_, _, err := svc.List(ctx, ListFilter{Status: "expired"})
	assert.Equal(t, apperr.CodeValidation, apperr.From(err).Code)

	for i := 0; i < 3; i++ {
		_, err := svc.Register(ctx, "Crew", 1, members(1))
		require.NoError(t, err)
	}
	items, page, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 3, page.Total)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)
}
