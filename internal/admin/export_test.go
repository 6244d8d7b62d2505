package admin

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/confmeal/backend/internal/models"
)

func sampleCoupons() []models.Coupon {
	redeemed := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	operator := uuid.New()
	return []models.Coupon{
		{
			ID:       uuid.New(),
			Token:    "CONF-2026-A1B2C3",
			TeamName: "Quantum Crew",
			TeamSize: 2,
			Members: []models.TeamMember{
				{Name: "Asha", Email: "asha@example.com", EnrollmentNumber: "E001", Class: "TE-A", Department: "IT"},
				{Name: "Ravi", Email: "ravi@example.com", EnrollmentNumber: "E002", Class: "TE-A", Department: "IT"},
			},
			Status:     models.CouponStatusUsed,
			RedeemedAt: &redeemed,
			RedeemedBy: &operator,
			CreatedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:       uuid.New(),
			Token:    "CONF-2026-D4E5F6",
			TeamName: "Solo Act",
			TeamSize: 1,
			Members: []models.TeamMember{
				{Name: "Mira", Email: "mira@example.com", EnrollmentNumber: "E003", Class: "BE-B", Department: "CS"},
			},
			Status:    models.CouponStatusUnused,
			CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestBuildCSV(t *testing.T) {
	data, err := BuildCSV(sampleCoupons())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, exportHeaders, rows[0])

	assert.Equal(t, "Quantum Crew", rows[1][0])
	assert.Equal(t, "CONF-2026-A1B2C3", rows[1][1])
	assert.Equal(t, "2", rows[1][2])
	assert.Equal(t, "used", rows[1][3])
	assert.Equal(t, "2026-03-14 12:30:00", rows[1][5])
	assert.Equal(t, "asha@example.com; ravi@example.com", rows[1][7])

	assert.Equal(t, "unused", rows[2][3])
	assert.Equal(t, "", rows[2][5], "unredeemed coupons have no redemption time")
}

func TestBuildCSVEmpty(t *testing.T) {
	data, err := BuildCSV(nil)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}

func TestBuildWorkbook(t *testing.T) {
	data, err := BuildWorkbook(sampleCoupons())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Coupons")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "CONF-2026-A1B2C3", rows[1][1])
	assert.Equal(t, "used", rows[1][3])

	total, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	redeemed, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "1", redeemed)
}
