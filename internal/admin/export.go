package admin

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/confmeal/backend/internal/models"
)

var exportHeaders = []string{
	"Team Name", "Coupon Token", "Team Size", "Status",
	"Registered At", "Redeemed At", "Member Names", "Member Emails",
}

const exportTimeLayout = "2006-01-02 15:04:05"

func exportRow(c *models.Coupon) []string {
	names := make([]string, 0, len(c.Members))
	emails := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		names = append(names, m.Name)
		emails = append(emails, m.Email)
	}
	redeemedAt := ""
	if c.RedeemedAt != nil {
		redeemedAt = c.RedeemedAt.UTC().Format(exportTimeLayout)
	}
	return []string{
		c.TeamName,
		c.Token,
		fmt.Sprintf("%d", c.TeamSize),
		string(c.Status),
		c.CreatedAt.UTC().Format(exportTimeLayout),
		redeemedAt,
		strings.Join(names, "; "),
		strings.Join(emails, "; "),
	}
}

// BuildCSV renders coupons as CSV with a header row.
func BuildCSV(all []models.Coupon) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i := range all {
		if err := w.Write(exportRow(&all[i])); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildWorkbook renders coupons as an XLSX workbook with a styled header
// and a summary sheet.
func BuildWorkbook(all []models.Coupon) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Coupons"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	used := 0
	for i := range all {
		c := &all[i]
		if c.Status == models.CouponStatusUsed {
			used++
		}
		row := exportRow(c)
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	if err := f.SetColWidth(sheet, "A", "B", 24); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "E", "H", 28); err != nil {
		return nil, err
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	summaryRows := [][]interface{}{
		{"Generated At", time.Now().UTC().Format(exportTimeLayout)},
		{"Total Coupons", len(all)},
		{"Redeemed", used},
		{"Pending", len(all) - used},
	}
	for i, pair := range summaryRows {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(summary, keyCell, pair[0]); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(summary, valCell, pair[1]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
