package document

import (
	"fmt"
	"strings"
	"time"
)

// ValidateReceipt compares receipt text against the purchase order metadata
// (or the raw proforma extraction when no PO metadata exists) and reports
// vendor/total matches plus a list of discrepancies.
func ValidateReceipt(meta Metadata, fallbackAmount float64, receiptText string, at time.Time) Validation {
	textLower := strings.ToLower(receiptText)

	vendor := meta.Vendor
	if meta.PurchaseOrder != nil && meta.PurchaseOrder.Vendor != "" {
		vendor = meta.PurchaseOrder.Vendor
	}
	vendorMatch := vendor != "" && strings.Contains(textLower, strings.ToLower(vendor))

	total := meta.Total
	if meta.PurchaseOrder != nil && meta.PurchaseOrder.Total != 0 {
		total = meta.PurchaseOrder.Total
	}
	if total == 0 {
		total = fallbackAmount
	}
	priceMatch := total != 0 && containsAmount(receiptText, total)

	var discrepancies []string
	if !vendorMatch {
		discrepancies = append(discrepancies, "Vendor name mismatch")
	}
	if !priceMatch {
		discrepancies = append(discrepancies, "Total amount mismatch")
	}
	if discrepancies == nil {
		discrepancies = []string{}
	}

	return Validation{
		IsValid:       len(discrepancies) == 0,
		Discrepancies: discrepancies,
		VendorMatch:   vendorMatch,
		PriceMatch:    priceMatch,
		ItemsMatch:    meta.PurchaseOrder != nil && len(meta.PurchaseOrder.Items) > 0,
		CheckedAt:     at.Format(time.RFC3339),
	}
}

// containsAmount checks the common renderings of a monetary value:
// "1234.50", "1,234.50" stripped of commas, and "1234" for whole amounts.
func containsAmount(text string, amount float64) bool {
	stripped := strings.ReplaceAll(text, ",", "")
	candidates := []string{fmt.Sprintf("%.2f", amount)}
	if amount == float64(int64(amount)) {
		candidates = append(candidates, fmt.Sprintf("%d", int64(amount)))
	}
	for _, candidate := range candidates {
		if strings.Contains(stripped, candidate) {
			return true
		}
	}
	return false
}
