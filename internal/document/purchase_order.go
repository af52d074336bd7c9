package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

// PONumber builds the purchase order number from the approval date and the
// request id, e.g. PO-20260115-3FA85F64.
func PONumber(requestID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("PO-%s-%s", at.Format("20060102"), strings.ToUpper(requestID.String()[:8]))
}

// GeneratePurchaseOrder renders the purchase order PDF at outPath and returns
// its metadata. Items and total come from the extracted proforma metadata,
// falling back to the request's own description and amount.
func GeneratePurchaseOrder(requestID uuid.UUID, description string, amount float64, meta Metadata, outPath string, at time.Time) (POMetadata, error) {
	items := meta.Items
	if len(items) == 0 {
		items = []Item{{Description: description, Price: amount}}
	}
	total := meta.Total
	if total == 0 {
		total = amount
	}
	currency := meta.Currency
	if currency == "" {
		currency = "USD"
	}
	vendor := meta.Vendor
	if vendor == "" {
		vendor = "Unknown Vendor"
	}

	poNumber := PONumber(requestID, at)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Purchase Order")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "PO Number: "+poNumber)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Generated: "+at.Format(time.RFC3339))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Vendor: "+vendor)
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(130, 7, "Item")
	pdf.Cell(0, 7, "Price")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 11)
	for _, item := range items {
		pdf.Cell(130, 7, item.Description)
		pdf.Cell(0, 7, fmt.Sprintf("%.2f", item.Price))
		pdf.Ln(7)
	}

	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Total (%s): %.2f", currency, total))

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return POMetadata{}, fmt.Errorf("failed to write purchase order pdf: %w", err)
	}

	return POMetadata{
		PONumber:    poNumber,
		GeneratedAt: at.Format(time.RFC3339),
		Vendor:      vendor,
		Items:       items,
		Total:       total,
		Currency:    currency,
	}, nil
}
