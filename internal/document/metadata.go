package document

// Item is one line item extracted from a proforma or echoed onto a purchase order.
type Item struct {
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Metadata is the extraction result stored on a request as document_metadata.
// Keys are stable: the client renders them as-is.
type Metadata struct {
	Vendor        string      `json:"vendor"`
	Currency      string      `json:"currency"`
	Total         float64     `json:"total"`
	Items         []Item      `json:"items"`
	TextPreview   string      `json:"text_preview"`
	PurchaseOrder *POMetadata `json:"purchase_order,omitempty"`
}

// POMetadata describes a generated purchase order document.
type POMetadata struct {
	PONumber    string  `json:"po_number"`
	GeneratedAt string  `json:"generated_at"`
	Vendor      string  `json:"vendor"`
	Items       []Item  `json:"items"`
	Total       float64 `json:"total"`
	Currency    string  `json:"currency"`
}

// Validation is the receipt check result stored as receipt_validation.
type Validation struct {
	IsValid       bool     `json:"is_valid"`
	Discrepancies []string `json:"discrepancies"`
	VendorMatch   bool     `json:"vendor_match"`
	PriceMatch    bool     `json:"price_match"`
	ItemsMatch    bool     `json:"items_match"`
	CheckedAt     string   `json:"checked_at"`
}
