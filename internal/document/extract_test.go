package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleProforma = `Vendor: Acme Supplies Ltd
Currency: EUR
Date: 2026-01-15

Laptop stand - 45.00
USB-C dock - 120.50
HDMI cable - 9.99

Total: 175.49
`

func TestParseProforma(t *testing.T) {
	meta := ParseProforma(sampleProforma, "Office equipment", 175.49)

	if meta.Vendor != "Acme Supplies Ltd" {
		t.Errorf("vendor = %q, want %q", meta.Vendor, "Acme Supplies Ltd")
	}
	if meta.Currency != "EUR" {
		t.Errorf("currency = %q, want EUR", meta.Currency)
	}
	if meta.Total != 175.49 {
		t.Errorf("total = %v, want 175.49", meta.Total)
	}
	if len(meta.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(meta.Items))
	}
	if meta.Items[1].Description != "USB-C dock" || meta.Items[1].Price != 120.50 {
		t.Errorf("unexpected second item: %+v", meta.Items[1])
	}
	if !strings.HasPrefix(meta.TextPreview, "Vendor: Acme Supplies Ltd") {
		t.Errorf("preview should start with the raw text, got %q", meta.TextPreview)
	}
}

func TestParseProformaFallbacks(t *testing.T) {
	meta := ParseProforma("nothing useful here", "New chairs", 320)

	if meta.Vendor != "Unknown Vendor" {
		t.Errorf("vendor = %q, want Unknown Vendor", meta.Vendor)
	}
	if meta.Currency != "USD" {
		t.Errorf("currency = %q, want USD", meta.Currency)
	}
	if meta.Total != 320 {
		t.Errorf("total = %v, want fallback 320", meta.Total)
	}
	if len(meta.Items) != 1 || meta.Items[0].Description != "New chairs" || meta.Items[0].Price != 320 {
		t.Errorf("expected single fallback item, got %+v", meta.Items)
	}
}

func TestParseProformaPreviewTruncated(t *testing.T) {
	long := strings.Repeat("x", previewLen+200)
	meta := ParseProforma(long, "t", 1)
	if len(meta.TextPreview) != previewLen {
		t.Errorf("preview length = %d, want %d", len(meta.TextPreview), previewLen)
	}
}

func TestExtractText(t *testing.T) {
	dir := t.TempDir()

	textPath := filepath.Join(dir, "proforma.txt")
	if err := os.WriteFile(textPath, []byte(sampleProforma), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ExtractText(textPath); got != sampleProforma {
		t.Errorf("text file content mismatch")
	}

	binPath := filepath.Join(dir, "scan.bin")
	if err := os.WriteFile(binPath, []byte{0xff, 0xfe, 0x00, 0x81}, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ExtractText(binPath); got != "" {
		t.Errorf("binary content should yield empty string, got %q", got)
	}

	if got := ExtractText(filepath.Join(dir, "missing.txt")); got != "" {
		t.Errorf("missing file should yield empty string, got %q", got)
	}
}

func TestExtractAmountHandlesThousandSeparators(t *testing.T) {
	value, ok := extractAmount("Total: 1,234.56 EUR")
	if !ok || value != 1234.56 {
		t.Errorf("extractAmount = %v, %v; want 1234.56, true", value, ok)
	}

	if _, ok := extractAmount("no numbers here"); ok {
		t.Error("line without digits should not yield an amount")
	}
}
