package document

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	amountPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]{2})?)`)
	itemPattern   = regexp.MustCompile(`^(.+?)\s+-\s+([0-9,]+(?:\.[0-9]{2})?)\s*$`)
)

// previewLen bounds the text preview stored in document metadata.
const previewLen = 500

// ExtractText reads a document's textual content. Vendors in this flow submit
// plain-text or text-exported documents; binary formats yield an empty string
// and extraction falls back to the request fields (or the LLM enricher).
func ExtractText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if !utf8.Valid(data) {
		return ""
	}
	return string(data)
}

// extractAmount pulls the first monetary value out of a line.
func extractAmount(line string) (float64, bool) {
	match := amountPattern.FindStringSubmatch(strings.ReplaceAll(line, ",", ""))
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseProforma extracts vendor, currency, total and line items from proforma
// text. Missing fields fall back to the request's own title and amount so the
// metadata is always renderable.
func ParseProforma(text, fallbackTitle string, fallbackAmount float64) Metadata {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	vendor := ""
	currency := "USD"
	total := 0.0
	var items []Item

	for _, line := range lines {
		lower := strings.ToLower(line)
		switch {
		case vendor == "" && strings.HasPrefix(lower, "vendor"):
			vendor = valueAfterColon(line)
		case strings.HasPrefix(lower, "currency"):
			if v := valueAfterColon(line); v != "" {
				currency = v
			}
		case total == 0 && strings.Contains(lower, "total"):
			total, _ = extractAmount(line)
		case itemPattern.MatchString(line):
			// "desc - price" lines, e.g. "USB-C dock - 120.50"
			match := itemPattern.FindStringSubmatch(line)
			if price, ok := extractAmount(match[2]); ok {
				items = append(items, Item{Description: strings.TrimSpace(match[1]), Price: price})
			}
		}
	}

	if vendor == "" {
		vendor = "Unknown Vendor"
	}
	if total == 0 {
		total = fallbackAmount
	}
	if len(items) == 0 {
		items = []Item{{Description: fallbackTitle, Price: fallbackAmount}}
	}

	preview := text
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}

	return Metadata{
		Vendor:      vendor,
		Currency:    currency,
		Total:       total,
		Items:       items,
		TextPreview: preview,
	}
}

func valueAfterColon(line string) string {
	_, after, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(after)
}
