package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Enricher fills extraction gaps with Google Gemini. It is optional: when no
// API key is configured the heuristic parser's output is used as-is.
type Enricher struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewEnricher creates a Gemini-backed enricher.
func NewEnricher(ctx context.Context, apiKey, modelName string) (*Enricher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	return &Enricher{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Close releases the underlying client connection.
func (e *Enricher) Close() {
	if e != nil && e.client != nil {
		e.client.Close()
	}
}

// Enrich asks the model for vendor/currency/total/items from the raw document
// text and merges the answer into meta. Heuristically extracted values win;
// the model only fills fields the parser left at their fallbacks. Any model
// or parse failure returns meta unchanged.
func (e *Enricher) Enrich(ctx context.Context, rawText string, meta Metadata) Metadata {
	if e == nil || rawText == "" {
		return meta
	}

	if len(rawText) > 4000 {
		rawText = rawText[:4000]
	}
	prompt := "Extract vendor name, currency, total amount and list of items with price " +
		"from the following purchase proforma text. Respond with JSON only, using keys " +
		`vendor, currency, total, items (each item has description and price).` + "\n\n" + rawText

	resp, err := e.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		log.Println("gemini enrichment failed:", err)
		return meta
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return meta
	}

	var fullText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			fullText += string(txt)
		}
	}

	var enriched Metadata
	if err := json.Unmarshal([]byte(stripCodeFence(fullText)), &enriched); err != nil {
		log.Println("gemini enrichment returned unparseable JSON:", err)
		return meta
	}

	if meta.Vendor == "" || meta.Vendor == "Unknown Vendor" {
		if enriched.Vendor != "" {
			meta.Vendor = enriched.Vendor
		}
	}
	if meta.Currency == "" || meta.Currency == "USD" {
		if enriched.Currency != "" {
			meta.Currency = enriched.Currency
		}
	}
	if meta.Total == 0 && enriched.Total != 0 {
		meta.Total = enriched.Total
	}
	if len(enriched.Items) > len(meta.Items) {
		meta.Items = enriched.Items
	}
	return meta
}

// stripCodeFence removes a surrounding markdown code fence from model output
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
