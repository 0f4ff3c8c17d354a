package pii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

// PresidioDetector calls an external NLP analyzer service. Offsets in
// the response are character offsets, which map directly onto the rune
// offsets the redactor works with.
type PresidioDetector struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

func NewPresidioDetector(baseURL string) *PresidioDetector {
	return &PresidioDetector{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   "en",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (d *PresidioDetector) Detect(ctx context.Context, text string) ([]domain.EntitySpan, error) {
	// Restrict analysis to the recognized kinds; otherwise the analyzer
	// runs every recognizer it ships (dates, locations, URLs) and those
	// spans would all be redacted downstream.
	entities := make([]string, 0, 3)
	for _, kind := range domain.AllEntityKinds() {
		entities = append(entities, string(kind))
	}
	reqBody := map[string]any{
		"text":     text,
		"language": d.language,
		"entities": entities,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal analyze body: %w", err)
	}

	url := d.baseURL + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analyzer status: %s", resp.Status)
	}

	var results []struct {
		EntityType string `json:"entity_type"`
		Start      int    `json:"start"`
		End        int    `json:"end"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}

	spans := make([]domain.EntitySpan, 0, len(results))
	for _, r := range results {
		spans = append(spans, domain.EntitySpan{
			Start: r.Start,
			End:   r.End,
			Kind:  domain.EntityKind(r.EntityType),
		})
	}
	return spans, nil
}
