package weaviate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/resilience"
)

const (
	batchRetryDelay    = 2 * time.Second
	perItemAttempts    = 3
	perItemRetryDelay  = 500 * time.Millisecond
	readinessAttempts  = 3
	readinessRetryWait = 1 * time.Second
)

// Client stores chunks in a Weaviate class over its REST and GraphQL
// APIs. Vectorization is disabled on the class; every vector comes
// from the caller.
type Client struct {
	baseURL    string
	class      string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger

	ensureMu      sync.Mutex
	ensuredSchema bool

	droppedObjects atomic.Int64
}

func New(baseURL, class string, logger *slog.Logger) *Client {
	return NewWithExecutor(baseURL, class, newWriteExecutor(), logger)
}

func NewWithExecutor(baseURL, class string, executor *resilience.Executor, logger *slog.Logger) *Client {
	if executor == nil {
		executor = newWriteExecutor()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		class:      class,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
		logger:     logger,
	}
}

// newWriteExecutor builds the retry policy for the degraded per-object
// write path: a fixed interval between attempts, no breaker, so the
// attempt count per object stays deterministic.
func newWriteExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    perItemAttempts,
		RetryInitialBackoff: perItemRetryDelay,
		RetryMaxBackoff:     perItemRetryDelay,
		RetryMultiplier:     1,
		BreakerEnabled:      false,
	})
}

// Ready probes the readiness endpoint a few times. Callers use it at
// startup to decide between this store and the in-memory fallback.
func (c *Client) Ready(ctx context.Context) bool {
	for attempt := 1; attempt <= readinessAttempts; attempt++ {
		if c.probeReady(ctx) {
			return true
		}
		if attempt < readinessAttempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(readinessRetryWait):
			}
		}
	}
	return false
}

func (c *Client) probeReady(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/.well-known/ready", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 300
}

// DroppedObjects reports how many chunks were given up on during
// per-item fallback writes since the client was created.
func (c *Client) DroppedObjects() int64 {
	return c.droppedObjects.Load()
}

func (c *Client) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := c.ensureSchema(ctx); err != nil {
		return err
	}

	objects := make([]map[string]any, 0, len(chunks))
	for _, chunk := range chunks {
		objects = append(objects, map[string]any{
			"class":  c.class,
			"id":     uuid.NewString(),
			"vector": chunk.Vector,
			"properties": map[string]any{
				"content":     chunk.Content,
				"source":      chunk.Source,
				"page_number": chunk.PageNumber,
			},
		})
	}

	err := c.batchInsert(ctx, objects)
	if err == nil {
		return nil
	}
	if isReadOnlyError(err) {
		c.logger.WarnContext(ctx, "batch write rejected read-only, retrying once",
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(batchRetryDelay):
		}
		if retryErr := c.batchInsert(ctx, objects); retryErr == nil {
			return nil
		}
	}

	c.logger.WarnContext(ctx, "batch write failed, falling back to per-object writes",
		slog.String("error", err.Error()),
		slog.Int("objects", len(objects)))
	c.insertPerObject(ctx, objects)
	return nil
}

func (c *Client) batchInsert(ctx context.Context, objects []map[string]any) error {
	var resp []struct {
		Result struct {
			Errors *struct {
				Error []struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"errors"`
		} `json:"result"`
	}
	if err := c.postJSON(ctx, "/v1/batch/objects", map[string]any{"objects": objects}, &resp, "batch insert"); err != nil {
		return err
	}
	for _, item := range resp {
		if item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert object error: %s", item.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// insertPerObject is the degraded path: the executor retries each
// object a few times and a failed object is dropped with a log line
// rather than failing the whole document.
func (c *Client) insertPerObject(ctx context.Context, objects []map[string]any) {
	for _, obj := range objects {
		payload := obj
		err := c.executor.Execute(ctx, "weaviate.object_insert", func(ctx context.Context) error {
			var out json.RawMessage
			return c.postJSON(ctx, "/v1/objects", payload, &out, "object insert")
		}, retryAllWrites)
		if err != nil {
			c.droppedObjects.Add(1)
			c.logger.ErrorContext(ctx, "dropping chunk after failed per-object writes",
				slog.String("error", err.Error()),
				slog.Int("attempts", perItemAttempts))
		}
	}
}

func retryAllWrites(error) resilience.ErrorClassification {
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func (c *Client) HybridSearch(ctx context.Context, query domain.HybridQuery) ([]domain.ScoredChunk, error) {
	hybridArgs := fmt.Sprintf("hybrid: {query: %s, vector: %s, alpha: %s}",
		graphqlString(query.Text), graphqlVector(query.Vector), trimFloat(query.Alpha))

	args := []string{hybridArgs, fmt.Sprintf("limit: %d", query.Limit)}
	if query.Filter.Source != "" {
		args = append(args, sourceWhereClause(query.Filter.Source))
	}

	gql := fmt.Sprintf(`{ Get { %s(%s) { content source page_number _additional { score } } } }`,
		c.class, strings.Join(args, ", "))

	hits, err := c.runGetQuery(ctx, gql, "hybrid search")
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (c *Client) Fetch(ctx context.Context, filter domain.ChunkFilter, limit int) ([]domain.ScoredChunk, error) {
	args := []string{
		fmt.Sprintf("limit: %d", limit),
		`sort: [{path: ["page_number"], order: asc}]`,
	}
	if filter.Source != "" {
		args = append(args, sourceWhereClause(filter.Source))
	}

	gql := fmt.Sprintf(`{ Get { %s(%s) { content source page_number } } }`,
		c.class, strings.Join(args, ", "))

	return c.runGetQuery(ctx, gql, "fetch")
}

func sourceWhereClause(source string) string {
	return fmt.Sprintf(`where: {path: ["source"], operator: Equal, valueText: %s}`, graphqlString(source))
}

func (c *Client) runGetQuery(ctx context.Context, gql, operation string) ([]domain.ScoredChunk, error) {
	var resp struct {
		Data   map[string]map[string]json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := c.postJSON(ctx, "/v1/graphql", map[string]any{"query": gql}, &resp, operation); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate %s error: %s", operation, resp.Errors[0].Message)
	}

	raw, ok := resp.Data["Get"][c.class]
	if !ok {
		return nil, nil
	}

	var rows []struct {
		Content    string          `json:"content"`
		Source     string          `json:"source"`
		PageNumber int             `json:"page_number"`
		Additional *struct {
			Score json.RawMessage `json:"score"`
		} `json:"_additional"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", operation, err)
	}

	out := make([]domain.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		chunk := domain.ScoredChunk{
			Chunk: domain.Chunk{
				Content:    row.Content,
				Source:     row.Source,
				PageNumber: row.PageNumber,
			},
		}
		if row.Additional != nil {
			chunk.RetrievalScore = coerceScore(row.Additional.Score)
		}
		out = append(out, chunk)
	}
	return out, nil
}

// coerceScore accepts both encodings Weaviate uses for _additional
// scores, a JSON number or a quoted decimal string.
func coerceScore(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(asString), 64); err == nil {
			return v
		}
	}
	return 0
}

func (c *Client) ensureSchema(ctx context.Context) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredSchema {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/schema/"+c.class, nil)
	if err != nil {
		return fmt.Errorf("create schema check request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weaviate schema check request: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 300 {
		c.ensuredSchema = true
		return nil
	}

	classBody := map[string]any{
		"class":      c.class,
		"vectorizer": "none",
		"properties": []map[string]any{
			{"name": "content", "dataType": []string{"text"}},
			{"name": "source", "dataType": []string{"text"}},
			{"name": "page_number", "dataType": []string{"int"}},
		},
	}
	var out json.RawMessage
	if err := c.postJSON(ctx, "/v1/schema", classBody, &out, "create schema"); err != nil {
		// Lost the creation race; the class existing is all we need.
		if strings.Contains(err.Error(), "already exists") {
			c.ensuredSchema = true
			return nil
		}
		return err
	}
	c.ensuredSchema = true
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weaviate %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if trimmed := strings.TrimSpace(string(msg)); trimmed != "" {
			return fmt.Errorf("weaviate %s status: %s: %s", operation, resp.Status, trimmed)
		}
		return fmt.Errorf("weaviate %s status: %s", operation, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func isReadOnlyError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "read-only")
}

func graphqlString(s string) string {
	quoted, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(quoted)
}

func graphqlVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(trimFloat(float64(x)))
	}
	b.WriteByte(']')
	return b.String()
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
