package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/time/rate"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/core"
	apperrors "github.com/target/track-analysis-api/internal/errors"
	"github.com/target/track-analysis-api/internal/observability/metrics"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 2048

// retryBatchSize caps the sub-batch size used when retrying failed items.
const retryBatchSize = 3

// ErrNoResult marks an item the provider response did not mention.
var ErrNoResult = errors.New("provider returned no result for item")

// ClientOptions groups dependencies for Client.
type ClientOptions struct {
	Config     config.AnalysisConfig // Required: endpoint, limits and result expression
	Catalog    *Catalog              // Optional: defaults to DefaultCatalog
	HTTPClient *http.Client          // Optional: defaults to a client with Config.Timeout
	Logger     *slog.Logger          // Optional: structured logger
	Metrics    statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// Client sends analysis batches to the provider gateway.
//
// One logical batch is split into provider-sized sub-batches. Each sub-batch is
// one rate-limited POST; per-item results are selected from the response with
// a JMESPath expression.
type Client struct {
	cfg     config.AnalysisConfig
	catalog *Catalog
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics statsd.Sink
}

var _ core.AnalysisService = (*Client)(nil)

// NewClient constructs a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	cfg := opts.Config
	cfg.Sanitize()
	if cfg.Endpoint == "" {
		return nil, errors.New("analysis endpoint is required")
	}
	if _, err := jmespath.Compile(cfg.ResultExpression); err != nil {
		return nil, fmt.Errorf("invalid result expression %q: %w", cfg.ResultExpression, err)
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:     cfg,
		catalog: catalog,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  logger.With("component", "analysis_client"),
		metrics: opts.Metrics,
	}, nil
}

type requestItem struct {
	TrackID int64  `json:"trackId"`
	Artist  string `json:"artist"`
	Title   string `json:"title"`
}

type requestBody struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model,omitempty"`
	Items    []requestItem `json:"items"`
}

type responseItem struct {
	TrackID  int64           `json:"trackId"`
	Model    string          `json:"model"`
	Analysis json.RawMessage `json:"analysis"`
	Error    string          `json:"error"`
}

// AnalyzeBatch implements core.AnalysisService. Results are returned in the order of req.Items.
// A failed sub-batch fails its items only; an error is returned only when ctx ends.
// Failed items are retried up to MaxRetries times in smaller sub-batches.
func (c *Client) AnalyzeBatch(ctx context.Context, req core.AnalysisBatchRequest) ([]core.AnalysisItemResult, error) {
	provider := c.resolveProvider(req.Provider)
	size := req.BatchSize
	if size <= 0 {
		size = 5
	}
	size = min(size, provider.MaxBatch)

	results, err := c.runPass(ctx, provider, req.Items, size, req.OnProgress)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		failed := failedIndexes(results)
		if len(failed) == 0 {
			break
		}
		c.logger.InfoContext(ctx, "retrying failed analysis items",
			"provider", provider.Name,
			"items", len(failed),
			"attempt", attempt,
			"max_retries", c.cfg.MaxRetries,
		)
		retry := make([]core.AnalysisItem, len(failed))
		for i, idx := range failed {
			retry[i] = req.Items[idx]
		}
		retried, err := c.runPass(ctx, provider, retry, min(size, retryBatchSize), nil)
		if err != nil {
			return nil, err
		}
		for i, idx := range failed {
			results[idx] = retried[i]
		}
		c.countRetries(provider.Name, retried)
	}
	return results, nil
}

// runPass sends items in sub-batches of size and returns one result per item.
func (c *Client) runPass(
	ctx context.Context,
	provider Provider,
	items []core.AnalysisItem,
	size int,
	onProgress func(done, total int),
) ([]core.AnalysisItemResult, error) {
	results := make([]core.AnalysisItemResult, 0, len(items))
	for start := 0; start < len(items); start += size {
		chunk := items[start:min(start+size, len(items))]

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		chunkResults, err := c.analyzeChunk(ctx, provider, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WarnContext(ctx, "analysis sub-batch failed",
				"provider", provider.Name,
				"items", len(chunk),
				"error", err,
			)
			chunkResults = failAll(chunk, err)
		}
		results = append(results, chunkResults...)

		if onProgress != nil {
			onProgress(len(results), len(items))
		}
	}
	return results, nil
}

func (c *Client) resolveProvider(name string) Provider {
	if p, ok := c.catalog.Lookup(name); ok {
		return p
	}
	if p, ok := c.catalog.Lookup(c.cfg.DefaultProvider); ok {
		return p
	}
	return Provider{Name: c.cfg.DefaultProvider, MaxBatch: DefaultMaxBatch}
}

func (c *Client) analyzeChunk(ctx context.Context, provider Provider, chunk []core.AnalysisItem) ([]core.AnalysisItemResult, error) {
	start := time.Now()
	payload, err := c.post(ctx, provider, chunk)
	c.emitRequest(provider.Name, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	items, err := c.extractItems(payload)
	if err != nil {
		return nil, err
	}

	byTrack := make(map[int64]responseItem, len(items))
	for _, it := range items {
		byTrack[it.TrackID] = it
	}
	out := make([]core.AnalysisItemResult, len(chunk))
	for i, item := range chunk {
		res := core.AnalysisItemResult{TrackID: item.TrackID}
		it, ok := byTrack[item.TrackID]
		switch {
		case !ok:
			res.Err = apperrors.AnalysisFailure(ErrNoResult, "analysis failed")
		case it.Error != "":
			res.Err = apperrors.AnalysisFailure(errors.New(it.Error), "analysis failed")
		case len(it.Analysis) == 0 || string(it.Analysis) == "null":
			res.Err = apperrors.AnalysisFailure(errors.New("empty analysis"), "analysis failed")
		default:
			res.Payload = it.Analysis
			res.ModelName = it.Model
			if res.ModelName == "" {
				res.ModelName = provider.Model
			}
		}
		out[i] = res
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, provider Provider, chunk []core.AnalysisItem) (any, error) {
	body := requestBody{Provider: provider.Name, Model: provider.Model, Items: make([]requestItem, len(chunk))}
	for i, item := range chunk {
		body.Items[i] = requestItem{TrackID: item.TrackID, Artist: item.Artist, Title: item.Title}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}

	endpoint := provider.Endpoint
	if endpoint == "" {
		endpoint = c.cfg.Endpoint
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.AnalysisFailure(err, "analysis provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperrors.AnalysisFailure(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			"analysis provider rejected request",
		)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.AnalysisFailure(err, "analysis provider returned invalid JSON")
	}
	return payload, nil
}

// extractItems applies the result expression and decodes the selected list.
func (c *Client) extractItems(payload any) ([]responseItem, error) {
	selected, err := jmespath.Search(c.cfg.ResultExpression, payload)
	if err != nil {
		return nil, apperrors.AnalysisFailure(err, "analysis result expression failed")
	}
	list, ok := selected.([]any)
	if !ok {
		return nil, apperrors.AnalysisFailure(
			fmt.Errorf("expression %q selected %T, want a list", c.cfg.ResultExpression, selected),
			"analysis provider response has unexpected shape",
		)
	}

	out := make([]responseItem, 0, len(list))
	for _, el := range list {
		raw, err := json.Marshal(el)
		if err != nil {
			continue
		}
		var it responseItem
		if err := json.Unmarshal(raw, &it); err != nil || it.TrackID <= 0 {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (c *Client) emitRequest(provider string, elapsed time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	tags := map[string]string{"provider": provider, "result": result}
	c.metrics.Count("analysis.request", 1, tags)
	c.metrics.Timing("analysis.request_duration", elapsed, metrics.CloneTags(tags))
}

func (c *Client) countRetries(provider string, retried []core.AnalysisItemResult) {
	if c.metrics == nil {
		return
	}
	recovered := len(retried) - len(failedIndexes(retried))
	tags := map[string]string{"provider": provider}
	c.metrics.Count("analysis.retry_items", int64(len(retried)), tags)
	c.metrics.Count("analysis.retry_recovered", int64(recovered), metrics.CloneTags(tags))
}

func failedIndexes(results []core.AnalysisItemResult) []int {
	var out []int
	for i, r := range results {
		if r.Err != nil {
			out = append(out, i)
		}
	}
	return out
}

func failAll(chunk []core.AnalysisItem, err error) []core.AnalysisItemResult {
	out := make([]core.AnalysisItemResult, len(chunk))
	for i, item := range chunk {
		out[i] = core.AnalysisItemResult{TrackID: item.TrackID, Err: err}
	}
	return out
}
