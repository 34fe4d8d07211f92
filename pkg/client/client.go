// Package client provides typed, product-aware, read-only access to the
// Cribl REST API. All operations are GETs; every request passes through
// the shared run rate limiter and call budget.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/ratelimit"
)

const (
	// DefaultTimeout is the total per-call timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the retry count for transport errors, 429 and 5xx.
	DefaultRetries = 3
	// DefaultGroup is the worker group used for scoped endpoints.
	DefaultGroup = "default"
)

// Client is the Cribl API client. It is shared read-only by all analyzers
// in a run; the rate limiter it holds is the only shared mutable state.
type Client struct {
	baseURL    string
	transport  Transport
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	auth       authorizer
	timeout    time.Duration
	maxRetries int
	group      string
	workspace  string
	lake       string
	hint       model.Product

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	detected bool
	product  model.Product
	version  string
}

// Option configures the client.
type Option func(*Client)

// WithBearerToken authenticates with a static operator-supplied token.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.auth = bearerAuth{token: token} }
}

// WithOAuth authenticates via the client-credentials grant against
// tokenURL (Cribl Cloud's endpoint when empty).
func WithOAuth(ctx context.Context, clientID, clientSecret, tokenURL string) Option {
	return func(c *Client) { c.auth = newOAuthAuth(ctx, clientID, clientSecret, tokenURL) }
}

// WithTransport substitutes the HTTP stack. Tests pass a recording mock.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithLimiter shares an externally owned rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout sets the total per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets the retry count for retryable failures.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithGroup sets the worker group for scoped endpoints.
func WithGroup(group string) Option {
	return func(c *Client) {
		if group != "" {
			c.group = group
		}
	}
}

// WithWorkspace sets the workspace for Search endpoints.
func WithWorkspace(ws string) Option {
	return func(c *Client) {
		if ws != "" {
			c.workspace = ws
		}
	}
}

// WithLake sets the lake id for Lake endpoints.
func WithLake(lake string) Option {
	return func(c *Client) {
		if lake != "" {
			c.lake = lake
		}
	}
}

// WithProductHint skips detection probes when the operator already knows
// the product.
func WithProductHint(p model.Product) Option {
	return func(c *Client) { c.hint = p }
}

// New builds a client for the deployment at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("client: base URL required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    ratelimit.New(ratelimit.DefaultRate, ratelimit.DefaultCeiling),
		logger:     slog.Default(),
		timeout:    DefaultTimeout,
		maxRetries: DefaultRetries,
		group:      DefaultGroup,
		workspace:  "main",
		lake:       "default",
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.auth == nil {
		return nil, fmt.Errorf("client: no credentials configured")
	}
	if c.transport == nil {
		c.transport = newBreakerTransport(&http.Client{})
	}
	return c, nil
}

// Limiter exposes the shared rate limiter for budget accounting.
func (c *Client) Limiter() *ratelimit.Limiter { return c.limiter }

// ProductType returns the detected product (empty before detection).
func (c *Client) ProductType() model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.product
}

// Version returns the detected remote version (empty before detection).
func (c *Client) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// IsEdge reports whether the deployment is Cribl Edge.
func (c *Client) IsEdge() bool { return c.ProductType() == model.ProductEdge }

// --- request path ---

// get performs one logical GET with retries. Optional endpoints turn 404
// into the ErrNotAvailable sentinel without retrying. Every HTTP attempt
// consumes one budget unit.
func (c *Client) get(ctx context.Context, endpoint string, optional bool) ([]byte, error) {
	var lastErr error
	lastStatus := 0

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.limiter.Backoff(attempt - 1)
			c.logger.Debug("retrying request", "endpoint", endpoint, "attempt", attempt, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			if err == ratelimit.ErrBudgetExhausted {
				return nil, apiErr(KindBudget, endpoint, 0, err)
			}
			return nil, err
		}

		body, status, err := c.attempt(ctx, endpoint)
		if err == nil {
			switch {
			case status == http.StatusUnauthorized || status == http.StatusForbidden:
				return nil, apiErr(KindAuth, endpoint, status, nil)
			case status == http.StatusNotFound && optional:
				return nil, apiErr(KindNotAvailable, endpoint, status, nil)
			case status == http.StatusNotFound:
				return nil, apiErr(KindEndpointMissing, endpoint, status, nil)
			case status == http.StatusTooManyRequests || status >= 500:
				lastErr = fmt.Errorf("http %d", status)
				lastStatus = status
				continue
			case status >= 400:
				return nil, apiErr(KindInternal, endpoint, status, nil)
			default:
				return body, nil
			}
		} else {
			kind := classifyTransportErr(err)
			if kind == KindTLS {
				return nil, apiErr(KindTLS, endpoint, 0, err)
			}
			lastErr = err
			lastStatus = 0
			continue
		}
	}

	if lastStatus != 0 {
		return nil, apiErr(KindRetryExhausted, endpoint, lastStatus, lastErr)
	}
	return nil, apiErr(KindUnreachable, endpoint, 0, lastErr)
}

func (c *Client) attempt(ctx context.Context, endpoint string) ([]byte, int, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	if err := c.auth.apply(req); err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func classifyTransportErr(err error) ErrorKind {
	msg := err.Error()
	if strings.Contains(msg, "tls") || strings.Contains(msg, "x509") || strings.Contains(msg, "certificate") {
		return KindTLS
	}
	return KindUnreachable
}

func (c *Client) getJSON(ctx context.Context, endpoint string, optional bool, v any) error {
	body, err := c.get(ctx, endpoint, optional)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apiErr(KindMalformed, endpoint, 0, err)
	}
	return nil
}

func (c *Client) getList(ctx context.Context, endpoint string, optional bool) ([]map[string]any, error) {
	body, err := c.get(ctx, endpoint, optional)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body)
	if err != nil {
		return nil, apiErr(KindMalformed, endpoint, 0, err)
	}
	return items, nil
}

// --- product detection ---

// TestConnection verifies reachability and auth, and detects the product:
// the version body's product field when present, otherwise probes for
// Edge fleets then Lake lakes, defaulting to Stream. Detection is cached
// for the client's lifetime.
func (c *Client) TestConnection(ctx context.Context) (*ConnectionInfo, error) {
	start := time.Now()

	var ver struct {
		Version string `json:"version"`
		Product string `json:"product"`
	}
	if err := c.getJSON(ctx, "/api/v1/version", false, &ver); err != nil {
		return nil, err
	}

	product := model.Product(ver.Product)
	if !product.Valid() {
		var err error
		product, err = c.probeProduct(ctx)
		if err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.detected = true
	c.product = product
	c.version = ver.Version
	c.mu.Unlock()

	c.logger.Info("connection verified", "product", product, "version", ver.Version)
	return &ConnectionInfo{
		Version:      ver.Version,
		Product:      product,
		ResponseTime: time.Since(start),
	}, nil
}

func (c *Client) probeProduct(ctx context.Context) (model.Product, error) {
	if c.hint.Valid() {
		return c.hint, nil
	}

	probes := []struct {
		endpoint string
		product  model.Product
	}{
		{"/api/v1/edge/fleets", model.ProductEdge},
		{"/api/v1/products/lake/lakes", model.ProductLake},
	}
	for _, p := range probes {
		_, err := c.get(ctx, p.endpoint, true)
		switch {
		case err == nil:
			return p.product, nil
		case KindOf(err) == KindNotAvailable || KindOf(err) == KindEndpointMissing:
			continue
		default:
			return "", err
		}
	}
	return model.ProductStream, nil
}

func (c *Client) ensureDetected(ctx context.Context) error {
	c.mu.Lock()
	done := c.detected
	c.mu.Unlock()
	if done {
		return nil
	}
	_, err := c.TestConnection(ctx)
	return err
}

// --- worker / node endpoints ---

// GetWorkers lists Stream workers in the unified worker shape.
func (c *Client) GetWorkers(ctx context.Context) ([]Worker, error) {
	items, err := c.getList(ctx, "/api/v1/master/workers", false)
	if err != nil {
		return nil, err
	}
	workers := make([]Worker, 0, len(items))
	for _, item := range items {
		workers = append(workers, parseStreamWorker(item))
	}
	return workers, nil
}

// GetEdgeNodes lists Edge nodes normalized into the unified worker shape.
func (c *Client) GetEdgeNodes(ctx context.Context) ([]Worker, error) {
	items, err := c.getList(ctx, "/api/v1/edge/nodes", false)
	if err != nil {
		return nil, err
	}
	workers := make([]Worker, 0, len(items))
	for _, item := range items {
		workers = append(workers, normalizeEdgeNode(item))
	}
	return workers, nil
}

// GetNodes routes to workers or edge nodes by detected product.
func (c *Client) GetNodes(ctx context.Context) ([]Worker, error) {
	if err := c.ensureDetected(ctx); err != nil {
		return nil, err
	}
	if c.IsEdge() {
		return c.GetEdgeNodes(ctx)
	}
	return c.GetWorkers(ctx)
}

// --- group-scoped config endpoints ---

func (c *Client) groupPath(resource string) string {
	return fmt.Sprintf("/api/v1/m/%s/%s", c.group, resource)
}

func (c *Client) getGroupConfigs(ctx context.Context, resource string) ([]NamedConfig, error) {
	items, err := c.getList(ctx, c.groupPath(resource), false)
	if err != nil {
		return nil, err
	}
	return namedConfigs(items), nil
}

// GetPipelines lists pipelines for the configured worker group.
func (c *Client) GetPipelines(ctx context.Context) ([]NamedConfig, error) {
	return c.getGroupConfigs(ctx, "pipelines")
}

// GetRoutes lists routes for the configured worker group. Cribl nests the
// route table under a single "default" routes object.
func (c *Client) GetRoutes(ctx context.Context) ([]NamedConfig, error) {
	items, err := c.getList(ctx, c.groupPath("routes"), false)
	if err != nil {
		return nil, err
	}
	var routes []NamedConfig
	for _, item := range items {
		nested, ok := item["routes"].([]any)
		if !ok {
			routes = append(routes, NamedConfig{ID: asString(item, "id", "name"), Raw: item})
			continue
		}
		for _, r := range nested {
			if rm, ok := r.(map[string]any); ok {
				routes = append(routes, NamedConfig{ID: asString(rm, "id", "name"), Raw: rm})
			}
		}
	}
	return routes, nil
}

// GetInputs lists inputs for the configured worker group.
func (c *Client) GetInputs(ctx context.Context) ([]NamedConfig, error) {
	return c.getGroupConfigs(ctx, "inputs")
}

// GetOutputs lists outputs for the configured worker group.
func (c *Client) GetOutputs(ctx context.Context) ([]NamedConfig, error) {
	return c.getGroupConfigs(ctx, "outputs")
}

// GetLookups lists lookups for the configured worker group.
func (c *Client) GetLookups(ctx context.Context) ([]NamedConfig, error) {
	return c.getGroupConfigs(ctx, "lookups")
}

// GetParsers lists parsers for the configured worker group.
func (c *Client) GetParsers(ctx context.Context) ([]NamedConfig, error) {
	return c.getGroupConfigs(ctx, "parsers")
}

// --- system endpoints ---

// GetSystemStatus returns leader system status. Optional: 404 on Cloud.
func (c *Client) GetSystemStatus(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/api/v1/system/status", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetHealth returns leader health.
func (c *Client) GetHealth(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/api/v1/health", false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMetrics returns system metrics. Optional: 404 on Cloud.
func (c *Client) GetMetrics(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/api/v1/metrics", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLicenseInfo returns license entitlement and consumption.
func (c *Client) GetLicenseInfo(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/api/v1/system/licenses", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Lake endpoints ---

func (c *Client) lakePath(resource string) string {
	return fmt.Sprintf("/api/v1/products/lake/lakes/%s/%s", c.lake, resource)
}

// GetLakeDatasets lists datasets in the configured lake.
func (c *Client) GetLakeDatasets(ctx context.Context) ([]NamedConfig, error) {
	items, err := c.getList(ctx, c.lakePath("datasets"), false)
	if err != nil {
		return nil, err
	}
	return namedConfigs(items), nil
}

// GetLakehouses lists lakehouses in the configured lake. Optional: not
// every lake tier provisions lakehouses.
func (c *Client) GetLakehouses(ctx context.Context) ([]NamedConfig, error) {
	items, err := c.getList(ctx, c.lakePath("lakehouses"), true)
	if err != nil {
		return nil, err
	}
	return namedConfigs(items), nil
}

// GetDatasetStats returns stats for one lake dataset.
func (c *Client) GetDatasetStats(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	endpoint := c.lakePath("datasets") + "/" + id + "/stats"
	if err := c.getJSON(ctx, endpoint, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Search endpoints ---

func (c *Client) searchPath(resource string) string {
	return fmt.Sprintf("/api/v1/m/%s/search/%s", c.workspace, resource)
}

// GetSearchJobs lists search jobs in the configured workspace.
func (c *Client) GetSearchJobs(ctx context.Context) ([]NamedConfig, error) {
	items, err := c.getList(ctx, c.searchPath("jobs"), false)
	if err != nil {
		return nil, err
	}
	return namedConfigs(items), nil
}

// GetSearchDatasets lists search datasets.
func (c *Client) GetSearchDatasets(ctx context.Context) ([]NamedConfig, error) {
	items, err := c.getList(ctx, c.searchPath("datasets"), false)
	if err != nil {
		return nil, err
	}
	return namedConfigs(items), nil
}

// GetDashboards lists dashboards.
func (c *Client) GetDashboards(ctx context.Context) ([]NamedConfig, error) {
	items, err := c.getList(ctx, c.searchPath("dashboards"), false)
	if err != nil {
		return nil, err
	}
	return namedConfigs(items), nil
}

// GetSavedSearches lists saved searches. Optional: absent on older
// Search workspaces.
func (c *Client) GetSavedSearches(ctx context.Context) ([]NamedConfig, error) {
	items, err := c.getList(ctx, c.searchPath("saved-searches"), true)
	if err != nil {
		return nil, err
	}
	return namedConfigs(items), nil
}
