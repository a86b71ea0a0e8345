package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/go-travel-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-planner/config"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

const (
	DefaultBaseURL = "https://api.map.baidu.com"
	DefaultRegion  = "全国"
	// TacticsAvoidHighways is the driving strategy used when none is configured.
	TacticsAvoidHighways = 11

	maxLoggedBody = 500
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

var _ GeoService = (*BaiduClient)(nil)

// GeoService resolves place names and driving routes. Every failure mode
// (transport, decoding, provider status, empty result) is reported as absence.
type GeoService interface {
	SearchPlace(ctx context.Context, query string) (*types.LocationInfo, bool)
	GetRoute(ctx context.Context, originLat, originLng, destLat, destLng float64, tactics int) (*types.RouteInfo, bool)
	DefaultTactics() int
}

type BaiduClient struct {
	httpClient *http.Client
	baseURL    string
	accessKey  string
	region     string
	tactics    int
	limiter    *rate.Limiter
	places     *cache.Cache
	logger     *slog.Logger
}

func NewBaiduClient(cfg config.MapsConfig, httpClient *http.Client, logger *slog.Logger) *BaiduClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	tactics := cfg.Tactics
	if tactics == 0 {
		tactics = TacticsAvoidHighways
	}
	limit, burst := rate.Inf, 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &BaiduClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		accessKey:  cfg.AccessKey,
		region:     region,
		tactics:    tactics,
		limiter:    rate.NewLimiter(limit, burst),
		places:     cache.New(ttl, 2*ttl),
		logger:     logger,
	}
}

func (c *BaiduClient) DefaultTactics() int {
	return c.tactics
}

// SearchPlace returns the first place search hit for query. Only hits with
// numeric coordinates count; the query stands in for a missing name.
func (c *BaiduClient) SearchPlace(ctx context.Context, query string) (*types.LocationInfo, bool) {
	ctx, span := otel.Tracer("GeoClient").Start(ctx, "SearchPlace", trace.WithAttributes(
		attribute.String("geo.query", query),
	))
	defer span.End()

	l := c.logger.With(slog.String("method", "SearchPlace"), slog.String("query", query))

	if cached, ok := c.places.Get(query); ok {
		loc := cached.(types.LocationInfo)
		l.DebugContext(ctx, "Place served from cache")
		c.record(ctx, "search", "cached")
		return &loc, true
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("region", c.region)
	params.Set("output", "json")

	data, ok := c.fetch(ctx, l, "/place/v2/search", params)
	if !ok {
		span.SetStatus(codes.Error, "place search failed")
		c.record(ctx, "search", "failed")
		return nil, false
	}

	results, _ := data["results"].([]any)
	if !statusOK(data) || len(results) == 0 {
		l.WarnContext(ctx, "Place search returned no result", slog.String("response", truncate(encode(data))))
		c.record(ctx, "search", "not_found")
		return nil, false
	}

	first, _ := results[0].(map[string]any)
	location, _ := first["location"].(map[string]any)
	lat, latOK := location["lat"].(float64)
	lng, lngOK := location["lng"].(float64)
	if !latOK || !lngOK {
		l.WarnContext(ctx, "Place search result has no usable location", slog.String("response", truncate(encode(data))))
		c.record(ctx, "search", "not_found")
		return nil, false
	}

	name, _ := first["name"].(string)
	if name == "" {
		name = query
	}
	loc := types.LocationInfo{Name: name, Lat: lat, Lng: lng}
	c.places.SetDefault(query, loc)

	l.DebugContext(ctx, "Place resolved", slog.Float64("lat", lat), slog.Float64("lng", lng))
	span.SetStatus(codes.Ok, "place resolved")
	c.record(ctx, "search", "found")
	return &loc, true
}

// GetRoute returns the first driving route between two coordinates.
func (c *BaiduClient) GetRoute(ctx context.Context, originLat, originLng, destLat, destLng float64, tactics int) (*types.RouteInfo, bool) {
	ctx, span := otel.Tracer("GeoClient").Start(ctx, "GetRoute", trace.WithAttributes(
		attribute.Int("geo.tactics", tactics),
	))
	defer span.End()

	l := c.logger.With(slog.String("method", "GetRoute"))

	params := url.Values{}
	params.Set("origin", formatCoord(originLat, originLng))
	params.Set("destination", formatCoord(destLat, destLng))
	params.Set("tactics", strconv.Itoa(tactics))

	data, ok := c.fetch(ctx, l, "/direction/v2/driving", params)
	if !ok {
		span.SetStatus(codes.Error, "route lookup failed")
		c.record(ctx, "route", "failed")
		return nil, false
	}

	result, _ := data["result"].(map[string]any)
	routes, _ := result["routes"].([]any)
	if !statusOK(data) || len(routes) == 0 {
		l.WarnContext(ctx, "Route lookup returned no route", slog.String("response", truncate(encode(data))))
		c.record(ctx, "route", "not_found")
		return nil, false
	}

	route, _ := routes[0].(map[string]any)
	info := &types.RouteInfo{
		Distance: numberOrZero(route["distance"]),
		Duration: numberOrZero(route["duration"]),
		Steps:    parseSteps(route["steps"]),
	}

	l.DebugContext(ctx, "Route resolved", slog.Float64("distance", info.Distance), slog.Int("steps", len(info.Steps)))
	span.SetStatus(codes.Ok, "route resolved")
	c.record(ctx, "route", "found")
	return info, true
}

// fetch performs one GET and decodes the JSON body. It logs and reports false
// on any failure.
func (c *BaiduClient) fetch(ctx context.Context, l *slog.Logger, path string, params url.Values) (map[string]any, bool) {
	if c.accessKey == "" {
		l.ErrorContext(ctx, "Baidu map access key is not configured")
		return nil, false
	}
	if err := c.limiter.Wait(ctx); err != nil {
		l.WarnContext(ctx, "Rate limiter wait aborted", slog.Any("error", err))
		return nil, false
	}

	params.Set("ak", c.accessKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		l.ErrorContext(ctx, "Failed to build request", slog.Any("error", err))
		return nil, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		l.ErrorContext(ctx, "Map provider request failed", slog.Any("error", err))
		return nil, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		l.ErrorContext(ctx, "Failed to read map provider response", slog.Any("error", err))
		return nil, false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.ErrorContext(ctx, "Map provider HTTP error", slog.Int("status", resp.StatusCode), slog.String("body", truncate(string(body))))
		return nil, false
	}

	// the provider may label JSON as text/html, so the content type is ignored
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		l.ErrorContext(ctx, "Map provider returned non-JSON response", slog.String("body", truncate(string(body))))
		return nil, false
	}
	return data, true
}

func (c *BaiduClient) record(ctx context.Context, operation, outcome string) {
	metrics.Get().GeoLookupsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func parseSteps(v any) []types.RouteStep {
	raw, _ := v.([]any)
	steps := make([]types.RouteStep, 0, len(raw))
	for _, item := range raw {
		instruction := CleanInstruction(stepInstruction(item))
		if instruction == "" {
			continue
		}
		step := types.RouteStep{Instruction: instruction}
		if obj, ok := item.(map[string]any); ok {
			step.Distance = numberOrZero(obj["distance"])
			step.Duration = numberOrZero(obj["duration"])
		}
		steps = append(steps, step)
	}
	return steps
}

// stepInstruction probes the field names the driving API has used over time.
func stepInstruction(step any) string {
	if s, ok := step.(string); ok {
		return s
	}
	obj, ok := step.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := obj["instruction"].(string); ok && s != "" {
		return s
	}
	if s, ok := obj["instructions"].(string); ok && s != "" {
		return s
	}
	if path, ok := obj["path"].(map[string]any); ok {
		if s, ok := path["instruction"].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := obj["turnInstruction"].(string); ok && s != "" {
		return s
	}
	return ""
}

// CleanInstruction strips markup and collapses whitespace.
func CleanInstruction(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func statusOK(data map[string]any) bool {
	status, ok := data["status"].(float64)
	return ok && status == 0
}

func numberOrZero(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

func formatCoord(lat, lng float64) string {
	return fmt.Sprintf("%s,%s", strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lng, 'f', -1, 64))
}

func encode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func truncate(s string) string {
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody]
	}
	return s
}
