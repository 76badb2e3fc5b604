// Package servicenow is the ticketing backend: a REST client for a
// ServiceNow instance and the incident tools the assistant calls through it.
package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tailored-agentic-units/incidentdesk/observability"
)

// EventRequest is emitted after every API round trip.
const EventRequest observability.EventType = "servicenow.request"

// Display modes for sysparm_display_value.
const (
	DisplayRaw  = ""
	DisplayText = "true"
	DisplayBoth = "all"
)

// Record is one table row as the instance returns it. With DisplayBoth each
// reference and choice field is an object holding "value" and
// "display_value"; otherwise fields are plain strings.
type Record map[string]any

// Value returns the stored value of field.
func (r Record) Value(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["value"].(string)
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Display returns the display value of field, falling back to the stored
// value.
func (r Record) Display(field string) string {
	if v, ok := r[field].(map[string]any); ok {
		if s, ok := v["display_value"].(string); ok {
			return s
		}
	}
	return r.Value(field)
}

// Query selects rows from a table.
type Query struct {
	// Filter is an encoded sysparm_query, ordering clauses included.
	Filter  string
	Fields  []string
	Limit   int
	Display string
}

func (q Query) params() url.Values {
	params := url.Values{}
	if q.Filter != "" {
		params.Set("sysparm_query", q.Filter)
	}
	if len(q.Fields) > 0 {
		params.Set("sysparm_fields", strings.Join(q.Fields, ","))
	}
	if q.Limit > 0 {
		params.Set("sysparm_limit", strconv.Itoa(q.Limit))
	}
	if q.Display != DisplayRaw {
		params.Set("sysparm_display_value", q.Display)
	}
	return params
}

// Client is a ServiceNow REST API client using basic auth.
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	observer   observability.Observer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is left as given.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver sets the observer that receives request events.
func WithObserver(obs observability.Observer) ClientOption {
	return func(c *Client) { c.observer = obs }
}

// NewClient creates a client. Missing credentials are reported per call
// with ErrMissingCredentials so the catalog can still be listed.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	merged := DefaultConfig()
	merged.Merge(&cfg)

	c := &Client{
		config:     merged,
		baseURL:    strings.TrimRight(merged.Instance, "/"),
		httpClient: &http.Client{Timeout: merged.Timeout.Std()},
		observer:   observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// InstanceURL returns the instance base URL without a trailing slash.
func (c *Client) InstanceURL() string {
	return c.baseURL
}

// List returns the rows of table matching q.
func (c *Client) List(ctx context.Context, table string, q Query) ([]Record, error) {
	var result struct {
		Result []Record `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/now/table/"+table, q.params(), nil, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// SysID resolves the sys_id of the first row of table where field equals
// value. Returns ErrNotFound when no row matches.
func (c *Client) SysID(ctx context.Context, table, field, value string) (string, error) {
	rows, err := c.List(ctx, table, Query{
		Filter: field + "=" + value,
		Fields: []string{"sys_id"},
		Limit:  1,
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].Value("sys_id") == "" {
		return "", fmt.Errorf("%w: %s %s=%s", ErrNotFound, table, field, value)
	}
	return rows[0].Value("sys_id"), nil
}

// Create inserts a row and returns it as stored.
func (c *Client) Create(ctx context.Context, table string, fields map[string]string) (Record, error) {
	var result struct {
		Result Record `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/now/table/"+table, nil, fields, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// Update patches the row identified by sysID.
func (c *Client) Update(ctx context.Context, table, sysID string, fields map[string]string) (Record, error) {
	var result struct {
		Result Record `json:"result"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/now/table/"+table+"/"+sysID, nil, fields, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// Delete removes the row identified by sysID.
func (c *Client) Delete(ctx context.Context, table, sysID string) error {
	return c.do(ctx, http.MethodDelete, "/api/now/table/"+table+"/"+sysID, nil, nil, nil)
}

// Count returns the number of rows of table matching filter, using the
// aggregate API.
func (c *Client) Count(ctx context.Context, table, filter string) (int, error) {
	params := url.Values{}
	params.Set("sysparm_count", "true")
	if filter != "" {
		params.Set("sysparm_query", filter)
	}

	var result struct {
		Result struct {
			Stats struct {
				Count string `json:"count"`
			} `json:"stats"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/now/stats/"+table, params, nil, &result); err != nil {
		return 0, err
	}

	raw := result.Result.Stats.Count
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decode response: count %q: %w", raw, err)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	if !c.config.Configured() {
		return ErrMissingCredentials
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.emit(ctx, method, path, 0, start, err)
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			respBody = []byte("(failed to read response body)")
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		c.emit(ctx, method, path, resp.StatusCode, start, apiErr)
		return apiErr
	}
	c.emit(ctx, method, path, resp.StatusCode, start, nil)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) emit(ctx context.Context, method, path string, status int, start time.Time, err error) {
	level := observability.LevelVerbose
	data := map[string]any{
		"method":   method,
		"path":     path,
		"status":   status,
		"duration": time.Since(start),
	}
	if err != nil {
		level = observability.LevelWarning
		data["error"] = err.Error()
	}
	observability.Emit(ctx, c.observer, EventRequest, level, "servicenow.Client", data)
}
