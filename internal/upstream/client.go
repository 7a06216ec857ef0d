package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/julianopk/payment-broker/internal/payment"
)

// Name identifies one of the two payment processors.
type Name string

const (
	Default  Name = "default"
	Fallback Name = "fallback"
)

// DispatchResult is the outcome of a payment submission once the upstream has
// answered with any HTTP status. Transport-level failures are reported as
// errors instead.
type DispatchResult struct {
	StatusCode int
	Body       []byte
	Message    string
}

// Processed reports whether the upstream accepted the payment.
func (r DispatchResult) Processed() bool {
	return r.StatusCode == http.StatusOK
}

// HealthReport mirrors the processor's /payments/service-health body. Failing
// arrives as true/false or 0/1 depending on the processor build.
type HealthReport struct {
	Failing         BoolFlag `json:"failing"`
	MinResponseTime int      `json:"minResponseTime"`
}

// BoolFlag is a bool that also accepts the numeric renditions 0 and 1.
type BoolFlag bool

func (b *BoolFlag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("upstream: invalid boolean flag %q", data)
	}
	return nil
}

// Totals mirrors the processor's admin summary body.
type Totals struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

// Client talks to a single payment processor: payment submission, health
// probing and the token-guarded admin summary.
type Client struct {
	name       Name
	baseURL    *url.URL
	adminToken string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the processor at baseURL. The timeout bounds
// every outbound call, connection establishment included.
func NewClient(name Name, baseURL *url.URL, adminToken string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		name:       name,
		baseURL:    baseURL,
		adminToken: adminToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Name returns the processor identity (default or fallback).
func (c *Client) Name() Name {
	return c.name
}

// SubmitPayment POSTs the payment to {upstream}/payments. A non-2xx status is
// not an error: the caller decides what a rejection means.
func (c *Client) SubmitPayment(ctx context.Context, p payment.Payment) (DispatchResult, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("marshal payment: %w", err)
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "/payments"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return DispatchResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("submit payment to %s: %w", c.name, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("read %s response: %w", c.name, err)
	}

	return DispatchResult{
		StatusCode: res.StatusCode,
		Body:       raw,
		Message:    extractMessage(raw),
	}, nil
}

// ServiceHealth GETs {upstream}/payments/service-health and decodes the
// report. Any transport failure or non-200 status is an error; the caller
// treats that as absence of news.
func (c *Client) ServiceHealth(ctx context.Context) (HealthReport, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "/payments/service-health"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return HealthReport{}, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return HealthReport{}, fmt.Errorf("probe %s: %w", c.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return HealthReport{}, fmt.Errorf("probe %s: unexpected status %d", c.name, res.StatusCode)
	}

	var report HealthReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		return HealthReport{}, fmt.Errorf("decode %s health report: %w", c.name, err)
	}

	return report, nil
}

// AdminSummary GETs {upstream}/admin/payments-summary for the given range.
// The from/to values are forwarded verbatim; the processor owns their
// interpretation.
func (c *Client) AdminSummary(ctx context.Context, from, to string) (Totals, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{
		Path:     "/admin/payments-summary",
		RawQuery: url.Values{"from": {from}, "to": {to}}.Encode(),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Totals{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Rinha-Token", c.adminToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Totals{}, fmt.Errorf("admin summary from %s: %w", c.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Totals{}, fmt.Errorf("admin summary from %s: unexpected status %d", c.name, res.StatusCode)
	}

	var totals Totals
	if err := json.NewDecoder(res.Body).Decode(&totals); err != nil {
		return Totals{}, fmt.Errorf("decode %s admin summary: %w", c.name, err)
	}

	return totals, nil
}

// extractMessage pulls the "message" field out of an upstream JSON body,
// falling back to the raw payload when the body is not the expected shape.
func extractMessage(raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return string(raw)
}
