// Package currency fetches exchange rates from a public rate API and
// renders them as plain text.
//
// The results are consumed by a model reasoning loop, not a human, so
// every failure mode degrades to a readable sentence instead of an
// error return. Callers never need to branch on failure.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cambio-ai/cambio/internal/log"
)

const (
	// requestTimeout bounds a single rate lookup.
	requestTimeout = 10 * time.Second

	// maxResponseSize limits how much of the upstream body is read.
	maxResponseSize = 1 << 20 // 1MB
)

// Client queries an exchange-rate API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a rate client for the given API base URL, e.g.
// "https://api.frankfurter.dev/v1". A nil httpClient gets a default
// with a request timeout.
func NewClient(baseURL string, httpClient *http.Client, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ratesPayload is the subset of the upstream response we consume.
type ratesPayload struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Rate returns the current rate for one unit of from expressed in to,
// formatted as "1 USD = 0.9217 EUR". Unknown codes and transport
// failures come back as readable text.
func (c *Client) Rate(ctx context.Context, from, to string) string {
	from, to = normalize(from), normalize(to)
	if from == to {
		return fmt.Sprintf("1 %s = %.4f %s", from, 1.0, to)
	}

	rate, err := c.fetch(ctx, from, to, 0)
	if err != nil {
		c.logger.Warn("rate lookup failed", "from", from, "to", to, "error", err)
		return fmt.Sprintf("unable to get exchange rate for %s to %s", from, to)
	}
	return fmt.Sprintf("1 %s = %.4f %s", from, rate, to)
}

// Convert converts amount units of from into to, formatted as
// "100 USD = 92.17 EUR". Same degradation policy as Rate.
func (c *Client) Convert(ctx context.Context, amount float64, from, to string) string {
	from, to = normalize(from), normalize(to)
	if from == to {
		return fmt.Sprintf("%v %s = %.2f %s", amount, from, amount, to)
	}
	// Zero converts to zero in any currency, and the upstream treats a
	// missing amount as a unit-rate request, so answer locally.
	if amount == 0 {
		return fmt.Sprintf("%v %s = %.2f %s", amount, from, 0.0, to)
	}

	converted, err := c.fetch(ctx, from, to, amount)
	if err != nil {
		c.logger.Warn("conversion failed", "amount", amount, "from", from, "to", to, "error", err)
		return fmt.Sprintf("unable to convert %v %s to %s", amount, from, to)
	}
	return fmt.Sprintf("%v %s = %.2f %s", amount, from, converted, to)
}

// fetch issues the GET and extracts the target rate. An amount of zero
// requests the unit rate; otherwise the API converts the amount
// directly.
func (c *Client) fetch(ctx context.Context, from, to string, amount float64) (float64, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	if amount != 0 {
		q.Set("amount", fmt.Sprintf("%v", amount))
	}
	endpoint := fmt.Sprintf("%s/latest?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("building rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, fmt.Errorf("reading rate response: %w", err)
	}

	var payload ratesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("parsing rate response: %w", err)
	}

	rate, ok := payload.Rates[to]
	if !ok {
		return 0, fmt.Errorf("rate for %s missing from response", to)
	}
	return rate, nil
}

// normalize uppercases and trims a currency code.
func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
