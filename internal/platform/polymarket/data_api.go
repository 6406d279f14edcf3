package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxTradesLimit is the largest page the Data API returns.
const MaxTradesLimit = 500

// marketBatch keeps the comma-joined market filter well under URL limits.
const marketBatch = 25

// DataAPIClient reads public trades from the Polymarket Data API.
type DataAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataAPIClient creates a client for baseURL, e.g.
// "https://data-api.polymarket.com".
func NewDataAPIClient(baseURL string) *DataAPIClient {
	return &DataAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RecentTrades returns the most recent trades, newest first, across markets.
// An empty markets list queries every market. Markets are fetched in batches
// and the results concatenated.
func (c *DataAPIClient) RecentTrades(ctx context.Context, markets []string, limit int) ([]TradeMessage, error) {
	if limit <= 0 || limit > MaxTradesLimit {
		limit = MaxTradesLimit
	}
	if len(markets) == 0 {
		return c.trades(ctx, nil, limit)
	}

	var out []TradeMessage
	for start := 0; start < len(markets); start += marketBatch {
		end := min(start+marketBatch, len(markets))
		page, err := c.trades(ctx, markets[start:end], limit)
		if err != nil {
			return out, err
		}
		out = append(out, page...)
	}
	return out, nil
}

func (c *DataAPIClient) trades(ctx context.Context, markets []string, limit int) ([]TradeMessage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if len(markets) > 0 {
		q.Set("market", strings.Join(markets, ","))
	}

	body, err := c.doGet(ctx, "/trades?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: trades: %w", err)
	}
	var out []TradeMessage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode trades: %w", err)
	}
	return out, nil
}

// doGet sends an unauthenticated GET request.
func (c *DataAPIClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
