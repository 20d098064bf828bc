// Package coingecko is a client for the CoinGecko market data API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client is a CoinGecko API client
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new CoinGecko client.
// baseURL is the API root, e.g. https://api.coingecko.com/api/v3
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("client", "coingecko").Logger(),
	}
}

// GetMarkets fetches the market listing for the given coin IDs, priced in USD.
// An empty ids slice returns the top coins by market cap.
func (c *Client) GetMarkets(ctx context.Context, ids []string) ([]MarketCoin, error) {
	params := url.Values{}
	params.Add("vs_currency", "usd")
	params.Add("order", "market_cap_desc")
	params.Add("per_page", "100")
	params.Add("sparkline", "false")
	if len(ids) > 0 {
		params.Add("ids", strings.Join(ids, ","))
	}

	var coins []MarketCoin
	if err := c.get(ctx, "/coins/markets", params, &coins); err != nil {
		return nil, err
	}

	c.log.Debug().Int("count", len(coins)).Msg("Fetched market listing")
	return coins, nil
}

// GetMarketChart fetches the historical price series for a coin.
// days accepts CoinGecko range values: "1", "7", "30", "90", "365", "max".
func (c *Client) GetMarketChart(ctx context.Context, id, days string) (*MarketChart, error) {
	if id == "" {
		return nil, fmt.Errorf("coin id is required")
	}

	params := url.Values{}
	params.Add("vs_currency", "usd")
	params.Add("days", days)

	var chart MarketChart
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", params, &chart); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("id", id).
		Str("days", days).
		Int("points", len(chart.Prices)).
		Msg("Fetched market chart")
	return &chart, nil
}

// get performs a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("CoinGecko rate limit hit for %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("CoinGecko API returned status %d for %s: %s", resp.StatusCode, path, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}

	return nil
}
