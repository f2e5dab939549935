// Package feed implements the price feed gateway client. The gateway is an
// external collaborator; every failure maps to domain.ErrPriceUnavailable so
// callers can decide whether to skip a tick or surface the error per
// position.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// defaultTimeout keeps a hung gateway from blocking the poll loop; a slow
// symbol is simply retried on the next interval.
const defaultTimeout = 5 * time.Second

// Gateway is the REST client for the market data gateway.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGateway creates a Gateway client for the given API root, e.g.
// "https://marketdata.internal". apiKey may be empty for gateways without
// authentication. A non-positive timeout falls back to the default 5 seconds.
func NewGateway(baseURL, apiKey string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// priceResponse is the gateway's wire format for a latest-price quote.
type priceResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// GetLatestPrice fetches the latest traded price for a symbol. Any transport,
// status, or decoding failure is wrapped in domain.ErrPriceUnavailable.
func (g *Gateway) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	reqURL := g.baseURL + "/v1/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("feed: create request for %s: %w", symbol, err)
	}
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("X-API-Key", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed: fetch %s: %w: %v", symbol, domain.ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("feed: fetch %s: %w: status %d: %s",
			symbol, domain.ErrPriceUnavailable, resp.StatusCode, string(body))
	}

	var quote priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, fmt.Errorf("feed: decode %s: %w: %v", symbol, domain.ErrPriceUnavailable, err)
	}
	if quote.Price <= 0 {
		return 0, fmt.Errorf("feed: fetch %s: %w: non-positive price %v",
			symbol, domain.ErrPriceUnavailable, quote.Price)
	}

	return quote.Price, nil
}

// Compile-time interface check.
var _ domain.PriceFeed = (*Gateway)(nil)
