package market

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

// Client is an HTTP implementation of DataProvider, NewsProvider and
// ConceptProvider against a quote-API gateway. Endpoints follow the gateway's
// JSON conventions; responses larger than maxBodySize are rejected.
type Client struct {
	baseURL string
	http    *http.Client
}

const maxBodySize = 8 << 20

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetBasicInfo(ctx context.Context, ticker string) (*BasicInfo, error) {
	var info BasicInfo

	err := c.getJSON(ctx, "/api/stock/info/"+url.PathEscape(ticker), nil, &info)
	if err != nil {
		return nil, fmt.Errorf("market.Client.GetBasicInfo(%q): %w", ticker, err)
	}

	return &info, nil
}

func (c *Client) GetHistory(ctx context.Context, ticker, interval, rng string) ([]Candle, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("range", rng)

	var candles []Candle

	err := c.getJSON(ctx, "/api/stock/history/"+url.PathEscape(ticker), q, &candles)
	if err != nil {
		return nil, fmt.Errorf("market.Client.GetHistory(%q): %w", ticker, err)
	}

	return candles, nil
}

func (c *Client) GetRecentNews(ctx context.Context, topic string, limit int) ([]NewsItem, error) {
	q := url.Values{}
	q.Set("topic", topic)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var items []NewsItem

	err := c.getJSON(ctx, "/api/news/recent", q, &items)
	if err != nil {
		return nil, fmt.Errorf("market.Client.GetRecentNews(%q): %w", topic, err)
	}

	return items, nil
}

func (c *Client) ListConcepts(ctx context.Context) ([]Concept, error) {
	var concepts []Concept

	err := c.getJSON(ctx, "/api/concept/list", nil, &concepts)
	if err != nil {
		return nil, fmt.Errorf("market.Client.ListConcepts: %w", err)
	}

	return concepts, nil
}

func (c *Client) GetConceptStocks(ctx context.Context, concept string) ([]ConceptStock, error) {
	var stocks []ConceptStock

	err := c.getJSON(ctx, "/api/concept/stocks/"+url.PathEscape(concept), nil, &stocks)
	if err != nil {
		return nil, fmt.Errorf("market.Client.GetConceptStocks(%q): %w", concept, err)
	}

	return stocks, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}

	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
