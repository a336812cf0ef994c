package venue

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

	"github.com/shopspring/decimal"

	"github.com/p0mvn/swaprouter/internal/models"
)

// Client talks to the liquidity venue's HTTP API: pool liquidity, TWAP
// queries, asynchronous trade submission, transfers and result polling.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:9070/v1"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("venue http %d", e.StatusCode)
	}
	return fmt.Sprintf("venue http %d: %s", e.StatusCode, b)
}

// PoolLiquidity returns the total liquidity of poolID.
func (c *Client) PoolLiquidity(ctx context.Context, poolID uint64) ([]models.Asset, error) {
	var out LiquidityResponse
	u := fmt.Sprintf("%s/pools/%d/liquidity", c.BaseURL, poolID)
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	return out.Liquidity, nil
}

// ArithmeticTwap returns the time-weighted average price of baseDenom
// denominated in quoteDenom on poolID over [start, end].
func (c *Client) ArithmeticTwap(ctx context.Context, poolID uint64, baseDenom, quoteDenom string, start, end time.Time) (decimal.Decimal, error) {
	if strings.TrimSpace(baseDenom) == "" {
		return decimal.Zero, fmt.Errorf("baseDenom is required")
	}
	if strings.TrimSpace(quoteDenom) == "" {
		return decimal.Zero, fmt.Errorf("quoteDenom is required")
	}

	q := url.Values{}
	q.Set("pool_id", strconv.FormatUint(poolID, 10))
	q.Set("base_denom", baseDenom)
	q.Set("quote_denom", quoteDenom)
	q.Set("start", start.UTC().Format(time.RFC3339Nano))
	q.Set("end", end.UTC().Format(time.RFC3339Nano))

	var out TwapResponse
	if err := c.getJSON(ctx, c.BaseURL+"/twap?"+q.Encode(), &out); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(out.ArithmeticTwap)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable twap %q: %w", out.ArithmeticTwap, err)
	}
	return price, nil
}

// SubmitSwap issues a trade instruction. A nil error means the venue accepted
// the instruction and will deliver a TradeResult for its correlation id.
func (c *Client) SubmitSwap(ctx context.Context, instruction models.TradeInstruction) error {
	var out SubmitResponse
	if err := c.postJSON(ctx, c.BaseURL+"/swaps", instruction, &out); err != nil {
		return err
	}
	if !out.Accepted {
		return fmt.Errorf("venue rejected instruction %d", instruction.CorrelationID)
	}
	return nil
}

// Transfer credits asset to recipient.
func (c *Client) Transfer(ctx context.Context, recipient string, asset models.Asset) error {
	req := TransferRequest{Recipient: recipient, Denom: asset.Denom, Amount: asset.Amount}
	return c.postJSON(ctx, c.BaseURL+"/transfers", req, nil)
}

// SwapResults returns up to limit trade results with correlation id greater
// than afterID. Used by the polling result provider.
func (c *Client) SwapResults(ctx context.Context, afterID uint64, limit int) ([]*models.TradeResult, error) {
	q := url.Values{}
	q.Set("after_id", strconv.FormatUint(afterID, 10))
	q.Set("limit", strconv.Itoa(limit))

	var out ResultsResponse
	if err := c.getJSON(ctx, c.BaseURL+"/swaps/results?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, u string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode venue response: %w", err)
	}
	return nil
}
