// Package rest is the reference HTTP venue adapter: JSON over HTTP with
// decimal strings on the wire, HMAC-authenticated requests and signed order
// submissions.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/venuebot/internal/crypto"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/shopspring/decimal"
)

const defaultMaxResponseBytes = 4 << 20

// Config configures one REST venue.
type Config struct {
	VenueID string
	// Market is the venue-side market id used in paths; defaults to VenueID.
	Market  string
	Pair    string
	BaseURL string
	Auth    *crypto.HMACAuth
	// Signer signs order submissions; nil sends them unsigned.
	Signer *crypto.Signer
	// Limiter with RateLimit > 0 bounds requests per second across every
	// process sharing the limiter.
	Limiter          domain.RateLimiter
	RateLimit        int
	HTTPClient       *http.Client
	MaxResponseBytes int64
}

// Client implements domain.Venue and domain.HealthSource for one market.
type Client struct {
	cfg        Config
	httpClient *http.Client
	nonce      atomic.Int64
	now        func() time.Time
}

// NewClient creates a REST venue client.
func NewClient(cfg Config) *Client {
	if cfg.Market == "" {
		cfg.Market = cfg.VenueID
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{cfg: cfg, httpClient: hc, now: time.Now}
	c.nonce.Store(time.Now().UnixNano())
	return c
}

// OrderBook fetches the top depth levels of each side.
func (c *Client) OrderBook(ctx context.Context, venueID string, depth int) (domain.MarketSnapshot, error) {
	path := fmt.Sprintf("/v1/markets/%s/book?depth=%d", url.PathEscape(c.cfg.Market), depth)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("rest: %s: order book: %w", venueID, err)
	}
	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("rest: %s: decode book: %w: %w", venueID, domain.ErrDataIntegrity, err)
	}
	snap, err := book.ToDomainSnapshot(venueID, c.cfg.Pair, c.now())
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("rest: %w", err)
	}
	return snap, nil
}

// Stats fetches fee rates, minimum order size and vault balances.
func (c *Client) Stats(ctx context.Context, venueID string) (domain.VenueStats, error) {
	path := fmt.Sprintf("/v1/markets/%s/stats", url.PathEscape(c.cfg.Market))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.VenueStats{}, fmt.Errorf("rest: %s: stats: %w", venueID, err)
	}
	var stats APIStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return domain.VenueStats{}, fmt.Errorf("rest: %s: decode stats: %w", venueID, err)
	}
	out, err := stats.ToDomainStats(venueID)
	if err != nil {
		return domain.VenueStats{}, fmt.Errorf("rest: %s: stats: %w", venueID, err)
	}
	return out, nil
}

// EstimateConversion asks the venue what amountIn would swap into.
func (c *Client) EstimateConversion(ctx context.Context, venueID string, amountIn decimal.Decimal, side domain.OrderSide) (domain.Conversion, error) {
	q := url.Values{}
	q.Set("amount_in", amountIn.String())
	q.Set("side", string(side))
	path := fmt.Sprintf("/v1/markets/%s/quote?%s", url.PathEscape(c.cfg.Market), q.Encode())
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Conversion{}, fmt.Errorf("rest: %s: quote: %w", venueID, err)
	}
	var conv APIConversion
	if err := json.Unmarshal(body, &conv); err != nil {
		return domain.Conversion{}, fmt.Errorf("rest: %s: decode quote: %w", venueID, err)
	}
	out, err := conv.ToDomainConversion()
	if err != nil {
		return domain.Conversion{}, fmt.Errorf("rest: %s: quote: %w", venueID, err)
	}
	return out, nil
}

// AccountHealth lists borrower health on lending-style markets.
func (c *Client) AccountHealth(ctx context.Context, venueID string) ([]domain.AccountHealth, error) {
	path := fmt.Sprintf("/v1/markets/%s/health", url.PathEscape(c.cfg.Market))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("rest: %s: account health: %w", venueID, err)
	}
	var h APIHealth
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("rest: %s: decode health: %w", venueID, err)
	}
	out := make([]domain.AccountHealth, 0, len(h.Accounts))
	for i := range h.Accounts {
		acct, err := h.Accounts[i].ToDomainAccount()
		if err != nil {
			return nil, fmt.Errorf("rest: %s: account %s: %w", venueID, h.Accounts[i].Account, err)
		}
		out = append(out, acct)
	}
	return out, nil
}

// Submit sends a signed action and maps the venue's answer to an Outcome.
// A rejected or unrecognised answer is an error wrapping
// domain.ErrNotConfirmed.
func (c *Client) Submit(ctx context.Context, a domain.Action) (domain.Outcome, error) {
	sub, err := c.submission(a)
	if err != nil {
		return nil, fmt.Errorf("rest: %s: submit %s: %w", a.VenueID, a.ID, err)
	}

	method, path := http.MethodPost, "/v1/orders"
	if a.Kind == domain.ActionCancel {
		method, path = http.MethodDelete, "/v1/orders/"+url.PathEscape(a.OrderID)
	}
	body, err := c.doRequest(ctx, method, path, sub)
	if err != nil {
		return nil, fmt.Errorf("rest: %s: submit %s: %w", a.VenueID, a.ID, err)
	}

	var res APIOrderResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("rest: %s: decode order result: %w", a.VenueID, err)
	}
	return c.outcome(a, res)
}

func (c *Client) submission(a domain.Action) (APISubmission, error) {
	sub := APISubmission{
		Market:   c.cfg.Market,
		ClientID: a.ID,
		Kind:     string(a.Kind),
		Side:     string(a.Side),
		Size:     a.Size.String(),
		Price:    a.LimitPrice.String(),
		OrderID:  a.OrderID,
		Nonce:    c.nonce.Add(1),
	}
	if c.cfg.Signer == nil {
		return sub, nil
	}

	sig, err := c.cfg.Signer.SignSubmission(crypto.Submission{
		VenueID:  a.VenueID,
		ActionID: a.ID,
		Kind:     kindCode(a.Kind),
		Side:     sideCode(a.Side),
		Size:     a.Size,
		Price:    a.LimitPrice,
		OrderID:  a.OrderID,
		Nonce:    sub.Nonce,
	})
	if err != nil {
		return sub, fmt.Errorf("%w: %w", domain.ErrSigningFailed, err)
	}
	sub.Signer = c.cfg.Signer.Address().Hex()
	sub.Signature = sig
	return sub, nil
}

func (c *Client) outcome(a domain.Action, res APIOrderResult) (domain.Outcome, error) {
	now := c.now()
	switch res.Status {
	case "filled":
		size, err := parseDec("filled_size", res.FilledSize)
		if err != nil {
			return nil, fmt.Errorf("rest: %s: %w", a.VenueID, err)
		}
		price, err := parseDec("avg_price", res.AvgPrice)
		if err != nil {
			return nil, fmt.Errorf("rest: %s: %w", a.VenueID, err)
		}
		fees, err := parseDec("fees", res.Fees)
		if err != nil {
			return nil, fmt.Errorf("rest: %s: %w", a.VenueID, err)
		}
		if !size.IsPositive() {
			return nil, fmt.Errorf("rest: %s: filled without size: %w", a.VenueID, domain.ErrNotConfirmed)
		}
		return domain.Filled{Trade: domain.TradeRecord{
			ActionID:      a.ID,
			OpportunityID: a.OpportunityID(),
			Timestamp:     now,
			VenueID:       a.VenueID,
			Bucket:        a.Bucket,
			Kind:          a.Kind,
			Side:          a.Side,
			Size:          size,
			Price:         price,
			Fees:          fees,
			Status:        domain.TradeConfirmed,
			TxRef:         res.TxRef,
		}}, nil
	case "resting":
		if res.OrderID == "" {
			return nil, fmt.Errorf("rest: %s: resting without order id: %w", a.VenueID, domain.ErrNotConfirmed)
		}
		return domain.Resting{Order: domain.Order{
			ID:            res.OrderID,
			VenueID:       a.VenueID,
			Bucket:        a.Bucket,
			Side:          a.Side,
			Price:         a.LimitPrice,
			Size:          a.Size,
			ActionID:      a.ID,
			OpportunityID: a.OpportunityID(),
			PlacedAt:      now,
		}}, nil
	case "cancelled":
		return domain.Cancelled{Action: a.ID, OrderID: a.OrderID}, nil
	default:
		return nil, fmt.Errorf("rest: %s: %s %q: %s: %w", a.VenueID, a.Kind, res.Status, res.Message, domain.ErrNotConfirmed)
	}
}

func kindCode(k domain.ActionKind) uint8 {
	switch k {
	case domain.ActionLimit:
		return 1
	case domain.ActionCancel:
		return 2
	case domain.ActionSwap:
		return 3
	default:
		return 0
	}
}

func sideCode(s domain.OrderSide) uint8 {
	if s == domain.OrderSideSell {
		return 1
	}
	return 0
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest rate limits, builds, authenticates, sends and reads a request.
// It returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.cfg.Limiter != nil && c.cfg.RateLimit > 0 {
		key := "ratelimit:venue:" + c.cfg.VenueID
		if err := c.cfg.Limiter.Wait(ctx, key, c.cfg.RateLimit, time.Second); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Auth.Configured() {
		for k, v := range c.cfg.Auth.Headers(method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(respBody)) > c.cfg.MaxResponseBytes {
		return nil, errResponseTooLarge
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

var errResponseTooLarge = errors.New("response exceeds size limit")

// checkStatus maps non-2xx status codes to domain errors.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	if len(bodyStr) > 256 {
		bodyStr = bodyStr[:256]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case http.StatusNotImplemented:
		return fmt.Errorf("%w: %s", domain.ErrUnsupported, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
