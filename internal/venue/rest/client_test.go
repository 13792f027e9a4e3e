package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/venuebot/internal/crypto"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/shopspring/decimal"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeLimiter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	return nil
}

func TestOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/markets/ETH-USD/book" || r.URL.Query().Get("depth") != "2" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get(crypto.HeaderKey) != "key" || r.Header.Get(crypto.HeaderSignature) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"market":"ETH-USD","timestamp":"2026-01-02T03:04:05Z",
			"bids":[{"price":"99.5","size":"2"},{"price":"99","size":"3"}],
			"asks":[{"price":"100.5","size":"1.5"},{"price":"101","size":"4"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{
		VenueID: "alpha",
		Market:  "ETH-USD",
		Pair:    "ETH/USD",
		BaseURL: srv.URL,
		Auth:    &crypto.HMACAuth{Key: "key", Secret: "c2VjcmV0", Passphrase: "pp"},
	})
	snap, err := c.OrderBook(context.Background(), "alpha", 2)
	if err != nil {
		t.Fatalf("OrderBook: %v", err)
	}
	if snap.VenueID != "alpha" || snap.Pair != "ETH/USD" {
		t.Fatalf("identity = %s %s", snap.VenueID, snap.Pair)
	}
	if !snap.MidPrice.Equal(dec("100")) {
		t.Fatalf("mid = %s, want 100", snap.MidPrice)
	}
	if !snap.BestAsk.Quantity.Equal(dec("1.5")) || len(snap.Bids) != 2 {
		t.Fatalf("unexpected book %+v", snap)
	}
	if want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC); !snap.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v", snap.Timestamp)
	}
}

func TestOrderBookIntegrity(t *testing.T) {
	cases := map[string]string{
		"crossed":   `{"bids":[{"price":"101","size":"1"}],"asks":[{"price":"100","size":"1"}]}`,
		"malformed": `{"bids":[{"price":"abc","size":"1"}],"asks":[{"price":"100","size":"1"}]}`,
		"empty":     `{"bids":[],"asks":[{"price":"100","size":"1"}]}`,
		"not json":  `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			_, err := NewClient(Config{VenueID: "v", BaseURL: srv.URL}).OrderBook(context.Background(), "v", 5)
			if !errors.Is(err, domain.ErrDataIntegrity) {
				t.Fatalf("err = %v, want data integrity", err)
			}
		})
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusNotImplemented, domain.ErrUnsupported},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := NewClient(Config{VenueID: "v", BaseURL: srv.URL}).Stats(context.Background(), "v")
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestResponseSizeBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"maker_fee":"`+strings.Repeat("1", 128)+`"}`)
	}))
	defer srv.Close()

	_, err := NewClient(Config{VenueID: "v", BaseURL: srv.URL, MaxResponseBytes: 64}).Stats(context.Background(), "v")
	if !errors.Is(err, errResponseTooLarge) {
		t.Fatalf("err = %v, want size limit", err)
	}
}

func TestStatsAndConversion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/markets/pool/stats":
			_, _ = io.WriteString(w, `{"maker_fee":"0.001","taker_fee":"0.003","min_order_size":"0.01",
				"vault":{"base":"1000","quote":"100000","fee_token":"5"}}`)
		case "/v1/markets/pool/quote":
			if r.URL.Query().Get("amount_in") != "10" || r.URL.Query().Get("side") != "sell" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, `{"amount_in":"10","amount_out":"987.1","rate":"98.71"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{VenueID: "pool", BaseURL: srv.URL})
	stats, err := c.Stats(context.Background(), "pool")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !stats.Params.TakerFee.Equal(dec("0.003")) || stats.Vault == nil || !stats.Vault.Quote.Equal(dec("100000")) {
		t.Fatalf("stats = %+v", stats)
	}
	conv, err := c.EstimateConversion(context.Background(), "pool", dec("10"), domain.OrderSideSell)
	if err != nil {
		t.Fatalf("EstimateConversion: %v", err)
	}
	if !conv.AmountOut.Equal(dec("987.1")) {
		t.Fatalf("amount out = %s", conv.AmountOut)
	}
}

func TestSubmitSignedFill(t *testing.T) {
	signer, err := crypto.NewSigner(testKey, 1)
	if err != nil {
		t.Fatal(err)
	}

	var got APISubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"status":"filled","filled_size":"2","avg_price":"100.25","fees":"0.4","tx_ref":"0xabc"}`)
	}))
	defer srv.Close()

	limiter := &fakeLimiter{}
	c := NewClient(Config{VenueID: "alpha", BaseURL: srv.URL, Signer: signer, Limiter: limiter, RateLimit: 5})
	a := domain.Action{
		ID: "act-1", Kind: domain.ActionMarket, VenueID: "alpha", Bucket: "alpha",
		Side: domain.OrderSideBuy, Size: dec("2"), LimitPrice: dec("101"),
	}
	out, err := c.Submit(context.Background(), a)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	filled, ok := out.(domain.Filled)
	if !ok {
		t.Fatalf("outcome = %T, want Filled", out)
	}
	if !filled.Trade.Price.Equal(dec("100.25")) || !filled.Trade.Fees.Equal(dec("0.4")) || filled.Trade.TxRef != "0xabc" {
		t.Fatalf("trade = %+v", filled.Trade)
	}
	if filled.Trade.Status != domain.TradeConfirmed || filled.Trade.ActionID != "act-1" {
		t.Fatalf("trade identity = %+v", filled.Trade)
	}

	if got.Size != "2" || got.Price != "101" || got.Kind != "market" || got.ClientID != "act-1" {
		t.Fatalf("submission = %+v", got)
	}
	if got.Signer != signer.Address().Hex() {
		t.Fatalf("signer = %s", got.Signer)
	}
	digest, err := signer.Digest(crypto.Submission{
		VenueID: "alpha", ActionID: "act-1", Kind: 0, Side: 0,
		Size: dec("2"), Price: dec("101"), Nonce: got.Nonce,
	})
	if err != nil {
		t.Fatal(err)
	}
	addr, err := crypto.RecoverAddress(digest, got.Signature)
	if err != nil {
		t.Fatalf("RecoverAddress: %v", err)
	}
	if addr != signer.Address() {
		t.Fatalf("recovered %s, want %s", addr.Hex(), signer.Address().Hex())
	}
	if len(limiter.calls) != 1 || limiter.calls[0] != "ratelimit:venue:alpha" {
		t.Fatalf("limiter calls = %v", limiter.calls)
	}
}

func TestSubmitRestingCancelRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sub APISubmission
		_ = json.NewDecoder(r.Body).Decode(&sub)
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/orders/ord-9":
			_, _ = io.WriteString(w, `{"status":"cancelled"}`)
		case sub.Kind == "limit":
			_, _ = io.WriteString(w, `{"status":"resting","order_id":"ord-9"}`)
		default:
			_, _ = io.WriteString(w, `{"status":"rejected","message":"insufficient balance"}`)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{VenueID: "alpha", BaseURL: srv.URL})
	ctx := context.Background()

	out, err := c.Submit(ctx, domain.Action{ID: "q1", Kind: domain.ActionLimit, VenueID: "alpha",
		Side: domain.OrderSideSell, Size: dec("1"), LimitPrice: dec("100.3")})
	if err != nil {
		t.Fatalf("limit: %v", err)
	}
	rest, ok := out.(domain.Resting)
	if !ok || rest.Order.ID != "ord-9" || !rest.Order.Price.Equal(dec("100.3")) {
		t.Fatalf("limit outcome = %#v", out)
	}

	out, err = c.Submit(ctx, domain.Action{ID: "c1", Kind: domain.ActionCancel, VenueID: "alpha", OrderID: "ord-9"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cx, ok := out.(domain.Cancelled); !ok || cx.OrderID != "ord-9" || cx.ActionID() != "c1" {
		t.Fatalf("cancel outcome = %#v", out)
	}

	_, err = c.Submit(ctx, domain.Action{ID: "m1", Kind: domain.ActionMarket, VenueID: "alpha",
		Side: domain.OrderSideBuy, Size: dec("1"), LimitPrice: dec("101")})
	if !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("rejected submit err = %v", err)
	}
}

func TestAccountHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"accounts":[
			{"account":"0xabc","health_ratio":"1.04","collateral_value":"1040","debt_value":"1000","liquidation_bonus":"0.05"}]}`)
	}))
	defer srv.Close()

	accts, err := NewClient(Config{VenueID: "lend", BaseURL: srv.URL}).AccountHealth(context.Background(), "lend")
	if err != nil {
		t.Fatalf("AccountHealth: %v", err)
	}
	if len(accts) != 1 || !accts[0].HealthRatio.Equal(dec("1.04")) || !accts[0].DebtValue.Equal(dec("1000")) {
		t.Fatalf("accounts = %+v", accts)
	}
}
