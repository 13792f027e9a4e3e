package rest

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Wire DTOs. Every amount travels as a human-readable decimal string.
// --------------------------------------------------------------------------

// APILevel is one price level of an API order book.
type APILevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the response of GET /v1/markets/{market}/book.
type APIBook struct {
	Market    string     `json:"market"`
	Pair      string     `json:"pair"`
	Timestamp string     `json:"timestamp"`
	Bids      []APILevel `json:"bids"`
	Asks      []APILevel `json:"asks"`
}

// APIVault is a pool's reserves.
type APIVault struct {
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	FeeToken string `json:"fee_token"`
}

// APIStats is the response of GET /v1/markets/{market}/stats.
type APIStats struct {
	MakerFee     string    `json:"maker_fee"`
	TakerFee     string    `json:"taker_fee"`
	MinOrderSize string    `json:"min_order_size"`
	Vault        *APIVault `json:"vault,omitempty"`
}

// APIConversion is the response of GET /v1/markets/{market}/quote.
type APIConversion struct {
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Rate      string `json:"rate"`
}

// APISubmission is the signed body of POST /v1/orders and
// DELETE /v1/orders/{id}.
type APISubmission struct {
	Market    string `json:"market"`
	ClientID  string `json:"client_id"`
	Kind      string `json:"kind"`
	Side      string `json:"side,omitempty"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	OrderID   string `json:"order_id,omitempty"`
	Nonce     int64  `json:"nonce"`
	Signer    string `json:"signer,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// APIOrderResult is the venue's answer to a submission.
type APIOrderResult struct {
	Status     string `json:"status"` // filled, resting, cancelled, rejected
	OrderID    string `json:"order_id,omitempty"`
	FilledSize string `json:"filled_size,omitempty"`
	AvgPrice   string `json:"avg_price,omitempty"`
	Fees       string `json:"fees,omitempty"`
	TxRef      string `json:"tx_ref,omitempty"`
	Message    string `json:"message,omitempty"`
}

// APIAccount is one borrower returned by GET /v1/markets/{market}/health.
type APIAccount struct {
	Account          string `json:"account"`
	HealthRatio      string `json:"health_ratio"`
	CollateralValue  string `json:"collateral_value"`
	DebtValue        string `json:"debt_value"`
	LiquidationBonus string `json:"liquidation_bonus"`
}

// APIHealth wraps the account list.
type APIHealth struct {
	Accounts []APIAccount `json:"accounts"`
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

// parseDec parses a decimal string; an empty string is zero.
func parseDec(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q: %w", field, s, err)
	}
	return d, nil
}

func (b *APIBook) levels(side string, in []APILevel) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(in))
	for i, l := range in {
		p, err := parseDec(fmt.Sprintf("%s[%d].price", side, i), l.Price)
		if err != nil {
			return nil, err
		}
		q, err := parseDec(fmt.Sprintf("%s[%d].size", side, i), l.Size)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.PriceLevel{Price: p, Quantity: q})
	}
	return out, nil
}

// ToDomainSnapshot converts and validates the book. Unparseable numbers and
// malformed books wrap domain.ErrDataIntegrity. A missing timestamp falls
// back to fetchedAt.
func (b *APIBook) ToDomainSnapshot(venueID, pair string, fetchedAt time.Time) (domain.MarketSnapshot, error) {
	bids, err := b.levels("bids", b.Bids)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("venue %s: %w: %w", venueID, domain.ErrDataIntegrity, err)
	}
	asks, err := b.levels("asks", b.Asks)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("venue %s: %w: %w", venueID, domain.ErrDataIntegrity, err)
	}
	ts := fetchedAt
	if b.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, b.Timestamp); err == nil {
			ts = t
		}
	}
	if b.Pair != "" {
		pair = b.Pair
	}
	return analytics.BuildSnapshot(venueID, pair, ts, bids, asks)
}

// ToDomainStats converts stats for venueID.
func (s *APIStats) ToDomainStats(venueID string) (domain.VenueStats, error) {
	out := domain.VenueStats{VenueID: venueID}
	var err error
	if out.Params.MakerFee, err = parseDec("maker_fee", s.MakerFee); err != nil {
		return out, err
	}
	if out.Params.TakerFee, err = parseDec("taker_fee", s.TakerFee); err != nil {
		return out, err
	}
	if out.Params.MinOrderSize, err = parseDec("min_order_size", s.MinOrderSize); err != nil {
		return out, err
	}
	if s.Vault != nil {
		v := domain.VaultBalances{}
		if v.Base, err = parseDec("vault.base", s.Vault.Base); err != nil {
			return out, err
		}
		if v.Quote, err = parseDec("vault.quote", s.Vault.Quote); err != nil {
			return out, err
		}
		if v.FeeToken, err = parseDec("vault.fee_token", s.Vault.FeeToken); err != nil {
			return out, err
		}
		out.Vault = &v
	}
	return out, nil
}

// ToDomainConversion converts a quote.
func (c *APIConversion) ToDomainConversion() (domain.Conversion, error) {
	var out domain.Conversion
	var err error
	if out.AmountIn, err = parseDec("amount_in", c.AmountIn); err != nil {
		return out, err
	}
	if out.AmountOut, err = parseDec("amount_out", c.AmountOut); err != nil {
		return out, err
	}
	if out.Rate, err = parseDec("rate", c.Rate); err != nil {
		return out, err
	}
	return out, nil
}

// ToDomainAccount converts one borrower record.
func (a *APIAccount) ToDomainAccount() (domain.AccountHealth, error) {
	out := domain.AccountHealth{Account: a.Account}
	var err error
	if out.HealthRatio, err = parseDec("health_ratio", a.HealthRatio); err != nil {
		return out, err
	}
	if out.CollateralValue, err = parseDec("collateral_value", a.CollateralValue); err != nil {
		return out, err
	}
	if out.DebtValue, err = parseDec("debt_value", a.DebtValue); err != nil {
		return out, err
	}
	if out.LiquidationBonus, err = parseDec("liquidation_bonus", a.LiquidationBonus); err != nil {
		return out, err
	}
	return out, nil
}
