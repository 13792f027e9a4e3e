package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity ranks alerts.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "low"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Alert is a monitor notification. Alerts are deduplicated by Key while
// unacknowledged and unexpired.
type Alert struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	UpdatedAt    time.Time `json:"updated_at"`
	Category     string    `json:"category"`
	VenueID      string    `json:"venue_id"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	Occurrences  int       `json:"occurrences"`
}

// Key is the deduplication key.
func (a Alert) Key() string {
	return a.Category + "|" + a.VenueID
}

// Expired reports whether the alert is older than maxAge at now.
func (a Alert) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(a.Timestamp) > maxAge
}

// AccountHealth is one borrower's position on a lending-style venue.
type AccountHealth struct {
	Account          string          `json:"account"`
	HealthRatio      decimal.Decimal `json:"health_ratio"`
	CollateralValue  decimal.Decimal `json:"collateral_value"`
	DebtValue        decimal.Decimal `json:"debt_value"`
	LiquidationBonus decimal.Decimal `json:"liquidation_bonus"`
}

// Rejection is the audit record of an Action the Risk Gate refused.
type Rejection struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	ActionID        string          `json:"action_id"`
	OpportunityID   string          `json:"opportunity_id"`
	OpportunityKind OpportunityKind `json:"opportunity_kind"`
	VenueID         string          `json:"venue_id"`
	Reason          RejectReason    `json:"reason"`
	Detail          string          `json:"detail"`
}
