package domain

// Outcome is the result of dispatching an Action. The implementations are
// Filled, Resting, Cancelled and Failed.
type Outcome interface {
	ActionID() string
	isOutcome()
}

// Filled is a confirmed execution.
type Filled struct {
	Trade TradeRecord
}

// Resting is a limit order accepted onto the venue's book.
type Resting struct {
	Order Order
}

// Cancelled confirms a resting order was removed.
type Cancelled struct {
	Action  string
	OrderID string
}

// Failed is an execution that was not confirmed. Trade carries status
// TradeFailed and the reason.
type Failed struct {
	Trade TradeRecord
}

func (f Filled) ActionID() string    { return f.Trade.ActionID }
func (r Resting) ActionID() string   { return r.Order.ActionID }
func (c Cancelled) ActionID() string { return c.Action }
func (f Failed) ActionID() string    { return f.Trade.ActionID }

func (Filled) isOutcome()    {}
func (Resting) isOutcome()   {}
func (Cancelled) isOutcome() {}
func (Failed) isOutcome()    {}

// RejectReason classifies a Risk Gate rejection.
type RejectReason string

const (
	RejectPositionLimit RejectReason = "position_limit"
	RejectMinProfit     RejectReason = "min_profit"
	RejectStopLoss      RejectReason = "stop_loss"
	RejectLiquidity     RejectReason = "liquidity"
	RejectSlippage      RejectReason = "slippage"
	RejectMinOrderSize  RejectReason = "min_order_size"
	RejectBudget        RejectReason = "exposure_budget"
	RejectNoSnapshot    RejectReason = "no_snapshot"
	RejectDuplicate     RejectReason = "duplicate"
	RejectPeerRejected  RejectReason = "peer_rejected"
)

// Verdict is the Risk Gate's answer: Approved or Rejected.
type Verdict interface {
	isVerdict()
}

// Approved lets an Action through to execution.
type Approved struct{}

// Rejected stops an Action, with a machine reason and a readable detail.
type Rejected struct {
	Reason RejectReason
	Detail string
}

func (Approved) isVerdict() {}
func (Rejected) isVerdict() {}

func (r Rejected) Error() string { return string(r.Reason) + ": " + r.Detail }
