package domain

import "context"

// TradeJournal persists TradeRecords, confirmed and failed.
type TradeJournal interface {
	InsertTrades(ctx context.Context, trades []TradeRecord) error
	ListRecent(ctx context.Context, limit int) ([]TradeRecord, error)
}

// AlertJournal persists alert creation and severity updates.
type AlertJournal interface {
	UpsertAlert(ctx context.Context, alert Alert) error
}

// AuditStore records rejections and failures for post-hoc review.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
