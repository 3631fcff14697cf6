// Package stream wires the engine to concrete market streams. A stream fetches a
// snapshot, lets the engine decide what is new, enriches and renders each alert,
// delivers it, and persists the resulting state.
package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nft-alerts/internal/alerting"
	"nft-alerts/internal/market"
	"nft-alerts/internal/state"
)

const (
	// ListingsPageSize bounds the asks snapshot; a burst larger than this between
	// two polls is a gap.
	ListingsPageSize = 500
	// SalesPageSize bounds the sales snapshot.
	SalesPageSize = 100
	// ValuePageSize is the snapshot size for floor and top bid streams, which only
	// look at the newest event.
	ValuePageSize = 1
)

// Poller is one stream as seen by the scheduler.
type Poller interface {
	Name() string
	Poll(ctx context.Context) error
}

// Source fetches newest-first snapshots.
type Source interface {
	FloorAskEvents(ctx context.Context, collection string, limit int) ([]market.FloorAsk, error)
	TopBidEvents(ctx context.Context, collection string, limit int) ([]market.TopBid, error)
	Asks(ctx context.Context, contracts []string, limit int) ([]market.Listing, error)
	Sales(ctx context.Context, contracts []string, limit int) ([]market.Sale, error)
}

// Enricher resolves the metadata shown in alerts.
type Enricher interface {
	Token(ctx context.Context, contract, tokenID string) (market.TokenMetadata, error)
	TokenBySet(ctx context.Context, tokenSetID string) (market.TokenMetadata, error)
	Collection(ctx context.Context, contract string) (market.CollectionMetadata, error)
}

// API is everything a stream needs from the marketplace data provider.
type API interface {
	Source
	Enricher
}

// SentAlert describes a delivered event alert.
type SentAlert struct {
	Stream  market.Stream
	EventID string
	Price   decimal.Decimal
	Channel string
	SentAt  time.Time
}

// Recorder keeps a history of delivered alerts. Recording is best effort.
type Recorder interface {
	RecordAlert(ctx context.Context, alert SentAlert) error
}

// Deps are the collaborators shared by every stream.
type Deps struct {
	Store    *state.Store
	Notifier alerting.Notifier
	Renderer *alerting.Renderer
	// Recorder is optional.
	Recorder Recorder
	Logger   zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) record(ctx context.Context, logger zerolog.Logger, alert SentAlert) {
	if d.Recorder == nil {
		return
	}
	if err := d.Recorder.RecordAlert(ctx, alert); err != nil {
		logger.Warn().Err(err).Str("event_id", alert.EventID).Msg("record alert history failed")
	}
}
