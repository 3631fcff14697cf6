package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nft-alerts/internal/alerting"
	"nft-alerts/internal/engine"
	"nft-alerts/internal/market"
)

// ErrIncomplete marks an event whose mandatory enrichment data is missing.
var ErrIncomplete = errors.New("stream: incomplete alert data")

// ValueOptions configure the floor and top bid streams.
type ValueOptions struct {
	Collection string
	Channel    string
	Gate       engine.Gate
	Cooldown   time.Duration
}

// ItemOptions configure the listings and sales streams.
type ItemOptions struct {
	Contracts  []string
	Channel    string
	NotifyGaps bool
}

// NewFloor alerts floor price changes of a collection with the floor token's
// details.
func NewFloor(api API, opts ValueOptions, deps Deps) *Cooldown[market.FloorAsk] {
	return NewCooldown(CooldownOptions[market.FloorAsk]{
		Stream:   market.StreamFloor,
		Channel:  opts.Channel,
		Gate:     opts.Gate,
		Cooldown: opts.Cooldown,
		Fetch: func(ctx context.Context) ([]market.FloorAsk, error) {
			return api.FloorAskEvents(ctx, opts.Collection, ValuePageSize)
		},
		Value: func(ev market.FloorAsk) decimal.Decimal { return ev.Price },
		Render: func(ctx context.Context, ev market.FloorAsk, d engine.Decision) (alerting.Message, error) {
			contract := ev.Contract
			if contract == "" {
				contract = opts.Collection
			}
			token, err := api.Token(ctx, contract, ev.TokenID)
			if err != nil {
				return alerting.Message{}, err
			}
			if token.Name == "" || token.Owner == "" {
				return alerting.Message{}, fmt.Errorf("%w: floor token %s:%s", ErrIncomplete, contract, ev.TokenID)
			}
			return deps.Renderer.Floor(ev, token, d), nil
		},
	}, deps)
}

// NewBid alerts top bid changes of a collection. Events that repeat the last
// alerted price are recorded silently; some pools re-emit the same bid.
func NewBid(api API, opts ValueOptions, deps Deps) *Cooldown[market.TopBid] {
	return NewCooldown(CooldownOptions[market.TopBid]{
		Stream:        market.StreamBid,
		Channel:       opts.Channel,
		Gate:          opts.Gate,
		Cooldown:      opts.Cooldown,
		SkipSameValue: true,
		Fetch: func(ctx context.Context) ([]market.TopBid, error) {
			return api.TopBidEvents(ctx, opts.Collection, ValuePageSize)
		},
		Value: func(ev market.TopBid) decimal.Decimal { return ev.Price },
		Render: func(ctx context.Context, ev market.TopBid, d engine.Decision) (alerting.Message, error) {
			contract := ev.Contract
			if contract == "" {
				contract = opts.Collection
			}
			col, err := api.Collection(ctx, contract)
			if err != nil {
				return alerting.Message{}, err
			}
			if col.Name == "" {
				return alerting.Message{}, fmt.Errorf("%w: collection %s", ErrIncomplete, contract)
			}
			if ev.Contract == "" {
				ev.Contract = contract
			}
			return deps.Renderer.Bid(ev, col, d), nil
		},
	}, deps)
}

// NewListings alerts new asks across the tracked contracts.
func NewListings(api API, opts ItemOptions, deps Deps) *CatchUp[market.Listing] {
	return NewCatchUp(CatchUpOptions[market.Listing]{
		Stream:     market.StreamListings,
		Channel:    opts.Channel,
		NotifyGaps: opts.NotifyGaps,
		Fetch: func(ctx context.Context) ([]market.Listing, error) {
			return api.Asks(ctx, opts.Contracts, ListingsPageSize)
		},
		Price: func(l market.Listing) decimal.Decimal { return l.Price.Native },
		Render: func(ctx context.Context, l market.Listing) (alerting.Message, error) {
			if l.SourceName == "" || l.SourceIcon == "" {
				return alerting.Message{}, fmt.Errorf("%w: listing %s has no source", ErrIncomplete, l.ID)
			}
			token, err := api.TokenBySet(ctx, l.TokenSetID)
			if err != nil {
				return alerting.Message{}, err
			}
			if token.Name == "" || token.Image == "" || token.CollectionName == "" {
				return alerting.Message{}, fmt.Errorf("%w: token for listing %s", ErrIncomplete, l.ID)
			}
			return deps.Renderer.Listing(l, token), nil
		},
	}, deps)
}

// NewSales alerts completed sales across the tracked contracts.
func NewSales(api API, opts ItemOptions, deps Deps) *CatchUp[market.Sale] {
	return NewCatchUp(CatchUpOptions[market.Sale]{
		Stream:     market.StreamSales,
		Channel:    opts.Channel,
		NotifyGaps: opts.NotifyGaps,
		Fetch: func(ctx context.Context) ([]market.Sale, error) {
			return api.Sales(ctx, opts.Contracts, SalesPageSize)
		},
		Price: func(s market.Sale) decimal.Decimal { return s.Price.Native },
		Render: func(ctx context.Context, s market.Sale) (alerting.Message, error) {
			if s.OrderSource == "" {
				return alerting.Message{}, fmt.Errorf("%w: sale %s has no order source", ErrIncomplete, s.TxHash)
			}
			if s.TokenName == "" || s.TokenImage == "" {
				return alerting.Message{}, fmt.Errorf("%w: sale %s has no token name or image", ErrIncomplete, s.TxHash)
			}
			col, err := api.Collection(ctx, s.Contract)
			if err != nil {
				return alerting.Message{}, err
			}
			if col.Name == "" || col.Image == "" {
				return alerting.Message{}, fmt.Errorf("%w: collection for sale %s", ErrIncomplete, s.TxHash)
			}
			return deps.Renderer.Sale(s, col), nil
		},
	}, deps)
}
