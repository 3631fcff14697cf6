package reservoir

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"nft-alerts/internal/market"
)

const (
	floorAskPath    = "events/collections/floor-ask/v1"
	topBidPath      = "events/collections/top-bid/v1"
	asksPath        = "orders/asks/v3"
	salesPath       = "sales/v4"
	tokensPath      = "tokens/v5"
	collectionsPath = "collections/v5"
)

// FloorAskEvents returns the most recent floor-ask events of a collection,
// newest first. Events missing an id, token, price, source or timestamp make the
// whole response malformed.
func (c *Client) FloorAskEvents(ctx context.Context, collection string, limit int) ([]market.FloorAsk, error) {
	query := url.Values{}
	query.Set("collection", collection)
	query.Set("sortDirection", "desc")
	query.Set("limit", strconv.Itoa(limit))

	var res floorAskResponse
	if err := c.getJSON(ctx, floorAskPath, query, &res); err != nil {
		return nil, err
	}

	out := make([]market.FloorAsk, 0, len(res.Events))
	for _, ev := range res.Events {
		fa := ev.FloorAsk
		if ev.Event.ID == "" || fa.TokenID == "" || !fa.Price.Valid || fa.Source == "" || ev.Event.CreatedAt == nil {
			return nil, fmt.Errorf("%w: floor ask event for %s", ErrMalformed, collection)
		}
		out = append(out, market.FloorAsk{
			ID:        string(ev.Event.ID),
			Contract:  fa.Contract,
			TokenID:   fa.TokenID,
			Price:     fa.Price.Decimal,
			Source:    fa.Source,
			Maker:     fa.Maker,
			CreatedAt: ev.Event.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// TopBidEvents returns the most recent top-bid events of a collection, newest first.
func (c *Client) TopBidEvents(ctx context.Context, collection string, limit int) ([]market.TopBid, error) {
	query := url.Values{}
	query.Set("collection", collection)
	query.Set("sortDirection", "desc")
	query.Set("limit", strconv.Itoa(limit))

	var res topBidResponse
	if err := c.getJSON(ctx, topBidPath, query, &res); err != nil {
		return nil, err
	}

	out := make([]market.TopBid, 0, len(res.Events))
	for _, ev := range res.Events {
		tb := ev.TopBid
		if ev.Event.ID == "" || !tb.Price.Valid || tb.Maker == "" {
			return nil, fmt.Errorf("%w: top bid event for %s", ErrMalformed, collection)
		}
		bid := market.TopBid{
			ID:       string(ev.Event.ID),
			Contract: tb.Contract,
			Price:    tb.Price.Decimal,
			Maker:    tb.Maker,
			Source:   tb.Source,
		}
		if ev.Event.CreatedAt != nil {
			bid.CreatedAt = ev.Event.CreatedAt.UTC()
		}
		out = append(out, bid)
	}
	return out, nil
}

// Asks returns the latest public asks across contracts, newest first. The newest
// order must carry an id; older orders without one are dropped.
func (c *Client) Asks(ctx context.Context, contracts []string, limit int) ([]market.Listing, error) {
	query := url.Values{}
	for _, contract := range contracts {
		query.Add("contracts", contract)
	}
	query.Set("includePrivate", "false")
	query.Set("includeMetadata", "true")
	query.Set("includeRawData", "false")
	query.Set("sortBy", "createdAt")
	query.Set("limit", strconv.Itoa(limit))

	var res asksResponse
	if err := c.getJSON(ctx, asksPath, query, &res); err != nil {
		return nil, err
	}
	if res.Orders == nil {
		return nil, fmt.Errorf("%w: no orders field", ErrMalformed)
	}

	out := make([]market.Listing, 0, len(res.Orders))
	for i, o := range res.Orders {
		if o.ID == "" {
			if i == 0 {
				return nil, fmt.Errorf("%w: newest order without id", ErrMalformed)
			}
			c.logger.Warn().Int("index", i).Str("token_set", o.TokenSetID).Msg("dropping order without id")
			continue
		}
		l := market.Listing{
			ID:         o.ID,
			Contract:   o.Contract,
			TokenSetID: o.TokenSetID,
			Maker:      o.Maker,
			Price:      market.Price{Native: o.Price.Amount.Native.Decimal, USD: o.Price.Amount.USD},
		}
		if o.Source != nil {
			l.SourceName = o.Source.Name
			l.SourceIcon = o.Source.Icon
		}
		if o.CreatedAt != nil {
			l.CreatedAt = o.CreatedAt.UTC()
		}
		out = append(out, l)
	}
	return out, nil
}

// Sales returns the latest sales across contracts, newest first. The newest sale
// must carry a sale id; older sales without one are dropped.
func (c *Client) Sales(ctx context.Context, contracts []string, limit int) ([]market.Sale, error) {
	query := url.Values{}
	for _, contract := range contracts {
		query.Add("contract", contract)
	}
	query.Set("includeTokenMetadata", "true")
	query.Set("limit", strconv.Itoa(limit))

	var res salesResponse
	if err := c.getJSON(ctx, salesPath, query, &res); err != nil {
		return nil, err
	}
	if res.Sales == nil {
		return nil, fmt.Errorf("%w: no sales field", ErrMalformed)
	}

	out := make([]market.Sale, 0, len(res.Sales))
	for i, s := range res.Sales {
		if s.SaleID == "" {
			if i == 0 {
				return nil, fmt.Errorf("%w: newest sale %s without sale id", ErrMalformed, s.TxHash)
			}
			c.logger.Warn().Int("index", i).Str("tx", s.TxHash).Msg("dropping sale without id")
			continue
		}
		sale := market.Sale{
			ID:          s.SaleID,
			TxHash:      s.TxHash,
			Contract:    s.Token.Contract,
			TokenID:     s.Token.TokenID,
			TokenName:   s.Token.Name,
			TokenImage:  s.Token.Image,
			Collection:  s.Token.Collection.Name,
			From:        s.From,
			To:          s.To,
			Price:       market.Price{Native: s.Price.Amount.Native.Decimal, USD: s.Price.Amount.USD},
			OrderSource: s.OrderSource,
		}
		if s.Timestamp > 0 {
			sale.Timestamp = time.Unix(s.Timestamp, 0).UTC()
		}
		out = append(out, sale)
	}
	return out, nil
}

// Token resolves a single token with its attributes.
func (c *Client) Token(ctx context.Context, contract, tokenID string) (market.TokenMetadata, error) {
	if contract == "" || tokenID == "" {
		return market.TokenMetadata{}, fmt.Errorf("token lookup needs contract and token id")
	}
	query := url.Values{}
	query.Set("tokens", contract+":"+tokenID)
	query.Set("limit", "1")
	return c.firstToken(ctx, query)
}

// TokenBySet resolves the cheapest token of a token set, used for listings.
func (c *Client) TokenBySet(ctx context.Context, tokenSetID string) (market.TokenMetadata, error) {
	if tokenSetID == "" {
		return market.TokenMetadata{}, fmt.Errorf("token lookup needs a token set id")
	}
	query := url.Values{}
	query.Set("tokenSetId", tokenSetID)
	query.Set("sortBy", "floorAskPrice")
	query.Set("limit", "20")
	return c.firstToken(ctx, query)
}

func (c *Client) firstToken(ctx context.Context, query url.Values) (market.TokenMetadata, error) {
	query.Set("includeTopBid", "false")
	query.Set("includeAttributes", "true")

	var res tokensResponse
	if err := c.getJSON(ctx, tokensPath, query, &res); err != nil {
		return market.TokenMetadata{}, err
	}
	if len(res.Tokens) == 0 {
		return market.TokenMetadata{}, fmt.Errorf("%w: token not found", ErrMalformed)
	}

	t := res.Tokens[0].Token
	meta := market.TokenMetadata{
		Contract:        t.Contract,
		TokenID:         t.TokenID,
		Name:            t.Name,
		Image:           t.Image,
		Owner:           t.Owner,
		RarityRank:      t.RarityRank,
		LastSale:        t.LastSell.Value,
		CollectionID:    t.Collection.ID,
		CollectionName:  t.Collection.Name,
		CollectionImage: t.Collection.Image,
	}
	for _, attr := range t.Attributes {
		meta.Attributes = append(meta.Attributes, market.Attribute{Key: attr.Key, Value: attr.Value})
	}
	return meta, nil
}

// Collection resolves a collection by contract address.
func (c *Client) Collection(ctx context.Context, contract string) (market.CollectionMetadata, error) {
	if contract == "" {
		return market.CollectionMetadata{}, fmt.Errorf("collection lookup needs a contract")
	}
	query := url.Values{}
	query.Set("id", contract)
	query.Set("sortBy", "allTimeVolume")
	query.Set("limit", "1")

	var res collectionsResponse
	if err := c.getJSON(ctx, collectionsPath, query, &res); err != nil {
		return market.CollectionMetadata{}, err
	}
	if len(res.Collections) == 0 {
		return market.CollectionMetadata{}, fmt.Errorf("%w: collection %s not found", ErrMalformed, contract)
	}
	col := res.Collections[0]
	return market.CollectionMetadata{ID: col.ID, Name: col.Name, Image: col.Image}, nil
}
