package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stream identifies one independently polled source of market events.
type Stream string

const (
	StreamFloor    Stream = "floor"
	StreamBid      Stream = "bid"
	StreamListings Stream = "listings"
	StreamSales    Stream = "sales"
)

// Streams lists every known stream in polling order.
var Streams = []Stream{StreamFloor, StreamBid, StreamListings, StreamSales}

// ParseStream resolves a stream name, case-insensitively.
func ParseStream(name string) (Stream, error) {
	s := Stream(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Streams {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stream %q", name)
}

func (s Stream) String() string { return string(s) }

// Event is the capability every stream-specific record satisfies. Snapshots of
// events are always ordered newest first, so recency is the slice position.
type Event interface {
	EventID() string
	// GroupKey identifies the underlying item an event applies to. Events with an
	// empty key are never collapsed as duplicates.
	GroupKey() string
}

// Price is an amount in the chain's native currency with an optional USD quote.
type Price struct {
	Native decimal.Decimal
	USD    decimal.NullDecimal
}

// FloorAsk is a floor-price change event for a collection.
type FloorAsk struct {
	ID        string
	Contract  string
	TokenID   string
	Price     decimal.Decimal
	Source    string
	Maker     string
	CreatedAt time.Time
}

func (e FloorAsk) EventID() string  { return e.ID }
func (e FloorAsk) GroupKey() string { return "" }

// TopBid is a top-bid change event for a collection.
type TopBid struct {
	ID        string
	Contract  string
	Price     decimal.Decimal
	Maker     string
	Source    string
	CreatedAt time.Time
}

func (e TopBid) EventID() string  { return e.ID }
func (e TopBid) GroupKey() string { return "" }

// Listing is an active ask order.
type Listing struct {
	ID         string
	Contract   string
	TokenSetID string
	Maker      string
	Price      Price
	SourceName string
	SourceIcon string
	CreatedAt  time.Time
}

func (e Listing) EventID() string { return e.ID }

// GroupKey collapses the same listing posted to several marketplaces at once.
func (e Listing) GroupKey() string { return e.TokenSetID }

// Sale is a completed sale.
type Sale struct {
	ID          string
	TxHash      string
	Contract    string
	TokenID     string
	TokenName   string
	TokenImage  string
	Collection  string
	From        string
	To          string
	Price       Price
	OrderSource string
	Timestamp   time.Time
}

func (e Sale) EventID() string  { return e.ID }
func (e Sale) GroupKey() string { return "" }

// Attribute is a single token trait.
type Attribute struct {
	Key   string
	Value string
}

// TokenMetadata describes a single token.
type TokenMetadata struct {
	Contract        string
	TokenID         string
	Name            string
	Image           string
	Owner           string
	RarityRank      int
	LastSale        decimal.NullDecimal
	CollectionID    string
	CollectionName  string
	CollectionImage string
	Attributes      []Attribute
}

// CollectionMetadata describes a collection.
type CollectionMetadata struct {
	ID    string
	Name  string
	Image string
}

var (
	_ Event = FloorAsk{}
	_ Event = TopBid{}
	_ Event = Listing{}
	_ Event = Sale{}
)
