package alerting

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"nft-alerts/internal/engine"
	"nft-alerts/internal/market"
)

// AlertColor is the embed accent used for every alert.
const AlertColor = 0x8b43e0

// Links holds the external sites alerts point at.
type Links struct {
	// APIBaseURL serves the marketplace redirect endpoints.
	APIBaseURL     string
	MarketplaceURL string
	ExplorerURL    string
	// IconURL is the fallback image when a collection has none.
	IconURL string
}

// Renderer turns market events into messages.
type Renderer struct {
	links Links
	now   func() time.Time
}

// NewRenderer builds a renderer for the given link set.
func NewRenderer(links Links) *Renderer {
	links.APIBaseURL = strings.TrimRight(links.APIBaseURL, "/")
	links.MarketplaceURL = strings.TrimRight(links.MarketplaceURL, "/")
	links.ExplorerURL = strings.TrimRight(links.ExplorerURL, "/")
	return &Renderer{links: links, now: time.Now}
}

// InitNotice announces that a stream starts reporting from the current newest event.
func InitNotice(stream market.Stream) Message {
	return Message{Text: fmt.Sprintf("Restarting %s bot, new %s will begin to populate from here...", stream, stream)}
}

// GapNotice reports that at least missed events of a stream were not delivered.
func GapNotice(stream market.Stream, missed int) Message {
	return Message{Text: fmt.Sprintf("Lost track of %s: %d+ events were missed, resuming from the newest.", stream, missed)}
}

// SimulatedNotice is sent by the simulate-alert command.
func SimulatedNotice(stream market.Stream) Message {
	return Message{Text: fmt.Sprintf("Test alert for the %s stream.", stream)}
}

// Floor renders a floor price change with the floor token's details.
func (r *Renderer) Floor(ev market.FloorAsk, token market.TokenMetadata, d engine.Decision) Message {
	lastSale := "N/A"
	if token.LastSale.Valid {
		lastSale = formatNative(token.LastSale.Decimal)
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "%s is now the floor token, listed for %s by %s",
		token.Name, formatNative(ev.Price), r.addressLink(token.Owner))
	fmt.Fprintf(&desc, "\nLast Sale: %s", lastSale)
	if token.RarityRank > 0 {
		fmt.Fprintf(&desc, "\nRarity Rank: %d", token.RarityRank)
	}
	desc.WriteString(changeLine(d))

	collectionID := token.CollectionID
	if collectionID == "" {
		collectionID = ev.Contract
	}

	return Message{
		Title:        "New Floor Listing!",
		Description:  desc.String(),
		Author:       token.CollectionName,
		AuthorURL:    r.links.MarketplaceURL,
		AuthorIcon:   r.iconOr(token.CollectionImage),
		Fields:       attributeFields(token.Attributes),
		ThumbnailURL: token.Image,
		Timestamp:    r.stamp(ev.CreatedAt),
		Color:        AlertColor,
		Button: &Button{
			Label: "Purchase",
			URL: fmt.Sprintf("%s/redirect/sources/%s/tokens/%s/link/v2",
				r.links.APIBaseURL, url.PathEscape(ev.Source), url.PathEscape(collectionID+":"+ev.TokenID)),
		},
	}
}

// Bid renders a top bid change for a collection.
func (r *Renderer) Bid(ev market.TopBid, col market.CollectionMetadata, d engine.Decision) Message {
	desc := fmt.Sprintf("The top bid on the collection just changed to %s made by %s",
		formatNative(ev.Price), r.addressLink(ev.Maker)) + changeLine(d)

	icon := r.iconOr(col.Image)
	return Message{
		Title:        "New Top Bid!",
		Description:  desc,
		Author:       col.Name,
		AuthorURL:    fmt.Sprintf("%s/collections/%s", r.links.MarketplaceURL, col.ID),
		AuthorIcon:   icon,
		ThumbnailURL: icon,
		Timestamp:    r.stamp(ev.CreatedAt),
		Color:        AlertColor,
		Button: &Button{
			Label: "Accept offer",
			URL:   fmt.Sprintf("%s/collections/%s", r.links.MarketplaceURL, ev.Contract),
		},
	}
}

// Listing renders a new listing with the listed token's details.
func (r *Renderer) Listing(l market.Listing, token market.TokenMetadata) Message {
	name := strings.TrimSpace(token.Name)
	return Message{
		Title:       fmt.Sprintf("%s has been listed!", name),
		Description: fmt.Sprintf("Item: %s\nPrice: %s\nFrom: %s", name, formatPrice(l.Price), r.addressLink(l.Maker)),
		Author:      token.CollectionName,
		AuthorURL:   r.links.MarketplaceURL,
		AuthorIcon:  r.iconOr(token.CollectionImage),
		Fields:      attributeFields(token.Attributes),
		ImageURL:    token.Image,
		Footer:      l.SourceName,
		FooterIcon:  l.SourceIcon,
		Timestamp:   r.stamp(l.CreatedAt),
		Color:       AlertColor,
		Button: &Button{
			Label: "Purchase",
			URL:   fmt.Sprintf("%s/%s/%s", r.links.MarketplaceURL, token.Contract, token.TokenID),
		},
	}
}

// Sale renders a completed sale.
func (r *Renderer) Sale(s market.Sale, col market.CollectionMetadata) Message {
	author := s.Collection
	if author == "" {
		author = col.Name
	}
	return Message{
		Title: fmt.Sprintf("%s has been sold!", s.TokenName),
		Description: fmt.Sprintf("Item: %s\nPrice: %s\nBuyer: %s\nSeller: %s",
			s.TokenName, formatPrice(s.Price), r.addressLink(s.To), r.addressLink(s.From)),
		Author:       author,
		AuthorURL:    fmt.Sprintf("%s/%s", r.links.MarketplaceURL, s.Contract),
		AuthorIcon:   r.iconOr(col.Image),
		ThumbnailURL: s.TokenImage,
		Footer:       s.OrderSource,
		FooterIcon:   fmt.Sprintf("%s/redirect/sources/%s/logo/v2", r.links.APIBaseURL, url.PathEscape(s.OrderSource)),
		Timestamp:    r.stamp(s.Timestamp),
		Color:        AlertColor,
		Button: &Button{
			Label: "View Sale",
			URL:   fmt.Sprintf("%s/tx/%s", r.links.ExplorerURL, s.TxHash),
		},
	}
}

func (r *Renderer) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return r.now().UTC()
	}
	return t
}

func (r *Renderer) iconOr(image string) string {
	if image != "" {
		return image
	}
	return r.links.IconURL
}

func (r *Renderer) addressLink(addr string) string {
	if addr == "" {
		return "unknown"
	}
	return fmt.Sprintf("[%s](%s/address/%s)", ShortAddress(addr), r.links.MarketplaceURL, addr)
}

// ShortAddress abbreviates a hex address to 0x1234…abcd. Anything that is not an
// address is returned unchanged.
func ShortAddress(addr string) string {
	if !common.IsHexAddress(addr) {
		return addr
	}
	hex := common.HexToAddress(addr).Hex()
	return hex[:6] + "…" + hex[len(hex)-4:]
}

func formatNative(v decimal.Decimal) string {
	return v.String() + "Ξ"
}

func formatPrice(p market.Price) string {
	if p.USD.Valid {
		return fmt.Sprintf("%s ($%s)", formatNative(p.Native), p.USD.Decimal.StringFixed(2))
	}
	return formatNative(p.Native)
}

func changeLine(d engine.Decision) string {
	if !d.ChangePct.Valid {
		return ""
	}
	pct := d.ChangePct.Decimal.Round(2)
	sign := ""
	if pct.IsPositive() {
		sign = "+"
	}
	line := fmt.Sprintf("\nChange: %s%s%%", sign, pct.StringFixed(2))
	if d.Override {
		line += " (cooldown overridden)"
	}
	return line
}

func attributeFields(attrs []market.Attribute) []Field {
	if len(attrs) == 0 {
		return nil
	}
	fields := make([]Field, 0, len(attrs))
	for _, a := range attrs {
		value := a.Value
		if value == "" {
			value = "-"
		}
		fields = append(fields, Field{Name: a.Key, Value: value, Inline: true})
	}
	return fields
}
