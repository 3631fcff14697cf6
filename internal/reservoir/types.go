package reservoir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// flexID accepts ids encoded either as JSON strings or numbers. Event ids are
// numeric in some endpoints and strings in others.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type eventInfo struct {
	ID        flexID     `json:"id"`
	Kind      string     `json:"kind"`
	TxHash    string     `json:"txHash"`
	CreatedAt *time.Time `json:"createdAt"`
}

type floorAskResponse struct {
	Events []struct {
		FloorAsk struct {
			OrderID  string              `json:"orderId"`
			Contract string              `json:"contract"`
			TokenID  string              `json:"tokenId"`
			Maker    string              `json:"maker"`
			Price    decimal.NullDecimal `json:"price"`
			Source   string              `json:"source"`
		} `json:"floorAsk"`
		Event eventInfo `json:"event"`
	} `json:"events"`
}

type topBidResponse struct {
	Events []struct {
		TopBid struct {
			OrderID    string              `json:"orderId"`
			Contract   string              `json:"contract"`
			TokenSetID string              `json:"tokenSetId"`
			Maker      string              `json:"maker"`
			Price      decimal.NullDecimal `json:"price"`
			Source     string              `json:"source"`
		} `json:"topBid"`
		Event eventInfo `json:"event"`
	} `json:"events"`
}

type amount struct {
	Native decimal.NullDecimal `json:"native"`
	USD    decimal.NullDecimal `json:"usd"`
}

type priceInfo struct {
	Amount amount `json:"amount"`
}

type asksResponse struct {
	Orders []struct {
		ID         string    `json:"id"`
		Contract   string    `json:"contract"`
		TokenSetID string    `json:"tokenSetId"`
		Maker      string    `json:"maker"`
		Price      priceInfo `json:"price"`
		Source     *struct {
			Name string `json:"name"`
			Icon string `json:"icon"`
		} `json:"source"`
		CreatedAt *time.Time `json:"createdAt"`
	} `json:"orders"`
}

type salesResponse struct {
	Sales []struct {
		SaleID string `json:"saleId"`
		Token  struct {
			Contract   string `json:"contract"`
			TokenID    string `json:"tokenId"`
			Name       string `json:"name"`
			Image      string `json:"image"`
			Collection struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"collection"`
		} `json:"token"`
		OrderSource string    `json:"orderSource"`
		From        string    `json:"from"`
		To          string    `json:"to"`
		Price       priceInfo `json:"price"`
		TxHash      string    `json:"txHash"`
		Timestamp   int64     `json:"timestamp"`
	} `json:"sales"`
}

type tokensResponse struct {
	Tokens []struct {
		Token struct {
			Contract   string `json:"contract"`
			TokenID    string `json:"tokenId"`
			Name       string `json:"name"`
			Image      string `json:"image"`
			Owner      string `json:"owner"`
			RarityRank int    `json:"rarityRank"`
			Collection struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Image string `json:"image"`
			} `json:"collection"`
			LastSell struct {
				Value decimal.NullDecimal `json:"value"`
			} `json:"lastSell"`
			Attributes []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"attributes"`
		} `json:"token"`
	} `json:"tokens"`
}

type collectionsResponse struct {
	Collections []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Image string `json:"image"`
	} `json:"collections"`
}
