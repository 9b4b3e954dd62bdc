package ebay

import "encoding/json"

// ItemSummary represents a single item from the eBay Browse API search response.
//
// Price, MinPrice and Seller.FeedbackPercentage are kept raw: upstream sends
// them as numbers, strings or {value, currency} objects depending on the
// marketplace, and the normalize package coerces each shape.
type ItemSummary struct {
	ItemID     string          `json:"itemId"`
	Title      string          `json:"title"`
	Price      json.RawMessage `json:"price,omitempty"`
	MinPrice   json.RawMessage `json:"minPrice,omitempty"`
	ItemWebURL string          `json:"itemWebUrl"`
	ItemHref   string          `json:"itemHref"`
	Seller     *ItemSeller     `json:"seller,omitempty"`
	Condition  string          `json:"condition"`
}

// ItemSeller holds eBay seller information.
type ItemSeller struct {
	Username           string          `json:"username"`
	FeedbackPercentage json.RawMessage `json:"feedbackPercentage,omitempty"`
}
