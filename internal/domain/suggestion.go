package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Total returns quantity times unit price.
func (l LineItem) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// ProductSuggestion is an opaque recommendation attached to a line item.
// Score and Payload are passed through untouched.
type ProductSuggestion struct {
	ProductID string          `json:"product_id"`
	Label     string          `json:"label"`
	Score     float64         `json:"score"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type SuggestionFeedback struct {
	OpportunityID string    `json:"opportunity_id"`
	LineItemID    string    `json:"line_item_id"`
	ProductID     string    `json:"product_id"`
	Accepted      bool      `json:"accepted"`
	At            time.Time `json:"at"`
}
