package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
)

// OrderPayload is the commerce-platform order event body. Monetary amounts
// arrive as strings and numeric fields sometimes arrive quoted, so parsing is
// deliberately forgiving.
type OrderPayload struct {
	ID                int64             `json:"id"`
	OrderNumber       json.Number       `json:"order_number"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Customer          *CustomerPayload  `json:"customer"`
	TotalPrice        string            `json:"total_price"`
	Currency          string            `json:"currency"`
	FinancialStatus   string            `json:"financial_status"`
	FulfillmentStatus string            `json:"fulfillment_status"`
	LineItems         []LineItemPayload `json:"line_items"`
}

// CustomerPayload carries the nested customer object.
type CustomerPayload struct {
	Email string `json:"email"`
}

// LineItemPayload is one purchased line in the order event.
type LineItemPayload struct {
	ID         int64             `json:"id"`
	ProductID  int64             `json:"product_id"`
	Quantity   int               `json:"quantity"`
	Price      string            `json:"price"`
	Properties []PropertyPayload `json:"properties"`
}

// PropertyPayload is a line-item custom property. Values may be JSON strings
// or numbers depending on how the storefront attached them.
type PropertyPayload struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Number returns the human order number, falling back to the display name
// when the numeric field is absent.
func (p OrderPayload) Number() string {
	if n := p.OrderNumber.String(); n != "" {
		return n
	}
	return p.Name
}

// CustomerEmail prefers the nested customer object over the top-level field.
func (p OrderPayload) CustomerEmail() string {
	if p.Customer != nil && p.Customer.Email != "" {
		return p.Customer.Email
	}
	return p.Email
}

// Total parses the order total, defaulting to zero on absent or malformed
// input.
func (p OrderPayload) Total() float64 {
	return parseAmount(p.TotalPrice)
}

// UnitPrice parses the line price, defaulting to zero.
func (li LineItemPayload) UnitPrice() float64 {
	return parseAmount(li.Price)
}

// DesignID scans the line-item properties for a design reference. The first
// property named design_id or _design_id wins.
func (li LineItemPayload) DesignID() (int64, bool) {
	for _, prop := range li.Properties {
		if prop.Name != "design_id" && prop.Name != "_design_id" {
			continue
		}
		raw := strings.Trim(string(prop.Value), `"`)
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
