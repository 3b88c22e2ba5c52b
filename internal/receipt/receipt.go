package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is one parsed store receipt with its purchased items.
type Receipt struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Store         string          `json:"store"`
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Filename      string          `json:"filename,omitempty"`
	ContentType   string          `json:"content_type,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LineItem is a single purchased item. Price is the per-unit price after any
// per-item discount has been folded in; for weight-priced goods the quantity
// is 1 and the weight is part of the name. A store-wide discount is a LineItem
// with a negative price, quantity 1 and the "Discount" category.
type LineItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
}

// DiscountCategory tags store-wide discount line items.
const DiscountCategory = "Discount"

// Subtotal returns price × quantity for this line.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// RecalcTotal recomputes Total from the current items. The total is never
// stored independently of the items; call this after any item change.
func (r *Receipt) RecalcTotal() {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Subtotal())
	}
	r.Total = total
}

// Category groups item names under a spending category. Membership is
// matched case-insensitively against parsed item names.
type Category struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// ExpensePeriod is a spending report over a date range.
type ExpensePeriod struct {
	StartDate  time.Time                  `json:"start_date"`
	EndDate    time.Time                  `json:"end_date"`
	Receipts   []*Receipt                 `json:"receipts"`
	Total      decimal.Decimal            `json:"total"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}
