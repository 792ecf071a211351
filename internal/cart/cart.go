// Package cart models the client-held shopping cart: line aggregation keyed
// by (product, size), decimal totals and a pluggable tax policy.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	ErrInvalidPrice    = errors.New("cart: invalid price")
)

// Line is one cart entry. Price is the unit-price snapshot captured when the
// item was added, not the live catalog price.
type Line struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image,omitempty"`
	Category  string `json:"category,omitempty"`
	Size      string `json:"size,omitempty"`
}

type Cart struct {
	Lines []Line `json:"items"`
}

// Add merges by (product id, size): an already-present pair increments its
// quantity instead of appending a duplicate line.
func (c *Cart) Add(l Line) error {
	if l.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if _, err := decimal.NewFromString(l.Price); err != nil {
		return ErrInvalidPrice
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == l.ProductID && c.Lines[i].Size == l.Size {
			c.Lines[i].Quantity += l.Quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, l)
	return nil
}

// Remove drops every line for the product, regardless of size.
func (c *Cart) Remove(productID string) {
	out := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	c.Lines = out
}

// SetQuantity updates a product's quantity; zero or less removes it.
func (c *Cart) SetQuantity(productID string, qty int) {
	if qty <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = qty
		}
	}
}

func (c *Cart) Clear() { c.Lines = nil }

// Subtotal is the sum of price×quantity across lines, before tax.
func (c *Cart) Subtotal() (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, l := range c.Lines {
		p, err := decimal.NewFromString(l.Price)
		if err != nil {
			return decimal.Zero, ErrInvalidPrice
		}
		sum = sum.Add(p.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum, nil
}

// TaxPolicy computes the surcharge for a subtotal. Jurisdiction-aware
// policies can replace the flat default without touching callers.
type TaxPolicy interface {
	Tax(subtotal decimal.Decimal) decimal.Decimal
}

// FlatRate applies a single fractional rate (0.10 = 10%).
type FlatRate struct{ rate decimal.Decimal }

func NewFlatRate(rate float64) FlatRate {
	return FlatRate{rate: decimal.NewFromFloat(rate)}
}

func (f FlatRate) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(f.rate).Round(2)
}

// Total is subtotal plus tax under the given policy.
func (c *Cart) Total(p TaxPolicy) (decimal.Decimal, error) {
	sub, err := c.Subtotal()
	if err != nil {
		return decimal.Zero, err
	}
	return sub.Add(p.Tax(sub)), nil
}
