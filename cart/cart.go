// Package cart is the shopper-held cart: line items keyed by product and size
// with a running total that always equals the sum of price times quantity.
package cart

import (
	"encoding/json"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/models"
)

type Item struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Cart is not safe for concurrent use.
type Cart struct {
	items []Item
	total decimal.Decimal
}

func New() *Cart {
	return &Cart{items: []Item{}}
}

// AddItem merges into the line for the same product and size, or appends a
// new line. A quantity below 1 is ignored.
func (c *Cart) AddItem(productID, name string, price decimal.Decimal, image, size string, quantity int) {
	if quantity < 1 {
		return
	}
	defer c.recompute()

	for i := range c.items {
		if c.items[i].ProductID == productID && c.items[i].Size == size {
			c.items[i].Quantity += quantity
			return
		}
	}
	c.items = append(c.items, Item{
		ID:        uuid.NewString(),
		ProductID: productID,
		Name:      name,
		Price:     price,
		Image:     image,
		Size:      size,
		Quantity:  quantity,
	})
}

// RemoveItem drops the line with id. Unknown ids are ignored.
func (c *Cart) RemoveItem(id string) {
	c.items = slices.DeleteFunc(c.items, func(it Item) bool { return it.ID == id })
	c.recompute()
}

// UpdateQuantity sets the line's quantity. Zero or less removes the line.
func (c *Cart) UpdateQuantity(id string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(id)
		return
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Quantity = quantity
		}
	}
	c.recompute()
}

func (c *Cart) Clear() {
	c.items = []Item{}
	c.total = decimal.Zero
}

// ItemCount is the sum of quantities, not the number of lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Total() decimal.Decimal { return c.total }

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	return slices.Clone(c.items)
}

// Manifest lists the lines as sent with a payment authorization.
func (c *Cart) Manifest() []models.ManifestItem {
	out := make([]models.ManifestItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, models.ManifestItem{ProductID: it.ProductID, Quantity: it.Quantity, Size: it.Size})
	}
	return out
}

func (c *Cart) recompute() {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(models.LineTotal(it.Price, it.Quantity))
	}
	c.total = total
}

type snapshot struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	items := c.items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(snapshot{Items: items, Total: c.total})
}

// UnmarshalJSON restores a saved cart. The stored total is discarded and
// recomputed, and lines with a quantity below 1 are dropped.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	c.items = slices.DeleteFunc(s.Items, func(it Item) bool { return it.Quantity < 1 })
	if c.items == nil {
		c.items = []Item{}
	}
	c.recompute()
	return nil
}
