package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryLeatherJackets Category = "leather-jackets"
	CategoryHoodies        Category = "hoodies"
	CategoryPants          Category = "pants"
	CategoryWomensWear     Category = "womens-wear"
	CategoryMensWear       Category = "mens-wear"
)

var categories = []Category{
	CategoryLeatherJackets,
	CategoryHoodies,
	CategoryPants,
	CategoryWomensWear,
	CategoryMensWear,
}

// Categories returns the fixed category enumeration in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    Category        `json:"category"`
	Images      []string        `json:"images"`
	Sizes       []string        `json:"sizes"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductInput carries the writable product fields. Pointers distinguish
// "not supplied" from zero values so the same type serves create and partial update.
type ProductInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *Category        `json:"category"`
	Images      []string         `json:"images"`
	Sizes       []string         `json:"sizes"`
	Stock       *int             `json:"stock"`
	Featured    *bool            `json:"featured"`
}

type ProductFilter struct {
	Category Category
	Search   string
	Featured bool
}

// ValidPrice reports whether p is a non-negative amount with at most two
// fractional digits.
func ValidPrice(p decimal.Decimal) bool {
	if p.IsNegative() {
		return false
	}
	return p.Equal(p.Round(2))
}

// LineTotal returns price × quantity.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}
