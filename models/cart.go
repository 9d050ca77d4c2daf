package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a row of the server-side cart mirror. Name, price and image are
// joined from the catalog on read.
type CartItem struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type AddCartItemRequest struct {
	UserID    string `json:"userId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Size      string `json:"size"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// ManifestItem is one line of the item manifest sent with a payment authorization.
type ManifestItem struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"min=1"`
	Size      string `json:"size,omitempty"`
}

// CheckoutKey derives a stable checkout session key from the shopper and the
// exact cart contents, so an unchanged cart maps to one payment authorization.
func CheckoutKey(userID string, items []ManifestItem, amount decimal.Decimal) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, item.ProductID+"|"+item.Size+"|"+strconv.Itoa(item.Quantity))
	}
	sort.Strings(lines)

	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(lines, "\n")))
	h.Write([]byte{0})
	h.Write([]byte(amount.StringFixed(2)))
	return hex.EncodeToString(h.Sum(nil))
}
