package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserDetails struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Product is the catalog snapshot handed to the cart when an item is added.
type Product struct {
	ID          string          `json:"id"    validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Stock       *int            `json:"stock,omitempty"`
}

type CartItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Stock       *int            `json:"stock,omitempty"`
	AddedAt     time.Time       `json:"addedAt"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderSummary struct {
	TotalItems    int             `json:"totalItems"`
	TotalQuantity int             `json:"totalQuantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Shipping      decimal.Decimal `json:"shipping"`
	Total         decimal.Decimal `json:"total"`
}

// Cart items are kept in insertion order; product ids are unique within a cart.
type Cart struct {
	UserID       string       `json:"userId"`
	UserDetails  *UserDetails `json:"userDetails,omitempty"`
	Items        []CartItem   `json:"items"`
	OrderSummary OrderSummary `json:"orderSummary"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func NewCart(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:    userID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindItem returns the index of the item with the given product id.
func (c *Cart) FindItem(productID string) (int, bool) {
	for i := range c.Items {
		if c.Items[i].ID == productID {
			return i, true
		}
	}

	return -1, false
}

func (c *Cart) RemoveAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Clone returns a deep copy so callers never share item slices or pointers.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}

	out := *c
	if c.UserDetails != nil {
		details := *c.UserDetails
		out.UserDetails = &details
	}

	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		if item.Stock != nil {
			stock := *item.Stock
			item.Stock = &stock
		}
		out.Items[i] = item
	}

	return &out
}

type AddItemRequest struct {
	Product     Product      `json:"product"`
	Quantity    int          `json:"quantity"    validate:"required,min=1"`
	UserDetails *UserDetails `json:"userDetails"`
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}
