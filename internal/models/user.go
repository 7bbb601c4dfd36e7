package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWT claims structure
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Details builds the opportunistic user snapshot attached to a cart.
func (c *Claims) Details() *UserDetails {
	if c == nil || (c.Email == "" && c.Username == "") {
		return nil
	}

	return &UserDetails{Username: c.Username, Email: c.Email}
}
