package models

import "time"

// Payment is the immutable record of a completed enrollment transaction
type Payment struct {
	ID             string    `json:"_id"`
	Email          string    `json:"email"`
	Amount         float64   `json:"price"`
	TransactionID  string    `json:"transactionId"`
	ClassIDs       []string  `json:"classIds"`
	CartItemIDs    []string  `json:"cartItemIds"`
	ClassNames     []string  `json:"classNames,omitempty"`
	IdempotencyKey string    `json:"-"`
	CreatedAt      time.Time `json:"date"`
}
