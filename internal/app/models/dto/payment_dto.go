package dto

// PaymentIntentRequest asks for a payment handle sized to the cart total
type PaymentIntentRequest struct {
	Price float64 `json:"price" binding:"gt=0" example:"49.99"`
}

// PaymentIntentResponse returns the client-usable payment handle
type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	IntentID     string `json:"intentId"`
	Amount       int64  `json:"amount" example:"4999"`
	Currency     string `json:"currency" example:"usd"`
}

// SubmitPaymentRequest reports a completed charge and the cart it covers
type SubmitPaymentRequest struct {
	Email         string   `json:"email" binding:"required,email" example:"jane@example.com"`
	Price         float64  `json:"price" binding:"gte=0" example:"49.99"`
	TransactionID string   `json:"transactionId" binding:"required" example:"pi_3Nq..."`
	CartItemIDs   []string `json:"cartItemIds" binding:"required,min=1,dive,required"`
	ClassIDs      []string `json:"classIds" binding:"required,min=1,dive,required"`
	ClassNames    []string `json:"classNames"`
}

// InsertResultDTO reports the payment record written
type InsertResultDTO struct {
	InsertedID string `json:"insertedId"`
}

// DeleteResultDTO reports the cart items removed
type DeleteResultDTO struct {
	DeletedCount int64 `json:"deletedCount"`
}

// SubmitPaymentResponse is the composite result of an enrollment
type SubmitPaymentResponse struct {
	InsertResult InsertResultDTO `json:"insertResult"`
	DeleteResult DeleteResultDTO `json:"deleteResult"`
	Replayed     bool            `json:"replayed"`
}
