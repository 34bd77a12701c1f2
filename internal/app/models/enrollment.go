package models

import "time"

// EnrollmentState tracks how far an enrollment transaction has progressed
type EnrollmentState string

const (
	EnrollmentPending   EnrollmentState = "pending"
	EnrollmentRecorded  EnrollmentState = "recorded"
	EnrollmentCompleted EnrollmentState = "completed"
	EnrollmentFailed    EnrollmentState = "failed"
)

// InsertResult reports the payment record written by an enrollment
type InsertResult struct {
	InsertedID string `json:"insertedId"`
}

// DeleteResult reports how many cart items an enrollment removed
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// EnrollmentResult is the composite result returned to the payer
type EnrollmentResult struct {
	InsertResult InsertResult `json:"insertResult"`
	DeleteResult DeleteResult `json:"deleteResult"`
}

// EnrollmentRecord is the idempotency ledger entry for one enrollment transaction.
// Key is unique; LockedUntil is the lease held by the process driving the transaction.
// Fence grows with every takeover, and progress writes only land while it is unchanged.
type EnrollmentRecord struct {
	Key                 string            `json:"key"`
	Email               string            `json:"email"`
	Amount              float64           `json:"amount"`
	TransactionID       string            `json:"transactionId"`
	ClassIDs            []string          `json:"classIds"`
	CartItemIDs         []string          `json:"cartItemIds"`
	State               EnrollmentState   `json:"state"`
	PaymentID           string            `json:"paymentId,omitempty"`
	InstructorsCredited bool              `json:"instructorsCredited"`
	Result              *EnrollmentResult `json:"result,omitempty"`
	FailureReason       string            `json:"failureReason,omitempty"`
	LockedUntil         time.Time         `json:"lockedUntil"`
	Fence               int64             `json:"fence"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
	ExpiresAt           time.Time         `json:"expiresAt"`
}

// Terminal reports whether the record no longer needs a driver
func (r *EnrollmentRecord) Terminal() bool {
	return r.State == EnrollmentCompleted || r.State == EnrollmentFailed
}
