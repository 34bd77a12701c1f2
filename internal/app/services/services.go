package services

import (
	"context"
	"strings"
	"time"
)

// Services defined in this package:
// - AuthService: issues identity tokens
// - UserService: user registration, role queries and promotions
// - ClassService: the class inventory ledger and its seat counters
// - CartService: owner-scoped cart items
// - PaymentService: payment intents and payment history
// - EnrollmentService: turns a completed charge into enrollments
// - CatalogService: instructors and reviews

// normalizeEmail gives emails one canonical form before they reach a repository
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// bounded derives a context that expires after d; d <= 0 leaves ctx unbounded
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
