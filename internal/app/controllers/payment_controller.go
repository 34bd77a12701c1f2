package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/services"
	"github.com/yigit/classmarket/internal/middleware"
)

// HeaderIdempotencyKey lets clients retry payment calls safely
const HeaderIdempotencyKey = "Idempotency-Key"

// PaymentController handles payment intents, enrollments and payment history
type PaymentController struct {
	paymentService    services.PaymentService
	enrollmentService services.EnrollmentService
}

// NewPaymentController creates a new PaymentController
func NewPaymentController(paymentService services.PaymentService, enrollmentService services.EnrollmentService) *PaymentController {
	return &PaymentController{
		paymentService:    paymentService,
		enrollmentService: enrollmentService,
	}
}

// CreateIntent requests a payment handle for the cart total
// @Summary Create a payment intent
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Key forwarded to the payment provider"
// @Param request body dto.PaymentIntentRequest true "Cart total"
// @Success 200 {object} dto.PaymentIntentResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid price"
// @Failure 502 {object} dto.ErrorResponse "Payment provider failure"
// @Router /payments/intent [post]
func (c *PaymentController) CreateIntent(ctx *gin.Context) {
	var req dto.PaymentIntentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	resp, err := c.paymentService.CreateIntent(ctx.Request.Context(), &req, ctx.GetHeader(HeaderIdempotencyKey))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitPayment records a completed charge and enrolls the payer
// @Summary Submit a completed payment
// @Description Reserves seats, records the payment and clears the paid cart items. Retrying with the same Idempotency-Key (default: transactionId) replays or resumes the enrollment.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Enrollment idempotency key"
// @Param request body dto.SubmitPaymentRequest true "Completed payment"
// @Success 200 {object} dto.SubmitPaymentResponse
// @Failure 403 {object} dto.ErrorResponse "Payer is not the caller"
// @Failure 404 {object} dto.ErrorResponse "Class not found"
// @Failure 409 {object} dto.ErrorResponse "No seats left or enrollment in progress"
// @Failure 502 {object} dto.ErrorResponse "Store failure, retry with the same key"
// @Router /payments [post]
func (c *PaymentController) SubmitPayment(ctx *gin.Context) {
	var req dto.SubmitPaymentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	outcome, err := c.enrollmentService.Submit(ctx.Request.Context(), middleware.CallerEmail(ctx), &services.EnrollmentRequest{
		IdempotencyKey: ctx.GetHeader(HeaderIdempotencyKey),
		Email:          req.Email,
		Amount:         req.Price,
		TransactionID:  req.TransactionID,
		CartItemIDs:    req.CartItemIDs,
		ClassIDs:       req.ClassIDs,
		ClassNames:     req.ClassNames,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.SubmitPaymentResponse{
		InsertResult: dto.InsertResultDTO{InsertedID: outcome.Result.InsertResult.InsertedID},
		DeleteResult: dto.DeleteResultDTO{DeletedCount: outcome.Result.DeleteResult.DeletedCount},
		Replayed:     outcome.Replayed,
	})
}

// ListPayments returns the caller's payment history
// @Summary List payments of a payer
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param email query string true "Payer email"
// @Success 200 {array} models.Payment
// @Failure 403 {object} dto.ErrorResponse "Email does not belong to the caller"
// @Router /payments [get]
func (c *PaymentController) ListPayments(ctx *gin.Context) {
	payments, err := c.paymentService.ListForPayer(ctx.Request.Context(), middleware.CallerEmail(ctx), ctx.Query("email"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, payments)
}

// ListAllPayments returns every payment
// @Summary List all payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Payment
// @Failure 403 {object} dto.ErrorResponse "Caller is not an admin"
// @Router /payments/all [get]
func (c *PaymentController) ListAllPayments(ctx *gin.Context) {
	payments, err := c.paymentService.ListAll(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, payments)
}
