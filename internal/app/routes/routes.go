package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yigit/classmarket/internal/app/controllers"
	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	userController *controllers.UserController,
	classController *controllers.ClassController,
	cartController *controllers.CartController,
	paymentController *controllers.PaymentController,
	catalogController *controllers.CatalogController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public routes ---
	v1.POST("/auth/token", authController.IssueToken)
	v1.GET("/classes", classController.ListApproved)
	v1.GET("/classes/:id", classController.GetClass)
	v1.GET("/instructors", catalogController.ListInstructors)
	v1.GET("/reviews", catalogController.ListReviews)

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	admin := authMiddleware.RoleRequired(models.RoleAdmin)
	staff := authMiddleware.RoleRequired(models.RoleInstructor, models.RoleAdmin)

	users := authenticated.Group("/users")
	{
		users.POST("", userController.RegisterUser)
		users.GET("/admin/:email", userController.CheckAdmin)
		users.GET("/instructor/:email", userController.CheckInstructor)

		users.GET("", admin, userController.ListUsers)
		users.PATCH("/admin/:id", admin, userController.PromoteAdmin)
		users.PATCH("/instructor/:id", admin, userController.PromoteInstructor)
	}

	classes := authenticated.Group("/classes")
	{
		classes.GET("/all", admin, classController.ListAll)
		classes.PATCH("/:id/approve", admin, classController.ApproveClass)
		classes.PATCH("/:id/deny", admin, classController.DenyClass)

		classes.POST("", staff, classController.CreateClass)
		classes.PUT("/:id", staff, classController.UpdateClass)
		classes.DELETE("/:id", staff, classController.DeleteClass)
	}

	carts := authenticated.Group("/carts")
	{
		carts.GET("", cartController.ListCart)
		carts.POST("", cartController.AddCartItem)
		carts.DELETE("/:id", cartController.RemoveCartItem)
	}

	payments := authenticated.Group("/payments")
	{
		payments.POST("/intent", paymentController.CreateIntent)
		payments.POST("", paymentController.SubmitPayment)
		payments.GET("", paymentController.ListPayments)
		payments.GET("/all", admin, paymentController.ListAllPayments)
	}
}
