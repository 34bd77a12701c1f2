package dto

// AddCartItemRequest selects a class for the caller's cart
type AddCartItemRequest struct {
	ClassID         string  `json:"classId" binding:"required"`
	Name            string  `json:"name" binding:"max=200"`
	ImageURL        string  `json:"image"`
	Price           float64 `json:"price" binding:"gte=0"`
	InstructorEmail string  `json:"instructorEmail" binding:"omitempty,email"`
	Email           string  `json:"email" binding:"omitempty,email"`
}
