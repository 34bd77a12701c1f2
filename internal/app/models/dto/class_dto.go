package dto

// CreateClassRequest submits a class listing for approval
type CreateClassRequest struct {
	Name             string  `json:"name" binding:"required,max=200" example:"Watercolor Basics"`
	ImageURL         string  `json:"image" binding:"omitempty,url"`
	InstructorName   string  `json:"instructorName" binding:"max=120"`
	InstructorEmail  string  `json:"instructorEmail" binding:"omitempty,email"`
	Price            float64 `json:"price" binding:"gte=0" example:"49.99"`
	SpotsAvailable   int     `json:"spotsAvailable" binding:"gte=0" example:"20"`
	StudentsEnrolled int     `json:"studentsEnrolled" binding:"gte=0" example:"0"`
}

// UpdateClassRequest overwrites the editable fields of a class
type UpdateClassRequest struct {
	Price            *float64 `json:"price" binding:"required,gte=0" example:"59.99"`
	SpotsAvailable   *int     `json:"spotsAvailable" binding:"required,gte=0" example:"15"`
	StudentsEnrolled *int     `json:"studentsEnrolled" binding:"required,gte=0" example:"5"`
}
