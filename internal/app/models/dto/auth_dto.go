package dto

// TokenRequest carries the identity asserted by the sign-in provider
type TokenRequest struct {
	Email string `json:"email" binding:"required,email" example:"jane@example.com"`
	Name  string `json:"name" binding:"max=120" example:"Jane Doe"`
}

// TokenResponse represents JWT token information
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType" example:"Bearer"`
	ExpiresIn int    `json:"expiresIn" example:"3600"`
}
