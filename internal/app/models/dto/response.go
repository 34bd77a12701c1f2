package dto

// MessageResponse represents a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message" example:"deleted"`
}

// AcknowledgedResponse mirrors the write acknowledgements of the document store
type AcknowledgedResponse struct {
	Acknowledged  bool  `json:"acknowledged" example:"true"`
	MatchedCount  int64 `json:"matchedCount,omitempty" example:"1"`
	ModifiedCount int64 `json:"modifiedCount,omitempty" example:"1"`
	DeletedCount  int64 `json:"deletedCount,omitempty" example:"1"`
}
