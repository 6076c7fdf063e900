package dto

// ErrorResponseDTO is the body of every error response.
type ErrorResponseDTO struct {
	Error string `json:"error" example:"Post not found"`
}

type MessageResponseDTO struct {
	Message string `json:"message" example:"Post deleted"`
}

type HealthResponseDTO struct {
	Status  string `json:"status" example:"ok"`
	Storage string `json:"storage" example:"file"`
	Uploads string `json:"uploads" example:"local"`
	Error   string `json:"error,omitempty"`
}
