package utils

// APIResponse is the envelope of every HTTP response body.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func SuccessResponse(message string, data any) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data}
}

func ErrorResponse(message, detail string) APIResponse {
	return APIResponse{Success: false, Message: message, Error: detail}
}
