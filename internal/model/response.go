package model

// Response is the JSON envelope returned by the HTTP surface.
type Response struct {
	Data    interface{} `json:"data,omitempty"`
	Error   *string     `json:"error,omitempty"`
	Message string      `json:"message"`
}

func NewErrorResponse(message, errMsg string) Response {
	return Response{Error: &errMsg, Message: message}
}
