package httpdto

// Machine readable codes carried in the error envelope.
const (
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeRateLimited      = "RATE_LIMITED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnhealthy        = "UNHEALTHY"
)

// Response is the envelope of every JSON body the HTTP API writes.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func NewErrorResponse(message, code string) Response[any] {
	return Response[any]{Success: false, Error: message, Code: code}
}

// Unauthorized is the body for a missing or rejected bearer token.
func Unauthorized() Response[any] {
	return NewErrorResponse("unauthorized", CodeUnauthorized)
}

func InvalidArgument(message string) Response[any] {
	return NewErrorResponse(message, CodeInvalidArgument)
}
