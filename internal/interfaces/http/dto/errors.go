package dto

import "net/http"

// Error codes returned in ErrorInfo.Code. Domain errors keep their own code
// so clients can branch on CART_EMPTY, INSUFFICIENT_STOCK and so on.

// General error codes
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
)

// Rate limiting and request size
const (
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// Checkout error codes
const (
	ErrCodeCartEmpty         = "CART_EMPTY"
	ErrCodeInvalidCart       = "INVALID_CART"
	ErrCodeInvalidItem       = "INVALID_ITEM"
	ErrCodeInvalidQuantity   = "INVALID_QUANTITY"
	ErrCodeInvalidVariant    = "INVALID_VARIANT"
	ErrCodeInvalidPrice      = "INVALID_PRICE"
	ErrCodeInvalidTotal      = "INVALID_TOTAL"
	ErrCodeInvalidEmail      = "INVALID_EMAIL"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	ErrCodeCheckoutFailed    = "CHECKOUT_FAILED"
)

// Webhook error codes
const (
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeDuplicateEvent   = "DUPLICATE_EVENT"
	ErrCodeInvalidSession   = "INVALID_SESSION"
)

// Email verification error codes
const (
	ErrCodeVerificationInProgress = "VERIFICATION_IN_PROGRESS"
	ErrCodeAlreadyVerified        = "ALREADY_VERIFIED"
	ErrCodeNoEmail                = "NO_EMAIL"
	ErrCodeInvalidToken           = "INVALID_TOKEN"
	ErrCodeTokenUsed              = "TOKEN_USED"
)

// Shared domain codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInvalidState  = "INVALID_STATE"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeUnauthorized: http.StatusUnauthorized,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeCartEmpty:         http.StatusBadRequest,
	ErrCodeInvalidCart:       http.StatusBadRequest,
	ErrCodeInvalidItem:       http.StatusBadRequest,
	ErrCodeInvalidQuantity:   http.StatusBadRequest,
	ErrCodeInvalidVariant:    http.StatusBadRequest,
	ErrCodeInvalidPrice:      http.StatusBadRequest,
	ErrCodeInvalidTotal:      http.StatusBadRequest,
	ErrCodeInvalidEmail:      http.StatusBadRequest,
	ErrCodeInvalidURL:        http.StatusBadRequest,
	ErrCodeInsufficientStock: http.StatusConflict,
	ErrCodeCheckoutFailed:    http.StatusInternalServerError,

	ErrCodeInvalidSignature: http.StatusUnauthorized,
	ErrCodeDuplicateEvent:   http.StatusConflict,
	ErrCodeInvalidSession:   http.StatusBadRequest,

	ErrCodeVerificationInProgress: http.StatusConflict,
	ErrCodeAlreadyVerified:        http.StatusConflict,
	ErrCodeNoEmail:                http.StatusBadRequest,
	ErrCodeInvalidToken:           http.StatusBadRequest,
	ErrCodeTokenUsed:              http.StatusConflict,

	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeInvalidState:  http.StatusConflict,
	ErrCodeAlreadyExists: http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500 Internal Server Error.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
