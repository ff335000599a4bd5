package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the kind every service operation surfaces: an HTTP status, an
// application error code, and an optional wrapped cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From pulls an *Error out of an error chain, or wraps unknown errors as a
// 500 DB_OPERATION_ERROR so handlers never leak raw messages.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, CodeDBOperationError, err)
}

// Application error codes. HTTP status conventions:
// 400 business precondition, 401 token, 403 withdrawn, 404 missing,
// 409 conflict, 422 validation, 429 duplicate submit, 5xx DB.
const (
	CodeAlreadyExistEmail              = "ALREADY_EXIST_EMAIL"
	CodeAlreadyExistEmailOtherMethod   = "ALREADY_EXIST_EMAIL_WITH_DIFFERENT_METHOD"
	CodeAlreadyWithdrawnMember         = "ALREADY_WITHDRAWN_MEMBER"
	CodeSnsPasswordResetNotAllowed     = "SNS_ACCOUNT_PASSWORD_RESET_NOT_ALLOWED"
	CodeNotRegisteredAccount           = "NOT_REGISTERED_ACCOUNT"
	CodeExpiredAccessToken             = "EXPIRED_ACCESS_TOKEN"
	CodeExpiredRefreshToken            = "EXPIRED_REFRESH_TOKEN"
	CodeLoginRequired                  = "LOGIN_REQUIRED"
	CodeAdminAccountRequired           = "ADMIN_ACCOUNT_REQUIRED"
	CodeInvalidState                   = "INVALID_STATE"
	CodeInvalidProductInfo             = "INVALID_PRODUCT_INFO"
	CodeInvalidEpisodeInfo             = "INVALID_EPISODE_INFO"
	CodeInvalidNicknameInfo            = "INVALID_NICKNAME_INFO"
	CodeAlreadyOwned                   = "ALREADY_OWNED"
	CodeInsufficientCash               = "INSUFFICIENT_CASH"
	CodeFreeEpisodeCannotPurchase      = "FREE_EPISODE_CANNOT_PURCHASE"
	CodeNotFoundEpisode                = "NOT_FOUND_EPISODE"
	CodeDeletedEpisode                 = "DELETED_EPISODE"
	CodeNotFoundProduct                = "NOT_FOUND_PRODUCT"
	CodeDuplicateEpisodeCreation       = "DUPLICATE_EPISODE_CREATION"
	CodeFreeProductCannotCreatePaidEp  = "FREE_PRODUCT_CANNOT_CREATE_PAID_EPISODE"
	CodeAlreadyLiked                   = "ALREADY_LIKED"
	CodeNoUsableTicket                 = "NO_USABLE_TICKET"
	CodeNotLikedYet                    = "NOT_LIKED_YET"
	CodeDBConnectionError              = "DB_CONNECTION_ERROR"
	CodeDBOperationError               = "DB_OPERATION_ERROR"
	CodeWithdrawnAccountAccess         = "WITHDRAWN_ACCOUNT_ACCESS"
)

func BadRequest(code string) *Error {
	return New(http.StatusBadRequest, code, nil)
}

func Unauthorized(code string) *Error {
	return New(http.StatusUnauthorized, code, nil)
}

func Forbidden(code string) *Error {
	return New(http.StatusForbidden, code, nil)
}

func NotFound(code string) *Error {
	return New(http.StatusNotFound, code, nil)
}

func Conflict(code string) *Error {
	return New(http.StatusConflict, code, nil)
}

func Unprocessable(code string) *Error {
	return New(http.StatusUnprocessableEntity, code, nil)
}

func TooManyRequests(code string) *Error {
	return New(http.StatusTooManyRequests, code, nil)
}
