package common

import "errors"

// AppError carries a stable machine code and the HTTP status it should
// surface as. Handlers pass these to JSONAppError; everything else maps
// to a generic 500.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError builds an AppError wrapping err.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError reports whether an AppError sits anywhere in err's chain.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
