package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrSessionExpired = errors.New("session expired")
)

// ValidationError — ошибка входных данных; до обращения к БД не доходит.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation — true, если в цепочке есть *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Error — ошибка с сообщением для пользователя и классом (одна из Err*).
type Error struct {
	Kind error
	Msg  string
}

func NewError(kind error, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }
