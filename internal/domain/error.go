package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Storage level sentinels. Services translate them into the typed errors below.
var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInsufficientSpots = errors.New("insufficient available spots")
)

type InputError struct {
	fields map[string][]string
}

func NewInputError() *InputError {
	return &InputError{
		fields: make(map[string][]string),
	}
}

func IsInputError(err error) *InputError {
	if err == nil {
		return nil
	}

	var inputError *InputError

	if errors.As(err, &inputError) {
		return inputError
	}

	return nil
}

// ErrOrNil returns the error only if at least one field failed.
func (ie *InputError) ErrOrNil() error {
	if len(ie.fields) == 0 {
		return nil
	}

	return ie
}

func (ie *InputError) AddError(field, msg string) {
	ie.fields[field] = append(ie.fields[field], msg)
}

func (ie *InputError) Error() string {
	names := make([]string, 0, len(ie.fields))
	for name := range ie.fields {
		names = append(names, name)
	}

	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, ie.fields[name]...)
	}

	return strings.Join(msgs, "; ")
}

func (ie *InputError) Fields() map[string][]string {
	return ie.fields
}

type AuthError struct {
	msg string
}

func NewAuthError(msg string) *AuthError {
	return &AuthError{msg: msg}
}

func IsAuthError(err error) *AuthError {
	var authError *AuthError

	if errors.As(err, &authError) {
		return authError
	}

	return nil
}

func (e *AuthError) Error() string {
	return e.msg
}

type ForbiddenError struct {
	Required Role
}

func IsForbiddenError(err error) *ForbiddenError {
	var forbiddenError *ForbiddenError

	if errors.As(err, &forbiddenError) {
		return forbiddenError
	}

	return nil
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access denied: %s role required", e.Required)
}

type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

func IsNotFoundError(err error) *NotFoundError {
	var notFoundError *NotFoundError

	if errors.As(err, &notFoundError) {
		return notFoundError
	}

	return nil
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

type ConflictError struct {
	msg string
}

func NewConflictError(msg string) *ConflictError {
	return &ConflictError{msg: msg}
}

func IsConflictError(err error) *ConflictError {
	var conflictError *ConflictError

	if errors.As(err, &conflictError) {
		return conflictError
	}

	return nil
}

func (e *ConflictError) Error() string {
	return e.msg
}

type CapacityError struct {
	TourID    int64
	Requested int
	Available int
}

func IsCapacityError(err error) *CapacityError {
	var capacityError *CapacityError

	if errors.As(err, &capacityError) {
		return capacityError
	}

	return nil
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough available spots: requested %d, available %d", e.Requested, e.Available)
}
