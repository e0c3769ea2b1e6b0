package attendance

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidCoordinates Kind = "InvalidCoordinates"
	KindMalformedToken     Kind = "MalformedToken"
	KindExpiredToken       Kind = "ExpiredToken"
	KindAlreadyMarked      Kind = "AlreadyMarked"
	KindOutOfRange         Kind = "OutOfRange"
)

// RejectError is a business-rule rejection. It is terminal for the request.
type RejectError struct {
	Kind           Kind
	Detail         string
	DistanceMeters float64
}

func (e *RejectError) Error() string {
	if e.Kind == KindOutOfRange {
		return fmt.Sprintf("%s: %s (%.2fm)", e.Kind, e.Detail, e.DistanceMeters)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, ErrAlreadyMarked).
func (e *RejectError) Is(target error) bool {
	t, ok := target.(*RejectError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidCoordinates = &RejectError{Kind: KindInvalidCoordinates, Detail: "invalid_coordinates"}
	ErrMalformedToken     = &RejectError{Kind: KindMalformedToken, Detail: "malformed_token"}
	ErrExpiredToken       = &RejectError{Kind: KindExpiredToken, Detail: "token_expired"}
	ErrAlreadyMarked      = &RejectError{Kind: KindAlreadyMarked, Detail: "already_marked_today"}
	ErrOutOfRange         = &RejectError{Kind: KindOutOfRange, Detail: "too_far_from_location"}
)

// ErrConflict is returned by a Store when the (user, date) uniqueness constraint rejects an insert.
var ErrConflict = errors.New("attendance record conflict")

// ErrStorageUnavailable wraps any other storage failure. Callers must not expose the cause.
var ErrStorageUnavailable = errors.New("attendance storage unavailable")

func reject(kind Kind, detail string) *RejectError {
	return &RejectError{Kind: kind, Detail: detail}
}

// AsReject returns the rejection carried by err, if any.
func AsReject(err error) (*RejectError, bool) {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
