// Package services holds the messaging core: message delivery, read
// receipts, typing, conversations and friendship negotiation. Every
// operation is callable from the websocket dispatcher and the HTTP handlers
// alike; realtime fan-out happens here so both entry points converge.
package services

import (
	"errors"
	"fmt"

	"messenger-service/internal/repositories"
)

// Kind classifies a failure the caller can act on.
type Kind string

const (
	KindValidation Kind = "validation"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
)

// Error is a classified, human readable failure. Anything else returned by a
// service is a store failure.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func forbidden(msg string) error { return &Error{Kind: KindForbidden, Msg: msg} }

func notFound(msg string) error { return &Error{Kind: KindNotFound, Msg: msg} }

func conflict(msg string) error { return &Error{Kind: KindConflict, Msg: msg} }

// KindOf returns the kind of a classified error.
func KindOf(err error) (Kind, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind, true
	}
	return "", false
}

// classify turns repository sentinels into classified errors and wraps the rest.
func classify(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrUserNotFound):
		return notFound("user not found")
	case errors.Is(err, repositories.ErrConversationNotFound):
		return notFound("conversation not found")
	case errors.Is(err, repositories.ErrMessageNotFound):
		return notFound("message not found")
	case errors.Is(err, repositories.ErrFriendRequestNotFound):
		return notFound("friend request not found")
	case errors.Is(err, repositories.ErrFriendRequestNotActive):
		return conflict("friend request is not pending")
	case errors.Is(err, repositories.ErrFriendRequestPending), errors.Is(err, repositories.ErrFriendRequestExists):
		return conflict("a friend request is already pending")
	case errors.Is(err, repositories.ErrSoleAdmin):
		return validationf("cannot remove the only admin of a group")
	case errors.Is(err, repositories.ErrNotParticipant):
		return notFound("user is not a participant")
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
