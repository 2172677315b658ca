package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrDuplicateReport indicates the owner already filed a report with the same kind, category and location.
	ErrDuplicateReport = errors.New("a report with the same kind, category and location already exists")
	// ErrInvalidReportKind indicates a report kind outside lost/found.
	ErrInvalidReportKind = errors.New("report kind must be lost or found")
	// ErrReportNotFound indicates the report does not exist.
	ErrReportNotFound = errors.New("report not found")
	// ErrNotReportOwner indicates the caller does not own the report.
	ErrNotReportOwner = errors.New("report belongs to another user")
	// ErrReportNotMatched indicates a chat was requested for a report without a match.
	ErrReportNotMatched = errors.New("report has no match yet")
	// ErrSelfChat indicates both chat participants are the same identity.
	ErrSelfChat = errors.New("cannot open a chat with yourself")
	// ErrInvalidThreadKey indicates a participant or the report id is missing.
	ErrInvalidThreadKey = errors.New("chat thread requires two participants and a report")
	// ErrThreadNotFound indicates the chat thread does not exist.
	ErrThreadNotFound = errors.New("chat thread not found")
	// ErrNotThreadParticipant indicates the caller is not part of the thread.
	ErrNotThreadParticipant = errors.New("user is not a participant of the chat thread")
	// ErrPersistence wraps store write failures; the operation's effect was not applied.
	ErrPersistence = errors.New("persistence failure")
)

// IsRetryable reports whether err came from the store rather than from a definitive
// rejection such as validation or authorization, so repeating the call may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
