package common

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy of spec.md §7. The executor (C4), replicator
// (C6), and storage layer (C2) all produce errors tagged with one of these
// kinds so a caller can decide whether to retry, rebase, or give up.
type Kind string

const (
	KindInvalidCommand        Kind = "INVALID_COMMAND"
	KindDeprecated            Kind = "DEPRECATED"
	KindReadOnly              Kind = "READ_ONLY"
	KindNotLeader             Kind = "NOT_LEADER"
	KindConflict              Kind = "CONFLICT"
	KindNotFound              Kind = "NOT_FOUND"
	KindExists                Kind = "EXISTS"
	KindStillReferenced       Kind = "STILL_REFERENCED"
	KindAlreadyRemoved        Kind = "ALREADY_REMOVED"
	KindInvalidChange         Kind = "INVALID_CHANGE"
	KindReplicationTimeout    Kind = "REPLICATION_TIMEOUT"
	KindReplicationDivergence Kind = "REPLICATION_DIVERGENCE"
	KindStorageIO             Kind = "STORAGE_IO"
)

// DogmaError is the single error type every public C1-C8 operation returns.
// It is never a bare error constructed inline; use the New*Error
// constructors below so Kind is always populated.
type DogmaError struct {
	Kind   Kind
	Entity string
	Msg    string
	Err    error
}

func (e *DogmaError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}

	return string(e.Kind)
}

func (e *DogmaError) Unwrap() error { return e.Err }

// Is lets callers write errors.Is(err, common.ErrConflict) style sentinels
// by comparing Kind rather than identity.
func (e *DogmaError) Is(target error) bool {
	var other *DogmaError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}

	return false
}

// Sentinel values usable with errors.Is; only Kind is compared.
var (
	ErrInvalidCommand        = &DogmaError{Kind: KindInvalidCommand}
	ErrDeprecated            = &DogmaError{Kind: KindDeprecated}
	ErrReadOnly              = &DogmaError{Kind: KindReadOnly}
	ErrNotLeader             = &DogmaError{Kind: KindNotLeader}
	ErrConflict              = &DogmaError{Kind: KindConflict}
	ErrNotFound              = &DogmaError{Kind: KindNotFound}
	ErrExists                = &DogmaError{Kind: KindExists}
	ErrStillReferenced       = &DogmaError{Kind: KindStillReferenced}
	ErrAlreadyRemoved        = &DogmaError{Kind: KindAlreadyRemoved}
	ErrInvalidChange         = &DogmaError{Kind: KindInvalidChange}
	ErrReplicationTimeout    = &DogmaError{Kind: KindReplicationTimeout}
	ErrReplicationDivergence = &DogmaError{Kind: KindReplicationDivergence}
	ErrStorageIO             = &DogmaError{Kind: KindStorageIO}
)

func newErr(kind Kind, entity, msg string, err error) *DogmaError {
	return &DogmaError{Kind: kind, Entity: entity, Msg: msg, Err: err}
}

func NewInvalidCommandError(msg string) error   { return newErr(KindInvalidCommand, "", msg, nil) }
func NewDeprecatedError(cmd string) error       { return newErr(KindDeprecated, cmd, cmd+" is deprecated", nil) }
func NewReadOnlyError() error                   { return newErr(KindReadOnly, "", "replica is not writable", nil) }
func NewNotLeaderError(leader string) error     { return newErr(KindNotLeader, "", "current leader is "+leader, nil) }
func NewConflictError(entity string) error      { return newErr(KindConflict, entity, "base revision is not HEAD", nil) }
func NewNotFoundError(entity string) error      { return newErr(KindNotFound, entity, entity+" not found", nil) }
func NewExistsError(entity string) error        { return newErr(KindExists, entity, entity+" already exists", nil) }
func NewStillReferencedError(entity string) error {
	return newErr(KindStillReferenced, entity, entity+" is still referenced", nil)
}
func NewAlreadyRemovedError(entity string) error {
	return newErr(KindAlreadyRemoved, entity, entity+" is already removed", nil)
}
func NewInvalidChangeError(msg string) error { return newErr(KindInvalidChange, "Change", msg, nil) }
func NewReplicationTimeoutError(err error) error {
	return newErr(KindReplicationTimeout, "", "replication commit timed out", err)
}
func NewReplicationDivergenceError(seq int64, err error) error {
	return newErr(KindReplicationDivergence, "", fmt.Sprintf("apply diverged at seq=%d", seq), err)
}
func NewStorageIOError(err error) error { return newErr(KindStorageIO, "", "storage I/O failure", err) }

// ValidationError is a narrower, field-level error raised by path
// validation (ValidatePath, called through C1's command.ValidateChange).
// The executor reports it to its callers as a KindInvalidCommand DogmaError.
type ValidationError struct {
	Entity  string
	Message string
}

func NewValidationError(entity, message string) error {
	return &ValidationError{Entity: entity, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, e.Message)
}

// KindOf extracts the Kind carried by err, walking Unwrap chains, or ""
// if err does not carry a DogmaError anywhere in its chain.
func KindOf(err error) Kind {
	var de *DogmaError
	if errors.As(err, &de) {
		return de.Kind
	}

	return ""
}
