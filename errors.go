package main

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindRateLimited        ErrorKind = "rate_limited"
	KindAntiCheat          ErrorKind = "anti_cheat"
	KindInsufficientEnergy ErrorKind = "insufficient_energy"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindNotFound           ErrorKind = "not_found"
	KindStoreUnavailable   ErrorKind = "store_unavailable"
)

const (
	ReasonInvalidCount     = "invalid_count"
	ReasonCountMismatch    = "count_mismatch"
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonTooFast          = "too_fast"
)

// EconomyError is returned by every engine operation that can be rejected.
// Required and Available are only set for the insufficient_* kinds.
type EconomyError struct {
	Kind      ErrorKind
	Reason    string
	Message   string
	Required  int64
	Available int64
	Err       error
}

func (e *EconomyError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *EconomyError) Unwrap() error {
	return e.Err
}

// Is matches on kind, and on reason when the target carries one.
func (e *EconomyError) Is(target error) bool {
	t, ok := target.(*EconomyError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrInvalidInput       = &EconomyError{Kind: KindInvalidInput}
	ErrRateLimited        = &EconomyError{Kind: KindRateLimited}
	ErrAntiCheat          = &EconomyError{Kind: KindAntiCheat}
	ErrInsufficientEnergy = &EconomyError{Kind: KindInsufficientEnergy}
	ErrInsufficientFunds  = &EconomyError{Kind: KindInsufficientFunds}
	ErrPlayerNotFound     = &EconomyError{Kind: KindNotFound}
	ErrStoreUnavailable   = &EconomyError{Kind: KindStoreUnavailable}

	ErrInvalidCount     = &EconomyError{Kind: KindInvalidInput, Reason: ReasonInvalidCount}
	ErrCountMismatch    = &EconomyError{Kind: KindInvalidInput, Reason: ReasonCountMismatch}
	ErrInvalidTimestamp = &EconomyError{Kind: KindAntiCheat, Reason: ReasonInvalidTimestamp}
	ErrTooFast          = &EconomyError{Kind: KindAntiCheat, Reason: ReasonTooFast}
)

func invalidInput(reason string, format string, args ...any) *EconomyError {
	return &EconomyError{Kind: KindInvalidInput, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func antiCheat(reason string, format string, args ...any) *EconomyError {
	return &EconomyError{Kind: KindAntiCheat, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var econ *EconomyError
	if errors.As(err, &econ) {
		return err
	}
	return &EconomyError{Kind: KindStoreUnavailable, Message: op, Err: err}
}

func statusForError(err error) int {
	var econ *EconomyError
	if !errors.As(err, &econ) {
		return http.StatusInternalServerError
	}
	switch econ.Kind {
	case KindInvalidInput, KindInsufficientEnergy, KindInsufficientFunds:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindAntiCheat:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
