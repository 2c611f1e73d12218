package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrPastTime            = errors.New("requested start is not in the future")
	ErrInvalidWindow       = errors.New("requested window does not fit the slot grid")
	ErrSlotUnavailable     = errors.New("slot is not available for the requested window")
	ErrConflict            = errors.New("slot overlaps an existing available slot")
	ErrSlotInUse           = errors.New("slot is referenced by an active booking")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrBelowMinimum        = errors.New("payout amount is below the minimum")
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrBonusOnlyWithdrawal = errors.New("bonus-only balances cannot be withdrawn before the first completed booking")
	ErrDuplicatePayment    = errors.New("booking already confirmed with a different payment reference")
	ErrRefundExceedsTotal  = errors.New("refund amount exceeds booking total")
	ErrReasonRequired      = errors.New("a reason is required")
	ErrIdentityNotVerified = errors.New("identity verification required")
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")
	ErrDuplicateSubmission = errors.New("an identical request is already being processed")
	ErrConcurrentUpdate    = errors.New("record changed concurrently, please retry")
	ErrPaymentIntent       = errors.New("payment gateway could not create an intent")
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmailTaken          = errors.New("email already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
)

// TransitionError reports a rejected state change. AlreadyApplied is set when
// the record is already in the requested state, so a retried command can be
// told apart from a wrong precondition.
type TransitionError struct {
	Entity         string
	From           string
	To             string
	AlreadyApplied bool
	Detail         string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
	if e.AlreadyApplied {
		msg = fmt.Sprintf("%s is already %s", e.Entity, e.To)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func transitionError[S ~string](entity string, from, to S) *TransitionError {
	return &TransitionError{
		Entity:         entity,
		From:           string(from),
		To:             string(to),
		AlreadyApplied: from == to,
	}
}
