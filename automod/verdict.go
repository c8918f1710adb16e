package automod

import (
	"errors"
	"fmt"
)

type ReasonCode string

const (
	ReasonPolicyViolation  ReasonCode = "POLICY_VIOLATION"
	ReasonAccountSuspended ReasonCode = "ACCOUNT_SUSPENDED"
)

// Outcome of a single moderation evaluation. Never persisted.
type Verdict struct {
	Approved bool       `json:"approved"`
	Code     ReasonCode `json:"reason_code,omitempty"`
	// the matched lexicon term, for policy violations
	Term   string `json:"term,omitempty"`
	Reason string `json:"reason,omitempty"`
	// rejection repeated a recent identical submission, and no violation was recorded
	Repeat bool `json:"repeat,omitempty"`
}

// Machine-readable reason, eg "POLICY_VIOLATION:kill" or "ACCOUNT_SUSPENDED". Empty for approvals.
func (v Verdict) ReasonCodeString() string {
	if v.Approved {
		return ""
	}
	if v.Code == ReasonPolicyViolation && v.Term != "" {
		return fmt.Sprintf("%s:%s", v.Code, v.Term)
	}
	return string(v.Code)
}

// Returns nil for approvals, otherwise a [*RejectedError] wrapping the verdict.
func (v Verdict) Err() error {
	if v.Approved {
		return nil
	}
	return &RejectedError{Verdict: v}
}

var ErrModerationRejected = errors.New("moderation rejected")

// Expected, recoverable failure: the submission was blocked by moderation. Callers surface the reason to the user.
type RejectedError struct {
	Verdict Verdict
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("moderation rejected (%s): %s", e.Verdict.ReasonCodeString(), e.Verdict.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrModerationRejected
}

// Distinguishes "blocked before evaluation" from "blocked by this evaluation".
func (e *RejectedError) IsSuspended() bool {
	return e.Verdict.Code == ReasonAccountSuspended
}

func policyReason(term string, warned bool) string {
	msg := fmt.Sprintf("Content contains prohibited topics (Code: %s).", term)
	if warned {
		msg += " Warning issued."
	}
	return msg
}

const suspendedReason = "Account suspended due to repeated violations."

// Rejection for an account which is already suspended.
func SuspendedVerdict() Verdict {
	return Verdict{
		Approved: false,
		Code:     ReasonAccountSuspended,
		Reason:   suspendedReason,
	}
}
