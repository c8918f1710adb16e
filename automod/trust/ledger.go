package trust

import (
	"context"
	"fmt"
	"log/slog"
)

// number of violations at which an account is suspended
const DefaultSuspendThreshold = 3

type State struct {
	UserID       string `json:"user_id"`
	WarningCount int    `json:"warning_count"`
	Suspended    bool   `json:"suspended"`
}

// Result of recording a single violation.
type Violation struct {
	State
	// true only for the violation which moved the account in to suspension
	NewlySuspended bool
}

type Store interface {
	Get(ctx context.Context, userID string) (State, error)
	// Adds one violation, and marks the account suspended if the new count reaches threshold. Must be atomic per userID.
	Increment(ctx context.Context, userID string, threshold int) (Violation, error)
}

type Ledger struct {
	Store     Store
	Threshold int
	Logger    *slog.Logger
}

func NewLedger(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		Store:     store,
		Threshold: DefaultSuspendThreshold,
		Logger:    logger,
	}
}

// Returns current trust state. Accounts never seen before have the zero state.
func (l *Ledger) GetState(ctx context.Context, userID string) (State, error) {
	st, err := l.Store.Get(ctx, userID)
	if err != nil {
		return State{}, fmt.Errorf("reading trust state: %w", err)
	}
	st.UserID = userID
	return st, nil
}

func (l *Ledger) IsBlocked(ctx context.Context, userID string) (bool, error) {
	st, err := l.GetState(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.Suspended, nil
}

// Increments the violation count for an account, suspending it once the threshold is reached. Suspension is terminal: later violations keep counting but never change the flag.
func (l *Ledger) RecordViolation(ctx context.Context, userID string) (Violation, error) {
	if userID == "" {
		return Violation{}, fmt.Errorf("recording violation: empty user id")
	}
	threshold := l.Threshold
	if threshold <= 0 {
		threshold = DefaultSuspendThreshold
	}
	v, err := l.Store.Increment(ctx, userID, threshold)
	if err != nil {
		return Violation{}, fmt.Errorf("recording violation: %w", err)
	}
	v.UserID = userID
	if v.NewlySuspended {
		l.Logger.Warn("account suspended", "user", userID, "warnings", v.WarningCount)
	} else {
		l.Logger.Info("violation recorded", "user", userID, "warnings", v.WarningCount, "suspended", v.Suspended)
	}
	return v, nil
}
