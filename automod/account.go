package automod

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tixo-social/tixo/automod/countstore"
	"github.com/tixo-social/tixo/automod/trust"
)

// Moderator-facing view of an account: trust state plus best-effort statistics.
type AccountSummary struct {
	trust.State
	ViolationsDay  int      `json:"violations_day"`
	ViolationsHour int      `json:"violations_hour"`
	DistinctTerms  int      `json:"distinct_terms"`
	Flags          []string `json:"flags"`
}

func (e *Engine) AccountSummary(ctx context.Context, userID string) (*AccountSummary, error) {
	st, err := e.Ledger.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := AccountSummary{
		State: st,
		Flags: []string{},
	}
	if e.Counters != nil {
		if out.ViolationsDay, err = e.Counters.GetCount(ctx, counterViolations, userID, countstore.PeriodDay); err != nil {
			return nil, err
		}
		if out.ViolationsHour, err = e.Counters.GetCount(ctx, counterViolations, userID, countstore.PeriodHour); err != nil {
			return nil, err
		}
		if out.DistinctTerms, err = e.Counters.GetCountDistinct(ctx, counterAccountTerm, userID, countstore.PeriodTotal); err != nil {
			return nil, err
		}
	}
	if e.Flags != nil {
		if out.Flags, err = e.Flags.Get(ctx, userID); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// How many times a policy term has been matched against an author, over the given period.
func (e *Engine) TermHits(ctx context.Context, term, period string) (int, error) {
	if e.Counters == nil {
		return 0, nil
	}
	return e.Counters.GetCount(ctx, counterPolicyTerm, term, period)
}

type TermStat struct {
	Term  string `json:"term"`
	Total int    `json:"total"`
	Day   int    `json:"day"`
	Hour  int    `json:"hour"`
}

// Hit counts for every lexicon term, in lexicon order.
func (e *Engine) TermStats(ctx context.Context) ([]TermStat, error) {
	out := make([]TermStat, 0, len(e.Policy.Terms))
	for _, t := range e.Policy.Terms {
		st := TermStat{Term: strings.ToLower(strings.TrimSpace(t))}
		var err error
		if st.Total, err = e.TermHits(ctx, st.Term, countstore.PeriodTotal); err != nil {
			return nil, err
		}
		if st.Day, err = e.TermHits(ctx, st.Term, countstore.PeriodDay); err != nil {
			return nil, err
		}
		if st.Hour, err = e.TermHits(ctx, st.Term, countstore.PeriodHour); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

var ErrProtectedFlag = errors.New("flag can not be cleared")

// Moderator acknowledgement of an account flag, eg after reviewing the submissions behind a `policy-<term>` flag.
//
// Only flags are affected: warning counts and suspension never move backwards, and the suspended flag mirrors the ledger so it can not be cleared.
func (e *Engine) ClearFlag(ctx context.Context, userID, flag string) error {
	if flag == FlagSuspended {
		return fmt.Errorf("%w: %s", ErrProtectedFlag, flag)
	}
	if e.Flags == nil {
		return nil
	}
	if err := e.Flags.Remove(ctx, userID, []string{flag}); err != nil {
		return fmt.Errorf("clearing account flag: %w", err)
	}
	e.Logger.Info("account flag cleared", "user", userID, "flag", flag)
	return nil
}
