package automod

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tixo-social/tixo/automod/countstore"
	"github.com/tixo-social/tixo/automod/trust"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mtx   sync.Mutex
	calls []trust.State
	terms []string
	err   error
}

func (n *captureNotifier) NotifySuspension(ctx context.Context, st trust.State, term string) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.calls = append(n.calls, st)
	n.terms = append(n.terms, term)
	return n.err
}

func TestEvaluateApproves(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	v, err := eng.Evaluate(ctx, "great day", "u2")
	assert.NoError(err)
	assert.True(v.Approved)
	assert.Equal("", v.ReasonCodeString())
	assert.NoError(v.Err())

	st, err := eng.Ledger.GetState(ctx, "u2")
	assert.NoError(err)
	assert.Equal(0, st.WarningCount)
}

func TestEvaluateViolationIncrementsOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	for _, text := range []string{"I HATE this", "so stupid", "nsfw stuff"} {
		before, err := eng.Ledger.GetState(ctx, "u1")
		require.NoError(t, err)

		v, err := eng.Evaluate(ctx, text, "u1")
		assert.NoError(err)
		assert.False(v.Approved)
		assert.Equal(ReasonPolicyViolation, v.Code)

		after, err := eng.Ledger.GetState(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(before.WarningCount+1, after.WarningCount)
	}
}

func TestEvaluateLexiconOrder(t *testing.T) {
	assert := assert.New(t)
	eng := EngineTestFixture()

	v, err := eng.Evaluate(context.Background(), "kill kill kill, also hate", "")
	assert.NoError(err)
	assert.Equal("hate", v.Term)
	assert.Equal("POLICY_VIOLATION:hate", v.ReasonCodeString())
}

func TestEvaluateSuspensionScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	notes := &captureNotifier{}
	eng.Notifier = notes

	// bring the account to two warnings
	for i := 0; i < 2; i++ {
		_, err := eng.Ledger.RecordViolation(ctx, "u1")
		require.NoError(t, err)
	}

	v, err := eng.Evaluate(ctx, "I hate mondays", "u1")
	assert.NoError(err)
	assert.False(v.Approved)
	assert.Equal("POLICY_VIOLATION:hate", v.ReasonCodeString())
	assert.Contains(v.Reason, "Warning issued.")

	st, err := eng.Ledger.GetState(ctx, "u1")
	assert.NoError(err)
	assert.Equal(3, st.WarningCount)
	assert.True(st.Suspended)

	// clean text is still rejected, with no further mutation
	v, err = eng.Evaluate(ctx, "hello", "u1")
	assert.NoError(err)
	assert.False(v.Approved)
	assert.Equal(ReasonAccountSuspended, v.Code)
	assert.Equal("ACCOUNT_SUSPENDED", v.ReasonCodeString())

	v, err = eng.Evaluate(ctx, "more hate", "u1")
	assert.NoError(err)
	assert.Equal(ReasonAccountSuspended, v.Code)

	st, err = eng.Ledger.GetState(ctx, "u1")
	assert.NoError(err)
	assert.Equal(3, st.WarningCount)

	eng.WaitNotifications()
	assert.Len(notes.calls, 1)
	assert.Equal("u1", notes.calls[0].UserID)
	assert.Equal([]string{"hate"}, notes.terms)
}

func TestEvaluateThreeStrikes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	for i := 0; i < 3; i++ {
		v, err := eng.Evaluate(ctx, "violence", "u3")
		assert.NoError(err)
		assert.Equal(ReasonPolicyViolation, v.Code)
	}
	for _, text := range []string{"hello", "", "great day", "violence"} {
		v, err := eng.Evaluate(ctx, text, "u3")
		assert.NoError(err)
		assert.Equal(ReasonAccountSuspended, v.Code, text)
	}
}

func TestEvaluateAnonymous(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	v, err := eng.Evaluate(ctx, "attack at dawn", "")
	assert.NoError(err)
	assert.False(v.Approved)
	assert.Equal("attack", v.Term)
	assert.NotContains(v.Reason, "Warning issued.")

	hits, err := eng.TermHits(ctx, "attack", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, hits)
}

func TestEvaluateNoDedupeByDefault(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	for i := 0; i < 2; i++ {
		v, err := eng.Evaluate(ctx, "die", "u4")
		assert.NoError(err)
		assert.False(v.Repeat)
	}
	st, err := eng.Ledger.GetState(ctx, "u4")
	assert.NoError(err)
	assert.Equal(2, st.WarningCount)
}

func TestEvaluateDedupeRepeats(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.DedupeRepeats = true

	v, err := eng.Evaluate(ctx, "you are STUPID!", "u5")
	assert.NoError(err)
	assert.False(v.Repeat)

	// same text modulo case and punctuation
	v, err = eng.Evaluate(ctx, "You are stupid", "u5")
	assert.NoError(err)
	assert.False(v.Approved)
	assert.True(v.Repeat)

	st, err := eng.Ledger.GetState(ctx, "u5")
	assert.NoError(err)
	assert.Equal(1, st.WarningCount)

	// different account is tracked separately
	_, err = eng.Evaluate(ctx, "you are stupid", "u6")
	assert.NoError(err)
	st, err = eng.Ledger.GetState(ctx, "u6")
	assert.NoError(err)
	assert.Equal(1, st.WarningCount)
}

func TestEvaluateNotifierFailureIgnored(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Ledger.Threshold = 1
	eng.Notifier = &captureNotifier{err: errors.New("slack down")}

	v, err := eng.Evaluate(ctx, "kill", "u7")
	assert.NoError(err)
	assert.Equal(ReasonPolicyViolation, v.Code)
	blocked, err := eng.Ledger.IsBlocked(ctx, "u7")
	assert.NoError(err)
	assert.True(blocked)
	eng.WaitNotifications()
}

type blockingNotifier struct {
	release  chan struct{}
	deadline chan bool
}

func (n *blockingNotifier) NotifySuspension(ctx context.Context, st trust.State, term string) error {
	_, ok := ctx.Deadline()
	n.deadline <- ok
	<-n.release
	return ctx.Err()
}

func TestEvaluateNotifierDoesNotBlock(t *testing.T) {
	assert := assert.New(t)
	eng := EngineTestFixture()
	eng.Ledger.Threshold = 1
	eng.NotifyTimeout = time.Minute
	notes := &blockingNotifier{release: make(chan struct{}), deadline: make(chan bool, 1)}
	eng.Notifier = notes

	// the request context ends as soon as Evaluate returns
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Verdict, 1)
	go func() {
		v, err := eng.Evaluate(ctx, "kill", "u8")
		assert.NoError(err)
		done <- v
	}()

	select {
	case v := <-done:
		assert.Equal(ReasonPolicyViolation, v.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("Evaluate waited on the notifier")
	}
	cancel()

	assert.True(<-notes.deadline, "notification context is bounded")
	close(notes.release)
	eng.WaitNotifications()
}

func TestAccountSummary(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	for _, text := range []string{"hate", "kill", "kill again"} {
		_, err := eng.Evaluate(ctx, text, "u8")
		require.NoError(t, err)
	}

	sum, err := eng.AccountSummary(ctx, "u8")
	assert.NoError(err)
	assert.Equal(3, sum.WarningCount)
	assert.True(sum.Suspended)
	assert.Equal(3, sum.ViolationsDay)
	assert.Equal(3, sum.ViolationsHour)
	assert.Equal(2, sum.DistinctTerms)
	assert.Equal([]string{"policy-hate", "policy-kill", FlagSuspended}, sum.Flags)

	hits, err := eng.TermHits(ctx, "kill", countstore.PeriodDay)
	assert.NoError(err)
	assert.Equal(2, hits)

	sum, err = eng.AccountSummary(ctx, "nobody")
	assert.NoError(err)
	assert.Equal(0, sum.WarningCount)
	assert.Empty(sum.Flags)
}

func TestTermStats(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	for _, text := range []string{"kill", "skill issue", "nsfw pics"} {
		_, err := eng.Evaluate(ctx, text, "u9")
		require.NoError(t, err)
	}
	// anonymous rejections are not counted against terms
	_, err := eng.Evaluate(ctx, "hate", "")
	require.NoError(t, err)

	stats, err := eng.TermStats(ctx)
	assert.NoError(err)
	require.Len(t, stats, len(eng.Policy.Terms))
	assert.Equal(TermStat{Term: "hate"}, stats[0])
	assert.Equal(TermStat{Term: "kill", Total: 2, Day: 2, Hour: 2}, stats[1])
	assert.Equal(TermStat{Term: "nsfw", Total: 1, Day: 1, Hour: 1}, stats[5])
}

func TestClearFlag(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	for _, text := range []string{"hate", "kill", "die"} {
		_, err := eng.Evaluate(ctx, text, "u10")
		require.NoError(t, err)
	}

	assert.NoError(eng.ClearFlag(ctx, "u10", TermFlag("kill")))
	assert.ErrorIs(eng.ClearFlag(ctx, "u10", FlagSuspended), ErrProtectedFlag)

	sum, err := eng.AccountSummary(ctx, "u10")
	assert.NoError(err)
	assert.Equal([]string{"policy-die", "policy-hate", FlagSuspended}, sum.Flags)
	// trust state is untouched
	assert.Equal(3, sum.WarningCount)
	assert.True(sum.Suspended)
}

func TestEvaluateConcurrentViolations(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Ledger.Threshold = 100

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Evaluate(ctx, "xxx", "u9")
			assert.NoError(err)
		}()
	}
	wg.Wait()

	st, err := eng.Ledger.GetState(ctx, "u9")
	assert.NoError(err)
	assert.Equal(20, st.WarningCount)
}

func TestRejectedError(t *testing.T) {
	assert := assert.New(t)

	err := Verdict{Code: ReasonPolicyViolation, Term: "kill", Reason: "nope"}.Err()
	assert.True(errors.Is(err, ErrModerationRejected))
	var rej *RejectedError
	assert.True(errors.As(err, &rej))
	assert.False(rej.IsSuspended())
	assert.Contains(err.Error(), "POLICY_VIOLATION:kill")

	err = SuspendedVerdict().Err()
	assert.True(errors.As(err, &rej))
	assert.True(rej.IsSuspended())
}
