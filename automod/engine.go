package automod

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tixo-social/tixo/automod/cachestore"
	"github.com/tixo-social/tixo/automod/countstore"
	"github.com/tixo-social/tixo/automod/flagstore"
	"github.com/tixo-social/tixo/automod/keyword"
	"github.com/tixo-social/tixo/automod/policy"
	"github.com/tixo-social/tixo/automod/trust"

	sha256 "github.com/minio/sha256-simd"
	"go.opentelemetry.io/otel/attribute"
)

const (
	counterViolations  = "violations"
	counterPolicyTerm  = "policy-term"
	counterAccountTerm = "account-terms"

	cacheRejected = "rejected"

	FlagSuspended = "suspended"

	DefaultNotifyTimeout = 10 * time.Second
)

// Stateless policy evaluator; all mutable state lives behind the trust ledger and the optional stores.
//
// Logger, Ledger, and Policy must not be nil. Counters, Flags, and Notifier are optional. Cache is required only when DedupeRepeats is set.
type Engine struct {
	Logger   *slog.Logger
	Ledger   *trust.Ledger
	Policy   *policy.Lexicon
	Counters countstore.CountStore
	Flags    flagstore.FlagStore
	Cache    cachestore.CacheStore
	Notifier Notifier
	// When true, an identical rejected submission from the same account within the cache TTL is rejected again without recording another violation. Off by default: every violating submission counts.
	DedupeRepeats bool
	// Upper bound on each suspension notification. Defaults to DefaultNotifyTimeout.
	NotifyTimeout time.Duration

	notifyWG sync.WaitGroup
}

// Evaluates submitted text. `authorID` may be empty, in which case no trust state is read or written.
//
// Returns an error only for infrastructure failures (eg, trust store unavailable). Rejection is reported in the Verdict, not as an error.
func (e *Engine) Evaluate(ctx context.Context, text, authorID string) (Verdict, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("author", authorID))

	v, err := e.evaluate(ctx, text, authorID)
	if err != nil {
		evaluateErrors.Inc()
		span.RecordError(err)
		return Verdict{}, err
	}
	evaluateDuration.Observe(time.Since(start).Seconds())
	evaluateCount.WithLabelValues(verdictLabel(v)).Inc()
	span.SetAttributes(attribute.Bool("approved", v.Approved), attribute.String("reason", v.ReasonCodeString()))
	return v, nil
}

func (e *Engine) evaluate(ctx context.Context, text, authorID string) (Verdict, error) {
	logger := e.Logger.With("user", authorID, "policy", e.Policy.Version)

	if authorID != "" {
		blocked, err := e.Ledger.IsBlocked(ctx, authorID)
		if err != nil {
			return Verdict{}, err
		}
		if blocked {
			logger.Debug("rejecting submission from suspended account")
			return SuspendedVerdict(), nil
		}
	}

	term, ok := e.Policy.Match(text)
	if !ok {
		return Verdict{Approved: true}, nil
	}
	logger = logger.With("term", term)

	v := Verdict{
		Approved: false,
		Code:     ReasonPolicyViolation,
		Term:     term,
		Reason:   policyReason(term, authorID != ""),
	}
	if authorID == "" {
		logger.Info("anonymous submission rejected")
		return v, nil
	}

	var repeatKey string
	if e.DedupeRepeats && e.Cache != nil {
		repeatKey = submissionKey(authorID, text)
		prev, err := e.Cache.Get(ctx, cacheRejected, repeatKey)
		if err != nil {
			return Verdict{}, fmt.Errorf("checking repeat submissions: %w", err)
		}
		if prev != "" {
			logger.Info("repeat of recently rejected submission, not recording violation")
			v.Repeat = true
			v.Reason = policyReason(term, false)
			return v, nil
		}
	}

	violation, err := e.Ledger.RecordViolation(ctx, authorID)
	if err != nil {
		return Verdict{}, err
	}
	violationCount.Inc()

	if repeatKey != "" {
		if err := e.Cache.Set(ctx, cacheRejected, repeatKey, term); err != nil {
			logger.Error("failed to remember rejected submission", "err", err)
		}
	}
	e.recordStats(ctx, logger, authorID, term, violation)

	if violation.NewlySuspended {
		suspensionCount.Inc()
		if e.Notifier != nil {
			e.notifySuspension(ctx, logger, violation.State, term)
		}
	}
	return v, nil
}

// Notifications run in the background with their own deadline, so Evaluate never waits on the webhook.
func (e *Engine) notifySuspension(ctx context.Context, logger *slog.Logger, st trust.State, term string) {
	timeout := e.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	e.notifyWG.Add(1)
	go func() {
		defer e.notifyWG.Done()
		defer cancel()
		if err := e.Notifier.NotifySuspension(ctx, st, term); err != nil {
			notifyErrors.Inc()
			logger.Error("failed to send suspension notification", "err", err)
		}
	}()
}

// Blocks until all in-flight suspension notifications have returned.
func (e *Engine) WaitNotifications() {
	e.notifyWG.Wait()
}

// statistics and flags are best-effort: the violation itself is already durable in the ledger
func (e *Engine) recordStats(ctx context.Context, logger *slog.Logger, authorID, term string, violation trust.Violation) {
	if e.Counters != nil {
		if err := e.Counters.Increment(ctx, counterViolations, authorID); err != nil {
			logger.Error("failed to increment violation counter", "err", err)
		}
		if err := e.Counters.Increment(ctx, counterPolicyTerm, term); err != nil {
			logger.Error("failed to increment policy term counter", "err", err)
		}
		if err := e.Counters.IncrementDistinct(ctx, counterAccountTerm, authorID, term); err != nil {
			logger.Error("failed to increment distinct term counter", "err", err)
		}
	}
	if e.Flags != nil {
		flags := []string{TermFlag(term)}
		if violation.Suspended {
			flags = append(flags, FlagSuspended)
		}
		if err := e.Flags.Add(ctx, authorID, flags); err != nil {
			logger.Error("failed to add account flags", "err", err)
		}
	}
}

// Account flag recorded when a submission matches `term`.
func TermFlag(term string) string {
	return "policy-" + keyword.Slugify(term)
}

// hash of account and normalized text; raw submission text is never used as a cache key
func submissionKey(authorID, text string) string {
	h := sha256.New()
	h.Write([]byte(authorID))
	h.Write([]byte{0})
	h.Write([]byte(keyword.Normalize(text)))
	return hex.EncodeToString(h.Sum(nil))
}

func verdictLabel(v Verdict) string {
	switch {
	case v.Approved:
		return "approved"
	case v.Repeat:
		return "repeat"
	case v.Code == ReasonAccountSuspended:
		return "account_suspended"
	default:
		return "policy_violation"
	}
}
