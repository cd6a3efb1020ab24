package replication

import (
	"context"
	"time"

	"github.com/opendogma/dogma/common"
	"github.com/opendogma/dogma/common/mlog"
)

// ApplyFunc runs one committed log entry against local storage. It
// receives the full Entry (not just its Command) so callers that need to
// correlate an applied entry back to a waiting caller (C6) can key on Seq.
type ApplyFunc func(ctx context.Context, entry Entry) error

// DivergenceFunc is invoked once, from the apply loop's own goroutine,
// when a non-retryable storage error breaks the at-most-once-effect
// invariant (spec.md §4.5: "the replica logs the divergence and stops
// accepting writes ... until an operator intervenes").
type DivergenceFunc func(seq int64, err error)

const (
	applyRetryInitial = 50 * time.Millisecond
	applyRetryMax     = 30 * time.Second
)

// isRetryable reports whether err is a transient storage blip (spec.md
// §4.5 "A retryable failure (I/O blip) is retried with exponential
// backoff, capped") as opposed to a genuine divergence.
func isRetryable(err error) bool {
	return common.KindOf(err) == common.KindStorageIO
}

// RunApplyLoop drains log starting after startAfter and calls apply for
// each entry strictly in seq order (spec.md §4.5 Apply protocol, §5
// "dedicated apply loop per replica, single-threaded, strictly sequential
// by seq"). It returns at once; the loop runs on its own goroutine until
// ctx is cancelled, the subscription closes, or a divergence is hit, and
// the returned function reports the last seq it applied.
func RunApplyLoop(ctx context.Context, logger mlog.Logger, log Log, startAfter int64, apply ApplyFunc, onDivergence DivergenceFunc) func() int64 {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	var applied int64 = startAfter

	done := make(chan struct{})

	go func() {
		defer close(done)

		entries, cancel := log.Subscribe(startAfter)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}

				if !applyWithRetry(ctx, logger, entry, apply, onDivergence) {
					return
				}

				applied = entry.Seq
			}
		}
	}()

	return func() int64 {
		select {
		case <-done:
		default:
		}

		return applied
	}
}

// applyWithRetry returns false when the loop must stop (ctx cancelled or
// divergence reported).
func applyWithRetry(ctx context.Context, logger mlog.Logger, entry Entry, apply ApplyFunc, onDivergence DivergenceFunc) bool {
	backoff := applyRetryInitial

	for {
		err := apply(ctx, entry)
		if err == nil {
			return true
		}

		if !isRetryable(err) {
			logger.Errorf("replication: apply diverged at seq=%d: %v", entry.Seq, err)

			if onDivergence != nil {
				onDivergence(entry.Seq, err)
			}

			return false
		}

		logger.Warnf("replication: retryable apply failure at seq=%d: %v (retrying in %s)", entry.Seq, err, backoff)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > applyRetryMax {
			backoff = applyRetryMax
		}
	}
}
