// Package sync implements the reconciliation core: push and pull cycles
// between the local ledger and the per-user cloud store, the per-record
// state machine, and the detached mark-for-upload queue.
package sync

import "fmt"

// ResultKind classifies the outcome of one sync cycle.
type ResultKind string

const (
	// KindSuccess means every processed record reconciled.
	KindSuccess ResultKind = "SUCCESS"

	// KindPartialSuccess means the cycle completed but some records failed
	// and will be retried next cycle.
	KindPartialSuccess ResultKind = "PARTIAL_SUCCESS"

	// KindError means a systemic fault aborted the cycle.
	KindError ResultKind = "ERROR"

	// KindNoNetwork means the cycle was skipped for lack of connectivity.
	KindNoNetwork ResultKind = "NO_NETWORK"

	// KindNotAuthenticated means the cycle was skipped because nobody is
	// signed in.
	KindNotAuthenticated ResultKind = "NOT_AUTHENTICATED"
)

// Result is the structured outcome of one push or pull cycle. Cycles never
// return errors across the public surface; every failure folds into this
// type.
type Result struct {
	Kind   ResultKind
	Synced int // Records reconciled this cycle
	Failed int // Records that failed and stay queued
	Err    error
}

// Success builds the result for a cycle with zero failures.
func Success(synced int) Result {
	return Result{Kind: KindSuccess, Synced: synced}
}

// PartialSuccess builds the result for a completed cycle with failures.
func PartialSuccess(synced, failed int) Result {
	return Result{Kind: KindPartialSuccess, Synced: synced, Failed: failed}
}

// Errorf builds the result for a cycle aborted by a systemic fault.
func Errorf(err error) Result {
	return Result{Kind: KindError, Err: err}
}

// NoNetwork builds the no-connectivity short-circuit result.
func NoNetwork() Result {
	return Result{Kind: KindNoNetwork}
}

// NotAuthenticated builds the no-principal short-circuit result.
func NotAuthenticated() Result {
	return Result{Kind: KindNotAuthenticated}
}

// Completed reports whether the cycle ran to the end. Per-record failures
// do not make a cycle incomplete.
func (r Result) Completed() bool {
	return r.Kind == KindSuccess || r.Kind == KindPartialSuccess
}

// RetryLater reports whether the scheduler should back off and retry.
// Error and NoNetwork are treated identically here.
func (r Result) RetryLater() bool {
	return r.Kind == KindError || r.Kind == KindNoNetwork
}

// String renders the result for logs and the CLI.
func (r Result) String() string {
	switch r.Kind {
	case KindSuccess:
		return fmt.Sprintf("success (%d synced)", r.Synced)
	case KindPartialSuccess:
		return fmt.Sprintf("partial success (%d synced, %d failed)", r.Synced, r.Failed)
	case KindError:
		return fmt.Sprintf("error: %v", r.Err)
	case KindNoNetwork:
		return "no network"
	case KindNotAuthenticated:
		return "not authenticated"
	}
	return string(r.Kind)
}

// Merge folds a per-kind outcome into a cycle-wide result.
func (r Result) Merge(other Result) Result {
	merged := Result{
		Synced: r.Synced + other.Synced,
		Failed: r.Failed + other.Failed,
	}
	if merged.Failed > 0 {
		merged.Kind = KindPartialSuccess
	} else {
		merged.Kind = KindSuccess
	}
	return merged
}
