package domain

import "errors"

// Error taxonomy (sentinels). Wrapped at call sites with
// fmt.Errorf("op=...: %w", err) so callers can errors.Is against these.
var (
	// ErrValidation marks a payload rejected at import time.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing transaction, channel, model, or rule.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks any substrate fault. Transient variants are retried
	// at the worker level up to K times.
	ErrStorage = errors.New("storage error")
	// ErrEvaluation marks a scorer unable to build its evaluation
	// environment (duplicate feature name, type mismatch).
	ErrEvaluation = errors.New("evaluation error")
	// ErrConfig marks a startup-only failure: missing channel, malformed
	// rule expression.
	ErrConfig = errors.New("config error")
	// ErrFilter marks a rejected filter tree: UnknownColumn,
	// UnknownRelation, TypeMismatch, EmptyIn.
	ErrFilter = errors.New("filter error")
)
