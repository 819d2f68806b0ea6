package skimp

import (
	"errors"
	"fmt"
)

// Exactly three error kinds reach callers of Extract: FetchError,
// BudgetExceededError, and LLMError (a parse failure or exhausted retries).
// Everything else is absorbed internally and downgraded to "try the next
// phase". Fatal errors carry the failing phase and proximate cause but never
// the LLM prompt or API key material.

// ErrBudgetExceeded is a sentinel matched by errors.Is against
// *BudgetExceededError.
var ErrBudgetExceeded = errors.New("daily budget exceeded")

// FetchError means the HTML for a URL could not be retrieved. No phase after
// HTML acquisition runs.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch phase failed for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// BudgetExceededError means the budget guard denied an LLM call. The request
// fails rather than silently downgrading, so callers can surface a "raise
// your limit or wait" message.
type BudgetExceededError struct {
	Estimated float64
	Spent     float64
	Limit     float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("llm phase denied: estimated cost %.6f would exceed daily limit %.6f (spent %.6f)",
		e.Estimated, e.Limit, e.Spent)
}

func (e *BudgetExceededError) Is(target error) bool { return target == ErrBudgetExceeded }

// LLMError wraps a fatal failure of the LLM phase: either the response was
// not parseable JSON, or transient errors exhausted the retry budget.
type LLMError struct {
	// Parse is true for unparseable responses. Parse failures are never
	// retried: a malformed reply from a successful call is not transient,
	// and retrying it wastes money.
	Parse bool
	Err   error
}

func (e *LLMError) Error() string {
	if e.Parse {
		return fmt.Sprintf("llm phase failed: unparseable response: %v", e.Err)
	}
	return fmt.Sprintf("llm phase failed: %v", e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }
