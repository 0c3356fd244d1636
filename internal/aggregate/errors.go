package aggregate

import "fmt"

// ValidationError reports input that breaks the pipeline contract:
// an unknown smell label, or a coverage report without a files
// mapping. It fails the affected repository only.
type ValidationError struct {
	Repo   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("repository %s: invalid input: %s", e.Repo, e.Reason)
}

// CollectError reports a coverage producer failure: a missing tool,
// a non-zero subprocess exit, or no report where one was expected.
// Collection is never retried within a run.
type CollectError struct {
	Repo string
	Err  error
}

func (e *CollectError) Error() string {
	return fmt.Sprintf("repository %s: coverage collection failed: %v", e.Repo, e.Err)
}

func (e *CollectError) Unwrap() error { return e.Err }
