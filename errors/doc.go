// Package errors provides standardized error handling patterns for Foundry components.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// Graph compilation and deployment tracking have very different failure
// profiles. Compilation errors are synchronous and almost always Invalid (a
// node is missing a required attribute, a kind is unknown); they abort the
// compile and never reach the provisioning engine. Tracking errors are
// asynchronous: Transient ones are retried silently on the next poll cycle,
// a missing stack is "nothing to report yet" (see IsNotFound), and Fatal
// ones are surfaced once to subscribers before the poll loop stops.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if _, ok := node.Data["partitionKey"]; !ok {
//	    return errors.WrapInvalid(errors.ErrMissingAttribute,
//	        "keyValueTable", "Synthesize", "partitionKey on node "+node.ID)
//	}
//
// Check classification to decide what to do next:
//
//	if err := tracker.Poll(ctx); err != nil {
//	    switch {
//	    case errors.IsNotFound(err):
//	        // stack not visible yet, poll again next cycle
//	    case errors.IsTransient(err):
//	        // retried next cycle, not surfaced
//	    default:
//	        // surfaced once as an error envelope, loop stops
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() preserves the original error's classification through
// the chain, and everything supports errors.Is / errors.As / Unwrap.
//
// # Retry Configuration
//
// DefaultRetryConfig provides exponential backoff parameters; ToRetryConfig
// hands off to the pkg/retry framework for the actual loop:
//
//	cfg := errors.DefaultRetryConfig().ToRetryConfig()
//	err := retry.Do(ctx, cfg, func() error { return engine.DescribeStatus(ctx, name) })
package errors
