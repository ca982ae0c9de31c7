// Package errors provides standardized error handling for swarmpulse components.
//
// Errors fall into three classes: Transient (temporary, retry later), Invalid
// (bad input or configuration, do not retry) and Fatal (stop processing).
// Transport failures in the ingestion pipeline are always transient and are
// converted into connection state transitions by the stomp package; they are
// never surfaced to subscribers as errors.
//
// All wrapping follows the format
//
//	"component.method: action failed: %w"
//
// and the Wrap family preserves errors.Is/errors.As chains:
//
//	if err := r.fetch(ctx); err != nil {
//	    return errors.WrapTransient(err, "SchemaRegistry", "Load", "fetch schema")
//	}
//
//	if errors.IsTransient(err) {
//	    // schedule another attempt
//	}
//
// Per-message decode failures are not represented here: the envelope package
// returns its own tagged *envelope.DecodeError so callers can switch on the
// failure code without string matching.
package errors
