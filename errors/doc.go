// Package errors provides structured error types for the shard runtime.
//
// Every error carries a Phase (where in the runtime it occurred) and a
// Kind (what went wrong). Errors match with errors.Is by Phase and Kind,
// so callers can test for categories without string comparison:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseSubmit, Kind: errors.KindInvalidShard}) {
//	    // target shard does not exist
//	}
//
// Contract violations (double-resolving a future, double-stopping a
// service) are distinct kinds from operational failures: the former
// indicate caller bugs, the latter are recoverable conditions.
package errors
