package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/multierr"
)

// SourceFetchError reports that one inventory source could not be fetched.
// The reconciliation continues with the other source only.
func SourceFetchError(source string, err error) *ReconcilerError {
	code := CodeSourceFetchFailed
	message := fmt.Sprintf("fetch from source %s failed", source)
	suggestion := "check connectivity and credentials for this source"

	if stderrors.Is(err, context.DeadlineExceeded) {
		code = CodeSourceTimeout
		message = fmt.Sprintf("fetch from source %s timed out", source)
		suggestion = "increase sources.fetch_timeout or investigate the slow source"
	}

	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategorySource, code, message)
	} else {
		result = New(CategorySource, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("source", source)
}

// BothSourcesFailedError combines the failures of both sources. It is fatal
// for the computation that produced it.
func BothSourcesFailedError(errA, errB error) *ReconcilerError {
	combined := multierr.Combine(errA, errB)
	if combined == nil {
		combined = fmt.Errorf("no source returned data")
	}

	return Wrap(combined, CategorySource, CodeBothSourcesFailed, "both inventory sources failed").
		WithSuggestion("verify that at least one of the source systems is reachable").
		WithContext("failures", len(multierr.Errors(combined)))
}

// SourceFailures returns the individual source failures wrapped by err.
func SourceFailures(err error) []error {
	reconcilerErr, ok := AsReconcilerError(err)
	if !ok || reconcilerErr.Cause == nil {
		return nil
	}
	return multierr.Errors(reconcilerErr.Cause)
}

// MappingGapWarning reports a Source-A location code with no Source-B
// mapping. The rows are kept under the Source-A code as a pseudo-location.
func MappingGapWarning(sourceACode string) *ReconcilerError {
	return New(CategoryMapping, CodeMappingGap,
		fmt.Sprintf("source A location %s has no source B mapping", sourceACode)).
		WithSuggestion("add the code to locations.mapping").
		WithContext("location_code", sourceACode)
}
