package translate

import "fmt"

// TranslationError reports an IR construct outside the supported mapping set.
// It is retryable up to the configured attempt cap, after which the unit is
// escalated for manual review.
type TranslationError struct {
	Unit    string
	NodeRef string
	Reason  string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation of %s failed at %s: %s", e.Unit, e.NodeRef, e.Reason)
}

// OracleUnavailableError reports that the translation oracle could not be
// reached or returned no usable response. Retryable at the translator stage.
type OracleUnavailableError struct {
	Cause error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("translation oracle unavailable: %v", e.Cause)
}

func (e *OracleUnavailableError) Unwrap() error { return e.Cause }
