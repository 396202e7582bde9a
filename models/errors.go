package models

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable indicates extraction could not begin.
type ErrSourceUnavailable struct {
	Err error
}

func (e ErrSourceUnavailable) Error() string {
	return fmt.Errorf("source_unavailable: %w", e.Err).Error()
}

func (e ErrSourceUnavailable) Unwrap() error {
	return e.Err
}

// ErrRecordRejected marks a single raw listing excluded from the output.
type ErrRecordRejected struct {
	ListingID string
	Reason    string
}

func (e ErrRecordRejected) Error() string {
	return fmt.Sprintf("record_rejected: %q: %s", e.ListingID, e.Reason)
}

// ErrConsistencyViolation means cleaned data broke an invariant the cleaner
// is supposed to guarantee. It always indicates a defect.
type ErrConsistencyViolation struct {
	Violations []string
}

func (e ErrConsistencyViolation) Error() string {
	if len(e.Violations) == 1 {
		return "consistency_violation: " + e.Violations[0]
	}
	return fmt.Sprintf("consistency_violation: %d violations, first: %s", len(e.Violations), e.Violations[0])
}

// ErrLoadFailure indicates the target store rejected the batch. Nothing from
// the batch was committed.
type ErrLoadFailure struct {
	Err error
}

func (e ErrLoadFailure) Error() string {
	return fmt.Errorf("load_failure: %w", e.Err).Error()
}

func (e ErrLoadFailure) Unwrap() error {
	return e.Err
}

// ErrConfiguration is an invalid mode/argument combination, detected before
// extraction starts.
type ErrConfiguration struct {
	Err error
}

func (e ErrConfiguration) Error() string {
	return fmt.Errorf("configuration_error: %w", e.Err).Error()
}

func (e ErrConfiguration) Unwrap() error {
	return e.Err
}

// ErrorKind returns the stable label for an error in the taxonomy.
func ErrorKind(err error) string {
	if err == nil {
		return "none"
	}
	var source ErrSourceUnavailable
	if errors.As(err, &source) {
		return "source_unavailable"
	}
	var rejected ErrRecordRejected
	if errors.As(err, &rejected) {
		return "record_rejected"
	}
	var consistency ErrConsistencyViolation
	if errors.As(err, &consistency) {
		return "consistency_violation"
	}
	var load ErrLoadFailure
	if errors.As(err, &load) {
		return "load_failure"
	}
	var cfg ErrConfiguration
	if errors.As(err, &cfg) {
		return "configuration_error"
	}
	return "other"
}
